package channel

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/internal/services/autofill"
)

// Store is the profile and settings store behind the management operations.
type Store interface {
	Profiles(ctx context.Context) ([]domain.Profile, error)
	SaveProfile(ctx context.Context, p domain.Profile) (domain.Profile, error)
	DeleteProfile(ctx context.Context, name string) error
	Settings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, s domain.Settings) (domain.Settings, error)
}

// NameRequest identifies a stored profile.
type NameRequest struct {
	Name string `json:"name"`
}

// DeleteResult confirms a deletion.
type DeleteResult struct {
	Deleted string `json:"deleted"`
}

// Bind registers every operation. Pipeline operations that may call a model
// or drive a browser are asynchronous; store reads and writes answer inline.
func Bind(d *Dispatcher, svc *autofill.Service, st Store) {
	d.Register(domain.OpAnalyzePage, handle(svc.AnalyzePage))
	d.Register(domain.OpExtractPageContent, handle(svc.ExtractContent))
	d.Register(domain.OpSmartAnalyze, handle(svc.SmartAnalyze))
	d.Register(domain.OpGenerateFillData, handle(svc.GenerateFillData))
	d.Register(domain.OpAutofillForm, handle(svc.Autofill))
	d.Register(domain.OpFillForm, handle(svc.FillForm))

	d.RegisterSync(domain.OpGetPageInfo, handle(svc.GetPageInfo))
	d.RegisterSync(domain.OpParseProfile, handle(func(ctx context.Context, req NameRequest) (domain.ParsedProfileInfo, error) {
		return svc.ParseProfile(ctx, req.Name)
	}))

	d.RegisterSync(domain.OpGetProfiles, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return st.Profiles(ctx)
	})
	d.RegisterSync(domain.OpSaveProfile, handle(st.SaveProfile))
	d.RegisterSync(domain.OpDeleteProfile, handle(func(ctx context.Context, req NameRequest) (DeleteResult, error) {
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return DeleteResult{}, domain.ErrValidationField("name", "profile name is required")
		}
		if err := st.DeleteProfile(ctx, name); err != nil {
			return DeleteResult{}, err
		}
		return DeleteResult{Deleted: name}, nil
	}))

	d.RegisterSync(domain.OpGetSettings, func(ctx context.Context, _ json.RawMessage) (any, error) {
		settings, err := st.Settings(ctx)
		if err != nil {
			return nil, err
		}
		return settings.Redacted(), nil
	})
	d.RegisterSync(domain.OpSaveSettings, func(ctx context.Context, payload json.RawMessage) (any, error) {
		return SaveSettings(ctx, st, payload)
	})
}

// handle adapts a typed operation to a Handler.
func handle[Req, Resp any](fn func(context.Context, Req) (Resp, error)) Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req Req
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return fn(ctx, req)
	}
}

// SaveSettings applies a partial update over the stored settings. A redacted
// API key echoed back by a client keeps the stored one.
func SaveSettings(ctx context.Context, st Store, payload json.RawMessage) (domain.Settings, error) {
	current, err := st.Settings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	next := current
	if err := decode(payload, &next); err != nil {
		return domain.Settings{}, err
	}
	if next.APIKey == domain.RedactedAPIKey {
		next.APIKey = current.APIKey
	}
	saved, err := st.SaveSettings(ctx, next)
	if err != nil {
		return domain.Settings{}, err
	}
	return saved.Redacted(), nil
}
