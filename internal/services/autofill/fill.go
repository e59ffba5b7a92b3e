package autofill

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/internal/services/fill"
)

var errNoInjector = errors.New("no browser is configured for form injection")

// GenerateFillData resolves a value for every field it can from the profile.
func (s *Service) GenerateFillData(ctx context.Context, req FillRequest) (*domain.FillResult, error) {
	result, err := s.generateFillData(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordFill(result.Summary)
	}
	return result, nil
}

func (s *Service) generateFillData(ctx context.Context, req FillRequest) (*domain.FillResult, error) {
	if len(req.Fields) == 0 {
		return nil, domain.ErrNoFillableFields()
	}
	settings, err := s.settings(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.resolveProfile(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("generating fill data",
		zap.String("profile", p.Name),
		zap.String("provider", string(settings.ModelProvider)),
		zap.Int("fields", len(req.Fields)),
	)

	if !settings.ModelProvider.IsRemote() {
		return s.localFill(p, req.Fields)
	}

	result, err := s.remoteFill(ctx, settings, p, req.Fields)
	if err == nil {
		return result, nil
	}
	if !s.fallback(ctx, domain.OpGenerateFillData, settings, err) {
		return nil, err
	}

	local, localErr := s.localFill(p, req.Fields)
	if localErr != nil {
		return nil, localErr
	}
	local.Fallback = true
	local.FallbackReason = fallbackReason(err)
	return local, nil
}

func (s *Service) localFill(p domain.Profile, fields []domain.ClassifiedField) (*domain.FillResult, error) {
	info := s.parser.Parse(p)
	fillMap, summary, err := fill.BuildFillMap(fields, info, s.logger)
	if err != nil {
		return nil, err
	}
	return &domain.FillResult{FillMap: fillMap, Summary: summary, Source: domain.SourceLocal}, nil
}

// remoteFill asks the model for values. An answer that matches none of the
// requested selectors counts as a failure.
func (s *Service) remoteFill(ctx context.Context, settings domain.Settings, p domain.Profile, fields []domain.ClassifiedField) (*domain.FillResult, error) {
	provider, err := s.deps.Providers.For(settings)
	if err != nil {
		return nil, err
	}
	resp, err := provider.Generate(ctx, fill.BuildFillPrompt(p, fields))
	if err != nil {
		return nil, err
	}
	text, err := resp.Text()
	if err != nil {
		return nil, err
	}
	fillMap, err := fill.ValidateRemoteFillMap(text, fields)
	if err != nil {
		return nil, err
	}
	if len(fillMap) == 0 {
		return nil, domain.ErrNoMatchedValues(len(fields))
	}

	return &domain.FillResult{
		FillMap: fillMap,
		Summary: domain.FillSummary{
			FieldsProcessed: len(fields),
			FieldsMatched:   len(fillMap),
		},
		Source: domain.SourceOf(provider.Name()),
	}, nil
}

// resolveProfile prefers the inline profile over a stored one.
func (s *Service) resolveProfile(ctx context.Context, req FillRequest) (domain.Profile, error) {
	if req.Profile != nil {
		p := *req.Profile
		if err := p.Validate(); err != nil {
			return domain.Profile{}, err
		}
		return p, nil
	}
	name := strings.TrimSpace(req.ProfileName)
	if name == "" {
		return domain.Profile{}, domain.ErrValidationField("profileName", "a profile or profile name is required")
	}
	return s.deps.Store.GetProfile(ctx, name)
}

// FillForm writes a prepared fill map into the page at URL.
func (s *Service) FillForm(ctx context.Context, req FillFormRequest) (domain.FillReport, error) {
	if s.deps.Injector == nil {
		return domain.FillReport{}, domain.ErrInjection(errNoInjector)
	}
	if req.URL == "" {
		return domain.FillReport{}, domain.ErrValidationField("url", "url is required")
	}
	if len(req.FillMap) == 0 {
		return domain.FillReport{}, domain.ErrValidationField("fillData", "fill data is required")
	}

	report, err := s.deps.Injector.Fill(ctx, req.URL, req.FillMap)
	if err != nil {
		return domain.FillReport{}, err
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordInjection(report)
	}

	s.logger.Info("form filled",
		zap.String("url", req.URL),
		zap.Int("total", report.TotalFields),
		zap.Int("success", report.SuccessCount),
		zap.Int("failed", report.FailedCount),
	)
	return report, nil
}

// Autofill generates values for the page's fields and writes them. When the
// request carries no fields the page is analyzed first.
func (s *Service) Autofill(ctx context.Context, req AutofillRequest) (*AutofillResult, error) {
	if s.deps.Injector == nil {
		return nil, domain.ErrInjection(errNoInjector)
	}
	if req.URL == "" {
		return nil, domain.ErrValidationField("url", "url is required")
	}

	out := &AutofillResult{}
	fields := req.Fields
	if len(fields) == 0 {
		analysis, err := s.AnalyzePage(ctx, AnalyzeRequest{URL: req.URL})
		if err != nil {
			return nil, err
		}
		out.Analysis = analysis
		fields = analysis.Fields()
	}

	result, err := s.GenerateFillData(ctx, FillRequest{ProfileName: req.ProfileName, Fields: fields})
	if err != nil {
		return nil, err
	}
	out.Fill = result

	report, err := s.FillForm(ctx, FillFormRequest{URL: req.URL, FillMap: result.FillMap})
	if err != nil {
		return nil, err
	}
	out.Report = report
	return out, nil
}

// ParseProfile returns what the parser extracts from a stored profile.
func (s *Service) ParseProfile(ctx context.Context, name string) (domain.ParsedProfileInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ParsedProfileInfo{}, domain.ErrValidationField("profileName", "profile name is required")
	}
	p, err := s.deps.Store.GetProfile(ctx, name)
	if err != nil {
		return domain.ParsedProfileInfo{}, err
	}
	return s.parser.Parse(p), nil
}
