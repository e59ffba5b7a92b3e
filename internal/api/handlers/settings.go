package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/channel"
	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/pkg/httputil"
)

// maxSettingsBody bounds a settings update.
const maxSettingsBody = 64 << 10

// SettingsHandler handles settings requests. API keys never leave the
// server unredacted.
type SettingsHandler struct {
	store  Store
	logger *zap.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(store Store, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, logger: logger}
}

// Get handles GET /api/v1/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Settings(r.Context())
	if err != nil {
		h.logger.Error("Failed to load settings", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, settings.Redacted())
}

// Update handles PUT /api/v1/settings. Fields absent from the body keep
// their stored values.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody))
	if err != nil {
		httputil.ErrorFromDomain(w, domain.ErrValidationField("body", "unreadable request body"))
		return
	}
	if !json.Valid(body) {
		httputil.ErrorFromDomain(w, domain.ErrValidationField("body", "invalid JSON"))
		return
	}

	saved, err := channel.SaveSettings(r.Context(), h.store, body)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	h.logger.Info("Settings saved",
		zap.String("provider", string(saved.ModelProvider)),
		zap.Bool("fallback_to_local", saved.FallbackToLocal),
	)
	httputil.JSON(w, http.StatusOK, saved)
}
