package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/pkg/httputil"
)

// Store is the profile and settings store behind the REST endpoints.
type Store interface {
	Profiles(ctx context.Context) ([]domain.Profile, error)
	GetProfile(ctx context.Context, name string) (domain.Profile, error)
	SaveProfile(ctx context.Context, p domain.Profile) (domain.Profile, error)
	DeleteProfile(ctx context.Context, name string) error
	Settings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, s domain.Settings) (domain.Settings, error)
}

// ProfileHandler handles profile requests
type ProfileHandler struct {
	store  Store
	logger *zap.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(store Store, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{store: store, logger: logger}
}

// SaveProfileRequest is the request body for saving a profile
type SaveProfileRequest struct {
	Name string `json:"name"`
	Info string `json:"info"`
}

// List handles GET /api/v1/profiles
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.Profiles(r.Context())
	if err != nil {
		h.logger.Error("Failed to list profiles", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, profiles)
}

// Get handles GET /api/v1/profiles/{name}
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	name, ok := profileName(w, r)
	if !ok {
		return
	}

	p, err := h.store.GetProfile(r.Context(), name)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, p)
}

// Save handles POST /api/v1/profiles. Saving an existing name replaces it.
func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveProfileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	p, err := h.store.SaveProfile(r.Context(), domain.Profile{Name: req.Name, Info: req.Info})
	if err != nil {
		if !domain.HasCode(err, domain.ErrCodeValidation) {
			h.logger.Error("Failed to save profile", zap.Error(err))
		}
		httputil.ErrorFromDomain(w, err)
		return
	}

	h.logger.Info("Profile saved", zap.String("profile", p.Name))
	httputil.JSON(w, http.StatusOK, p)
}

// Delete handles DELETE /api/v1/profiles/{name}
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name, ok := profileName(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteProfile(r.Context(), name); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	h.logger.Info("Profile deleted", zap.String("profile", name))
	w.WriteHeader(http.StatusNoContent)
}

// profileName reads the unescaped {name} path parameter.
func profileName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		httputil.ErrorFromDomain(w, domain.ErrValidationField("name", "invalid profile name"))
		return "", false
	}
	return name, true
}
