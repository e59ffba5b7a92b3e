package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/api/middleware"
	"github.com/testforge/smartfill/internal/channel"
	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/internal/llm"
	"github.com/testforge/smartfill/internal/observability"
	"github.com/testforge/smartfill/internal/services/autofill"
	"github.com/testforge/smartfill/internal/store"
)

const signupHTML = `<html><head><title>Create account</title></head><body>
<form id="signup" action="/register" method="post">
  <label for="first">First name</label><input id="first" name="first_name" type="text">
  <label for="email">Email</label><input id="email" name="email" type="email">
  <label for="pw">Password</label><input id="pw" name="password" type="password">
  <button type="submit">Sign up</button>
</form></body></html>`

// envelope mirrors the wire response of every endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

type localOnly struct{}

func (localOnly) For(s domain.Settings) (llm.Provider, error) {
	return nil, domain.ErrUnsupportedProvider(string(s.ModelProvider))
}

type testServer struct {
	router *Router
	store  *store.Store
	guard  *PageGuard
	clock  *fakeClock
}

func setupTestRouter(t *testing.T, mutate func(*RouterConfig)) *testServer {
	t.Helper()

	st := store.New(store.NewMemory())
	svc := autofill.NewService(autofill.Config{}, autofill.Deps{Store: st, Providers: localOnly{}}, zap.NewNop())
	d := channel.NewDispatcher(zap.NewNop())
	channel.Bind(d, svc, st)

	guard, clock := newTestGuard(DefaultCooldown)
	cfg := RouterConfig{
		Dispatcher: d,
		Store:      st,
		Guard:      guard,
		Logger:     zap.NewNop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return &testServer{router: NewRouter(cfg), store: st, guard: guard, clock: clock}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func message(op domain.Operation, pageID string, data any) map[string]any {
	m := map[string]any{"type": op}
	if pageID != "" {
		m["pageId"] = pageID
	}
	if data != nil {
		m["data"] = data
	}
	return m
}

func TestHealthEndpoints(t *testing.T) {
	srv := setupTestRouter(t, func(cfg *RouterConfig) {
		cfg.Checks = []HealthCheck{
			{Name: "store", Check: func(context.Context) error { return nil }},
		}
	})

	rec, env := srv.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"status":"healthy","service":"smartfill-api"}`, string(env.Data))

	rec, env = srv.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"store":"healthy"}}`, string(env.Data))
}

func TestReadyEndpoint_Unhealthy(t *testing.T) {
	srv := setupTestRouter(t, func(cfg *RouterConfig) {
		cfg.Checks = []HealthCheck{
			{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
		}
	})

	rec, env := srv.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.Success)
	assert.Contains(t, string(env.Data), "unhealthy: connection refused")
}

func TestMessages_AnalyzePage(t *testing.T) {
	srv := setupTestRouter(t, nil)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/messages",
		message(domain.OpAnalyzePage, "", map[string]string{"url": "https://example.com/signup", "html": signupHTML}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success, env.Error)

	var result domain.AnalysisResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, domain.SourceLocal, result.Source)
	assert.False(t, result.Fallback)
	require.Len(t, result.Forms, 1)
	assert.Equal(t, 3, result.TotalFields)
}

func TestMessages_FailuresUseEnvelope(t *testing.T) {
	srv := setupTestRouter(t, nil)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"unknown operation", message("REBOOT", "", nil), domain.ErrCodeUnknownOperation},
		{"no forms", message(domain.OpAnalyzePage, "", map[string]string{"html": "<p>hi</p>"}), domain.ErrCodeNoFormsFound},
		{"no fields", message(domain.OpGenerateFillData, "", map[string]any{"profileName": "x"}), domain.ErrCodeNoFillableFields},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := srv.do(t, http.MethodPost, "/api/v1/messages", tt.body)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Code)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestMessages_TransportRejections(t *testing.T) {
	srv := setupTestRouter(t, nil)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/messages", `{"type":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.ErrCodeValidation, env.Code)

	rec, env = srv.do(t, http.MethodPost, "/api/v1/messages", `{"data":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.ErrCodeValidation, env.Code)
}

func TestMessages_PageGuard(t *testing.T) {
	srv := setupTestRouter(t, nil)
	analyze := message(domain.OpAnalyzePage, "tab-7", map[string]string{"html": signupHTML})

	t.Run("in progress", func(t *testing.T) {
		release, err := srv.guard.Acquire("tab-7")
		require.NoError(t, err)
		defer release()

		rec, env := srv.do(t, http.MethodPost, "/api/v1/messages", analyze)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, domain.ErrCodeAnalysisInProgress, env.Code)
	})

	t.Run("cooldown", func(t *testing.T) {
		srv.clock.advance(time.Minute)

		rec, env := srv.do(t, http.MethodPost, "/api/v1/messages", analyze)
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, env.Success, env.Error)

		srv.clock.advance(500 * time.Millisecond)
		rec, env = srv.do(t, http.MethodPost, "/api/v1/messages", analyze)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, domain.ErrCodeAnalysisCooldown, env.Code)
		assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	})

	t.Run("autofill that analyzes is guarded", func(t *testing.T) {
		release, err := srv.guard.Acquire("tab-9")
		require.NoError(t, err)
		defer release()

		rec, env := srv.do(t, http.MethodPost, "/api/v1/messages",
			message(domain.OpAutofillForm, "tab-9", map[string]string{"url": "https://example.test/signup", "profileName": "Jane"}))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, domain.ErrCodeAnalysisInProgress, env.Code)

		withFields := message(domain.OpAutofillForm, "tab-9", map[string]any{
			"profileName": "Jane",
			"formFields":  []map[string]string{{"selector": "#email", "label": "email"}},
		})
		rec, _ = srv.do(t, http.MethodPost, "/api/v1/messages", withFields)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("other operations pass", func(t *testing.T) {
		rec, env := srv.do(t, http.MethodPost, "/api/v1/messages", message(domain.OpGetProfiles, "tab-7", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
	})
}

func TestOperationsEndpoint(t *testing.T) {
	srv := setupTestRouter(t, nil)

	rec, env := srv.do(t, http.MethodGet, "/api/v1/operations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ops []domain.Operation
	require.NoError(t, json.Unmarshal(env.Data, &ops))
	assert.Equal(t, domain.Operations(), ops)
}

func TestProfilesEndpoints(t *testing.T) {
	srv := setupTestRouter(t, nil)

	rec, env := srv.do(t, http.MethodGet, "/api/v1/profiles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	rec, env = srv.do(t, http.MethodPost, "/api/v1/profiles", map[string]string{"name": "Jane Roe", "info": "jane@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)

	rec, env = srv.do(t, http.MethodGet, "/api/v1/profiles/Jane%20Roe", nil)
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	var p domain.Profile
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "jane@example.com", p.Info)

	rec, _ = srv.do(t, http.MethodDelete, "/api/v1/profiles/Jane%20Roe", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = srv.do(t, http.MethodGet, "/api/v1/profiles/Jane%20Roe", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.ErrCodeProfileNotFound, env.Code)
}

func TestProfilesEndpoints_Validation(t *testing.T) {
	srv := setupTestRouter(t, nil)

	tests := []struct {
		name string
		body any
	}{
		{"empty name", map[string]string{"name": " ", "info": "x"}},
		{"name too long", map[string]string{"name": strings.Repeat("n", domain.MaxProfileNameLength+1), "info": "x"}},
		{"unknown field", `{"name":"a","info":"b","extra":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := srv.do(t, http.MethodPost, "/api/v1/profiles", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, domain.ErrCodeValidation, env.Code)
		})
	}
}

func TestSettingsEndpoints(t *testing.T) {
	srv := setupTestRouter(t, nil)

	rec, env := srv.do(t, http.MethodPut, "/api/v1/settings", map[string]any{"modelProvider": "claude", "apiKey": "sk-secret"})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	assert.NotContains(t, string(env.Data), "sk-secret")

	rec, env = srv.do(t, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Settings
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, domain.ProviderClaude, got.ModelProvider)
	assert.Equal(t, domain.RedactedAPIKey, got.APIKey)
	assert.True(t, got.FallbackToLocal)

	rec, _ = srv.do(t, http.MethodPut, "/api/v1/settings", map[string]any{"apiKey": domain.RedactedAPIKey, "debugMode": true})
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := srv.store.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", stored.APIKey)
	assert.True(t, stored.DebugMode)

	rec, env = srv.do(t, http.MethodPut, "/api/v1/settings", map[string]any{"modelProvider": "llama"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.ErrCodeUnsupportedProvider, env.Code)

	rec, _ = srv.do(t, http.MethodPut, "/api/v1/settings", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	srv := setupTestRouter(t, func(cfg *RouterConfig) {
		cfg.Limiter = middleware.NewLocalLimiter()
		cfg.RateLimit = 1
	})

	rec, _ := srv.do(t, http.MethodGet, "/api/v1/operations", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := srv.do(t, http.MethodGet, "/api/v1/operations", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, domain.ErrCodeRateLimited, env.Code)

	rec, _ = srv.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := setupTestRouter(t, func(cfg *RouterConfig) {
		cfg.Metrics = observability.NewMetrics("smartfill_api_test")
	})

	srv.do(t, http.MethodGet, "/api/v1/operations", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "smartfill_api_test_http_requests_total")
}

func TestCORS(t *testing.T) {
	srv := setupTestRouter(t, func(cfg *RouterConfig) {
		cfg.EnableCORS = true
		cfg.AllowedOrigins = []string{"chrome-extension://abc"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/messages", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, "chrome-extension://abc", rec.Header().Get("Access-Control-Allow-Origin"))
}
