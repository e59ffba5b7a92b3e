package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeNoFormsFound,
				Message: "No forms found on page",
			},
			want: "[NO_FORMS_FOUND] No forms found on page",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeProvider,
				Message: "gemini API request failed",
				Cause:   errors.New("connection refused"),
			},
			want: "[PROVIDER_ERROR] gemini API request failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_UnwrapAndIs(t *testing.T) {
	inner := errors.New("inner error")
	err := fmt.Errorf("analyzing: %w", ErrProviderCall(ProviderClaude, inner))

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if !errors.Is(err, &AppError{Code: ErrCodeProvider}) {
		t.Error("errors.Is should match by code")
	}
	if errors.Is(err, &AppError{Code: ErrCodeTimeout}) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestErrProvider_NamesProviderAndStatus(t *testing.T) {
	err := ErrProvider(ProviderGemini, http.StatusTooManyRequests, "Too Many Requests", `{"error":"quota"}`)

	for _, want := range []string{"gemini", "429", "Too Many Requests"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should contain %q", err.Error(), want)
		}
	}
	if err.Details != `{"error":"quota"}` {
		t.Errorf("Details = %q", err.Details)
	}
	if err.HTTPStatus != http.StatusBadGateway {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusBadGateway)
	}
}

func TestErrResponseParse_Excerpt(t *testing.T) {
	raw := strings.Repeat("x", 500)
	err := ErrResponseParse(raw, errors.New("bad json"))

	excerpt, _ := err.Metadata["excerpt"].(string)
	if len(excerpt) != ExcerptLength {
		t.Errorf("excerpt length = %d, want %d", len(excerpt), ExcerptLength)
	}
	if !strings.HasPrefix(err.Message, "Failed to parse AI response as JSON. Response was: \"") {
		t.Errorf("unexpected message %q", err.Message)
	}
}

func TestExcerpt_Runes(t *testing.T) {
	if got := Excerpt("我叫张三", 2); got != "我叫" {
		t.Errorf("Excerpt() = %q, want 我叫", got)
	}
	if got := Excerpt("short", 200); got != "short" {
		t.Errorf("Excerpt() = %q, want short", got)
	}
}

func TestGetHTTPStatusAndCode(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", ErrValidation("bad"), http.StatusBadRequest, ErrCodeValidation},
		{"content too large", ErrContentTooLarge(90000, 50000), http.StatusRequestEntityTooLarge, ErrCodeContentTooLarge},
		{"in progress", ErrAnalysisInProgress(), http.StatusConflict, ErrCodeAnalysisInProgress},
		{"profile missing", ErrProfileNotFound("work"), http.StatusNotFound, ErrCodeProfileNotFound},
		{"wrapped", fmt.Errorf("x: %w", ErrNoMatchedValues(3)), http.StatusUnprocessableEntity, ErrCodeNoMatchedValues},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetHTTPStatus(tt.err); got != tt.wantStatus {
				t.Errorf("GetHTTPStatus() = %d, want %d", got, tt.wantStatus)
			}
			if got := GetErrorCode(tt.err); got != tt.wantCode {
				t.Errorf("GetErrorCode() = %s, want %s", got, tt.wantCode)
			}
			if !HasCode(tt.err, tt.wantCode) {
				t.Errorf("HasCode(%s) = false", tt.wantCode)
			}
		})
	}
}

func TestAppError_AnalysisInProgressMessage(t *testing.T) {
	if got := ErrAnalysisInProgress().Message; got != "Analysis already in progress" {
		t.Errorf("Message = %q", got)
	}
}
