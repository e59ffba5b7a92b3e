package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"
)

// Error codes for categorization
const (
	// Invalid input
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeContentTooLarge  = "CONTENT_TOO_LARGE"
	ErrCodeUnknownOperation = "UNKNOWN_OPERATION"

	// No-data results
	ErrCodeNoFormsFound     = "NO_FORMS_FOUND"
	ErrCodeNoFillableFields = "NO_FILLABLE_FIELDS"
	ErrCodeNoMatchedValues  = "NO_MATCHED_VALUES"
	ErrCodeNoValidForms     = "NO_VALID_FORMS"
	ErrCodeProfileNotFound  = "PROFILE_NOT_FOUND"

	// Remote provider failures
	ErrCodeProvider            = "PROVIDER_ERROR"
	ErrCodeAPIKeyMissing       = "API_KEY_MISSING"
	ErrCodeUnsupportedProvider = "UNSUPPORTED_PROVIDER"
	ErrCodeTimeout             = "TIMEOUT_ERROR"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"

	// Malformed model output
	ErrCodeResponseParse = "RESPONSE_PARSE_ERROR"
	ErrCodeResponseShape = "RESPONSE_SHAPE_ERROR"

	// Concurrency guard
	ErrCodeAnalysisInProgress = "ANALYSIS_IN_PROGRESS"
	ErrCodeAnalysisCooldown   = "ANALYSIS_COOLDOWN"

	// Collaborators
	ErrCodeStore       = "STORE_ERROR"
	ErrCodeInjection   = "INJECTION_ERROR"
	ErrCodeRateLimited = "RATE_LIMITED"
	ErrCodeInternal    = "INTERNAL_ERROR"
)

// ExcerptLength bounds the raw model text carried by parse errors.
const ExcerptLength = 200

// AppError is the base error type for all application errors
type AppError struct {
	// Error code for programmatic handling
	Code string `json:"code"`

	// Human-readable message
	Message string `json:"message"`

	// Detailed description (optional, for developers)
	Details string `json:"details,omitempty"`

	// HTTP status code
	HTTPStatus int `json:"-"`

	// Original error (for error wrapping)
	Cause error `json:"-"`

	// Metadata for additional context
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Timestamp when error occurred
	Timestamp time.Time `json:"timestamp"`

	// Retry information
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause adds the underlying cause
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithRetry marks the error as retryable
func (e *AppError) WithRetry(after time.Duration) *AppError {
	e.Retryable = true
	e.RetryAfter = after
	return e
}

// ToJSON serializes the error to JSON
func (e *AppError) ToJSON() []byte {
	data, _ := json.Marshal(e)
	return data
}

// NewError creates a new AppError
func NewError(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now().UTC(),
	}
}

// Invalid input

func ErrValidation(message string) *AppError {
	return NewError(ErrCodeValidation, message, http.StatusBadRequest)
}

func ErrValidationField(field, message string) *AppError {
	return NewError(ErrCodeValidation, message, http.StatusBadRequest).
		WithMetadata("field", field)
}

func ErrContentTooLarge(estimatedTokens, limitTokens int) *AppError {
	return NewError(ErrCodeContentTooLarge,
		fmt.Sprintf("Page content too large: ~%d tokens exceeds limit of %d", estimatedTokens, limitTokens),
		http.StatusRequestEntityTooLarge).
		WithMetadata("estimated_tokens", estimatedTokens).
		WithMetadata("limit_tokens", limitTokens)
}

func ErrUnknownOperation(op string) *AppError {
	return NewError(ErrCodeUnknownOperation, fmt.Sprintf("Unknown operation: %s", op), http.StatusBadRequest).
		WithMetadata("operation", op)
}

// No-data results

func ErrNoFormsFound() *AppError {
	return NewError(ErrCodeNoFormsFound, "No forms found on page", http.StatusUnprocessableEntity)
}

func ErrNoFillableFields() *AppError {
	return NewError(ErrCodeNoFillableFields, "No fillable fields found", http.StatusUnprocessableEntity)
}

func ErrNoMatchedValues(processed int) *AppError {
	return NewError(ErrCodeNoMatchedValues, "No profile values matched any field", http.StatusUnprocessableEntity).
		WithMetadata("fields_processed", processed)
}

func ErrNoValidForms() *AppError {
	return NewError(ErrCodeNoValidForms, "Model response contained no valid forms", http.StatusUnprocessableEntity)
}

func ErrProfileNotFound(name string) *AppError {
	return NewError(ErrCodeProfileNotFound, fmt.Sprintf("Profile not found: %s", name), http.StatusNotFound).
		WithMetadata("profile", name)
}

// Remote provider failures

// ErrProvider reports a non-2xx provider response. The message names the
// provider, status code and status text; the body is kept in Details.
func ErrProvider(provider ModelProvider, status int, statusText, body string) *AppError {
	return NewError(ErrCodeProvider,
		fmt.Sprintf("%s API request failed: %d %s", provider, status, statusText),
		http.StatusBadGateway).
		WithDetails(body).
		WithMetadata("provider", string(provider)).
		WithMetadata("status", status)
}

func ErrProviderCall(provider ModelProvider, err error) *AppError {
	return NewError(ErrCodeProvider, fmt.Sprintf("%s API request failed", provider), http.StatusBadGateway).
		WithCause(err).
		WithMetadata("provider", string(provider))
}

func ErrAPIKeyMissing(provider ModelProvider) *AppError {
	return NewError(ErrCodeAPIKeyMissing, fmt.Sprintf("API key is required for provider %s", provider), http.StatusBadRequest).
		WithMetadata("provider", string(provider))
}

func ErrUnsupportedProvider(provider string) *AppError {
	return NewError(ErrCodeUnsupportedProvider, fmt.Sprintf("Unsupported AI provider: %s", provider), http.StatusBadRequest).
		WithMetadata("provider", provider)
}

func ErrTimeout(operation string) *AppError {
	return NewError(ErrCodeTimeout, fmt.Sprintf("Operation timed out: %s", operation), http.StatusGatewayTimeout).
		WithMetadata("operation", operation)
}

func ErrProviderUnavailable(provider ModelProvider, err error) *AppError {
	return NewError(ErrCodeProviderUnavailable, fmt.Sprintf("Provider temporarily unavailable: %s", provider), http.StatusServiceUnavailable).
		WithCause(err).
		WithMetadata("provider", string(provider)).
		WithRetry(30 * time.Second)
}

// Malformed model output

// ErrResponseParse carries the first ExcerptLength characters of the raw text.
func ErrResponseParse(raw string, err error) *AppError {
	excerpt := Excerpt(raw, ExcerptLength)
	return NewError(ErrCodeResponseParse,
		fmt.Sprintf("Failed to parse AI response as JSON. Response was: \"%s...\"", excerpt),
		http.StatusBadGateway).
		WithCause(err).
		WithMetadata("excerpt", excerpt)
}

func ErrResponseShape(message string) *AppError {
	return NewError(ErrCodeResponseShape, message, http.StatusBadGateway)
}

// Concurrency guard

func ErrAnalysisInProgress() *AppError {
	return NewError(ErrCodeAnalysisInProgress, "Analysis already in progress", http.StatusConflict)
}

func ErrAnalysisCooldown(remaining time.Duration) *AppError {
	return NewError(ErrCodeAnalysisCooldown, "Please wait before analyzing again", http.StatusTooManyRequests).
		WithRetry(remaining)
}

// Collaborators

func ErrStore(err error) *AppError {
	return NewError(ErrCodeStore, "Store error", http.StatusInternalServerError).
		WithCause(err)
}

func ErrInjection(err error) *AppError {
	return NewError(ErrCodeInjection, "Form injection failed", http.StatusBadGateway).
		WithCause(err)
}

func ErrRateLimited(retryAfter time.Duration) *AppError {
	return NewError(ErrCodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests).
		WithRetry(retryAfter)
}

func ErrInternal(message string) *AppError {
	if message == "" {
		message = "Internal server error"
	}
	return NewError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// Helper functions

// AsAppError converts an error to AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns the HTTP status code for an error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// GetErrorCode returns the error code for an error
func GetErrorCode(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	return GetErrorCode(err) == code
}

// Excerpt returns at most n characters of s.
func Excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
