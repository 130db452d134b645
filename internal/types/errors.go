package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidLat   ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon   ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationInvalidDays  ErrorCode = "validation_invalid_days"
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationBadPayload   ErrorCode = "validation_malformed_payload"

	// Data (422) -- training history missing, too short, or malformed.
	ErrCodeDataHistoryTooShort ErrorCode = "data_history_too_short"
	ErrCodeDataMalformedRecord ErrorCode = "data_malformed_record"
	ErrCodeDataMissingField    ErrorCode = "data_missing_field"
	ErrCodeDataNoHistory       ErrorCode = "data_no_history_loaded"

	// Model (500) -- candidate fitting failures.
	ErrCodeModelFitFailed    ErrorCode = "model_fit_failed"
	ErrCodeModelNoCandidates ErrorCode = "model_no_candidates"

	// Upstream (502/504) -- forecast source unreachable or timed out.
	ErrCodeUpstreamForecast    ErrorCode = "upstream_forecast_unavailable"
	ErrCodeUpstreamTimeout     ErrorCode = "upstream_forecast_timeout"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"

	// Schedule (200 with degraded markers; code used in warnings/details).
	ErrCodeSchedulePartial ErrorCode = "schedule_partial"

	// Internal (500)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "data_"):
		return http.StatusUnprocessableEntity // 422
	case s == string(ErrCodeUpstreamTimeout):
		return http.StatusGatewayTimeout // 504
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "model_"),
		strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the engine.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain
// errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsDataError reports whether err carries one of the data_* codes that abort
// a dataset reload.
func IsDataError(err error) bool {
	return hasCodePrefix(err, "data_")
}

// IsNetworkError reports whether err carries one of the upstream_* codes
// emitted by the weather client.
func IsNetworkError(err error) bool {
	return hasCodePrefix(err, "upstream_")
}

// IsModelError reports whether err carries one of the model_* codes.
func IsModelError(err error) bool {
	return hasCodePrefix(err, "model_")
}

func hasCodePrefix(err error, prefix string) bool {
	appErr, ok := AsAppError(err)
	return ok && strings.HasPrefix(string(appErr.Code), prefix)
}

// AsAppError unwraps err looking for an *AppError in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
