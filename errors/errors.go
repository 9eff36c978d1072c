package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Constructors ---

// Unauthenticated is returned when no API key was presented.
func Unauthenticated(reason string) *AppError {
	if reason == "" {
		reason = "API key required."
	}
	return &AppError{
		Code: ErrCodeUnauthenticated, Message: reason,
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// Forbidden is returned when the presented API key is not in the key set.
func Forbidden(reason string) *AppError {
	if reason == "" {
		reason = "Invalid API key."
	}
	return &AppError{
		Code: ErrCodeForbidden, Message: reason,
		HTTPStatus: http.StatusForbidden, Retryable: false,
	}
}

// EmptyKeyStore is the fatal startup condition of a key file with no keys.
func EmptyKeyStore(path string) *AppError {
	return &AppError{
		Code: ErrCodeEmptyKeyStore, Message: fmt.Sprintf("Key file %s contains no API keys.", path),
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
		Details: map[string]any{"path": path},
	}
}

// InvalidParameter creates an error for an out-of-range or malformed parameter.
func InvalidParameter(param, reason string) *AppError {
	details := make(map[string]any)
	if param != "" {
		details["parameter"] = param
	}
	return &AppError{
		Code: ErrCodeInvalidParameter, Message: fmt.Sprintf("Invalid parameter: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"field": field},
	}
}

// AudioConversionFailed wraps a failed conversion run; diagnostics carries
// the captured stderr text of the conversion utility.
func AudioConversionFailed(diagnostics string, cause error) *AppError {
	e := &AppError{
		Code: ErrCodeAudioConversionFailed, Message: "The uploaded audio could not be converted.",
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false, Cause: cause,
	}
	if diagnostics != "" {
		e.WithDetail("diagnostics", diagnostics)
	}
	return e
}

// EngineUnavailable is returned when no speech model is loaded or reachable.
func EngineUnavailable(engine string) *AppError {
	e := &AppError{
		Code: ErrCodeEngineUnavailable, Message: "The speech recognition model is not loaded.",
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
	}
	if engine != "" {
		e.WithDetail("engine", engine)
	}
	return e
}

// TranscriptionFailed wraps an engine failure during inference.
func TranscriptionFailed(engine string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeTranscriptionFailed, Message: "Transcription failed.",
		HTTPStatus: http.StatusBadGateway, Retryable: false,
		Details: map[string]any{"engine": engine}, Cause: cause,
	}
}

// PayloadTooLarge rejects an upload over the configured body limit.
func PayloadTooLarge(limit int64) *AppError {
	return &AppError{
		Code: ErrCodePayloadTooLarge, Message: "The uploaded file is too large.",
		HTTPStatus: http.StatusRequestEntityTooLarge, Retryable: false,
		Details: map[string]any{"limit_bytes": limit},
	}
}

// ServiceUnavailable creates a new AppError for a service at capacity.
func ServiceUnavailable(reason string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: "The service is busy. Please try again.",
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"reason": reason},
	}
}

// Timeout creates a new AppError for a step that ran past its deadline.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// InternalIO wraps a filesystem failure while staging request data.
func InternalIO(operation string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternalIO, Message: "A storage error occurred while handling the upload.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
		Details: map[string]any{"operation": operation}, Cause: cause,
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
