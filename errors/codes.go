package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Authentication errors
const (
	// ErrCodeUnauthenticated indicates the request carried no credential.
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	// ErrCodeForbidden indicates the credential is not recognized.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
)

// Configuration errors
const (
	// ErrCodeEmptyKeyStore indicates the key file exists but holds no keys.
	ErrCodeEmptyKeyStore ErrorCode = "EMPTY_KEY_STORE"
)

// Input errors
const (
	// ErrCodeInvalidParameter indicates an out-of-range or malformed required parameter.
	ErrCodeInvalidParameter ErrorCode = "INVALID_PARAMETER"
	// ErrCodeMissingField indicates a required request field is absent.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodePayloadTooLarge indicates the upload exceeds the body size limit.
	ErrCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	// ErrCodeAudioConversionFailed indicates the conversion utility rejected the input.
	ErrCodeAudioConversionFailed ErrorCode = "AUDIO_CONVERSION_FAILED"
)

// Engine and availability errors
const (
	// ErrCodeEngineUnavailable indicates no speech model is loaded.
	ErrCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	// ErrCodeTranscriptionFailed indicates the engine failed during inference.
	ErrCodeTranscriptionFailed ErrorCode = "TRANSCRIPTION_FAILED"
	// ErrCodeServiceUnavailable indicates the service is at capacity.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates a bounded step ran past its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Internal errors
const (
	// ErrCodeInternalIO indicates a staging or cleanup filesystem failure.
	ErrCodeInternalIO ErrorCode = "INTERNAL_IO_FAILURE"
	// ErrCodeInternal indicates an unexpected server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeEngineUnavailable:  true,
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
}

// IsRetryableCode returns true if the caller may retry the same request.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
