package dto

import "net/http"

// Error codes follow the format ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	ErrCodeValidation = "ERR_VALIDATION"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for payloads that parse but carry invalid values
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	// ErrCodeInvalidDocument is used for dashboard documents and patches that do not validate
	ErrCodeInvalidDocument = "ERR_INVALID_DOCUMENT"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	ErrCodeFileTooLarge    = "ERR_FILE_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized  = "ERR_UNAUTHORIZED"
	ErrCodeForbidden     = "ERR_FORBIDDEN"
	ErrCodeTokenExpired  = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid  = "ERR_TOKEN_INVALID"
	ErrCodeTenantMissing = "ERR_TENANT_REQUIRED"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// Dependency error codes
const (
	// ErrCodeUpstream is used when an LLM provider, object storage or the browser fails
	ErrCodeUpstream          = "ERR_UPSTREAM"
	ErrCodeAgentUnavailable  = "ERR_AGENT_UNAVAILABLE"
	ErrCodeExportUnavailable = "ERR_EXPORT_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeInvalidDocument: http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeFileTooLarge:    http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized:  http.StatusUnauthorized,
	ErrCodeForbidden:     http.StatusForbidden,
	ErrCodeTokenExpired:  http.StatusUnauthorized,
	ErrCodeTokenInvalid:  http.StatusUnauthorized,
	ErrCodeTenantMissing: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,

	ErrCodeRateLimited: http.StatusTooManyRequests,

	ErrCodeUpstream:          http.StatusBadGateway,
	ErrCodeAgentUnavailable:  http.StatusServiceUnavailable,
	ErrCodeExportUnavailable: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"FORBIDDEN":            ErrCodeForbidden,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"RATE_LIMITED":         ErrCodeRateLimited,
	"UPSTREAM_ERROR":       ErrCodeUpstream,
	"AGENT_UNAVAILABLE":    ErrCodeAgentUnavailable,
	"EXPORT_UNAVAILABLE":   ErrCodeExportUnavailable,
	"FILE_TOO_LARGE":       ErrCodeFileTooLarge,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, and unknown codes, are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
