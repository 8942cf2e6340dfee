package dto

import (
	"errors"
	"net/http"

	"github.com/groceryshare/backend/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeDataIntegrity aborts an operation that would have leaked protected data
	ErrCodeDataIntegrity = "ERR_DATA_INTEGRITY"
)

// Validation error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Claim lifecycle error codes
const (
	ErrCodeAlreadyClaimed = "ERR_ALREADY_CLAIMED"
	ErrCodeCapExceeded    = "ERR_CAP_EXCEEDED"
	ErrCodeAlreadyRated   = "ERR_ALREADY_RATED"
	ErrCodeTerminalState  = "ERR_TERMINAL_STATE"
	ErrCodeMaintenance    = "ERR_MAINTENANCE"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// User-facing messages. Authorization failures never say which rule failed.
const (
	MessageAccessDenied   = "Access denied"
	MessageChooseAnother  = "This request is no longer available, please choose another"
	MessageInternal       = "An unexpected error occurred"
	MessageDataProtection = "The operation was stopped to protect personal data"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:       http.StatusInternalServerError,
	ErrCodeInternal:      http.StatusInternalServerError,
	ErrCodeDataIntegrity: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeAlreadyClaimed: http.StatusConflict,
	ErrCodeCapExceeded:    http.StatusConflict,
	ErrCodeAlreadyRated:   http.StatusConflict,
	ErrCodeTerminalState:  http.StatusConflict,
	ErrCodeMaintenance:    http.StatusConflict,

	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

var conflictCodes = map[string]string{
	shared.CodeAlreadyClaimed:      ErrCodeAlreadyClaimed,
	shared.CodeCapExceeded:         ErrCodeCapExceeded,
	shared.CodeAlreadyRated:        ErrCodeAlreadyRated,
	shared.CodeTerminalState:       ErrCodeTerminalState,
	shared.CodeMaintenance:         ErrCodeMaintenance,
	shared.CodeConcurrencyConflict: ErrCodeConcurrencyConflict,
	shared.CodeConflict:            ErrCodeConflict,
}

// ErrorMapping is the HTTP rendering of an error
type ErrorMapping struct {
	Status  int
	Code    string
	Message string
}

// MapError renders err by category. Unauthorized and invalid-state errors
// collapse into one generic 403 so callers cannot map the rules.
func MapError(err error) ErrorMapping {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return ErrorMapping{http.StatusInternalServerError, ErrCodeInternal, MessageInternal}
	}

	switch shared.Category(err) {
	case shared.CategoryConflict:
		code := conflictCodes[de.Code]
		msg := de.Message
		switch de.Code {
		case shared.CodeAlreadyClaimed, shared.CodeConcurrencyConflict, shared.CodeTerminalState:
			msg = MessageChooseAnother
		}
		return ErrorMapping{http.StatusConflict, code, msg}
	case shared.CategoryUnauthorized, shared.CategoryInvalidState:
		return ErrorMapping{http.StatusForbidden, ErrCodeForbidden, MessageAccessDenied}
	case shared.CategoryNotFound:
		return ErrorMapping{http.StatusNotFound, ErrCodeNotFound, de.Message}
	case shared.CategoryValidation:
		return ErrorMapping{http.StatusBadRequest, ErrCodeInvalidInput, de.Message}
	case shared.CategoryDataIntegrity:
		return ErrorMapping{http.StatusInternalServerError, ErrCodeDataIntegrity, MessageDataProtection}
	}
	return ErrorMapping{http.StatusInternalServerError, ErrCodeInternal, MessageInternal}
}
