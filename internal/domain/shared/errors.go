package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so wrapped sentinels compare equal
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeNotFound              = "NOT_FOUND"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeConflict              = "CONFLICT"
	CodeConcurrencyConflict   = "CONCURRENCY_CONFLICT"
	CodeAlreadyClaimed        = "ALREADY_CLAIMED"
	CodeCapExceeded           = "CAP_EXCEEDED"
	CodeAlreadyRated          = "ALREADY_RATED"
	CodeTerminalState         = "TERMINAL_STATE"
	CodeMaintenance           = "MAINTENANCE_IN_PROGRESS"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeVolunteerNotApproved  = "VOLUNTEER_NOT_APPROVED"
	CodeInvalidState          = "INVALID_STATE"
	CodeDataIntegrityViolated = "DATA_INTEGRITY_VIOLATION"
)

// Common domain errors
var (
	ErrNotFound             = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput         = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConflict             = NewDomainError(CodeConflict, "Resource is in a conflicting state")
	ErrConcurrencyConflict  = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrAlreadyClaimed       = NewDomainError(CodeAlreadyClaimed, "Delivery request has already been claimed")
	ErrCapExceeded          = NewDomainError(CodeCapExceeded, "Volunteer already holds the maximum number of active claims")
	ErrAlreadyRated         = NewDomainError(CodeAlreadyRated, "Delivery request has already been rated")
	ErrTerminalState        = NewDomainError(CodeTerminalState, "Delivery request is already completed or canceled")
	ErrMaintenance          = NewDomainError(CodeMaintenance, "Contact data is under maintenance, retry later")
	ErrUnauthorized         = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrForbidden            = NewDomainError(CodeForbidden, "Access to this resource is forbidden")
	ErrVolunteerNotApproved = NewDomainError(CodeVolunteerNotApproved, "Volunteer is not approved to claim deliveries")
	ErrInvalidState         = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrDataIntegrity        = NewDomainError(CodeDataIntegrityViolated, "Operation would violate data integrity")
)

// ErrorCategory groups codes by how a caller is expected to react
type ErrorCategory string

const (
	CategoryConflict      ErrorCategory = "conflict"
	CategoryUnauthorized  ErrorCategory = "unauthorized"
	CategoryInvalidState  ErrorCategory = "invalid_state"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryValidation    ErrorCategory = "validation"
	CategoryDataIntegrity ErrorCategory = "data_integrity"
	CategoryInternal      ErrorCategory = "internal"
)

var codeCategories = map[string]ErrorCategory{
	CodeConflict:              CategoryConflict,
	CodeConcurrencyConflict:   CategoryConflict,
	CodeAlreadyClaimed:        CategoryConflict,
	CodeCapExceeded:           CategoryConflict,
	CodeAlreadyRated:          CategoryConflict,
	CodeTerminalState:         CategoryConflict,
	CodeMaintenance:           CategoryConflict,
	CodeUnauthorized:          CategoryUnauthorized,
	CodeForbidden:             CategoryUnauthorized,
	CodeVolunteerNotApproved:  CategoryUnauthorized,
	CodeInvalidState:          CategoryInvalidState,
	CodeNotFound:              CategoryNotFound,
	CodeInvalidInput:          CategoryValidation,
	CodeDataIntegrityViolated: CategoryDataIntegrity,
}

// Category classifies err. Errors that are not DomainErrors are internal.
func Category(err error) ErrorCategory {
	var de *DomainError
	if !errors.As(err, &de) {
		return CategoryInternal
	}
	if c, ok := codeCategories[de.Code]; ok {
		return c
	}
	return CategoryValidation
}

// IsConflict reports whether err is recoverable by retrying or choosing another request
func IsConflict(err error) bool {
	return Category(err) == CategoryConflict
}

// IsDataIntegrity reports whether err must abort the enclosing operation
func IsDataIntegrity(err error) bool {
	return Category(err) == CategoryDataIntegrity
}
