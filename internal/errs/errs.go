// Package errs provides the domain error type shared by the broker, the vault
// and the identity services, together with its mapping onto HTTP statuses.
package errs

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Broker contract errors
	CodeDuplicatePendingRequest Code = "DUPLICATE_PENDING_REQUEST"
	CodeAlreadyResolved         Code = "ALREADY_RESOLVED"
	CodeRequestNotFound         Code = "REQUEST_NOT_FOUND"
	CodeRequestRejected         Code = "REQUEST_REJECTED"
	CodeRequestTimedOut         Code = "REQUEST_TIMED_OUT"
	CodeRequestAbandoned        Code = "REQUEST_ABANDONED"
	CodeUnknownOperation        Code = "UNKNOWN_OPERATION"
	CodeInvalidPayload          Code = "INVALID_PAYLOAD"

	// Identity errors
	CodeNoConnectedIdentity      Code = "NO_CONNECTED_IDENTITY"
	CodeIdentityDerivationFailed Code = "IDENTITY_DERIVATION_FAILED"
	CodeIdentityNotFound         Code = "IDENTITY_NOT_FOUND"
	CodeIdentityExists           Code = "IDENTITY_EXISTS"

	// Group and proof errors
	CodeGroupJoinFailed       Code = "GROUP_JOIN_FAILED"
	CodeProofGenerationFailed Code = "PROOF_GENERATION_FAILED"
	CodeRegistryUnavailable   Code = "REGISTRY_UNAVAILABLE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeDuplicatePendingRequest, CodeAlreadyResolved, CodeIdentityExists:
		return http.StatusConflict
	case CodeRequestNotFound, CodeIdentityNotFound:
		return http.StatusNotFound
	case CodeUnknownOperation, CodeInvalidPayload, CodeIdentityDerivationFailed:
		return http.StatusBadRequest
	case CodeRequestRejected:
		return http.StatusForbidden
	case CodeRequestTimedOut:
		return http.StatusGatewayTimeout
	case CodeRequestAbandoned:
		return http.StatusGone
	case CodeNoConnectedIdentity:
		return http.StatusPreconditionFailed
	case CodeGroupJoinFailed, CodeProofGenerationFailed:
		return http.StatusUnprocessableEntity
	case CodeRegistryUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error type.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message, safe to return to callers
	Metadata map[string]string // Additional context (request id, group id)
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code, so sentinel values
// below work with errors.Is regardless of message or cause.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithMetadata creates a domain error carrying metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// Sentinel errors, comparable with errors.Is.
var (
	ErrDuplicatePendingRequest  = New(CodeDuplicatePendingRequest, "a request of this type is already pending for this origin")
	ErrAlreadyResolved          = New(CodeAlreadyResolved, "request is already resolved")
	ErrRequestNotFound          = New(CodeRequestNotFound, "pending request not found")
	ErrRequestRejected          = New(CodeRequestRejected, "request rejected by user")
	ErrRequestTimedOut          = New(CodeRequestTimedOut, "request timed out")
	ErrRequestAbandoned         = New(CodeRequestAbandoned, "request abandoned by caller")
	ErrUnknownOperation         = New(CodeUnknownOperation, "unknown operation")
	ErrInvalidPayload           = New(CodeInvalidPayload, "invalid payload")
	ErrNoConnectedIdentity      = New(CodeNoConnectedIdentity, "No connected identity found")
	ErrIdentityDerivationFailed = New(CodeIdentityDerivationFailed, "identity derivation failed")
	ErrIdentityNotFound         = New(CodeIdentityNotFound, "identity not found")
	ErrIdentityExists           = New(CodeIdentityExists, "identity already exists")
	ErrGroupJoinFailed          = New(CodeGroupJoinFailed, "group join failed")
	ErrProofGenerationFailed    = New(CodeProofGenerationFailed, "proof generation failed")
	ErrRegistryUnavailable      = New(CodeRegistryUnavailable, "group registry unavailable")
)
