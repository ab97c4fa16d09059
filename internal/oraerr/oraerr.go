// Package oraerr defines the error taxonomy shared by every layer of the
// server. Components return *Error values; layer boundaries map foreign
// failures (driver faults, context errors) into the taxonomy so callers
// can treat Kind as authoritative.
package oraerr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure. The set is closed.
type Kind string

const (
	KindValidation Kind = "validation"
	KindCapability Kind = "capability"
	KindPrivilege  Kind = "privilege"
	KindDialect    Kind = "dialect"
	KindDriver     Kind = "driver"
	KindTimeout    Kind = "timeout"
	KindCancelled  Kind = "cancelled"
	KindSecurity   Kind = "security"
	KindInternal   Kind = "internal"
)

// Stable machine-readable codes for failures the server itself produces.
// Oracle failures keep their ORA-NNNNN code instead.
const (
	CodeInvalidIdent       = "E_INVALID_IDENT"
	CodeMissingParam       = "E_MISSING_PARAM"
	CodeInvalidParam       = "E_INVALID_PARAM"
	CodeUnknownTool        = "E_UNKNOWN_TOOL"
	CodeDuplicateTool      = "E_DUPLICATE_TOOL"
	CodeInvalidSchema      = "E_INVALID_SCHEMA"
	CodeRegistryFrozen     = "E_REGISTRY_FROZEN"
	CodeUnsupportedFeature = "E_UNSUPPORTED_FEATURE"
	CodePoolTimeout        = "E_POOL_TIMEOUT"
	CodePoolClosed         = "E_POOL_CLOSED"
	CodeTimeout            = "E_TIMEOUT"
	CodeCancelled          = "E_CANCELLED"
	CodeSystemUser         = "E_SECURITY_SYSTEM_USER"
	CodeSystemObject       = "E_SECURITY_SYSTEM_OBJECT"
	CodeMultiStatement     = "E_SECURITY_MULTI_STATEMENT"
	CodeInternal           = "E_INTERNAL"
)

// Error is the canonical error value. Message is safe for clients: it
// never contains SQL text, credentials, or stack traces.
type Error struct {
	Kind          Kind
	Code          string
	Message       string
	Hint          string
	CorrelationID string

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithHint returns a copy with a remediation hint attached.
func (e *Error) WithHint(hint string) *Error {
	clone := *e
	clone.Hint = hint
	return &clone
}

// WithCorrelation returns a copy carrying a correlation id that is also
// echoed in the response envelope.
func (e *Error) WithCorrelation(id string) *Error {
	clone := *e
	clone.CorrelationID = id
	return &clone
}

// New builds a taxonomy error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Newf builds a taxonomy error with a formatted message.
func Newf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause while keeping the safe client-facing message.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

// Validation is shorthand for a validation failure.
func Validation(code, format string, args ...any) *Error {
	return Newf(KindValidation, code, format, args...)
}

// Capability is shorthand for a missing-feature failure.
func Capability(format string, args ...any) *Error {
	return Newf(KindCapability, CodeUnsupportedFeature, format, args...)
}

// Security is shorthand for a tripped safety guard.
func Security(code, format string, args ...any) *Error {
	return Newf(KindSecurity, code, format, args...)
}

// Internal wraps an unexpected failure. The cause is retained for stderr
// logging; the client message is generic.
func Internal(cause error) *Error {
	return Wrap(KindInternal, CodeInternal, "internal server error", cause)
}

// AsError extracts a taxonomy error, or wraps err as internal.
// Context errors are translated so a deadline or cancellation anywhere in
// the call chain surfaces with the right kind.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(KindTimeout, CodeTimeout, "operation deadline exceeded")
	}
	if errors.Is(err, context.Canceled) {
		return New(KindCancelled, CodeCancelled, "operation cancelled by client")
	}
	return Internal(err)
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
