package engine

import (
	"errors"
	"fmt"
)

// ErrorKind represents the classification of an engine error.
type ErrorKind string

const (
	// KindBackendUnavailable indicates a session or connection to a backend
	// (OpenStack, vSphere) could not be established.
	KindBackendUnavailable ErrorKind = "backend_unavailable"

	// KindNotFound indicates a referenced resource or remote entity does not exist.
	KindNotFound ErrorKind = "not_found"

	// KindRemoteOperationFailed indicates a polled remote status reached a
	// terminal error value.
	KindRemoteOperationFailed ErrorKind = "remote_operation_failed"

	// KindJobError indicates an orchestration-level contract violation, such as
	// an unknown orchestrator type or a failed nested job.
	KindJobError ErrorKind = "job_error"

	// KindStateUnavailable indicates the shared job state was read before the
	// owning job initialized it, or the state store is unreachable.
	KindStateUnavailable ErrorKind = "state_unavailable"

	// KindTimeout indicates a wait or poll loop exceeded its configured budget.
	KindTimeout ErrorKind = "timeout"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional numeric code (404 for not found).
	Code int `json:"code,omitempty"`

	// Resource is the resource reference that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface. The message is kept free of the kind
// prefix because it is stored verbatim as the resource error reason.
func (e *EngineError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
		}
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is. Two engine errors match
// when their kinds match and, if the target carries a code, the codes match.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Code == 0 || e.Code == t.Code
}

// Describe returns the error message prefixed with its kind, for logs.
func (e *EngineError) Describe() string {
	if e.Resource != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (resource=%s, operation=%s)", e.Kind, e.Error(), e.Resource, e.Operation)
	}
	if e.Resource != "" {
		return fmt.Sprintf("[%s] %s (resource=%s)", e.Kind, e.Error(), e.Resource)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Error())
}

// Sentinel errors for use with errors.Is.
var (
	ErrBackendUnavailable    = &EngineError{Kind: KindBackendUnavailable}
	ErrNotFound              = &EngineError{Kind: KindNotFound}
	ErrRemoteOperationFailed = &EngineError{Kind: KindRemoteOperationFailed}
	ErrJob                   = &EngineError{Kind: KindJobError}
	ErrStateUnavailable      = &EngineError{Kind: KindStateUnavailable}
	ErrTimeout               = &EngineError{Kind: KindTimeout}
)

// NewBackendUnavailableError creates a new backend unavailable error.
func NewBackendUnavailableError(message string, err error) *EngineError {
	return &EngineError{
		Kind:    KindBackendUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates a new not found error carrying code 404.
func NewNotFoundError(message string, err error) *EngineError {
	return &EngineError{
		Kind:    KindNotFound,
		Message: message,
		Code:    404,
		Err:     err,
	}
}

// NewRemoteOperationFailedError creates an error for a remote operation that
// reached a terminal error status. The backend reason is kept in the message.
func NewRemoteOperationFailedError(message string, err error) *EngineError {
	return &EngineError{
		Kind:    KindRemoteOperationFailed,
		Message: message,
		Err:     err,
	}
}

// NewJobError creates a new orchestration-level error.
func NewJobError(message string, err error) *EngineError {
	return &EngineError{
		Kind:    KindJobError,
		Message: message,
		Err:     err,
	}
}

// NewStateUnavailableError creates a new shared state error.
func NewStateUnavailableError(message string, err error) *EngineError {
	return &EngineError{
		Kind:    KindStateUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(message string, err error) *EngineError {
	return &EngineError{
		Kind:    KindTimeout,
		Message: message,
		Err:     err,
	}
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resource string) *EngineError {
	e.Resource = resource
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds a numeric code to an error.
func (e *EngineError) WithCode(code int) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// KindOf returns the kind of the first EngineError in the chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound returns true if the error is classified as not found.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsBackendUnavailable returns true if the error is classified as backend unavailable.
func IsBackendUnavailable(err error) bool {
	return KindOf(err) == KindBackendUnavailable
}

// IsRemoteOperationFailed returns true if the error is a terminal remote failure.
func IsRemoteOperationFailed(err error) bool {
	return KindOf(err) == KindRemoteOperationFailed
}

// IsJobError returns true if the error is an orchestration-level error.
func IsJobError(err error) bool {
	return KindOf(err) == KindJobError
}

// IsStateUnavailable returns true if the error is a shared state error.
func IsStateUnavailable(err error) bool {
	return KindOf(err) == KindStateUnavailable
}

// IsTimeout returns true if the error is a timeout.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}
