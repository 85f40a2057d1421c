package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// AppError is the error type shared by the engine, the store and the API.
// Evaluation errors become the terminal Reason of a pass.
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause attaches cause and returns e.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges details into e and returns e.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// WithDetail sets one detail and returns e.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New builds an AppError whose status and retryability follow code.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: StatusFor(code),
		Retryable:  IsRetryableCode(code),
	}
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

func at(nodeID, portID string) map[string]any {
	return map[string]any{"node": nodeID, "port": portID}
}

// MissingInput reports a data input with no connection, literal or default.
func MissingInput(nodeID, portID string) *AppError {
	return New(ErrCodeMissingInput, fmt.Sprintf("Input %s.%s is not connected and has no value.", nodeID, portID)).
		WithDetails(at(nodeID, portID))
}

// InvalidInputType reports a resolved value that failed a node's type check.
func InvalidInputType(nodeID, portID, expected string, got any) *AppError {
	return New(ErrCodeInvalidInputType, fmt.Sprintf("Input %s.%s expects %s, got %T.", nodeID, portID, expected, got)).
		WithDetails(at(nodeID, portID)).
		WithDetail("expected", expected)
}

// OperationFailed reports a node callback that returned cause.
func OperationFailed(nodeID string, cause error) *AppError {
	return New(ErrCodeOperationFailed, fmt.Sprintf("Node %s failed.", nodeID)).
		WithDetail("node", nodeID).
		WithCause(cause)
}

// CycleDetected reports a resolution chain deeper than ceiling. trace holds
// the node ids from the outermost request inward.
func CycleDetected(nodeID string, ceiling int, trace []string) *AppError {
	return New(ErrCodeCycleDetected, fmt.Sprintf("Resolution depth exceeded %d at node %s: %s", ceiling, nodeID, strings.Join(trace, " -> "))).
		WithDetails(map[string]any{"node": nodeID, "ceiling": ceiling, "trace": trace})
}

// StepLimitExceeded reports an execution flow that ran past limit steps.
func StepLimitExceeded(limit int) *AppError {
	return New(ErrCodeStepLimitExceeded, fmt.Sprintf("Execution flow exceeded %d steps.", limit)).WithDetail("limit", limit)
}

// Cancelled reports a cooperatively cancelled pass.
func Cancelled() *AppError {
	return New(ErrCodeCancelled, "The pass was cancelled.")
}

// InContainer re-labels an error raised inside a container sub-graph.
// The code and details of inner are kept and the container id is added
// unless an inner container already claimed it.
func InContainer(containerID string, inner *AppError) *AppError {
	e := New(inner.Code, fmt.Sprintf("In container %s: %s", containerID, inner.Message)).
		WithDetails(inner.Details).
		WithCause(inner)
	e.HTTPStatus, e.Retryable = inner.HTTPStatus, inner.Retryable
	if _, ok := e.Details["container"]; !ok {
		e.WithDetail("container", containerID)
	}
	return e
}

// InvalidGraph lists the structural problems found in a graph.
func InvalidGraph(problems []string) *AppError {
	return New(ErrCodeInvalidGraph, "Invalid graph: "+strings.Join(problems, "; ")).
		WithDetail("problems", problems)
}

// UnknownNodeType reports a node whose type has no registered definition.
func UnknownNodeType(nodeID, nodeType string) *AppError {
	return New(ErrCodeUnknownNodeType, fmt.Sprintf("Node %s has unknown type %q.", nodeID, nodeType)).
		WithDetails(map[string]any{"node": nodeID, "type": nodeType})
}

// NotFound reports a missing resource. id may be empty.
func NotFound(resource, id string) *AppError {
	e := New(ErrCodeNotFound, fmt.Sprintf("The requested %s was not found.", resource)).WithDetail("resource", resource)
	if id != "" {
		e.WithDetail("id", id)
	}
	return e
}

// Conflict reports a request that clashes with the current engine state.
func Conflict(reason string) *AppError {
	return New(ErrCodeConflict, reason)
}

// InvalidInput reports a bad request field. field may be empty.
func InvalidInput(field, reason string) *AppError {
	e := New(ErrCodeInvalidInput, "Invalid input: "+reason)
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// Validation reports a request or config that failed validation.
func Validation(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

// InvalidFormat reports a field that could not be parsed as expectedFormat.
func InvalidFormat(field, expectedFormat string) *AppError {
	return New(ErrCodeInvalidFormat, fmt.Sprintf("Invalid format for %s. Expected: %s", field, expectedFormat)).
		WithDetails(map[string]any{"field": field, "expected_format": expectedFormat})
}

// Storage reports a failed store backend operation.
func Storage(op string, cause error) *AppError {
	return New(ErrCodeStorage, fmt.Sprintf("Store %s failed.", op)).WithDetail("operation", op).WithCause(cause)
}

// Internal wraps an unexpected error. Its cause is never sent to clients.
func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "An unexpected error occurred.").WithCause(cause)
}
