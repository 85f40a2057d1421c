package errors

import (
	stderrors "errors"
	"net/http"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the error fields an editor shows next to the graph.
// Node is lifted out of the details so a client can highlight the failing
// node without knowing which codes carry one.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Node      string         `json:"node,omitempty"`
	Cause     string         `json:"cause,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToResponse converts e for JSON serialization. The cause of an internal
// error is never exposed.
func (e *AppError) ToResponse() ErrorResponse {
	body := ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
		Details:   e.Details,
	}
	if node, ok := e.Details["node"].(string); ok {
		body.Node = node
	}
	if e.Cause != nil && e.Code != ErrCodeInternal {
		var inner *AppError
		if stderrors.As(e.Cause, &inner) {
			body.Cause = inner.Message
		} else {
			body.Cause = e.Cause.Error()
		}
	}
	return ErrorResponse{Error: body}
}

// Response returns the HTTP status and body for err. Errors that are not
// AppErrors are reported as internal errors.
func Response(err error) (int, ErrorResponse) {
	appErr := Wrap(err)
	if appErr == nil {
		appErr = Internal(nil)
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return status, appErr.ToResponse()
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// AsAppError returns the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Wrap returns err as an AppError, wrapping plain errors as internal errors.
// Returns nil for a nil error.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Internal(err)
}
