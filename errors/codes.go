package errors

import "net/http"

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Evaluation errors, the terminal reasons of a pass.
const (
	ErrCodeMissingInput      ErrorCode = "MISSING_INPUT"       // data input with no connection, literal or default
	ErrCodeInvalidInputType  ErrorCode = "INVALID_INPUT_TYPE"  // resolved value failed a runtime type check
	ErrCodeOperationFailed   ErrorCode = "OPERATION_FAILED"    // node callback returned an error
	ErrCodeCycleDetected     ErrorCode = "CYCLE_DETECTED"      // resolution depth ceiling exceeded
	ErrCodeStepLimitExceeded ErrorCode = "STEP_LIMIT_EXCEEDED" // execution flow ran past its hard step limit
	ErrCodeCancelled         ErrorCode = "CANCELLED"           // pass cancelled cooperatively
)

// Graph errors.
const (
	ErrCodeInvalidGraph    ErrorCode = "INVALID_GRAPH"
	ErrCodeUnknownNodeType ErrorCode = "UNKNOWN_NODE_TYPE"
)

// Request and resource errors.
const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
)

// Internal errors.
const (
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeStorage  ErrorCode = "STORAGE_ERROR"
)

type codeInfo struct {
	status    int
	retryable bool
}

var codes = map[ErrorCode]codeInfo{
	ErrCodeMissingInput:      {http.StatusUnprocessableEntity, false},
	ErrCodeInvalidInputType:  {http.StatusUnprocessableEntity, false},
	ErrCodeOperationFailed:   {http.StatusUnprocessableEntity, false},
	ErrCodeCycleDetected:     {http.StatusUnprocessableEntity, false},
	ErrCodeStepLimitExceeded: {http.StatusUnprocessableEntity, false},
	ErrCodeCancelled:         {http.StatusConflict, true},
	ErrCodeInvalidGraph:      {http.StatusBadRequest, false},
	ErrCodeUnknownNodeType:   {http.StatusBadRequest, false},
	ErrCodeNotFound:          {http.StatusNotFound, false},
	ErrCodeConflict:          {http.StatusConflict, false},
	ErrCodeInvalidInput:      {http.StatusBadRequest, false},
	ErrCodeInvalidFormat:     {http.StatusBadRequest, false},
	ErrCodeInternal:          {http.StatusInternalServerError, false},
	ErrCodeStorage:           {http.StatusInternalServerError, true},
}

// IsRetryableCode reports whether a pass that failed with code may succeed
// when run again unchanged.
func IsRetryableCode(code ErrorCode) bool {
	return codes[code].retryable
}

// StatusFor returns the HTTP status reported for code, 500 when unknown.
func StatusFor(code ErrorCode) int {
	if info, ok := codes[code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}
