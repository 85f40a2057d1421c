package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeNotFound, "not found")
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Message != "not found" {
		t.Errorf("expected message 'not found', got %q", err.Message)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeCancelled, "cancelled")
	if !err.Retryable {
		t.Error("CANCELLED should be retryable")
	}
}

func TestAppError_MissingInput(t *testing.T) {
	err := MissingInput("log-1", "Message")
	if err.Code != ErrCodeMissingInput {
		t.Errorf("expected MISSING_INPUT, got %s", err.Code)
	}
	if err.Details["node"] != "log-1" || err.Details["port"] != "Message" {
		t.Errorf("unexpected details: %v", err.Details)
	}
}

func TestAppError_InvalidInputType(t *testing.T) {
	err := InvalidInputType("if-1", "Condition", "boolean", "yes")
	if err.Code != ErrCodeInvalidInputType {
		t.Errorf("expected INVALID_INPUT_TYPE, got %s", err.Code)
	}
	if !strings.Contains(err.Message, "string") {
		t.Errorf("expected message to name the received type, got %q", err.Message)
	}
}

func TestAppError_CycleDetected_Trace(t *testing.T) {
	err := CycleDetected("a", 3, []string{"a", "b", "a"})
	if err.Code != ErrCodeCycleDetected {
		t.Errorf("expected CYCLE_DETECTED, got %s", err.Code)
	}
	if !strings.Contains(err.Message, "a -> b -> a") {
		t.Errorf("expected trace in message, got %q", err.Message)
	}
}

func TestAppError_OperationFailed_Cause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := OperationFailed("n1", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected cause to be reachable through errors.Is")
	}
}

func TestAppError_WithCause_Chain(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NotFound("node", "1").WithCause(cause)
	if err.Cause != cause {
		t.Error("expected cause to be set via WithCause")
	}
	if !strings.Contains(err.Error(), "root cause") {
		t.Errorf("Error() should contain cause, got %q", err.Error())
	}
}

func TestAppError_WithDetails_Merge(t *testing.T) {
	err := NotFound("node", "1").WithDetails(map[string]any{
		"extra": "info",
	})
	if err.Details["extra"] != "info" {
		t.Errorf("expected extra=info in details")
	}
	if err.Details["resource"] != "node" {
		t.Error("expected original details to be preserved")
	}
}

func TestAppError_WithDetail_NilMap(t *testing.T) {
	err := &AppError{}
	err.WithDetail("key", "value")
	if err.Details["key"] != "value" {
		t.Errorf("expected key=value, got %v", err.Details["key"])
	}
}

func TestAppError_Constructors_Table(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      ErrorCode
		status    int
		retryable bool
	}{
		{"MissingInput", MissingInput("n", "p"), ErrCodeMissingInput, http.StatusUnprocessableEntity, false},
		{"InvalidInputType", InvalidInputType("n", "p", "number", true), ErrCodeInvalidInputType, http.StatusUnprocessableEntity, false},
		{"OperationFailed", OperationFailed("n", nil), ErrCodeOperationFailed, http.StatusUnprocessableEntity, false},
		{"CycleDetected", CycleDetected("n", 1, nil), ErrCodeCycleDetected, http.StatusUnprocessableEntity, false},
		{"StepLimitExceeded", StepLimitExceeded(10), ErrCodeStepLimitExceeded, http.StatusUnprocessableEntity, false},
		{"Cancelled", Cancelled(), ErrCodeCancelled, http.StatusConflict, true},
		{"InvalidGraph", InvalidGraph([]string{"x"}), ErrCodeInvalidGraph, http.StatusBadRequest, false},
		{"UnknownNodeType", UnknownNodeType("n", "T"), ErrCodeUnknownNodeType, http.StatusBadRequest, false},
		{"Conflict", Conflict("paused"), ErrCodeConflict, http.StatusConflict, false},
		{"InvalidFormat", InvalidFormat("payload", "JSON"), ErrCodeInvalidFormat, http.StatusBadRequest, false},
		{"Storage", Storage("set", nil), ErrCodeStorage, http.StatusInternalServerError, true},
		{"Validation", Validation("bad input"), ErrCodeInvalidInput, http.StatusBadRequest, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, tc.err.Code)
			}
			if tc.err.HTTPStatus != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, tc.err.HTTPStatus)
			}
			if tc.err.Retryable != tc.retryable {
				t.Errorf("expected retryable=%v, got %v", tc.retryable, tc.err.Retryable)
			}
		})
	}
}

func TestToResponse(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		wantNode  string
		wantCause string
	}{
		{"not found", NotFound("node", "42"), "", ""},
		{"node failure", OperationFailed("div", fmt.Errorf("division by zero")), "div", "division by zero"},
		{"container", InContainer("box", MissingInput("add", "Number1")), "add", "Input add.Number1 is not connected and has no value."},
		{"internal hides cause", Internal(fmt.Errorf("db password rejected")), "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := tc.err.ToResponse().Error
			if body.Code != tc.err.Code || body.Message != tc.err.Message {
				t.Fatalf("unexpected body %+v", body)
			}
			if body.Node != tc.wantNode {
				t.Errorf("node = %q, want %q", body.Node, tc.wantNode)
			}
			if body.Cause != tc.wantCause {
				t.Errorf("cause = %q, want %q", body.Cause, tc.wantCause)
			}
		})
	}
}

func TestResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
	}{
		{"app error", NotFound("node", "x"), http.StatusNotFound, ErrCodeNotFound},
		{"wrapped app error", fmt.Errorf("load: %w", InvalidGraph([]string{"dangling"})), http.StatusBadRequest, ErrCodeInvalidGraph},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError, ErrCodeInternal},
		{"missing status", &AppError{Code: ErrCodeConflict}, http.StatusInternalServerError, ErrCodeConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := Response(tc.err)
			if status != tc.wantStatus || body.Error.Code != tc.wantCode {
				t.Fatalf("got %d %s, want %d %s", status, body.Error.Code, tc.wantStatus, tc.wantCode)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Cancelled())
	if !HasCode(wrapped, ErrCodeCancelled) {
		t.Error("expected HasCode to see through wrapping")
	}
	if HasCode(fmt.Errorf("plain"), ErrCodeCancelled) {
		t.Error("expected HasCode to be false for plain errors")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}

	orig := NotFound("node", "1")
	if Wrap(orig) != orig {
		t.Error("Wrap should return the original AppError unchanged")
	}

	plain := fmt.Errorf("something broke")
	got := Wrap(plain)
	if got.Code != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %s", got.Code)
	}
	if got.Cause != plain {
		t.Error("expected cause to be the original error")
	}
}

func TestAppError_InContainer(t *testing.T) {
	inner := MissingInput("log-1", "Message")
	err := InContainer("box", inner)
	if err.Code != ErrCodeMissingInput {
		t.Errorf("expected code to be kept, got %s", err.Code)
	}
	if err.Details["container"] != "box" || err.Details["node"] != "log-1" {
		t.Errorf("unexpected details: %v", err.Details)
	}
	if !stderrors.Is(err, inner) {
		t.Error("expected wrapped error to unwrap to inner")
	}
	if _, ok := inner.Details["container"]; ok {
		t.Error("inner details must not be modified")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeMissingInput, http.StatusUnprocessableEntity},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeCancelled, http.StatusConflict},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.code); got != tt.want {
			t.Errorf("StatusFor(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
