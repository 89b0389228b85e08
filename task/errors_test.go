package task

import (
	"errors"
	"testing"
)

func TestTypedError_Error(t *testing.T) {
	e := &TypedError{Code: CodeNetwork, Message: "connection reset"}
	if got, want := e.Error(), "NETWORK: connection reset"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := &TypedError{Code: CodeUnknown}
	if got, want := bare.Error(), "UNKNOWN"; got != want {
		t.Errorf("Error() with no message = %q, want %q", got, want)
	}
}

func TestTypedError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := &TypedError{Code: CodeNetwork, Cause: cause}

	if !errors.Is(e, cause) {
		t.Error("errors.Is should see through TypedError.Unwrap to Cause")
	}
}

func TestTypedError_NilSafeMethods(t *testing.T) {
	var e *TypedError
	if e.Error() != "" {
		t.Error("Error() on nil *TypedError should be empty")
	}
	if e.Unwrap() != nil {
		t.Error("Unwrap() on nil *TypedError should be nil")
	}
}

func TestNewTypedError_StampsTimestamp(t *testing.T) {
	e := newTypedError(CodeTimeout, "timed out", true)
	if e.Timestamp.IsZero() {
		t.Error("newTypedError should stamp a non-zero Timestamp")
	}
	if e.Code != CodeTimeout || e.Message != "timed out" || !e.Retryable {
		t.Errorf("newTypedError fields = %+v, want Code/Message/Retryable set from arguments", e)
	}
}
