package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestEngineErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
		kind ErrorKind
	}{
		{"backend", NewBackendUnavailableError("no session", nil), IsBackendUnavailable, KindBackendUnavailable},
		{"not found", NewNotFoundError("gone", nil), IsNotFound, KindNotFound},
		{"remote", NewRemoteOperationFailedError("status ERROR", nil), IsRemoteOperationFailed, KindRemoteOperationFailed},
		{"job", NewJobError("unknown orchestrator", nil), IsJobError, KindJobError},
		{"state", NewStateUnavailableError("not initialized", nil), IsStateUnavailable, KindStateUnavailable},
		{"timeout", NewTimeoutError("gave up", nil), IsTimeout, KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("task failed: %w", tt.err)
			if !tt.is(wrapped) {
				t.Errorf("predicate did not match wrapped error")
			}
			if KindOf(wrapped) != tt.kind {
				t.Errorf("KindOf() = %s, want %s", KindOf(wrapped), tt.kind)
			}
		})
	}

	if KindOf(errors.New("plain")) != "" {
		t.Error("expected empty kind for plain error")
	}
}

func TestEngineErrorMessage(t *testing.T) {
	err := NewRemoteOperationFailedError("Can not create network net1", nil)
	if err.Error() != "Can not create network net1" {
		t.Errorf("message must not carry a prefix, got %q", err.Error())
	}

	cause := errors.New("connection reset")
	err = NewBackendUnavailableError("failed to connect", cause).WithResource("c1").WithOperation("connect")
	if err.Error() != "failed to connect: connection reset" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be unwrappable")
	}
	if got := err.Describe(); got != "[backend_unavailable] failed to connect: connection reset (resource=c1, operation=connect)" {
		t.Errorf("unexpected description %q", got)
	}
}

func TestEngineErrorIsWithCode(t *testing.T) {
	err := NewNotFoundError("gone", nil)
	if err.Code != 404 {
		t.Errorf("expected code 404, got %d", err.Code)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected match against sentinel")
	}
	if !errors.Is(err, &EngineError{Kind: KindNotFound, Code: 404}) {
		t.Error("expected match with same code")
	}
	if errors.Is(err, &EngineError{Kind: KindNotFound, Code: 410}) {
		t.Error("expected no match with different code")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("expected no match across kinds")
	}
	if err.WithDetail("id", 3).Details["id"] != 3 {
		t.Error("expected detail to be recorded")
	}
}
