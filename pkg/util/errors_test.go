package util

import (
	"errors"
	"strings"
	"testing"
)

func TestConflictError(t *testing.T) {
	err := NewConflictError("switch 10.2.3.4", "already reserved")
	if !errors.Is(err, ErrConflict) {
		t.Error("should unwrap to ErrConflict")
	}
	if !strings.Contains(err.Error(), "switch 10.2.3.4") {
		t.Errorf("message should name the resource: %q", err.Error())
	}
	if !strings.Contains(err.Error(), "already reserved") {
		t.Errorf("message should carry the detail: %q", err.Error())
	}
}

func TestConflictError_NoDetail(t *testing.T) {
	err := NewConflictError("port 7", "")
	if strings.Contains(err.Error(), ":") {
		t.Errorf("no trailing detail expected: %q", err.Error())
	}
}

func TestAccessError(t *testing.T) {
	err := NewAccessError("mallory", "release", "switch 10.2.3.4")
	if !errors.Is(err, ErrAccessDenied) {
		t.Error("should unwrap to ErrAccessDenied")
	}
	var accessErr *AccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("expected *AccessError, got %T", err)
	}
	if accessErr.User != "mallory" {
		t.Errorf("User = %q", accessErr.User)
	}
}

func TestVerificationError(t *testing.T) {
	err := &VerificationError{
		Backbone: "10.9.0.1",
		SVLAN:    1001,
		Expected: 4,
		Got:      3,
		Attempts: 3,
	}
	if !errors.Is(err, ErrVerificationFailed) {
		t.Error("should unwrap to ErrVerificationFailed")
	}
	if errors.Is(err, ErrDeviceFailure) {
		t.Error("verification failure must stay distinct from device failure")
	}
	msg := err.Error()
	for _, want := range []string{"10.9.0.1", "1001", "expected 4", "got 3"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q: %q", want, msg)
		}
	}
}
