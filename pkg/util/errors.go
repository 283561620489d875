// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the failure taxonomy shared by all packages.
// Engine and device errors unwrap to one of these so callers can sort
// failures with errors.Is without knowing the concrete type.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrConflict           = errors.New("conflicting state")
	ErrDeviceFailure      = errors.New("device command failed")
	ErrProvisioningFailed = errors.New("provisioning failed")
	ErrVerificationFailed = errors.New("device state did not converge")
)

// ConflictError reports a resource already in (or not in) the state the
// caller asked for. The caller must resolve the conflict; retrying the
// same request will not help.
type ConflictError struct {
	Resource string
	Detail   string
}

func (e *ConflictError) Error() string {
	msg := "conflict on " + e.Resource
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// NewConflictError creates a conflict error for a resource.
func NewConflictError(resource, detail string) *ConflictError {
	return &ConflictError{Resource: resource, Detail: detail}
}

// AccessError reports a failed access-policy check.
type AccessError struct {
	User     string
	Resource string
	Action   string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("user '%s' may not %s %s", e.User, e.Action, e.Resource)
}

func (e *AccessError) Unwrap() error {
	return ErrAccessDenied
}

// NewAccessError creates an access-policy error.
func NewAccessError(user, action, resource string) *AccessError {
	return &AccessError{User: user, Action: action, Resource: resource}
}

// VerificationError reports that a device accepted a command sequence
// but its configuration did not converge to the expected state within
// the retry budget. Distinct from ErrDeviceFailure so operators can
// tell "switch broken" from "switch slow".
type VerificationError struct {
	Backbone string
	SVLAN    int
	Expected int
	Got      int
	Attempts int
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed on %s for svlan %d: expected %d sap lines, got %d after %d attempts",
		e.Backbone, e.SVLAN, e.Expected, e.Got, e.Attempts)
}

func (e *VerificationError) Unwrap() error {
	return ErrVerificationFailed
}
