package device

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable indicates the device could not be contacted at all.
	ErrUnreachable = errors.New("device unreachable")
	// ErrAuthFailed indicates the device rejected our credentials.
	ErrAuthFailed = errors.New("device authentication failed")
	// ErrCommandRejected indicates the device answered but refused the command.
	ErrCommandRejected = errors.New("device rejected command")
)

// Error carries the device address and command alongside the failure
// kind so callers can log a single actionable line.
type Error struct {
	Addr    string
	Command string
	Detail  string
	Kind    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Addr, e.Kind)
	if e.Command != "" {
		msg += fmt.Sprintf(" (command %q)", e.Command)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(addr, command, detail string, kind error) *Error {
	return &Error{Addr: addr, Command: command, Detail: detail, Kind: kind}
}
