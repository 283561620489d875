// Package audit records who did what to which switch. Reservation and
// link changes are security relevant in a shared lab, so every
// lifecycle operation emits an event regardless of outcome.
package audit

import (
	"fmt"
	"time"
)

// Event is one auditable lifecycle operation.
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Switch    string        `json:"switch,omitempty"`
	Ports     []int64       `json:"ports,omitempty"`
	SVLAN     int           `json:"svlan,omitempty"`
	Operation string        `json:"operation"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Warning   string        `json:"warning,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Operation names used across the engine.
const (
	OpReserve    = "reserve"
	OpRelease    = "release"
	OpConnect    = "connect"
	OpDisconnect = "disconnect"
	OpShare      = "share"
	OpUnshare    = "unshare"
	OpCleanup    = "cleanup"
)

// Filter defines criteria for querying audit events.
type Filter struct {
	Switch      string
	User        string
	Operation   string
	SVLAN       int
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates an event stamped with the current time.
func NewEvent(user, operation string) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		User:      user,
		Operation: operation,
	}
}

// WithSwitch sets the switch the operation targeted.
func (e *Event) WithSwitch(sw string) *Event {
	e.Switch = sw
	return e
}

// WithPorts sets the ports the operation touched.
func (e *Event) WithPorts(ports ...int64) *Event {
	e.Ports = ports
	return e
}

// WithSVLAN sets the service vlan involved.
func (e *Event) WithSVLAN(svlan int) *Event {
	e.SVLAN = svlan
	return e
}

// WithSuccess marks the event as successful.
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed.
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithWarning records a non-fatal problem on an otherwise successful
// operation, such as a banner push that did not stick.
func (e *Event) WithWarning(warning string) *Event {
	e.Warning = warning
	return e
}

// WithDuration sets the operation duration.
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
