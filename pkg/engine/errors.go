package engine

import (
	"errors"
	"fmt"

	"github.com/TitouanDH/BLab/pkg/util"
)

var (
	// ErrAlreadyReserved: the switch is held by another user.
	ErrAlreadyReserved = fmt.Errorf("switch already reserved: %w", util.ErrConflict)
	// ErrAlreadyReservedBySelf: the caller already holds this switch.
	ErrAlreadyReservedBySelf = fmt.Errorf("switch already reserved by you: %w", util.ErrConflict)
	// ErrNotReservedByUser: releasing or acting on a switch the caller
	// does not control.
	ErrNotReservedByUser = fmt.Errorf("switch not reserved by user: %w", util.ErrAccessDenied)
	// ErrPortRelease: releasing a reservation stopped because a link
	// teardown failed. The reservation is kept so the owner can retry.
	ErrPortRelease = errors.New("failed to release ports, reservation kept")
	// ErrAlreadyLinked: one of the ports already carries a link.
	ErrAlreadyLinked = fmt.Errorf("port already linked: %w", util.ErrConflict)
	// ErrNotLinked: the two ports do not form a link.
	ErrNotLinked = fmt.Errorf("ports not linked together: %w", util.ErrConflict)
	// ErrSamePort: connecting a port to itself.
	ErrSamePort = fmt.Errorf("cannot link a port to itself: %w", util.ErrConflict)
	// ErrAlreadyShared: the share pair already exists.
	ErrAlreadyShared = fmt.Errorf("topology already shared with user: %w", util.ErrConflict)
	// ErrShareNotFound: revoking a share that does not exist.
	ErrShareNotFound = fmt.Errorf("no such share: %w", util.ErrNotFound)
	// ErrSwitchInUse: deleting catalog entries still referenced by a
	// link.
	ErrSwitchInUse = fmt.Errorf("switch has linked ports: %w", util.ErrConflict)
	// ErrPortInUse: deleting a port that carries a link.
	ErrPortInUse = fmt.Errorf("port is linked: %w", util.ErrConflict)
)
