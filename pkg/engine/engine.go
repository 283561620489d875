// Package engine implements the reservation and cross-connect
// lifecycle: reserving switches, linking their ports through the
// backbone fabric, sharing topologies between users and tearing
// everything down again. All state transitions go through the store
// and all device effects go through the gateway, so the engine itself
// stays testable against in-memory doubles.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/TitouanDH/BLab/pkg/backbone"
	"github.com/TitouanDH/BLab/pkg/lock"
	"github.com/TitouanDH/BLab/pkg/model"
	"github.com/TitouanDH/BLab/pkg/store"
	"github.com/TitouanDH/BLab/pkg/util"
)

// Gateway is the device surface the engine needs: HTTPS CLI for
// backbone provisioning and banners, SSH for recovery commands.
type Gateway interface {
	Execute(ctx context.Context, addr, cmd string) (string, error)
	Exec(ctx context.Context, addr, cmd string) (string, error)
	ExecPTY(ctx context.Context, addr, cmd, input string) (string, error)
	PushFile(ctx context.Context, addr, path, content string) error
}

// Engine ties the store, the device gateway and the backbone manager
// together.
type Engine struct {
	st        store.Store
	gw        Gateway
	bb        *backbone.Manager
	locks     lock.Locker
	svlanBase int
}

// Options tunes engine behavior beyond its dependencies.
type Options struct {
	// SVLANBase is the lowest service vlan handed to new links.
	SVLANBase int
	// Verify is the snapshot verification retry policy.
	Verify backbone.RetryPolicy
}

// New assembles an engine. A nil locker falls back to process-local
// locking.
func New(st store.Store, gw Gateway, locks lock.Locker, opts Options) *Engine {
	if locks == nil {
		locks = lock.NewLocal()
	}
	if opts.SVLANBase == 0 {
		opts.SVLANBase = 1001
	}
	if opts.Verify.Attempts == 0 {
		opts.Verify = backbone.DefaultRetryPolicy()
	}
	return &Engine{
		st:        st,
		gw:        gw,
		bb:        backbone.New(gw, opts.Verify),
		locks:     locks,
		svlanBase: opts.SVLANBase,
	}
}

// hasAccess reports whether user may act on the switch: either the
// user reserves it, or someone who shared their topology with the user
// does. Shares are checked one level deep only.
func (e *Engine) hasAccess(ctx context.Context, user *model.User, switchID int64) (bool, error) {
	res, err := e.st.GetReservationBySwitch(ctx, switchID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if res.UserID == user.ID {
		return true, nil
	}

	shares, err := e.st.ListSharesToUser(ctx, user.ID)
	if err != nil {
		return false, err
	}
	for _, share := range shares {
		if share.OwnerID == res.UserID {
			return true, nil
		}
	}
	return false, nil
}

// requireAccess is hasAccess with the failure shaped into the error
// taxonomy: a typed AccessError naming the user and switch that also
// matches ErrNotReservedByUser.
func (e *Engine) requireAccess(ctx context.Context, user *model.User, switchID int64) error {
	ok, err := e.hasAccess(ctx, user, switchID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %w", ErrNotReservedByUser,
			util.NewAccessError(user.Username, "act on", fmt.Sprintf("switch %d", switchID)))
	}
	return nil
}

func switchKey(id int64) string {
	return fmt.Sprintf("switch:%d", id)
}
