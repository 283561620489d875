package engine

import (
	"context"
	"errors"
	"time"

	"github.com/TitouanDH/BLab/pkg/audit"
	"github.com/TitouanDH/BLab/pkg/metrics"
	"github.com/TitouanDH/BLab/pkg/model"
	"github.com/TitouanDH/BLab/pkg/store"
)

// Share lets target act on every switch owner currently reserves. The
// grant follows the owner's reservations as they come and go; it does
// not cascade through the target's own shares.
func (e *Engine) Share(ctx context.Context, owner *model.User, targetName string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(audit.OpShare, start, err) }()

	event := audit.NewEvent(owner.Username, audit.OpShare)
	defer func() { audit.Log(event.WithDuration(time.Since(start))) }()

	target, err := e.st.GetUserByName(ctx, targetName)
	if err != nil {
		event.WithError(err)
		return err
	}
	if target.ID == owner.ID {
		event.WithError(ErrAlreadyShared)
		return ErrAlreadyShared
	}

	share := &model.TopologyShare{OwnerID: owner.ID, TargetID: target.ID}
	if err := e.st.CreateShare(ctx, share); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			err = ErrAlreadyShared
		}
		event.WithError(err)
		return err
	}
	event.WithSuccess()
	return nil
}

// Unshare revokes the share between user and the named counterpart.
// Either party may revoke: a grant the user gave, or one they
// received. ErrShareNotFound covers both a missing share and a share
// the user is not a party to.
func (e *Engine) Unshare(ctx context.Context, user *model.User, otherName string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(audit.OpUnshare, start, err) }()

	event := audit.NewEvent(user.Username, audit.OpUnshare)
	defer func() { audit.Log(event.WithDuration(time.Since(start))) }()

	other, err := e.st.GetUserByName(ctx, otherName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = ErrShareNotFound
		}
		event.WithError(err)
		return err
	}
	err = e.st.DeleteShare(ctx, user.ID, other.ID)
	if errors.Is(err, store.ErrNotFound) {
		err = e.st.DeleteShare(ctx, other.ID, user.ID)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = ErrShareNotFound
		}
		event.WithError(err)
		return err
	}
	event.WithSuccess()
	return nil
}

// SharesByOwner lists the users the owner has shared their topology
// with.
func (e *Engine) SharesByOwner(ctx context.Context, owner *model.User) ([]model.TopologyShare, error) {
	return e.st.ListSharesByOwner(ctx, owner.ID)
}

// SharesToUser lists the owners who shared their topology with user.
func (e *Engine) SharesToUser(ctx context.Context, user *model.User) ([]model.TopologyShare, error) {
	return e.st.ListSharesToUser(ctx, user.ID)
}
