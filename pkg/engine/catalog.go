package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/TitouanDH/BLab/pkg/model"
	"github.com/TitouanDH/BLab/pkg/store"
	"github.com/TitouanDH/BLab/pkg/util"
)

// Catalog operations manage the inventory of switches and ports. They
// are administrative: reservations protect running topologies, so
// removal refuses while links exist.

// AddSwitch registers a switch in the catalog.
func (e *Engine) AddSwitch(ctx context.Context, sw *model.Switch) error {
	if sw.MgmtIP == "" {
		return util.NewConflictError("switch", "management address required")
	}
	if sw.Model == "" {
		return util.NewConflictError("switch", "model required")
	}
	return e.st.CreateSwitch(ctx, sw)
}

// DeleteSwitch removes a switch and its ports. It refuses while any
// port still carries a link; the reservation, if any, goes with the
// switch.
func (e *Engine) DeleteSwitch(ctx context.Context, switchID int64) error {
	ports, err := e.st.ListPortsBySwitch(ctx, switchID)
	if err != nil {
		return err
	}
	for _, port := range ports {
		if port.Linked() {
			return fmt.Errorf("port %d: %w", port.ID, ErrSwitchInUse)
		}
	}
	return e.st.DeleteSwitch(ctx, switchID)
}

// AddPort registers a port and its backbone wiring.
func (e *Engine) AddPort(ctx context.Context, port *model.Port) error {
	if _, err := e.st.GetSwitch(ctx, port.SwitchID); err != nil {
		return err
	}
	if port.Backbone == "" || port.PortBackbone == "" {
		return util.NewConflictError("port", "backbone wiring required")
	}
	port.Status = model.PortDown
	return e.st.CreatePort(ctx, port)
}

// DeletePort removes a port from the catalog, refusing while it
// carries a link.
func (e *Engine) DeletePort(ctx context.Context, portID int64) error {
	port, err := e.st.GetPort(ctx, portID)
	if err != nil {
		return err
	}
	if port.Linked() {
		return fmt.Errorf("port %d: %w", portID, ErrPortInUse)
	}
	return e.st.DeletePort(ctx, portID)
}

// Switches lists the catalog.
func (e *Engine) Switches(ctx context.Context) ([]model.Switch, error) {
	return e.st.ListSwitches(ctx)
}

// Ports lists every port, or the ports of one switch when switchID is
// non-zero.
func (e *Engine) Ports(ctx context.Context, switchID int64) ([]model.Port, error) {
	if switchID != 0 {
		return e.st.ListPortsBySwitch(ctx, switchID)
	}
	return e.st.ListPorts(ctx)
}

// Links lists every provisioned link.
func (e *Engine) Links(ctx context.Context) ([]model.Link, error) {
	return e.st.ListLinks(ctx)
}

// Reservations lists the reservations held by one user.
func (e *Engine) Reservations(ctx context.Context, user *model.User) ([]model.Reservation, error) {
	return e.st.ListReservationsByUser(ctx, user.ID)
}

// ReservationOwner returns the username reserving the switch, or ""
// when it is free.
func (e *Engine) ReservationOwner(ctx context.Context, switchID int64) (string, error) {
	res, err := e.st.GetReservationBySwitch(ctx, switchID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	owner, err := e.st.GetUser(ctx, res.UserID)
	if err != nil {
		return "", err
	}
	return owner.Username, nil
}

// Users lists known users.
func (e *Engine) Users(ctx context.Context) ([]model.User, error) {
	return e.st.ListUsers(ctx)
}

// UserByID resolves a user record by its storage key.
func (e *Engine) UserByID(ctx context.Context, id int64) (*model.User, error) {
	return e.st.GetUser(ctx, id)
}

// User resolves a username, creating the record on first sight when
// create is set. The lab authenticates elsewhere; the engine only
// needs a stable identity per username.
func (e *Engine) User(ctx context.Context, username string, create bool) (*model.User, error) {
	user, err := e.st.GetUserByName(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) || !create {
		return nil, err
	}
	user = &model.User{Username: username}
	if err := e.st.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return e.st.GetUserByName(ctx, username)
		}
		return nil, err
	}
	return user, nil
}
