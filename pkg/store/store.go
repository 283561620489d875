// Package store persists the reservation engine's state. The Store
// interface is what the engine programs against; the Postgres
// implementation is the production backend.
package store

import (
	"context"
	"errors"

	"github.com/TitouanDH/BLab/pkg/model"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate indicates a uniqueness constraint was violated.
	ErrDuplicate = errors.New("record already exists")
)

// Store is the persistence contract for the engine. Implementations
// must enforce uniqueness of reservations per switch, of svlans across
// links, and of owner/target share pairs, so that racing writers are
// serialized by the database rather than by engine code.
type Store interface {
	// Switches.
	CreateSwitch(ctx context.Context, sw *model.Switch) error
	GetSwitch(ctx context.Context, id int64) (*model.Switch, error)
	ListSwitches(ctx context.Context) ([]model.Switch, error)
	DeleteSwitch(ctx context.Context, id int64) error

	// Ports.
	CreatePort(ctx context.Context, port *model.Port) error
	GetPort(ctx context.Context, id int64) (*model.Port, error)
	ListPorts(ctx context.Context) ([]model.Port, error)
	ListPortsBySwitch(ctx context.Context, switchID int64) ([]model.Port, error)
	DeletePort(ctx context.Context, id int64) error

	// Users.
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByName(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	// Reservations.
	CreateReservation(ctx context.Context, res *model.Reservation) error
	GetReservationBySwitch(ctx context.Context, switchID int64) (*model.Reservation, error)
	ListReservationsByUser(ctx context.Context, userID int64) ([]model.Reservation, error)
	ListExpiredReservations(ctx context.Context) ([]model.Reservation, error)
	DeleteReservation(ctx context.Context, id int64) error

	// Shares.
	CreateShare(ctx context.Context, share *model.TopologyShare) error
	DeleteShare(ctx context.Context, ownerID, targetID int64) error
	ListSharesToUser(ctx context.Context, targetID int64) ([]model.TopologyShare, error)
	ListSharesByOwner(ctx context.Context, ownerID int64) ([]model.TopologyShare, error)

	// Links.
	GetLink(ctx context.Context, id int64) (*model.Link, error)
	GetLinkByPort(ctx context.Context, portID int64) (*model.Link, error)
	ListLinks(ctx context.Context) ([]model.Link, error)
	MarkLinkActive(ctx context.Context, id int64) error

	// AllocateLink claims the lowest free svlan at or above base,
	// records a pending link between the two ports and stamps the
	// svlan onto both port rows, all in one transaction.
	AllocateLink(ctx context.Context, portA, portB int64, owner string, base int) (*model.Link, error)

	// ReleaseLink deletes the link row, clears the svlan from both
	// ports and marks them down, all in one transaction.
	ReleaseLink(ctx context.Context, id int64) error

	// UpdatePortStatus persists a port's administrative status.
	UpdatePortStatus(ctx context.Context, id int64, status model.PortStatus) error
}
