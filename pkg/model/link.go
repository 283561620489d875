package model

import "time"

// LinkState tracks a link through provisioning and teardown.
type LinkState string

const (
	// LinkPending: svlan claimed, backbone commands not yet confirmed.
	LinkPending LinkState = "pending"
	// LinkActive: provisioning verified against the device snapshot.
	LinkActive LinkState = "active"
)

// Link is a point-to-point circuit between two ports through the
// backbone, identified by its service VLAN. The explicit entity (rather
// than two ports sharing an svlan value) makes the single-pair
// invariant enforceable with a unique constraint.
type Link struct {
	ID        int64     `json:"id"`
	PortA     int64     `json:"port_a"`
	PortB     int64     `json:"port_b"`
	SVLAN     int       `json:"svlan"`
	State     LinkState `json:"state"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

// Peer returns the other port of the link, or 0 if portID is not a member.
func (l *Link) Peer(portID int64) int64 {
	switch portID {
	case l.PortA:
		return l.PortB
	case l.PortB:
		return l.PortA
	}
	return 0
}
