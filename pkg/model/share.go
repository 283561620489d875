package model

import "time"

// TopologyShare is a directed grant: the target user may act on ports
// and links of every switch the owner currently reserves. It grants
// nothing beyond that and is one level deep: shares do not chain
// through the target's own shares.
type TopologyShare struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner"`
	TargetID  int64     `json:"target"`
	CreatedAt time.Time `json:"created_at"`
}

// User is the minimal account record the engine needs: shares and
// reservations reference users, and the username names backbone
// services and banner entries. Authentication lives elsewhere.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
