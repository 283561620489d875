package model

import "time"

// Reservation grants one user exclusive control of one switch. EndDate
// is nil for open-ended reservations; the expiry sweep releases
// reservations whose end date has passed.
type Reservation struct {
	ID           int64      `json:"id"`
	SwitchID     int64      `json:"switch"`
	UserID       int64      `json:"user"`
	CreationDate time.Time  `json:"creation_date"`
	EndDate      *time.Time `json:"end_date"`
}

// Expired reports whether the reservation's end date has passed.
func (r *Reservation) Expired(now time.Time) bool {
	return r.EndDate != nil && r.EndDate.Before(now)
}
