package domain

import "time"

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationReleased  ReservationStatus = "released"
	ReservationExpired   ReservationStatus = "expired"
)

// Reservation is a provisional hold against a drop line's inventory pending
// purchase confirmation. UnitPriceCents is the quote shown at reserve time;
// the purchase settles at the price recomputed at commit time.
type Reservation struct {
	ID             string
	DropID         string
	DropLineID     string
	UserID         string
	Quantity       int
	Status         ReservationStatus
	UnitPriceCents int
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// Lapsed reports whether an unconfirmed reservation's window has run out.
// Expiry is checked on every read, so correctness never depends on a sweep.
func (r Reservation) Lapsed(now time.Time) bool {
	return r.Status == ReservationActive && !r.ExpiresAt.After(now)
}
