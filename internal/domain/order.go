package domain

import "time"

// Order is a committed purchase derived from a reservation.
type Order struct {
	ID             string
	ReservationID  string
	DropID         string
	DropLineID     string
	UserID         string
	Quantity       int
	UnitPriceCents int
	TotalCents     int
	IdempotencyKey string
	CreatedAt      time.Time
}
