package domain

import "time"

// DropLine is one purchasable variant offered within a drop. QuantityAvailable
// is fixed at creation; QuantitySold only moves up, and only through a
// committed purchase.
type DropLine struct {
	ID                 string
	DropID             string
	Name               string
	QuantityAvailable  int
	QuantitySold       int
	UnitBasePriceCents int
	CreatedAt          time.Time
}

// Remaining returns the units not yet sold.
func (l DropLine) Remaining() int {
	return l.QuantityAvailable - l.QuantitySold
}
