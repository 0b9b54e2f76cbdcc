// Package pricing computes the effective unit price for a drop line from its
// base price and inventory depletion. The function is deterministic: same
// inputs, same quote, no clock and no randomness. Quotes are never cached
// across inventory changes; callers recompute at display time and again at
// purchase-commit time.
package pricing

import "github.com/hazeclub/drops-api/internal/domain"

type Tier string

const (
	TierNormal   Tier = "normal"
	TierElevated Tier = "elevated"
	TierCritical Tier = "critical"
)

// Markup in percent applied per tier.
const (
	elevatedPct = 115
	criticalPct = 125
)

// Quote is an ephemeral price computation. It has no lifecycle of its own.
type Quote struct {
	BasePriceCents    int
	CurrentPriceCents int
	RemainingRatio    float64
	Tier              Tier
}

// Compute derives the quote for a line with the given base price and counts.
//
// Bands on remaining_ratio = (available - sold) / available:
//
//	ratio >= 0.20          base price, tier normal
//	0.10 <= ratio < 0.20   base * 1.15, tier elevated
//	0    <  ratio < 0.10   base * 1.25, tier critical
//
// A line with ratio == 0 (or available == 0, where the ratio is undefined) is
// sold out and has no price; Compute returns domain.ErrSoldOut and the caller
// must treat the line as unavailable. Counters outside 0 <= sold <= available
// are a contract violation, not a sellout, and return domain.ErrInvalidQuantity.
func Compute(baseCents, available, sold int) (Quote, error) {
	if baseCents <= 0 {
		return Quote{}, domain.ErrInvalidPrice
	}
	if available < 0 || sold < 0 || sold > available {
		return Quote{}, domain.ErrInvalidQuantity
	}
	if available == 0 {
		return Quote{}, domain.ErrSoldOut
	}

	remaining := available - sold
	if remaining == 0 {
		return Quote{}, domain.ErrSoldOut
	}

	q := Quote{
		BasePriceCents: baseCents,
		RemainingRatio: float64(remaining) / float64(available),
	}

	// Band edges compared in integers so 0.20 and 0.10 land exactly.
	switch {
	case remaining*5 >= available:
		q.Tier = TierNormal
		q.CurrentPriceCents = baseCents
	case remaining*10 >= available:
		q.Tier = TierElevated
		q.CurrentPriceCents = markup(baseCents, elevatedPct)
	default:
		q.Tier = TierCritical
		q.CurrentPriceCents = markup(baseCents, criticalPct)
	}
	return q, nil
}

// ForLine computes the quote for a drop line's current counters.
func ForLine(line domain.DropLine) (Quote, error) {
	return Compute(line.UnitBasePriceCents, line.QuantityAvailable, line.QuantitySold)
}

// markup scales cents by pct percent, rounding half up to the nearest cent.
func markup(cents, pct int) int {
	return (cents*pct + 50) / 100
}
