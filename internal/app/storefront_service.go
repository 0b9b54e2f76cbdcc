package app

import (
	"context"

	"github.com/hazeclub/drops-api/internal/clock"
	"github.com/hazeclub/drops-api/internal/domain"
	"github.com/hazeclub/drops-api/internal/flags"
	"github.com/hazeclub/drops-api/internal/pricing"
)

// StorefrontService assembles the shopper-facing view of a drop: derived
// phase for the caller and freshly computed quotes per line. Quotes are never
// cached; every view prices against current counters.
type StorefrontService struct {
	repo      AdminRepository
	clock     clock.Clock
	threshold int
}

func NewStorefrontService(repo AdminRepository, clk clock.Clock, opts ...StorefrontServiceOption) *StorefrontService {
	svc := &StorefrontService{
		repo:      repo,
		clock:     clk,
		threshold: defaultQueueThreshold,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type StorefrontServiceOption func(*StorefrontService)

func WithStorefrontQueueThreshold(n int) StorefrontServiceOption {
	return func(s *StorefrontService) {
		if n > 0 {
			s.threshold = n
		}
	}
}

type LineView struct {
	Line    domain.DropLine
	Quote   *pricing.Quote
	SoldOut bool
}

type DropView struct {
	Drop  domain.Drop
	Phase domain.Phase
	Gated bool
	Lines []LineView
}

// DropDetail returns the drop as seen by the caller right now. VIP early
// access is only surfaced when both the caller is VIP and the flag is on.
// Lines in a non-purchasable phase carry no quote.
func (s *StorefrontService) DropDetail(ctx context.Context, snap flags.Snapshot, dropID string, vip bool) (DropView, error) {
	if dropID == "" {
		return DropView{}, domain.ErrInvalidID
	}

	drop, err := s.repo.GetDrop(ctx, dropID)
	if err != nil {
		return DropView{}, err
	}

	now := s.clock.Now()
	effectiveVIP := vip && snap.Enabled(flags.FlagVIPEarlyAccess)
	phase := drop.PhaseAt(now, effectiveVIP)

	view := DropView{
		Drop:  drop,
		Phase: phase,
		Gated: drop.Gated(s.threshold),
	}

	lines, err := s.repo.ListLinesByDrop(ctx, dropID)
	if err != nil {
		return DropView{}, err
	}

	for _, line := range lines {
		lv := LineView{Line: line}
		if phase.Purchasable() {
			quote, err := s.quoteLine(line, snap)
			switch err {
			case nil:
				lv.Quote = &quote
			case domain.ErrSoldOut:
				lv.SoldOut = true
			default:
				return DropView{}, err
			}
		}
		view.Lines = append(view.Lines, lv)
	}
	return view, nil
}

// quoteLine prices the line under the given flag snapshot. With dynamic
// pricing off the markup is suppressed but the quote still reports the
// line's real depletion.
func (s *StorefrontService) quoteLine(line domain.DropLine, snap flags.Snapshot) (pricing.Quote, error) {
	quote, err := pricing.ForLine(line)
	if err != nil {
		return pricing.Quote{}, err
	}
	if !snap.Enabled(flags.FlagDynamicPricing) {
		quote.CurrentPriceCents = quote.BasePriceCents
		quote.Tier = pricing.TierNormal
	}
	return quote, nil
}
