package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hazeclub/drops-api/internal/clock"
	"github.com/hazeclub/drops-api/internal/domain"
	"github.com/hazeclub/drops-api/internal/flags"
	"github.com/hazeclub/drops-api/internal/notify"
	"github.com/hazeclub/drops-api/internal/pricing"
)

type InventoryRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// GetLineForUpdate locks the drop line row; all reservation and sale
	// mutation for one line is serialized through this lock.
	GetLineForUpdate(ctx context.Context, id string) (domain.DropLine, error)
	GetDrop(ctx context.Context, id string) (domain.Drop, error)
	// SumActiveReservations counts units held by unexpired, unconfirmed
	// reservations. Expiry is part of the predicate, so lapsed holds free
	// inventory without waiting for any sweep.
	SumActiveReservations(ctx context.Context, lineID string, now time.Time) (int, error)
	CreateReservation(ctx context.Context, res domain.Reservation) error
	GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id string, status domain.ReservationStatus) error
	// IncrementSold bumps quantity_sold, refusing to cross
	// quantity_available.
	IncrementSold(ctx context.Context, lineID string, qty int) error
	FindOrderByReservation(ctx context.Context, reservationID string) (*domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) error
	HasActiveTurn(ctx context.Context, dropID, userID string, now time.Time) (bool, error)
}

// TurnCompleter releases a user's queue turn after a committed purchase.
type TurnCompleter interface {
	Complete(ctx context.Context, dropID, userID string) error
}

// InventoryService is the sole authority over quantity_sold. Reservations
// are provisional holds that either confirm into an order within their
// window or lapse back into available inventory.
type InventoryService struct {
	repo     InventoryRepository
	clock    clock.Clock
	notifier notify.Notifier
	turns    TurnCompleter

	reservationTTL time.Duration
	threshold      int
}

func NewInventoryService(repo InventoryRepository, clk clock.Clock, notifier notify.Notifier, turns TurnCompleter, opts ...InventoryServiceOption) *InventoryService {
	svc := &InventoryService{
		repo:           repo,
		clock:          clk,
		notifier:       notifier,
		turns:          turns,
		reservationTTL: defaultPurchaseWindow,
		threshold:      defaultQueueThreshold,
	}
	if svc.notifier == nil {
		svc.notifier = notify.Nop{}
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type InventoryServiceOption func(*InventoryService)

// WithReservationTTL overrides how long a reservation may stay unconfirmed.
// It should match the queue's purchase window.
func WithReservationTTL(d time.Duration) InventoryServiceOption {
	return func(s *InventoryService) {
		if d > 0 {
			s.reservationTTL = d
		}
	}
}

// WithInventoryQueueThreshold mirrors the queue manager's gating threshold.
func WithInventoryQueueThreshold(n int) InventoryServiceOption {
	return func(s *InventoryService) {
		if n > 0 {
			s.threshold = n
		}
	}
}

type ReserveInput struct {
	DropLineID string
	UserID     string
	VIP        bool
	Quantity   int
}

// Reserve atomically checks and holds inventory for the caller. The check
// against sold plus outstanding holds and the creation of the new hold happen
// under the line's row lock: of two racing calls for the last unit, exactly
// one succeeds.
func (s *InventoryService) Reserve(ctx context.Context, snap flags.Snapshot, in ReserveInput) (domain.Reservation, error) {
	if in.DropLineID == "" || in.UserID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	if in.Quantity <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}

	now := s.clock.Now()
	var result domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		line, err := s.repo.GetLineForUpdate(txCtx, in.DropLineID)
		if err != nil {
			return err
		}
		drop, err := s.repo.GetDrop(txCtx, line.DropID)
		if err != nil {
			return err
		}

		vip := in.VIP && snap.Enabled(flags.FlagVIPEarlyAccess)
		if !drop.PhaseAt(now, vip).Purchasable() {
			return domain.ErrDropNotLive
		}

		if drop.Gated(s.threshold) {
			ok, err := s.repo.HasActiveTurn(txCtx, drop.ID, in.UserID, now)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrNoActiveTurn
			}
		}

		held, err := s.repo.SumActiveReservations(txCtx, in.DropLineID, now)
		if err != nil {
			return err
		}
		if line.QuantitySold+held+in.Quantity > line.QuantityAvailable {
			return domain.ErrInsufficientInventory
		}

		quote, err := s.quote(line, snap)
		if err != nil {
			return err
		}

		result = domain.Reservation{
			ID:             uuid.NewString(),
			DropID:         line.DropID,
			DropLineID:     line.ID,
			UserID:         in.UserID,
			Quantity:       in.Quantity,
			Status:         domain.ReservationActive,
			UnitPriceCents: quote.CurrentPriceCents,
			ExpiresAt:      now.Add(s.reservationTTL),
			CreatedAt:      now,
		}
		return s.repo.CreateReservation(txCtx, result)
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return result, nil
}

type ConfirmInput struct {
	ReservationID  string
	UserID         string
	IdempotencyKey string
}

type ConfirmResult struct {
	Order   domain.Order
	Created bool
}

// Confirm commits a reservation into an order. The price is recomputed
// inside the transaction from the line's current counters, so a purchase
// always settles at commit-time price, never at one quoted earlier in the
// session. Confirm is idempotent on the provided key.
func (s *InventoryService) Confirm(ctx context.Context, snap flags.Snapshot, in ConfirmInput) (ConfirmResult, error) {
	if in.ReservationID == "" || in.UserID == "" {
		return ConfirmResult{}, domain.ErrInvalidID
	}
	if in.IdempotencyKey == "" {
		return ConfirmResult{}, domain.ErrIdempotencyKeyRequired
	}

	now := s.clock.Now()
	var result ConfirmResult

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservationForUpdate(txCtx, in.ReservationID)
		if err != nil {
			return err
		}
		if res.UserID != in.UserID {
			return domain.ErrReservationNotFound
		}

		existing, err := s.repo.FindOrderByReservation(txCtx, in.ReservationID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.IdempotencyKey == in.IdempotencyKey {
				result = ConfirmResult{Order: *existing}
				return nil
			}
			return domain.ErrReservationConfirmed
		}

		switch {
		case res.Status == domain.ReservationConfirmed:
			return domain.ErrReservationConfirmed
		case res.Status == domain.ReservationReleased:
			return domain.ErrReservationReleased
		case res.Status == domain.ReservationExpired, res.Lapsed(now):
			return domain.ErrReservationExpired
		}

		line, err := s.repo.GetLineForUpdate(txCtx, res.DropLineID)
		if err != nil {
			return err
		}
		if line.QuantitySold+res.Quantity > line.QuantityAvailable {
			return domain.ErrInsufficientInventory
		}

		quote, err := s.quote(line, snap)
		if err != nil {
			return err
		}

		order := domain.Order{
			ID:             uuid.NewString(),
			ReservationID:  res.ID,
			DropID:         res.DropID,
			DropLineID:     res.DropLineID,
			UserID:         res.UserID,
			Quantity:       res.Quantity,
			UnitPriceCents: quote.CurrentPriceCents,
			TotalCents:     quote.CurrentPriceCents * res.Quantity,
			IdempotencyKey: in.IdempotencyKey,
			CreatedAt:      now,
		}

		if err := s.repo.CreateOrder(txCtx, order); err != nil {
			// A concurrent confirm for the same reservation won the race;
			// re-read so idempotent retries stay consistent.
			if err == domain.ErrIdempotencyConflict {
				existing, err := s.repo.FindOrderByReservation(txCtx, in.ReservationID)
				if err != nil {
					return err
				}
				if existing != nil && existing.IdempotencyKey == in.IdempotencyKey {
					result = ConfirmResult{Order: *existing}
					return nil
				}
				return domain.ErrReservationConfirmed
			}
			return err
		}
		if err := s.repo.IncrementSold(txCtx, res.DropLineID, res.Quantity); err != nil {
			return err
		}
		if err := s.repo.UpdateReservationStatus(txCtx, res.ID, domain.ReservationConfirmed); err != nil {
			return err
		}

		result = ConfirmResult{Order: order, Created: true}
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	if result.Created {
		s.finishPurchase(ctx, result.Order)
	}
	return result, nil
}

type ReleaseInput struct {
	ReservationID string
	UserID        string
}

// Release returns an unconfirmed reservation's units to the pool. A second
// release of the same reservation is a no-op.
func (s *InventoryService) Release(ctx context.Context, in ReleaseInput) error {
	if in.ReservationID == "" || in.UserID == "" {
		return domain.ErrInvalidID
	}

	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservationForUpdate(txCtx, in.ReservationID)
		if err != nil {
			return err
		}
		if res.UserID != in.UserID {
			return domain.ErrReservationNotFound
		}
		switch res.Status {
		case domain.ReservationConfirmed:
			return domain.ErrReservationConfirmed
		case domain.ReservationReleased, domain.ReservationExpired:
			return nil
		}
		return s.repo.UpdateReservationStatus(txCtx, res.ID, domain.ReservationReleased)
	})
}

// GetReservation reads a reservation with lazy expiry applied to the view.
func (s *InventoryService) GetReservation(ctx context.Context, reservationID, userID string) (domain.Reservation, error) {
	if reservationID == "" || userID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var result domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if res.UserID != userID {
			return domain.ErrReservationNotFound
		}
		if res.Lapsed(now) {
			res.Status = domain.ReservationExpired
		}
		result = res
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return result, nil
}

// quote prices the line under the given flag snapshot. With dynamic pricing
// off every line sells at base price; the quote's ratio still reflects the
// real counters.
func (s *InventoryService) quote(line domain.DropLine, snap flags.Snapshot) (pricing.Quote, error) {
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

// finishPurchase runs the post-commit side effects: release the queue turn
// and announce the sale. Both are best-effort; the reservation timeout
// reclaims a turn that fails to release here.
func (s *InventoryService) finishPurchase(ctx context.Context, order domain.Order) {
	if s.turns != nil {
		_ = s.turns.Complete(ctx, order.DropID, order.UserID)
	}

	s.notifier.PurchaseCompleted(ctx, notify.PurchaseCompletedEvent{
		OrderID:        order.ID,
		DropID:         order.DropID,
		DropLineID:     order.DropLineID,
		UserID:         order.UserID,
		Quantity:       order.Quantity,
		UnitPriceCents: order.UnitPriceCents,
		TotalCents:     order.TotalCents,
		CompletedAt:    order.CreatedAt,
	})
}
