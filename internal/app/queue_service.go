package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hazeclub/drops-api/internal/clock"
	"github.com/hazeclub/drops-api/internal/domain"
	"github.com/hazeclub/drops-api/internal/notify"
)

type QueueRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// GetDropForUpdate locks the drop row; all queue mutation for one drop
	// runs under this lock, which linearizes join/advance/tick/complete
	// per drop while leaving different drops fully independent.
	GetDropForUpdate(ctx context.Context, id string) (domain.Drop, error)
	// NextQueuePosition atomically increments and returns the drop's
	// position sequence.
	NextQueuePosition(ctx context.Context, dropID string) (int, error)
	FindOpenEntry(ctx context.Context, dropID, userID string) (*domain.QueueEntry, error)
	LatestEntry(ctx context.Context, dropID, userID string) (*domain.QueueEntry, error)
	CreateEntry(ctx context.Context, entry domain.QueueEntry) error
	CountActive(ctx context.Context, dropID string, now time.Time) (int, error)
	NextWaiting(ctx context.Context, dropID string) (*domain.QueueEntry, error)
	ExpireOverdue(ctx context.Context, dropID string, now time.Time) ([]domain.QueueEntry, error)
	UpdateEntryStatus(ctx context.Context, entryID string, status domain.QueueEntryStatus, expiresAt *time.Time) error
	ListGatedLiveDropIDs(ctx context.Context, now time.Time, threshold int) ([]string, error)
}

// QueueService orders access to high-demand drops. Users join in sequence,
// a bounded number hold an active purchase window at once, and lapsed
// windows expire either lazily on read or via Tick.
type QueueService struct {
	repo     QueueRepository
	clock    clock.Clock
	notifier notify.Notifier

	slots     int
	window    time.Duration
	threshold int
}

const (
	defaultActiveSlots    = 1
	defaultPurchaseWindow = 10 * time.Minute
	defaultQueueThreshold = 500
)

func NewQueueService(repo QueueRepository, clk clock.Clock, notifier notify.Notifier, opts ...QueueServiceOption) *QueueService {
	svc := &QueueService{
		repo:      repo,
		clock:     clk,
		notifier:  notifier,
		slots:     defaultActiveSlots,
		window:    defaultPurchaseWindow,
		threshold: defaultQueueThreshold,
	}
	if svc.notifier == nil {
		svc.notifier = notify.Nop{}
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type QueueServiceOption func(*QueueService)

// WithActiveSlots sets how many entries may hold a purchase window at once.
func WithActiveSlots(n int) QueueServiceOption {
	return func(s *QueueService) {
		if n > 0 {
			s.slots = n
		}
	}
}

// WithPurchaseWindow overrides the duration of an active turn.
func WithPurchaseWindow(d time.Duration) QueueServiceOption {
	return func(s *QueueService) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithQueueThreshold sets the max_quantity at or below which a drop is gated.
func WithQueueThreshold(n int) QueueServiceOption {
	return func(s *QueueService) {
		if n > 0 {
			s.threshold = n
		}
	}
}

// PurchaseWindow returns the configured active-turn duration.
func (s *QueueService) PurchaseWindow() time.Duration {
	return s.window
}

type JoinInput struct {
	DropID string
	UserID string
	VIP    bool
}

type JoinResult struct {
	Entry   domain.QueueEntry
	Created bool
}

// Join appends the user to the drop's queue. A user with an open (waiting or
// active) entry gets that entry back with ErrAlreadyQueued; no duplicate row
// and no fresh position are ever created. A user whose previous turn lapsed
// rejoins at the back.
func (s *QueueService) Join(ctx context.Context, in JoinInput) (JoinResult, error) {
	if in.DropID == "" || in.UserID == "" {
		return JoinResult{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var result JoinResult
	var activated []domain.QueueEntry

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		drop, err := s.repo.GetDropForUpdate(txCtx, in.DropID)
		if err != nil {
			return err
		}
		if !drop.PhaseAt(now, in.VIP).Purchasable() {
			return domain.ErrDropNotQueueable
		}
		if !drop.Gated(s.threshold) {
			return domain.ErrDropNotQueueable
		}

		existing, err := s.repo.FindOpenEntry(txCtx, in.DropID, in.UserID)
		if err != nil {
			return err
		}
		if existing != nil {
			if !existing.Lapsed(now) {
				result = JoinResult{Entry: *existing}
				return domain.ErrAlreadyQueued
			}
			// The open entry ran out of time but the sweep has not caught
			// it yet. Expire it here and let the user rejoin at the back.
			if err := s.repo.UpdateEntryStatus(txCtx, existing.ID, domain.QueueEntryExpired, existing.ExpiresAt); err != nil {
				return err
			}
		}

		position, err := s.repo.NextQueuePosition(txCtx, in.DropID)
		if err != nil {
			return err
		}

		entry := domain.QueueEntry{
			ID:        uuid.NewString(),
			DropID:    in.DropID,
			UserID:    in.UserID,
			Position:  position,
			Status:    domain.QueueEntryWaiting,
			CreatedAt: now,
		}
		if err := s.repo.CreateEntry(txCtx, entry); err != nil {
			return err
		}

		activated, err = s.advanceLocked(txCtx, in.DropID, now)
		if err != nil {
			return err
		}
		for _, a := range activated {
			if a.ID == entry.ID {
				entry = a
			}
		}

		result = JoinResult{Entry: entry, Created: true}
		return nil
	})
	if err != nil {
		if err == domain.ErrAlreadyQueued && result.Entry.ID != "" {
			return result, err
		}
		return JoinResult{}, err
	}

	s.notifyActivated(ctx, activated)
	return result, nil
}

// Status returns the caller's most recent entry, applying lazy expiry first
// so a lapsed turn is reported expired (and the freed slot refilled) no
// matter when the sweep last ran.
func (s *QueueService) Status(ctx context.Context, dropID, userID string) (domain.QueueEntry, error) {
	if dropID == "" || userID == "" {
		return domain.QueueEntry{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var entry domain.QueueEntry
	var activated []domain.QueueEntry

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetDropForUpdate(txCtx, dropID); err != nil {
			return err
		}
		if _, err := s.repo.ExpireOverdue(txCtx, dropID, now); err != nil {
			return err
		}
		var err error
		activated, err = s.advanceLocked(txCtx, dropID, now)
		if err != nil {
			return err
		}

		found, err := s.repo.LatestEntry(txCtx, dropID, userID)
		if err != nil {
			return err
		}
		if found == nil {
			return domain.ErrQueueEntryNotFound
		}
		entry = *found
		return nil
	})
	if err != nil {
		return domain.QueueEntry{}, err
	}

	s.notifyActivated(ctx, activated)
	return entry, nil
}

// Advance fills any free active slots from the front of the waiting line.
func (s *QueueService) Advance(ctx context.Context, dropID string) error {
	if dropID == "" {
		return domain.ErrInvalidID
	}

	now := s.clock.Now()
	var activated []domain.QueueEntry

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetDropForUpdate(txCtx, dropID); err != nil {
			return err
		}
		var err error
		activated, err = s.advanceLocked(txCtx, dropID, now)
		return err
	})
	if err != nil {
		return err
	}

	s.notifyActivated(ctx, activated)
	return nil
}

// Tick expires overdue active turns and refills the freed slots.
func (s *QueueService) Tick(ctx context.Context, dropID string) error {
	if dropID == "" {
		return domain.ErrInvalidID
	}

	now := s.clock.Now()
	var activated []domain.QueueEntry

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetDropForUpdate(txCtx, dropID); err != nil {
			return err
		}
		if _, err := s.repo.ExpireOverdue(txCtx, dropID, now); err != nil {
			return err
		}
		var err error
		activated, err = s.advanceLocked(txCtx, dropID, now)
		return err
	})
	if err != nil {
		return err
	}

	s.notifyActivated(ctx, activated)
	return nil
}

// Complete closes the user's open entry after a successful purchase and
// refills the slot. Also used for explicit leave: a waiting entry completes
// without ever holding a turn.
func (s *QueueService) Complete(ctx context.Context, dropID, userID string) error {
	if dropID == "" || userID == "" {
		return domain.ErrInvalidID
	}

	now := s.clock.Now()
	var activated []domain.QueueEntry

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetDropForUpdate(txCtx, dropID); err != nil {
			return err
		}
		entry, err := s.repo.FindOpenEntry(txCtx, dropID, userID)
		if err != nil {
			return err
		}
		if entry == nil {
			return domain.ErrQueueEntryNotFound
		}

		status := domain.QueueEntryCompleted
		if entry.Lapsed(now) {
			status = domain.QueueEntryExpired
		}
		if err := s.repo.UpdateEntryStatus(txCtx, entry.ID, status, entry.ExpiresAt); err != nil {
			return err
		}

		activated, err = s.advanceLocked(txCtx, dropID, now)
		return err
	})
	if err != nil {
		return err
	}

	s.notifyActivated(ctx, activated)
	return nil
}

// Leave is the user-initiated form of Complete.
func (s *QueueService) Leave(ctx context.Context, dropID, userID string) error {
	return s.Complete(ctx, dropID, userID)
}

// Sweep ticks every gated drop whose phase can hold a queue. Correctness
// never depends on the sweep; it only bounds how long a freed slot sits idle
// between reads.
func (s *QueueService) Sweep(ctx context.Context) error {
	ids, err := s.repo.ListGatedLiveDropIDs(ctx, s.clock.Now(), s.threshold)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.Tick(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// advanceLocked promotes waiting entries into free slots. Must run inside a
// transaction holding the drop row lock. Returns the promoted entries so the
// caller can notify after commit.
func (s *QueueService) advanceLocked(ctx context.Context, dropID string, now time.Time) ([]domain.QueueEntry, error) {
	active, err := s.repo.CountActive(ctx, dropID, now)
	if err != nil {
		return nil, err
	}

	var activated []domain.QueueEntry
	for active < s.slots {
		next, err := s.repo.NextWaiting(ctx, dropID)
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}

		expires := now.Add(s.window)
		if err := s.repo.UpdateEntryStatus(ctx, next.ID, domain.QueueEntryActive, &expires); err != nil {
			return nil, err
		}
		next.Status = domain.QueueEntryActive
		next.ExpiresAt = &expires
		activated = append(activated, *next)
		active++
	}
	return activated, nil
}

// notifyActivated fires turn-active events after the transaction has
// committed. Delivery is best-effort.
func (s *QueueService) notifyActivated(ctx context.Context, activated []domain.QueueEntry) {
	for _, e := range activated {
		ev := notify.TurnActiveEvent{
			DropID:   e.DropID,
			UserID:   e.UserID,
			Position: e.Position,
		}
		if e.ExpiresAt != nil {
			ev.ExpiresAt = *e.ExpiresAt
		}
		s.notifier.TurnActive(ctx, ev)
	}
}
