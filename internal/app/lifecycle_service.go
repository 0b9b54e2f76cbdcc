package app

import (
	"context"
	"time"

	"github.com/hazeclub/drops-api/internal/clock"
	"github.com/hazeclub/drops-api/internal/domain"
)

type LifecycleRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetDropForUpdate(ctx context.Context, id string) (domain.Drop, error)
	UpdateDropStatus(ctx context.Context, id string, status domain.DropStatus, endTime *time.Time) error
	CountQueueEntries(ctx context.Context, dropID string) (int, error)
	CountOrders(ctx context.Context, dropID string) (int, error)
}

// LifecycleService applies the explicit admin edges of the drop state
// machine. The time-driven edges (scheduled->live, live->ended) are derived
// at read time by domain.Drop.PhaseAt and never touch storage.
type LifecycleService struct {
	repo  LifecycleRepository
	clock clock.Clock
}

func NewLifecycleService(repo LifecycleRepository, clk clock.Clock) *LifecycleService {
	return &LifecycleService{
		repo:  repo,
		clock: clk,
	}
}

// Publish moves a draft drop to scheduled. The start time must still be in
// the future.
func (s *LifecycleService) Publish(ctx context.Context, dropID string) (domain.Drop, error) {
	if dropID == "" {
		return domain.Drop{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var result domain.Drop

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		drop, err := s.repo.GetDropForUpdate(txCtx, dropID)
		if err != nil {
			return err
		}
		if drop.Status != domain.DropStatusDraft {
			return domain.ErrInvalidTransition
		}
		if !drop.StartTime.After(now) {
			return domain.ErrInvalidSchedule
		}
		if err := s.repo.UpdateDropStatus(txCtx, dropID, domain.DropStatusScheduled, drop.EndTime); err != nil {
			return err
		}
		drop.Status = domain.DropStatusScheduled
		result = drop
		return nil
	})
	if err != nil {
		return domain.Drop{}, err
	}
	return result, nil
}

// Unpublish moves a scheduled or live drop back to draft. Rejected once any
// queue entries or sales exist.
func (s *LifecycleService) Unpublish(ctx context.Context, dropID string) (domain.Drop, error) {
	if dropID == "" {
		return domain.Drop{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var result domain.Drop

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		drop, err := s.repo.GetDropForUpdate(txCtx, dropID)
		if err != nil {
			return err
		}
		switch drop.PhaseAt(now, false) {
		case domain.PhaseScheduled, domain.PhaseLive:
		default:
			return domain.ErrInvalidTransition
		}

		entries, err := s.repo.CountQueueEntries(txCtx, dropID)
		if err != nil {
			return err
		}
		orders, err := s.repo.CountOrders(txCtx, dropID)
		if err != nil {
			return err
		}
		if entries > 0 || orders > 0 {
			return domain.ErrConflict
		}

		if err := s.repo.UpdateDropStatus(txCtx, dropID, domain.DropStatusDraft, drop.EndTime); err != nil {
			return err
		}
		drop.Status = domain.DropStatusDraft
		result = drop
		return nil
	})
	if err != nil {
		return domain.Drop{}, err
	}
	return result, nil
}

// EndNow ends a live drop immediately, stamping end_time with the current
// instant.
func (s *LifecycleService) EndNow(ctx context.Context, dropID string) (domain.Drop, error) {
	if dropID == "" {
		return domain.Drop{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var result domain.Drop

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		drop, err := s.repo.GetDropForUpdate(txCtx, dropID)
		if err != nil {
			return err
		}
		// VIP early access counts as live here: sales may already exist.
		phase := drop.PhaseAt(now, true)
		if phase != domain.PhaseLive && phase != domain.PhaseVIPLive {
			return domain.ErrInvalidTransition
		}
		if err := s.repo.UpdateDropStatus(txCtx, dropID, domain.DropStatusEnded, &now); err != nil {
			return err
		}
		drop.Status = domain.DropStatusEnded
		drop.EndTime = &now
		result = drop
		return nil
	})
	if err != nil {
		return domain.Drop{}, err
	}
	return result, nil
}
