package app

import (
	"context"
	"testing"
	"time"

	"github.com/hazeclub/drops-api/internal/clock"
	"github.com/hazeclub/drops-api/internal/domain"
)

func TestLifecycleService_Publish(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("publishes draft with future start", func(t *testing.T) {
		repo := newFakeLifecycleRepo(domain.Drop{ID: "drop-1", Status: domain.DropStatusDraft, StartTime: now.Add(time.Hour)})
		svc := NewLifecycleService(repo, clock.NewFixed(now))

		drop, err := svc.Publish(context.Background(), "drop-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if drop.Status != domain.DropStatusScheduled {
			t.Fatalf("expected status scheduled, got %s", drop.Status)
		}
		if repo.drops["drop-1"].Status != domain.DropStatusScheduled {
			t.Fatalf("expected stored status scheduled, got %s", repo.drops["drop-1"].Status)
		}
	})

	t.Run("rejects publish with past start", func(t *testing.T) {
		repo := newFakeLifecycleRepo(domain.Drop{ID: "drop-1", Status: domain.DropStatusDraft, StartTime: now.Add(-time.Hour)})
		svc := NewLifecycleService(repo, clock.NewFixed(now))

		if _, err := svc.Publish(context.Background(), "drop-1"); err != domain.ErrInvalidSchedule {
			t.Fatalf("expected ErrInvalidSchedule, got %v", err)
		}
	})

	t.Run("rejects publish of non-draft", func(t *testing.T) {
		repo := newFakeLifecycleRepo(domain.Drop{ID: "drop-1", Status: domain.DropStatusScheduled, StartTime: now.Add(time.Hour)})
		svc := NewLifecycleService(repo, clock.NewFixed(now))

		if _, err := svc.Publish(context.Background(), "drop-1"); err != domain.ErrInvalidTransition {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("unknown drop", func(t *testing.T) {
		repo := newFakeLifecycleRepo()
		svc := NewLifecycleService(repo, clock.NewFixed(now))

		if _, err := svc.Publish(context.Background(), "nope"); err != domain.ErrDropNotFound {
			t.Fatalf("expected ErrDropNotFound, got %v", err)
		}
	})
}

func TestLifecycleService_Unpublish(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("unpublishes scheduled drop without activity", func(t *testing.T) {
		repo := newFakeLifecycleRepo(domain.Drop{ID: "drop-1", Status: domain.DropStatusScheduled, StartTime: now.Add(time.Hour)})
		svc := NewLifecycleService(repo, clock.NewFixed(now))

		drop, err := svc.Unpublish(context.Background(), "drop-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if drop.Status != domain.DropStatusDraft {
			t.Fatalf("expected status draft, got %s", drop.Status)
		}
	})

	t.Run("rejects unpublish once queue entries exist", func(t *testing.T) {
		repo := newFakeLifecycleRepo(domain.Drop{ID: "drop-1", Status: domain.DropStatusScheduled, StartTime: now.Add(time.Hour)})
		repo.queueEntries["drop-1"] = 3
		svc := NewLifecycleService(repo, clock.NewFixed(now))

		if _, err := svc.Unpublish(context.Background(), "drop-1"); err != domain.ErrConflict {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		if repo.drops["drop-1"].Status != domain.DropStatusScheduled {
			t.Fatalf("status must not change on rejection")
		}
	})

	t.Run("rejects unpublish once sales exist", func(t *testing.T) {
		repo := newFakeLifecycleRepo(domain.Drop{ID: "drop-1", Status: domain.DropStatusScheduled, StartTime: now.Add(-time.Hour)})
		repo.orders["drop-1"] = 1
		svc := NewLifecycleService(repo, clock.NewFixed(now))

		if _, err := svc.Unpublish(context.Background(), "drop-1"); err != domain.ErrConflict {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("rejects unpublish of draft", func(t *testing.T) {
		repo := newFakeLifecycleRepo(domain.Drop{ID: "drop-1", Status: domain.DropStatusDraft, StartTime: now.Add(time.Hour)})
		svc := NewLifecycleService(repo, clock.NewFixed(now))

		if _, err := svc.Unpublish(context.Background(), "drop-1"); err != domain.ErrInvalidTransition {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestLifecycleService_EndNow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("ends a live drop", func(t *testing.T) {
		repo := newFakeLifecycleRepo(domain.Drop{ID: "drop-1", Status: domain.DropStatusScheduled, StartTime: now.Add(-time.Hour)})
		svc := NewLifecycleService(repo, clock.NewFixed(now))

		drop, err := svc.EndNow(context.Background(), "drop-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if drop.Status != domain.DropStatusEnded {
			t.Fatalf("expected status ended, got %s", drop.Status)
		}
		if drop.EndTime == nil || !drop.EndTime.Equal(now) {
			t.Fatalf("expected end_time %v, got %v", now, drop.EndTime)
		}
	})

	t.Run("ends a drop in vip early access", func(t *testing.T) {
		repo := newFakeLifecycleRepo(domain.Drop{
			ID: "drop-1", Status: domain.DropStatusScheduled,
			StartTime: now.Add(12 * time.Hour), VIPEarlyAccessHours: 24,
		})
		svc := NewLifecycleService(repo, clock.NewFixed(now))

		if _, err := svc.EndNow(context.Background(), "drop-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("rejects ending a scheduled drop", func(t *testing.T) {
		repo := newFakeLifecycleRepo(domain.Drop{ID: "drop-1", Status: domain.DropStatusScheduled, StartTime: now.Add(time.Hour)})
		svc := NewLifecycleService(repo, clock.NewFixed(now))

		if _, err := svc.EndNow(context.Background(), "drop-1"); err != domain.ErrInvalidTransition {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("rejects ending twice", func(t *testing.T) {
		repo := newFakeLifecycleRepo(domain.Drop{ID: "drop-1", Status: domain.DropStatusEnded, StartTime: now.Add(-time.Hour)})
		svc := NewLifecycleService(repo, clock.NewFixed(now))

		if _, err := svc.EndNow(context.Background(), "drop-1"); err != domain.ErrInvalidTransition {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

type fakeLifecycleRepo struct {
	drops        map[string]domain.Drop
	queueEntries map[string]int
	orders       map[string]int
}

func newFakeLifecycleRepo(drops ...domain.Drop) *fakeLifecycleRepo {
	m := make(map[string]domain.Drop)
	for _, d := range drops {
		m[d.ID] = d
	}
	return &fakeLifecycleRepo{
		drops:        m,
		queueEntries: make(map[string]int),
		orders:       make(map[string]int),
	}
}

func (f *fakeLifecycleRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeLifecycleRepo) GetDropForUpdate(_ context.Context, id string) (domain.Drop, error) {
	drop, ok := f.drops[id]
	if !ok {
		return domain.Drop{}, domain.ErrDropNotFound
	}
	return drop, nil
}

func (f *fakeLifecycleRepo) UpdateDropStatus(_ context.Context, id string, status domain.DropStatus, endTime *time.Time) error {
	drop, ok := f.drops[id]
	if !ok {
		return domain.ErrDropNotFound
	}
	drop.Status = status
	drop.EndTime = endTime
	f.drops[id] = drop
	return nil
}

func (f *fakeLifecycleRepo) CountQueueEntries(_ context.Context, dropID string) (int, error) {
	return f.queueEntries[dropID], nil
}

func (f *fakeLifecycleRepo) CountOrders(_ context.Context, dropID string) (int, error) {
	return f.orders[dropID], nil
}
