package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hazeclub/drops-api/internal/app"
	"github.com/hazeclub/drops-api/internal/clock"
	"github.com/hazeclub/drops-api/internal/domain"
	"github.com/hazeclub/drops-api/internal/flags"
	"github.com/hazeclub/drops-api/internal/testutil"
)

func testLine(dropID string, available, sold int) domain.DropLine {
	return domain.DropLine{
		ID:                 uuid.NewString(),
		DropID:             dropID,
		Name:               "Dank Hoodie",
		QuantityAvailable:  available,
		QuantitySold:       sold,
		UnitBasePriceCents: 2000,
		CreatedAt:          time.Now().UTC(),
	}
}

func TestInventoryRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewInventoryRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("GetLineForUpdate returns line and ErrLineNotFound", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		now := time.Now().UTC()
		drop := testDrop(now)
		testutil.InsertDrop(t, ctx, pool, drop)
		line := testLine(drop.ID, 100, 10)
		testutil.InsertDropLine(t, ctx, pool, line)

		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			got, err := repo.GetLineForUpdate(txCtx, line.ID)
			if err != nil {
				t.Fatalf("get line: %v", err)
			}
			if got.ID != line.ID || got.QuantityAvailable != 100 || got.QuantitySold != 10 {
				t.Fatalf("unexpected line: %+v", got)
			}

			_, err = repo.GetLineForUpdate(txCtx, uuid.NewString())
			if err != domain.ErrLineNotFound {
				t.Fatalf("expected ErrLineNotFound, got %v", err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("tx failed: %v", err)
		}

		_, err = repo.GetLineForUpdate(ctx, "not-a-uuid")
		if err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID for bad uuid, got %v", err)
		}
	})

	t.Run("SumActiveReservations excludes lapsed holds", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		now := time.Now().UTC()
		drop := testDrop(now)
		testutil.InsertDrop(t, ctx, pool, drop)
		line := testLine(drop.ID, 100, 0)
		testutil.InsertDropLine(t, ctx, pool, line)

		testutil.InsertReservation(t, ctx, pool, domain.Reservation{
			ID: uuid.NewString(), DropID: drop.ID, DropLineID: line.ID, UserID: "user-1",
			Quantity: 3, Status: domain.ReservationActive,
			UnitPriceCents: 2000, ExpiresAt: now.Add(5 * time.Minute), CreatedAt: now,
		})
		testutil.InsertReservation(t, ctx, pool, domain.Reservation{
			ID: uuid.NewString(), DropID: drop.ID, DropLineID: line.ID, UserID: "user-2",
			Quantity: 4, Status: domain.ReservationActive,
			UnitPriceCents: 2000, ExpiresAt: now.Add(-time.Minute), CreatedAt: now,
		})
		testutil.InsertReservation(t, ctx, pool, domain.Reservation{
			ID: uuid.NewString(), DropID: drop.ID, DropLineID: line.ID, UserID: "user-3",
			Quantity: 5, Status: domain.ReservationReleased,
			UnitPriceCents: 2000, ExpiresAt: now.Add(5 * time.Minute), CreatedAt: now,
		})

		held, err := repo.SumActiveReservations(ctx, line.ID, now)
		if err != nil {
			t.Fatalf("sum active: %v", err)
		}
		if held != 3 {
			t.Fatalf("expected 3 held, got %d", held)
		}
	})

	t.Run("IncrementSold refuses to oversell", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		now := time.Now().UTC()
		drop := testDrop(now)
		testutil.InsertDrop(t, ctx, pool, drop)
		line := testLine(drop.ID, 10, 9)
		testutil.InsertDropLine(t, ctx, pool, line)

		if err := repo.IncrementSold(ctx, line.ID, 1); err != nil {
			t.Fatalf("increment to limit: %v", err)
		}
		if err := repo.IncrementSold(ctx, line.ID, 1); err != domain.ErrInsufficientInventory {
			t.Fatalf("expected ErrInsufficientInventory, got %v", err)
		}
	})

	t.Run("CreateOrder enforces one order per reservation", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		now := time.Now().UTC()
		drop := testDrop(now)
		testutil.InsertDrop(t, ctx, pool, drop)
		line := testLine(drop.ID, 100, 0)
		testutil.InsertDropLine(t, ctx, pool, line)

		res := domain.Reservation{
			ID: uuid.NewString(), DropID: drop.ID, DropLineID: line.ID, UserID: "user-1",
			Quantity: 2, Status: domain.ReservationActive,
			UnitPriceCents: 2000, ExpiresAt: now.Add(5 * time.Minute), CreatedAt: now,
		}
		testutil.InsertReservation(t, ctx, pool, res)

		order := domain.Order{
			ID:             uuid.NewString(),
			ReservationID:  res.ID,
			DropID:         drop.ID,
			DropLineID:     line.ID,
			UserID:         "user-1",
			Quantity:       2,
			UnitPriceCents: 2000,
			TotalCents:     4000,
			IdempotencyKey: "idem-1",
			CreatedAt:      now,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			t.Fatalf("create order: %v", err)
		}

		dup := order
		dup.ID = uuid.NewString()
		dup.IdempotencyKey = "idem-2"
		if err := repo.CreateOrder(ctx, dup); err != domain.ErrIdempotencyConflict {
			t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
		}

		found, err := repo.FindOrderByReservation(ctx, res.ID)
		if err != nil {
			t.Fatalf("find order: %v", err)
		}
		if found == nil || found.ID != order.ID || found.IdempotencyKey != "idem-1" {
			t.Fatalf("unexpected order: %+v", found)
		}
	})

	t.Run("HasActiveTurn respects window expiry", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		now := time.Now().UTC()
		drop := testDrop(now)
		testutil.InsertDrop(t, ctx, pool, drop)

		live := now.Add(10 * time.Minute)
		testutil.InsertQueueEntry(t, ctx, pool, domain.QueueEntry{
			ID: uuid.NewString(), DropID: drop.ID, UserID: "user-1",
			Position: 1, Status: domain.QueueEntryActive, ExpiresAt: &live, CreatedAt: now,
		})
		lapsed := now.Add(-time.Minute)
		testutil.InsertQueueEntry(t, ctx, pool, domain.QueueEntry{
			ID: uuid.NewString(), DropID: drop.ID, UserID: "user-2",
			Position: 2, Status: domain.QueueEntryActive, ExpiresAt: &lapsed, CreatedAt: now,
		})

		ok, err := repo.HasActiveTurn(ctx, drop.ID, "user-1", now)
		if err != nil {
			t.Fatalf("has active turn: %v", err)
		}
		if !ok {
			t.Fatal("expected user-1 to have an active turn")
		}

		ok, err = repo.HasActiveTurn(ctx, drop.ID, "user-2", now)
		if err != nil {
			t.Fatalf("has active turn: %v", err)
		}
		if ok {
			t.Fatal("expected lapsed turn to not count")
		}
	})
}

// Racing purchases for the same line are serialized through the line's row
// lock: with more buyers than units, exactly the available quantity sells and
// quantity_sold never crosses quantity_available.
func TestInventoryConcurrentPurchases(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewInventoryRepository(pool)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	now := time.Now().UTC()
	drop := testDrop(now)
	testutil.InsertDrop(t, ctx, pool, drop)
	line := testLine(drop.ID, 5, 0)
	testutil.InsertDropLine(t, ctx, pool, line)

	// Threshold below the drop's max quantity keeps the drop ungated, so
	// buyers hit the ledger directly without queue turns.
	svc := app.NewInventoryService(repo, clock.NewSystem(), nil, nil,
		app.WithInventoryQueueThreshold(50))
	snap := flags.NewStatic(flags.Defaults()).Current()

	const buyers = 8
	errs := make(chan error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", n)
			res, err := svc.Reserve(ctx, snap, app.ReserveInput{
				DropLineID: line.ID, UserID: user, Quantity: 1,
			})
			if err != nil {
				errs <- err
				return
			}
			_, err = svc.Confirm(ctx, snap, app.ConfirmInput{
				ReservationID:  res.ID,
				UserID:         user,
				IdempotencyKey: "idem-" + user,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch err {
		case nil:
			succeeded++
		case domain.ErrInsufficientInventory:
		default:
			t.Fatalf("unexpected purchase error: %v", err)
		}
	}
	if succeeded != 5 {
		t.Fatalf("expected 5 purchases to land, got %d", succeeded)
	}

	var sold, available int
	err := pool.QueryRow(ctx, `SELECT quantity_sold, quantity_available FROM drop_lines WHERE id = $1`, line.ID).
		Scan(&sold, &available)
	if err != nil {
		t.Fatalf("read counters: %v", err)
	}
	if sold != succeeded {
		t.Fatalf("quantity_sold = %d, want %d", sold, succeeded)
	}
	if sold > available {
		t.Fatalf("oversold: %d of %d", sold, available)
	}

	var orders int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE drop_line_id = $1`, line.ID).Scan(&orders); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != succeeded {
		t.Fatalf("expected %d orders, got %d", succeeded, orders)
	}
}
