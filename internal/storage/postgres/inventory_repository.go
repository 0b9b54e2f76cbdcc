package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hazeclub/drops-api/internal/domain"
)

type InventoryRepository struct {
	pool *pgxpool.Pool
}

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

func (r *InventoryRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// GetLineForUpdate locks the drop line row. Every reservation check and sale
// commit for a line runs under this lock, which is the serializing primitive
// behind the tryReserve contract.
func (r *InventoryRepository) GetLineForUpdate(ctx context.Context, id string) (domain.DropLine, error) {
	const query = `
SELECT id, drop_id, name, quantity_available, quantity_sold, unit_base_price_cents, created_at
FROM drop_lines
WHERE id = $1
FOR UPDATE`

	var l domain.DropLine
	err := r.queryRow(ctx, query, id).
		Scan(&l.ID, &l.DropID, &l.Name, &l.QuantityAvailable, &l.QuantitySold, &l.UnitBasePriceCents, &l.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.DropLine{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.DropLine{}, domain.ErrLineNotFound
		}
		return domain.DropLine{}, fmt.Errorf("get line for update: %w", err)
	}
	return l, nil
}

func (r *InventoryRepository) GetDrop(ctx context.Context, id string) (domain.Drop, error) {
	query := `SELECT ` + dropColumns + ` FROM drops WHERE id = $1`
	d, err := scanDrop(r.queryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Drop{}, domain.ErrDropNotFound
		}
		return domain.Drop{}, fmt.Errorf("get drop: %w", err)
	}
	return d, nil
}

func (r *InventoryRepository) SumActiveReservations(ctx context.Context, lineID string, now time.Time) (int, error) {
	const query = `
SELECT COALESCE(SUM(quantity), 0)
FROM reservations
WHERE drop_line_id = $1 AND status = 'active' AND expires_at > $2`

	var total int
	if err := r.queryRow(ctx, query, lineID, now).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum active reservations: %w", err)
	}
	return total, nil
}

func (r *InventoryRepository) CreateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, drop_id, drop_line_id, user_id, quantity, status, unit_price_cents, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		res.ID,
		res.DropID,
		res.DropLineID,
		res.UserID,
		res.Quantity,
		res.Status,
		res.UnitPriceCents,
		res.ExpiresAt,
		res.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrLineNotFound
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *InventoryRepository) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	const query = `
SELECT id, drop_id, drop_line_id, user_id, quantity, status, unit_price_cents, expires_at, created_at
FROM reservations
WHERE id = $1
FOR UPDATE`

	var res domain.Reservation
	err := r.queryRow(ctx, query, id).
		Scan(&res.ID, &res.DropID, &res.DropLineID, &res.UserID, &res.Quantity, &res.Status, &res.UnitPriceCents, &res.ExpiresAt, &res.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation for update: %w", err)
	}
	return res, nil
}

func (r *InventoryRepository) UpdateReservationStatus(ctx context.Context, id string, status domain.ReservationStatus) error {
	const stmt = `UPDATE reservations SET status = $2 WHERE id = $1`
	tag, err := r.exec(ctx, stmt, id, status)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

// IncrementSold bumps quantity_sold with the invariant in the predicate:
// the update refuses to push sold past available even if a caller slips
// through the service-level check.
func (r *InventoryRepository) IncrementSold(ctx context.Context, lineID string, qty int) error {
	const stmt = `
UPDATE drop_lines
SET quantity_sold = quantity_sold + $2
WHERE id = $1 AND quantity_sold + $2 <= quantity_available`

	tag, err := r.exec(ctx, stmt, lineID, qty)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInsufficientInventory
		}
		return fmt.Errorf("increment sold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientInventory
	}
	return nil
}

func (r *InventoryRepository) FindOrderByReservation(ctx context.Context, reservationID string) (*domain.Order, error) {
	const query = `
SELECT id, reservation_id, drop_id, drop_line_id, user_id, quantity, unit_price_cents, total_cents, idempotency_key, created_at
FROM orders
WHERE reservation_id = $1`

	var o domain.Order
	err := r.queryRow(ctx, query, reservationID).
		Scan(&o.ID, &o.ReservationID, &o.DropID, &o.DropLineID, &o.UserID, &o.Quantity, &o.UnitPriceCents, &o.TotalCents, &o.IdempotencyKey, &o.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find order by reservation: %w", err)
	}
	return &o, nil
}

func (r *InventoryRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	const stmt = `
INSERT INTO orders (id, reservation_id, drop_id, drop_line_id, user_id, quantity, unit_price_cents, total_cents, idempotency_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.exec(ctx, stmt,
		order.ID,
		order.ReservationID,
		order.DropID,
		order.DropLineID,
		order.UserID,
		order.Quantity,
		order.UnitPriceCents,
		order.TotalCents,
		order.IdempotencyKey,
		order.CreatedAt,
	)
	if err != nil {
		// reservation_id is unique: a concurrent confirm already committed.
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *InventoryRepository) HasActiveTurn(ctx context.Context, dropID, userID string, now time.Time) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1 FROM queue_entries
	WHERE drop_id = $1 AND user_id = $2 AND status = 'active' AND expires_at > $3
)`

	var ok bool
	if err := r.queryRow(ctx, query, dropID, userID, now).Scan(&ok); err != nil {
		return false, fmt.Errorf("check active turn: %w", err)
	}
	return ok, nil
}

func (r *InventoryRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *InventoryRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
