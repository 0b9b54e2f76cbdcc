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

type LifecycleRepository struct {
	pool *pgxpool.Pool
}

func NewLifecycleRepository(pool *pgxpool.Pool) *LifecycleRepository {
	return &LifecycleRepository{pool: pool}
}

func (r *LifecycleRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *LifecycleRepository) GetDropForUpdate(ctx context.Context, id string) (domain.Drop, error) {
	query := `SELECT ` + dropColumns + ` FROM drops WHERE id = $1 FOR UPDATE`
	d, err := scanDrop(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Drop{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Drop{}, domain.ErrDropNotFound
		}
		return domain.Drop{}, fmt.Errorf("get drop for update: %w", err)
	}
	return d, nil
}

func (r *LifecycleRepository) UpdateDropStatus(ctx context.Context, id string, status domain.DropStatus, endTime *time.Time) error {
	const stmt = `UPDATE drops SET status = $2, end_time = $3 WHERE id = $1`
	tag, err := r.exec(ctx, stmt, id, status, endTime)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update drop status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDropNotFound
	}
	return nil
}

func (r *LifecycleRepository) CountQueueEntries(ctx context.Context, dropID string) (int, error) {
	const query = `SELECT COUNT(*) FROM queue_entries WHERE drop_id = $1`
	var total int
	if err := r.queryRow(ctx, query, dropID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count queue entries: %w", err)
	}
	return total, nil
}

func (r *LifecycleRepository) CountOrders(ctx context.Context, dropID string) (int, error) {
	const query = `SELECT COUNT(*) FROM orders WHERE drop_id = $1`
	var total int
	if err := r.queryRow(ctx, query, dropID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return total, nil
}

func (r *LifecycleRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *LifecycleRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
