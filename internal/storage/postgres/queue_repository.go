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

type QueueRepository struct {
	pool *pgxpool.Pool
}

func NewQueueRepository(pool *pgxpool.Pool) *QueueRepository {
	return &QueueRepository{pool: pool}
}

func (r *QueueRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// GetDropForUpdate locks the drop row for the duration of the transaction.
// The row lock is what linearizes queue mutation per drop.
func (r *QueueRepository) GetDropForUpdate(ctx context.Context, id string) (domain.Drop, error) {
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

// NextQueuePosition bumps the drop's position sequence atomically. Positions
// come from this single counter rather than counting rows, so concurrent
// joins can never mint duplicates.
func (r *QueueRepository) NextQueuePosition(ctx context.Context, dropID string) (int, error) {
	const stmt = `UPDATE drops SET queue_seq = queue_seq + 1 WHERE id = $1 RETURNING queue_seq`
	var position int
	if err := r.queryRow(ctx, stmt, dropID).Scan(&position); err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrDropNotFound
		}
		return 0, fmt.Errorf("next queue position: %w", err)
	}
	return position, nil
}

const queueEntryColumns = `id, drop_id, user_id, position, status, expires_at, created_at`

func scanQueueEntry(row pgx.Row) (domain.QueueEntry, error) {
	var e domain.QueueEntry
	err := row.Scan(&e.ID, &e.DropID, &e.UserID, &e.Position, &e.Status, &e.ExpiresAt, &e.CreatedAt)
	return e, err
}

func (r *QueueRepository) FindOpenEntry(ctx context.Context, dropID, userID string) (*domain.QueueEntry, error) {
	query := `
SELECT ` + queueEntryColumns + `
FROM queue_entries
WHERE drop_id = $1 AND user_id = $2 AND status IN ('waiting', 'active')`

	e, err := scanQueueEntry(r.queryRow(ctx, query, dropID, userID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find open entry: %w", err)
	}
	return &e, nil
}

func (r *QueueRepository) LatestEntry(ctx context.Context, dropID, userID string) (*domain.QueueEntry, error) {
	query := `
SELECT ` + queueEntryColumns + `
FROM queue_entries
WHERE drop_id = $1 AND user_id = $2
ORDER BY position DESC
LIMIT 1`

	e, err := scanQueueEntry(r.queryRow(ctx, query, dropID, userID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest entry: %w", err)
	}
	return &e, nil
}

func (r *QueueRepository) CreateEntry(ctx context.Context, entry domain.QueueEntry) error {
	const stmt = `
INSERT INTO queue_entries (id, drop_id, user_id, position, status, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.exec(ctx, stmt,
		entry.ID,
		entry.DropID,
		entry.UserID,
		entry.Position,
		entry.Status,
		entry.ExpiresAt,
		entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyQueued
		}
		if isForeignKeyViolation(err) {
			return domain.ErrDropNotFound
		}
		return fmt.Errorf("create queue entry: %w", err)
	}
	return nil
}

func (r *QueueRepository) CountActive(ctx context.Context, dropID string, now time.Time) (int, error) {
	const query = `
SELECT COUNT(*)
FROM queue_entries
WHERE drop_id = $1 AND status = 'active' AND expires_at > $2`

	var total int
	if err := r.queryRow(ctx, query, dropID, now).Scan(&total); err != nil {
		return 0, fmt.Errorf("count active entries: %w", err)
	}
	return total, nil
}

func (r *QueueRepository) NextWaiting(ctx context.Context, dropID string) (*domain.QueueEntry, error) {
	query := `
SELECT ` + queueEntryColumns + `
FROM queue_entries
WHERE drop_id = $1 AND status = 'waiting'
ORDER BY position
LIMIT 1`

	e, err := scanQueueEntry(r.queryRow(ctx, query, dropID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("next waiting entry: %w", err)
	}
	return &e, nil
}

func (r *QueueRepository) ExpireOverdue(ctx context.Context, dropID string, now time.Time) ([]domain.QueueEntry, error) {
	query := `
UPDATE queue_entries
SET status = 'expired'
WHERE drop_id = $1 AND status = 'active' AND expires_at <= $2
RETURNING ` + queueEntryColumns

	rows, err := r.query(ctx, query, dropID, now)
	if err != nil {
		return nil, fmt.Errorf("expire overdue entries: %w", err)
	}
	defer rows.Close()

	var expired []domain.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired entry: %w", err)
		}
		expired = append(expired, e)
	}
	return expired, rows.Err()
}

func (r *QueueRepository) UpdateEntryStatus(ctx context.Context, entryID string, status domain.QueueEntryStatus, expiresAt *time.Time) error {
	const stmt = `UPDATE queue_entries SET status = $2, expires_at = $3 WHERE id = $1`
	tag, err := r.exec(ctx, stmt, entryID, status, expiresAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update entry status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQueueEntryNotFound
	}
	return nil
}

func (r *QueueRepository) ListGatedLiveDropIDs(ctx context.Context, now time.Time, threshold int) ([]string, error) {
	const query = `
SELECT id
FROM drops
WHERE status IN ('scheduled', 'live')
  AND max_quantity IS NOT NULL AND max_quantity <= $2
  AND (start_time - make_interval(hours => vip_early_access_hours)) <= $1
  AND (end_time IS NULL OR end_time > $1)`

	rows, err := r.query(ctx, query, now, threshold)
	if err != nil {
		return nil, fmt.Errorf("list gated live drops: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan drop id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *QueueRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *QueueRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *QueueRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
