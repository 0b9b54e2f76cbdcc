package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hazeclub/drops-api/internal/domain"
)

type AdminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

const dropColumns = `id, name, drop_type, status, start_time, end_time, max_quantity, vip_early_access_hours, queue_seq, created_at`

func scanDrop(row pgx.Row) (domain.Drop, error) {
	var d domain.Drop
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Type,
		&d.Status,
		&d.StartTime,
		&d.EndTime,
		&d.MaxQuantity,
		&d.VIPEarlyAccessHours,
		&d.QueueSeq,
		&d.CreatedAt,
	)
	return d, err
}

func (r *AdminRepository) CreateDrop(ctx context.Context, drop domain.Drop) error {
	const stmt = `
INSERT INTO drops (id, name, drop_type, status, start_time, end_time, max_quantity, vip_early_access_hours, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		drop.ID,
		drop.Name,
		drop.Type,
		drop.Status,
		drop.StartTime,
		drop.EndTime,
		drop.MaxQuantity,
		drop.VIPEarlyAccessHours,
		drop.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidSchedule
		}
		return fmt.Errorf("create drop: %w", err)
	}
	return nil
}

func (r *AdminRepository) GetDrop(ctx context.Context, id string) (domain.Drop, error) {
	query := `SELECT ` + dropColumns + ` FROM drops WHERE id = $1`
	d, err := scanDrop(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Drop{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Drop{}, domain.ErrDropNotFound
		}
		return domain.Drop{}, fmt.Errorf("get drop: %w", err)
	}
	return d, nil
}

func (r *AdminRepository) ListDrops(ctx context.Context) ([]domain.Drop, error) {
	query := `SELECT ` + dropColumns + ` FROM drops ORDER BY start_time DESC, created_at DESC`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list drops: %w", err)
	}
	defer rows.Close()

	var drops []domain.Drop
	for rows.Next() {
		d, err := scanDrop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan drop: %w", err)
		}
		drops = append(drops, d)
	}
	return drops, rows.Err()
}

func (r *AdminRepository) CreateDropLine(ctx context.Context, line domain.DropLine) error {
	const stmt = `
INSERT INTO drop_lines (id, drop_id, name, quantity_available, quantity_sold, unit_base_price_cents, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.exec(ctx, stmt,
		line.ID,
		line.DropID,
		line.Name,
		line.QuantityAvailable,
		line.QuantitySold,
		line.UnitBasePriceCents,
		line.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrDropNotFound
		}
		return fmt.Errorf("create drop line: %w", err)
	}
	return nil
}

func (r *AdminRepository) ListLinesByDrop(ctx context.Context, dropID string) ([]domain.DropLine, error) {
	const query = `
SELECT id, drop_id, name, quantity_available, quantity_sold, unit_base_price_cents, created_at
FROM drop_lines
WHERE drop_id = $1
ORDER BY created_at, id`

	rows, err := r.query(ctx, query, dropID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list drop lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.DropLine
	for rows.Next() {
		var l domain.DropLine
		if err := rows.Scan(&l.ID, &l.DropID, &l.Name, &l.QuantityAvailable, &l.QuantitySold, &l.UnitBasePriceCents, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan drop line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *AdminRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *AdminRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *AdminRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
