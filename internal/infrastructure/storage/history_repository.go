// Package storage keeps the delivery history in Postgres.
package storage

import (
	"context"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
)

// DefaultTable holds one row per confirmed delivery.
const DefaultTable = "deliveries"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// HistoryRepository persists delivery history. The dedup record stays in the state file;
// this table is an audit trail only.
type HistoryRepository struct {
	pool  pool
	table string
}

var _ ports.HistoryRecorder = (*HistoryRepository)(nil)

// NewHistoryRepository connects to dsn and makes sure the table exists.
func NewHistoryRepository(ctx context.Context, dsn, table string) (*HistoryRepository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	repo, err := NewHistoryRepositoryWithPool(p, table)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return repo, nil
}

// NewHistoryRepositoryWithPool wraps an existing pool (used by tests).
func NewHistoryRepositoryWithPool(p pool, table string) (*HistoryRepository, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &HistoryRepository{pool: p, table: table}, nil
}

// EnsureSchema creates the history table if it is missing.
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id       TEXT NOT NULL,
	task         TEXT NOT NULL,
	dedup_key    TEXT NOT NULL,
	category     TEXT NOT NULL,
	destination  TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	delivered_at TIMESTAMPTZ NOT NULL
)`, r.table)
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", r.table, err)
	}
	return nil
}

// Close releases the pool.
func (r *HistoryRepository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// RecordDelivery appends one row.
func (r *HistoryRepository) RecordDelivery(ctx context.Context, d domain.Delivery) error {
	query, args, err := psql.Insert(r.table).
		Columns("run_id", "task", "dedup_key", "category", "destination", "title", "delivered_at").
		Values(d.RunID, d.Task, d.Key, d.Category, d.Destination, d.Title, d.DeliveredAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// RecentDeliveries returns the newest rows first.
func (r *HistoryRepository) RecentDeliveries(ctx context.Context, limit uint64) ([]domain.Delivery, error) {
	query, args, err := psql.
		Select("run_id", "task", "dedup_key", "category", "destination", "title", "delivered_at").
		From(r.table).
		OrderBy("delivered_at DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var out []domain.Delivery
	for rows.Next() {
		var d domain.Delivery
		if err := rows.Scan(&d.RunID, &d.Task, &d.Key, &d.Category, &d.Destination, &d.Title, &d.DeliveredAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}
