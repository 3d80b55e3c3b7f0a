package activity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresWriter appends entries to the activity_logs table.
type PostgresWriter struct {
	db *pgxpool.Pool
}

// NewPostgresWriter connects to dsn and creates the table if missing.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	if dsn == "" {
		return nil, errors.New("activity database url is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect activity database: %w", err)
	}
	w := &PostgresWriter{db: pool}
	if err := w.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return w, nil
}

func (w *PostgresWriter) ensureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS activity_logs (
  id bigserial PRIMARY KEY,
  username text NOT NULL,
  action text NOT NULL,
  details text,
  timestamp timestamptz NOT NULL DEFAULT now()
);
`
	if _, err := w.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create activity_logs: %w", err)
	}
	return nil
}

func (w *PostgresWriter) Write(ctx context.Context, e Entry) error {
	_, err := w.db.Exec(ctx,
		`INSERT INTO activity_logs (username, action, details, timestamp) VALUES ($1, $2, $3, $4)`,
		e.Username, e.Action, e.Details, e.Timestamp)
	return err
}

// Recent returns up to limit entries, newest first.
func (w *PostgresWriter) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := w.db.Query(ctx,
		`SELECT username, action, COALESCE(details, ''), timestamp FROM activity_logs ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Username, &e.Action, &e.Details, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (w *PostgresWriter) Close() {
	w.db.Close()
}
