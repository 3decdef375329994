package sheet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
)

// PostgresStore keeps tables in the sheet_tables / sheet_rows schema created by the embedded
// migrations. Cells are stored as a jsonb array per row; append order is the bigserial id.
type PostgresStore struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewPostgresStore wraps an open database handle. The store owns db and closes it on Close.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenTable registers the table and writes its header row the first time it is seen.
// Concurrent openers of the same name serialize on a transaction-scoped advisory lock.
func (s *PostgresStore) OpenTable(ctx context.Context, name string, header []string) (Table, error) {
	if len(header) == 0 {
		return nil, ErrEmptyHeader
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, name); err != nil {
		return nil, fmt.Errorf("lock table %s: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO sheet_tables (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		if err := insertRow(ctx, tx, name, header); err != nil {
			return nil, fmt.Errorf("write header for %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &postgresTable{store: s, name: name}, nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Close closes the underlying database handle. Safe to call more than once.
func (s *PostgresStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

type postgresTable struct {
	store *PostgresStore
	name  string
}

func (t *postgresTable) Name() string { return t.name }

func (t *postgresTable) Append(ctx context.Context, row []string) error {
	if t.store.closed.Load() {
		return ErrClosed
	}
	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := requireTable(ctx, tx, t.name); err != nil {
		return err
	}
	if err := insertRow(ctx, tx, t.name, row); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *postgresTable) AppendCounted(ctx context.Context, build func(rowCount int) []string) error {
	if t.store.closed.Load() {
		return ErrClosed
	}
	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, t.name); err != nil {
		return fmt.Errorf("lock table %s: %w", t.name, err)
	}
	if err := requireTable(ctx, tx, t.name); err != nil {
		return err
	}
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM sheet_rows WHERE table_name = $1`, t.name).Scan(&count); err != nil {
		return fmt.Errorf("count rows in %s: %w", t.name, err)
	}
	if err := insertRow(ctx, tx, t.name, build(count)); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *postgresTable) Values(ctx context.Context) ([][]string, error) {
	if t.store.closed.Load() {
		return nil, ErrClosed
	}
	var exists bool
	if err := t.store.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sheet_tables WHERE name = $1)`, t.name).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrTableNotFound
	}
	rows, err := t.store.db.QueryContext(ctx,
		`SELECT cells FROM sheet_rows WHERE table_name = $1 ORDER BY id`, t.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var cells []string
		if err := json.Unmarshal(raw, &cells); err != nil {
			return nil, fmt.Errorf("decode row of %s: %w", t.name, err)
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

func requireTable(ctx context.Context, tx *sql.Tx, name string) error {
	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sheet_tables WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrTableNotFound
	}
	return nil
}

func insertRow(ctx context.Context, tx *sql.Tx, name string, row []string) error {
	if row == nil {
		return errors.New("sheet: row must not be nil")
	}
	cells, err := json.Marshal(row)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sheet_rows (table_name, cells) VALUES ($1, $2::jsonb)`, name, string(cells))
	return err
}
