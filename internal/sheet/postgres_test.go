package sheet

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Starlight90415/O-quvbot/internal/db"
	"github.com/Starlight90415/O-quvbot/internal/db/migrate"
)

// newPostgresStore migrates DATABASE_URL and returns a store plus a raw handle for assertions.
// Skips when DATABASE_URL is unset.
func newPostgresStore(t *testing.T) (*PostgresStore, *sql.DB) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	if err := migrate.Run(dsn, migrate.Up, zap.NewNop()); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	ctx := context.Background()
	storeDB, err := db.Open(ctx, dsn)
	if err != nil {
		t.Skipf("Database connection failed (expected in test environment): %v", err)
	}
	rawDB, err := db.Open(ctx, dsn)
	if err != nil {
		_ = storeDB.Close()
		t.Fatalf("second Open: %v", err)
	}
	store := NewPostgresStore(storeDB)
	t.Cleanup(func() {
		_ = store.Close()
		_ = rawDB.Close()
	})
	return store, rawDB
}

// uniqueTable returns a fresh table name that is dropped when the test ends.
func uniqueTable(t *testing.T, raw *sql.DB) string {
	t.Helper()
	name := "test_" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = raw.ExecContext(context.Background(), `DELETE FROM sheet_tables WHERE name = $1`, name)
	})
	return name
}

func TestPostgresStore_OpenTable_WritesHeaderOnce(t *testing.T) {
	store, raw := newPostgresStore(t)
	ctx := context.Background()
	name := uniqueTable(t, raw)

	tbl, err := store.OpenTable(ctx, name, testHeader)
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := store.OpenTable(ctx, name, []string{"other"}); err != nil {
			t.Fatalf("OpenTable again: %v", err)
		}
	}

	values, err := tbl.Values(ctx)
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("len(values) = %d, want 1 (header only)", len(values))
	}
	if values[0][0] != "ID" || values[0][1] != "Name" {
		t.Errorf("header = %v, want %v", values[0], testHeader)
	}
}

func TestPostgresStore_OpenTable_EmptyHeader(t *testing.T) {
	store, _ := newPostgresStore(t)
	if _, err := store.OpenTable(context.Background(), "unused", nil); !errors.Is(err, ErrEmptyHeader) {
		t.Errorf("err = %v, want ErrEmptyHeader", err)
	}
}

func TestPostgresStore_AppendPreservesOrderAndCells(t *testing.T) {
	store, raw := newPostgresStore(t)
	ctx := context.Background()
	tbl, err := store.OpenTable(ctx, uniqueTable(t, raw), testHeader)
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}

	rows := [][]string{
		{"1", "Ali Valiyev"},
		{"2", ""},
		{"3", "O'g'iloy \"Ona tili\" 📚"},
		{"4", "Иван"},
	}
	for _, row := range rows {
		if err := tbl.Append(ctx, row); err != nil {
			t.Fatalf("Append(%v): %v", row, err)
		}
	}

	values, err := tbl.Values(ctx)
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(values) != len(rows)+1 {
		t.Fatalf("len(values) = %d, want %d", len(values), len(rows)+1)
	}
	for i, want := range rows {
		got := values[i+1]
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("row %d = %q, want %q", i, got, want)
		}
	}
}

func TestPostgresStore_AppendCounted_ConcurrentCountsAreDistinct(t *testing.T) {
	store, raw := newPostgresStore(t)
	ctx := context.Background()
	tbl, err := store.OpenTable(ctx, uniqueTable(t, raw), testHeader)
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := tbl.AppendCounted(ctx, func(count int) []string {
				return []string{strconv.Itoa(count), "x"}
			})
			if err != nil {
				t.Errorf("AppendCounted: %v", err)
			}
		}()
	}
	wg.Wait()

	values, err := tbl.Values(ctx)
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(values) != n+1 {
		t.Fatalf("len(values) = %d, want %d", len(values), n+1)
	}
	// Counts include the header, so the data rows carry 1..n in append order.
	for i, row := range values[1:] {
		if want := strconv.Itoa(i + 1); row[0] != want {
			t.Errorf("row %d count = %q, want %q", i, row[0], want)
		}
	}
}

func TestPostgresStore_TableRemoved(t *testing.T) {
	store, raw := newPostgresStore(t)
	ctx := context.Background()
	name := uniqueTable(t, raw)
	tbl, err := store.OpenTable(ctx, name, testHeader)
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	if _, err := raw.ExecContext(ctx, `DELETE FROM sheet_tables WHERE name = $1`, name); err != nil {
		t.Fatalf("delete table: %v", err)
	}

	if err := tbl.Append(ctx, []string{"1", "a"}); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Append err = %v, want ErrTableNotFound", err)
	}
	if err := tbl.AppendCounted(ctx, func(int) []string { return []string{"1", "a"} }); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("AppendCounted err = %v, want ErrTableNotFound", err)
	}
	if _, err := tbl.Values(ctx); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Values err = %v, want ErrTableNotFound", err)
	}
}

func TestPostgresStore_Closed(t *testing.T) {
	store, raw := newPostgresStore(t)
	ctx := context.Background()
	tbl, err := store.OpenTable(ctx, uniqueTable(t, raw), testHeader)
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping err = %v, want ErrClosed", err)
	}
	if err := tbl.Append(ctx, []string{"1", "a"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Append err = %v, want ErrClosed", err)
	}
}
