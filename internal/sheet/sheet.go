// Package sheet is the append-only table store: named tables with a fixed header row,
// rows appended in order and read back either raw or as header-keyed records.
package sheet

import (
	"context"
	"errors"
)

// Sentinel errors returned by stores and Conn.
var (
	ErrClosed        = errors.New("sheet: store is closed")
	ErrTableNotFound = errors.New("sheet: table not found")
	ErrEmptyHeader   = errors.New("sheet: header must not be empty")
)

// Store opens tables. Implementations must be safe for concurrent use.
type Store interface {
	// OpenTable returns the table called name, creating it with header as its first row if absent.
	OpenTable(ctx context.Context, name string, header []string) (Table, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the backend. Tables opened from a closed store return ErrClosed.
	Close() error
}

// Table is one append-only log. Row 0 is the header.
type Table interface {
	Name() string
	// Append adds one row after the current last row.
	Append(ctx context.Context, row []string) error
	// AppendCounted reads the current row count (header included) and appends the row built
	// from it as a single atomic step, so concurrent callers observe distinct counts.
	AppendCounted(ctx context.Context, build func(rowCount int) []string) error
	// Values returns every row including the header, in append order.
	Values(ctx context.Context) ([][]string, error)
}

// Record is a data row keyed by header cell.
type Record map[string]string

// Get returns the cell under key or "" when the row has no such column.
func (r Record) Get(key string) string {
	return r[key]
}

// Records reads a table and converts every data row into a Record keyed by the header row.
// A table holding only its header, or nothing at all, yields no records.
func Records(ctx context.Context, t Table) ([]Record, error) {
	values, err := t.Values(ctx)
	if err != nil {
		return nil, err
	}
	return ToRecords(values), nil
}

// ToRecords converts raw rows (header first) into records. Short rows leave the missing
// columns empty and cells beyond the header are dropped.
func ToRecords(values [][]string) []Record {
	if len(values) < 2 {
		return nil
	}
	header := values[0]
	out := make([]Record, 0, len(values)-1)
	for _, row := range values[1:] {
		rec := make(Record, len(header))
		for i, key := range header {
			if i < len(row) {
				rec[key] = row[i]
			} else {
				rec[key] = ""
			}
		}
		out = append(out, rec)
	}
	return out
}
