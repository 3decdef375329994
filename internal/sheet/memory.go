package sheet

import (
	"context"
	"sync"
)

// MemoryStore keeps tables in process memory. Used by tests and STORE_DRIVER=memory.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][][]string
	closed bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][][]string)}
}

// OpenTable returns the table called name, creating it with header if absent.
func (s *MemoryStore) OpenTable(ctx context.Context, name string, header []string) (Table, error) {
	if len(header) == 0 {
		return nil, ErrEmptyHeader
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.tables[name]; !ok {
		s.tables[name] = [][]string{cloneRow(header)}
	}
	return &memoryTable{store: s, name: name}, nil
}

// Ping fails only once the store is closed.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the store closed. Data is kept so Reopen can hand it to a new Conn generation.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Reopen clears the closed flag; it plays the part of re-dialing for the memory backend.
func (s *MemoryStore) Reopen() *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
	return s
}

type memoryTable struct {
	store *MemoryStore
	name  string
}

func (t *memoryTable) Name() string { return t.name }

func (t *memoryTable) Append(ctx context.Context, row []string) error {
	return t.AppendCounted(ctx, func(int) []string { return row })
}

func (t *memoryTable) AppendCounted(ctx context.Context, build func(rowCount int) []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	rows, ok := s.tables[t.name]
	if !ok {
		return ErrTableNotFound
	}
	s.tables[t.name] = append(rows, cloneRow(build(len(rows))))
	return nil
}

func (t *memoryTable) Values(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := t.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	rows, ok := s.tables[t.name]
	if !ok {
		return nil, ErrTableNotFound
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = cloneRow(r)
	}
	return out, nil
}

func cloneRow(row []string) []string {
	out := make([]string, len(row))
	copy(out, row)
	return out
}
