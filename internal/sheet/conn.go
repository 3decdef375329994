package sheet

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Dialer establishes a fresh Store. Conn calls it on first use and on every reconnect.
type Dialer func(ctx context.Context) (Store, error)

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithLogger sets the logger used for connection lifecycle messages.
func WithLogger(l *zap.Logger) ConnOption {
	return func(c *Conn) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithReconnectHook registers fn to run after every successful (re)connect.
func WithReconnectHook(fn func()) ConnOption {
	return func(c *Conn) { c.onReconnect = fn }
}

// Conn is the process-wide handle to the table store. It caches opened tables and is rebuilt
// on demand: Reconnect discards the store and every cached table handle, and concurrent
// callers that observed the same generation share a single rebuild.
type Conn struct {
	dial        Dialer
	logger      *zap.Logger
	onReconnect func()

	mu     sync.RWMutex
	store  Store
	gen    uint64
	tables map[string]Table

	group singleflight.Group
}

// NewConn returns a Conn that dials lazily on first use.
func NewConn(dial Dialer, opts ...ConnOption) *Conn {
	c := &Conn{
		dial:   dial,
		logger: zap.NewNop(),
		tables: make(map[string]Table),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generation identifies the current store instance. It is 0 before the first connect and
// increases by one on every rebuild. Pass the value read before an operation to Reconnect.
func (c *Conn) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// Table returns the named table, opening (and creating with header) it on first use.
func (c *Conn) Table(ctx context.Context, name string, header []string) (Table, error) {
	store, gen, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	t, ok := c.tables[name]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err = store.OpenTable(ctx, name, header)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.gen == gen {
		c.tables[name] = t
	}
	c.mu.Unlock()
	return t, nil
}

// Reconnect rebuilds the store unless another caller already did so since seenGen was read.
// Concurrent calls for the same generation run the dialer once and share its result; a call
// for a newer generation never joins the flight of an older one.
func (c *Conn) Reconnect(ctx context.Context, seenGen uint64) error {
	if c.Generation() != seenGen {
		return nil
	}
	_, err, _ := c.group.Do(strconv.FormatUint(seenGen, 10), func() (any, error) {
		if c.Generation() != seenGen {
			return nil, nil
		}
		store, err := c.dial(ctx)
		if err != nil {
			c.logger.Error("table store connect failed", zap.Uint64("generation", seenGen), zap.Error(err))
			return nil, err
		}

		c.mu.Lock()
		old := c.store
		c.store = store
		c.tables = make(map[string]Table)
		c.gen++
		gen := c.gen
		c.mu.Unlock()

		if old != nil && old != store {
			if err := old.Close(); err != nil {
				c.logger.Warn("closing stale table store", zap.Error(err))
			}
		}
		c.logger.Info("connected to table store", zap.Uint64("generation", gen))
		if c.onReconnect != nil && seenGen > 0 {
			c.onReconnect()
		}
		return nil, nil
	})
	return err
}

// Ping checks the current store, connecting first if needed.
func (c *Conn) Ping(ctx context.Context) error {
	store, _, err := c.ensure(ctx)
	if err != nil {
		return err
	}
	return store.Ping(ctx)
}

// Close releases the current store. A later Table or Ping call dials again.
func (c *Conn) Close() error {
	c.mu.Lock()
	store := c.store
	c.store = nil
	c.tables = make(map[string]Table)
	c.gen++
	c.mu.Unlock()
	if store == nil {
		return nil
	}
	return store.Close()
}

func (c *Conn) ensure(ctx context.Context) (Store, uint64, error) {
	c.mu.RLock()
	store, gen := c.store, c.gen
	c.mu.RUnlock()
	if store != nil {
		return store, gen, nil
	}
	if err := c.Reconnect(ctx, gen); err != nil {
		return nil, 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.store == nil {
		return nil, 0, ErrClosed
	}
	return c.store, c.gen, nil
}
