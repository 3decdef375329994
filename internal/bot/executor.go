package bot

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrExecutorClosed is returned by Submit after Shutdown has started.
var ErrExecutorClosed = errors.New("bot: executor closed")

// Executor runs tasks serially per key and concurrently across keys. Each key with pending
// work has one goroutine draining its queue; the goroutine exits when the queue is empty.
type Executor struct {
	log *zap.Logger

	mu     sync.Mutex
	queues map[string]*taskQueue
	closed bool
	wg     sync.WaitGroup
}

type taskQueue struct {
	tasks []func()
}

// NewExecutor returns an idle Executor.
func NewExecutor(log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{log: log, queues: make(map[string]*taskQueue)}
}

// Submit queues task behind earlier tasks of the same key.
func (e *Executor) Submit(key string, task func()) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrExecutorClosed
	}
	if q, ok := e.queues[key]; ok {
		q.tasks = append(q.tasks, task)
		e.mu.Unlock()
		return nil
	}
	q := &taskQueue{tasks: []func(){task}}
	e.queues[key] = q
	e.wg.Add(1)
	e.mu.Unlock()

	go e.drain(key, q)
	return nil
}

func (e *Executor) drain(key string, q *taskQueue) {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		if len(q.tasks) == 0 {
			delete(e.queues, key)
			e.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		e.mu.Unlock()

		e.run(key, task)
	}
}

func (e *Executor) run(key string, task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("executor task panicked", zap.String("key", key), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	task()
}

// Pending returns the number of keys with queued or running work.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queues)
}

// Shutdown stops accepting tasks and waits for queued ones to finish or ctx to end.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
