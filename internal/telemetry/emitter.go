package telemetry

import (
	"context"
	"errors"

	"github.com/Starlight90415/O-quvbot/internal/telemetry/domain"
)

// EventEmitter publishes record events (Kafka, OTel logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.RecordEvent) error
}

// Multi fans one event out to every non-nil emitter and joins their errors.
type Multi []EventEmitter

// NewMulti drops nil emitters. It returns nil when none remain so EmitAsync becomes a no-op.
func NewMulti(emitters ...EventEmitter) EventEmitter {
	var m Multi
	for _, e := range emitters {
		if e != nil {
			m = append(m, e)
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// Emit calls every emitter even when an earlier one fails.
func (m Multi) Emit(ctx context.Context, event *domain.RecordEvent) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
