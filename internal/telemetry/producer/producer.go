// Package producer publishes record events to a message broker.
package producer

import (
	"context"

	"github.com/Starlight90415/O-quvbot/internal/telemetry/domain"
)

// Producer emits record events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call from a goroutine if needed.
	Emit(ctx context.Context, event *domain.RecordEvent) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}

var _ Producer = (*KafkaProducer)(nil)

// New returns the Kafka producer for topic, or a nil Producer when brokers or topic are unset.
func New(brokers []string, topic string) (Producer, error) {
	p, err := NewKafkaProducer(brokers, topic)
	if err != nil || p == nil {
		return nil, err
	}
	return p, nil
}
