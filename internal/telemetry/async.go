package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Starlight90415/O-quvbot/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long cmd/server waits after the bot stops before shutting down
// the producers, so in-flight async emits can finish. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the chat update is not blocked.
// emitter and event may be nil; EmitAsync then returns without starting a goroutine.
// The goroutine uses context.Background() so cancelling the update does not abort the emit.
func EmitAsync(emitter EventEmitter, event *domain.RecordEvent, log *zap.Logger) {
	if emitter == nil || event == nil {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Warn("record event emit failed",
				zap.String("event_id", event.ID),
				zap.String("table", event.Table),
				zap.Error(err))
		}
	}()
}
