package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/Starlight90415/O-quvbot/internal/telemetry"
	"github.com/Starlight90415/O-quvbot/internal/telemetry/domain"
)

const scopeName = "oquvbot.records"

// logEmitter is the part of otellog.Logger the emitter needs.
type logEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that writes record events as OTel log records.
// A nil provider yields a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(scopeName))
}

// NewEventEmitterWithLogger wraps an existing OTel logger.
func NewEventEmitterWithLogger(logger logEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.RecordEvent) error { return nil }

type otelEmitter struct {
	logger logEmitter
}

func (e *otelEmitter) Emit(ctx context.Context, event *domain.RecordEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue(event.Action + " " + event.Table))
	rec.AddAttributes(
		otellog.String("event_id", event.ID),
		otellog.String("table", event.Table),
		otellog.String("action", event.Action),
		otellog.String("user_id", event.UserID),
	)
	if event.StudentID != "" {
		rec.AddAttributes(otellog.String("student_id", event.StudentID))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
