// Package service persists attendance, registration and payment records with one
// reconnect-and-retry cycle per operation.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Starlight90415/O-quvbot/internal/platform/metrics"
	"github.com/Starlight90415/O-quvbot/internal/records/domain"
	"github.com/Starlight90415/O-quvbot/internal/records/repository"
	"github.com/Starlight90415/O-quvbot/internal/telemetry"
	eventdomain "github.com/Starlight90415/O-quvbot/internal/telemetry/domain"
)

const instrumentationName = "github.com/Starlight90415/O-quvbot/internal/records"

// Reconnector rebuilds the store connection. *sheet.Conn implements it.
type Reconnector interface {
	Generation() uint64
	Reconnect(ctx context.Context, seenGen uint64) error
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// WithEmitter publishes a record event after every successful append.
func WithEmitter(e telemetry.EventEmitter) Option {
	return func(w *Writer) { w.emitter = e }
}

// WithMetrics counts appends by table and result.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Writer) { w.metrics = m }
}

// WithClock overrides the time source used for empty Timestamp fields.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// Writer appends records through repo. On the first failure of an operation it asks conn to
// rebuild the connection (unless someone already did since the attempt started) and retries
// the same append once. A second failure is returned to the caller.
type Writer struct {
	repo    repository.Repository
	conn    Reconnector
	log     *zap.Logger
	emitter telemetry.EventEmitter
	metrics *metrics.Metrics
	now     func() time.Time

	tracer   trace.Tracer
	appended metric.Int64Counter
}

// NewWriter returns a Writer. Traces and the appended counter use the global OTel providers.
func NewWriter(repo repository.Repository, conn Reconnector, opts ...Option) *Writer {
	w := &Writer{
		repo:   repo,
		conn:   conn,
		log:    zap.NewNop(),
		now:    time.Now,
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(w)
	}
	counter, err := otel.Meter(instrumentationName).Int64Counter("oquvbot.records.appended",
		metric.WithDescription("Rows appended to the record tables."))
	if err != nil {
		counter = noop.Int64Counter{}
	}
	w.appended = counter
	return w
}

// RecordAttendance appends one attendance row. Empty Action defaults to "Davomat".
func (w *Writer) RecordAttendance(ctx context.Context, a domain.Attendance) error {
	if a.Action == "" {
		a.Action = domain.ActionAttendance
	}
	at := w.stamp(&a.Timestamp)
	table := w.repo.Names().Attendance
	err := w.do(ctx, "RecordAttendance", table, func(ctx context.Context) error {
		return w.repo.AppendAttendance(ctx, &a)
	})
	if err != nil {
		return err
	}
	w.published(table, eventdomain.ActionAttendance, a.UserID, "", at)
	return nil
}

// RecordStudent appends one student row and returns the id assigned to it. The id is derived
// by the append itself, so a retried append gets a freshly derived id.
func (w *Writer) RecordStudent(ctx context.Context, s domain.Student) (string, error) {
	at := w.stamp(&s.Timestamp)
	table := w.repo.Names().Students
	err := w.do(ctx, "RecordStudent", table, func(ctx context.Context) error {
		return w.repo.AppendStudent(ctx, &s)
	})
	if err != nil {
		return "", err
	}
	w.published(table, eventdomain.ActionRegister, s.RegisteredBy, s.ID, at)
	return s.ID, nil
}

// RecordPayment appends one payment row.
func (w *Writer) RecordPayment(ctx context.Context, p domain.Payment) error {
	at := w.stamp(&p.Timestamp)
	table := w.repo.Names().Payments
	err := w.do(ctx, "RecordPayment", table, func(ctx context.Context) error {
		return w.repo.AppendPayment(ctx, &p)
	})
	if err != nil {
		return err
	}
	w.published(table, eventdomain.ActionPayment, p.RecordedBy, p.StudentID, at)
	return nil
}

// stamp fills an empty timestamp from the clock and returns the instant used.
func (w *Writer) stamp(ts *string) time.Time {
	now := w.now()
	if *ts == "" {
		*ts = domain.FormatTimestamp(now)
	}
	return now
}

func (w *Writer) do(ctx context.Context, op, table string, fn func(context.Context) error) error {
	ctx, span := w.tracer.Start(ctx, "records."+op, trace.WithAttributes(attribute.String("table", table)))
	defer span.End()

	err := w.withRetry(ctx, op, table, fn)
	w.metrics.RecordWrite(table, err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return err
	}
	w.appended.Add(ctx, 1, metric.WithAttributes(attribute.String("table", table)))
	return nil
}

func (w *Writer) withRetry(ctx context.Context, op, table string, fn func(context.Context) error) error {
	gen := w.conn.Generation()
	err := fn(ctx)
	if err == nil {
		return nil
	}
	w.log.Warn("append failed, reconnecting",
		zap.String("op", op), zap.String("table", table), zap.Uint64("generation", gen), zap.Error(err))

	if rerr := w.conn.Reconnect(ctx, gen); rerr != nil {
		w.log.Error("reconnect failed", zap.String("op", op), zap.Error(rerr))
		return fmt.Errorf("%s: %w", op, errors.Join(err, rerr))
	}
	trace.SpanFromContext(ctx).AddEvent("retry after reconnect")

	if err := fn(ctx); err != nil {
		w.log.Error("append failed after reconnect",
			zap.String("op", op), zap.String("table", table), zap.Error(err))
		return fmt.Errorf("%s after reconnect: %w", op, err)
	}
	w.log.Info("append succeeded after reconnect", zap.String("op", op), zap.String("table", table))
	return nil
}

func (w *Writer) published(table, action, userID, studentID string, at time.Time) {
	telemetry.EmitAsync(w.emitter, eventdomain.NewRecordEvent(table, action, userID, studentID, at), w.log)
}
