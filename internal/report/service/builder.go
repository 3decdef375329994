// Package service builds the student report by joining the three record tables.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	recorddomain "github.com/Starlight90415/O-quvbot/internal/records/domain"
	"github.com/Starlight90415/O-quvbot/internal/report/domain"
)

// RecordReader is the read side of the records repository.
type RecordReader interface {
	ListAttendance(ctx context.Context) ([]recorddomain.Attendance, error)
	ListStudents(ctx context.Context) ([]recorddomain.Student, error)
	ListPayments(ctx context.Context) ([]recorddomain.Payment, error)
}

// Reconnector rebuilds the store connection. *sheet.Conn implements it.
type Reconnector interface {
	Generation() uint64
	Reconnect(ctx context.Context, seenGen uint64) error
}

// AttendanceKey picks the students column matched against attendance User ID.
type AttendanceKey func(s *recorddomain.Student) string

// ByRegisteringUser counts attendance of the chat user who registered the student. It is the
// default; an attendance row carries only the chat user.
func ByRegisteringUser(s *recorddomain.Student) string { return s.RegisteredBy }

// ByStudentID counts attendance rows whose User ID equals the student id.
func ByStudentID(s *recorddomain.Student) string { return s.ID }

// Option configures a Builder.
type Option func(*Builder)

// WithAttendanceKey overrides ByRegisteringUser.
func WithAttendanceKey(k AttendanceKey) Option {
	return func(b *Builder) {
		if k != nil {
			b.key = k
		}
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// Builder produces the student report. It reads every table in full on each call.
type Builder struct {
	reader RecordReader
	conn   Reconnector
	key    AttendanceKey
	log    *zap.Logger
	tracer trace.Tracer
}

// NewBuilder returns a Builder reading through reader.
func NewBuilder(reader RecordReader, conn Reconnector, opts ...Option) *Builder {
	b := &Builder{
		reader: reader,
		conn:   conn,
		key:    ByRegisteringUser,
		log:    zap.NewNop(),
		tracer: otel.Tracer("github.com/Starlight90415/O-quvbot/internal/report"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns one summary per students row with a non-empty ID, in table order. An empty
// students table yields nil and no error. When any read fails the connection is rebuilt once
// and the whole report is built again from scratch.
func (b *Builder) Build(ctx context.Context) ([]domain.StudentSummary, error) {
	ctx, span := b.tracer.Start(ctx, "report.Build")
	defer span.End()

	gen := b.conn.Generation()
	out, err := b.build(ctx)
	if err == nil {
		span.SetAttributes(attribute.Int("students", len(out)))
		return out, nil
	}
	b.log.Warn("report read failed, reconnecting", zap.Uint64("generation", gen), zap.Error(err))

	if rerr := b.conn.Reconnect(ctx, gen); rerr != nil {
		err = fmt.Errorf("build report: %w", errors.Join(err, rerr))
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconnect failed")
		return nil, err
	}
	out, err = b.build(ctx)
	if err != nil {
		err = fmt.Errorf("build report after reconnect: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "report failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("students", len(out)))
	return out, nil
}

func (b *Builder) build(ctx context.Context) ([]domain.StudentSummary, error) {
	students, err := b.reader.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	attendance, err := b.reader.ListAttendance(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := b.reader.ListPayments(ctx)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, nil
	}

	attendanceByUser := make(map[string]int, len(attendance))
	for i := range attendance {
		attendanceByUser[attendance[i].UserID]++
	}
	// Later rows overwrite earlier ones: the latest payment is the last one appended.
	lastPayment := make(map[string]*recorddomain.Payment, len(payments))
	for i := range payments {
		lastPayment[payments[i].StudentID] = &payments[i]
	}

	out := make([]domain.StudentSummary, 0, len(students))
	for i := range students {
		s := &students[i]
		if s.ID == "" {
			continue
		}
		sum := domain.StudentSummary{
			ID:              s.ID,
			Name:            orUnknown(s.Name),
			Subject:         orUnknown(s.Subject),
			AttendanceCount: attendanceByUser[b.key(s)],
			LastPayment:     domain.NotAvailable,
			PaymentDate:     domain.NotAvailable,
		}
		if p, ok := lastPayment[s.ID]; ok {
			if p.Amount != "" {
				sum.LastPayment = p.Amount
			}
			sum.PaymentDate = p.PaymentDate
		}
		out = append(out, sum)
	}
	return out, nil
}

func orUnknown(v string) string {
	if v == "" {
		return domain.Unknown
	}
	return v
}
