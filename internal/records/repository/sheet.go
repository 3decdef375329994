// Package repository maps record entities onto the append-only table store.
package repository

import (
	"context"
	"fmt"

	"github.com/Starlight90415/O-quvbot/internal/records/domain"
	"github.com/Starlight90415/O-quvbot/internal/sheet"
)

// TableOpener returns a table by name, creating it with header if absent. *sheet.Conn implements it.
type TableOpener interface {
	Table(ctx context.Context, name string, header []string) (sheet.Table, error)
}

// SheetRepository implements Repository on top of a TableOpener. It holds no table handles of
// its own so a reconnect on the opener is picked up by the next call.
type SheetRepository struct {
	tables TableOpener
	names  TableNames
}

// NewSheetRepository returns a repository over tables. Empty names fall back to the defaults.
func NewSheetRepository(tables TableOpener, names TableNames) *SheetRepository {
	def := DefaultTableNames()
	if names.Attendance == "" {
		names.Attendance = def.Attendance
	}
	if names.Students == "" {
		names.Students = def.Students
	}
	if names.Payments == "" {
		names.Payments = def.Payments
	}
	return &SheetRepository{tables: tables, names: names}
}

// Names returns the resolved table names.
func (r *SheetRepository) Names() TableNames {
	return r.names
}

func (r *SheetRepository) attendance(ctx context.Context) (sheet.Table, error) {
	return r.open(ctx, r.names.Attendance, domain.AttendanceHeader)
}

func (r *SheetRepository) students(ctx context.Context) (sheet.Table, error) {
	return r.open(ctx, r.names.Students, domain.StudentsHeader)
}

func (r *SheetRepository) payments(ctx context.Context) (sheet.Table, error) {
	return r.open(ctx, r.names.Payments, domain.PaymentsHeader)
}

func (r *SheetRepository) open(ctx context.Context, name string, header []string) (sheet.Table, error) {
	t, err := r.tables.Table(ctx, name, header)
	if err != nil {
		return nil, fmt.Errorf("open table %s: %w", name, err)
	}
	return t, nil
}

// AppendAttendance appends one attendance row.
func (r *SheetRepository) AppendAttendance(ctx context.Context, a *domain.Attendance) error {
	t, err := r.attendance(ctx)
	if err != nil {
		return err
	}
	return t.Append(ctx, a.Row())
}

// AppendStudent sets s.ID to the id derived from the row count seen by the append itself.
// On error s.ID is left as it was.
func (r *SheetRepository) AppendStudent(ctx context.Context, s *domain.Student) error {
	t, err := r.students(ctx)
	if err != nil {
		return err
	}
	var id string
	err = t.AppendCounted(ctx, func(rowCount int) []string {
		id = domain.StudentIDFromRowCount(rowCount)
		row := *s
		row.ID = id
		return row.Row()
	})
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

// AppendPayment appends one payment row.
func (r *SheetRepository) AppendPayment(ctx context.Context, p *domain.Payment) error {
	t, err := r.payments(ctx)
	if err != nil {
		return err
	}
	return t.Append(ctx, p.Row())
}

// ListAttendance returns every attendance row in table order.
func (r *SheetRepository) ListAttendance(ctx context.Context) ([]domain.Attendance, error) {
	recs, err := r.records(ctx, r.attendance)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Attendance, 0, len(recs))
	for _, rec := range recs {
		out = append(out, domain.Attendance{
			UserID:      rec.Get(domain.ColUserID),
			DisplayName: rec.Get(domain.ColUsername),
			Action:      rec.Get(domain.ColAction),
			Timestamp:   rec.Get(domain.ColTimestamp),
		})
	}
	return out, nil
}

// ListStudents returns every student row in table order.
func (r *SheetRepository) ListStudents(ctx context.Context) ([]domain.Student, error) {
	recs, err := r.records(ctx, r.students)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Student, 0, len(recs))
	for _, rec := range recs {
		out = append(out, domain.Student{
			ID:           rec.Get(domain.ColID),
			RegisteredBy: rec.Get(domain.ColRegisteredBy),
			Name:         rec.Get(domain.ColName),
			Phone:        rec.Get(domain.ColPhone),
			Subject:      rec.Get(domain.ColSubject),
			Timestamp:    rec.Get(domain.ColTimestamp),
		})
	}
	return out, nil
}

// ListPayments returns every payment row in table order.
func (r *SheetRepository) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	recs, err := r.records(ctx, r.payments)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Payment, 0, len(recs))
	for _, rec := range recs {
		out = append(out, domain.Payment{
			RecordedBy:  rec.Get(domain.ColRecordedBy),
			StudentID:   rec.Get(domain.ColStudentID),
			PaymentDate: rec.Get(domain.ColPaymentDate),
			Amount:      rec.Get(domain.ColAmount),
			Timestamp:   rec.Get(domain.ColTimestamp),
		})
	}
	return out, nil
}

func (r *SheetRepository) records(ctx context.Context, open func(context.Context) (sheet.Table, error)) ([]sheet.Record, error) {
	t, err := open(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := sheet.Records(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", t.Name(), err)
	}
	return recs, nil
}
