package repository

import (
	"context"

	"github.com/Starlight90415/O-quvbot/internal/records/domain"
)

// Repository defines persistence for the three record tables.
type Repository interface {
	AppendAttendance(ctx context.Context, a *domain.Attendance) error
	// AppendStudent assigns s.ID from the current row count and appends the row in one step.
	AppendStudent(ctx context.Context, s *domain.Student) error
	AppendPayment(ctx context.Context, p *domain.Payment) error

	ListAttendance(ctx context.Context) ([]domain.Attendance, error)
	ListStudents(ctx context.Context) ([]domain.Student, error)
	ListPayments(ctx context.Context) ([]domain.Payment, error)

	// Names reports which physical table backs each record kind.
	Names() TableNames
}

// TableNames selects the physical table for each record kind.
type TableNames struct {
	Attendance string
	Students   string
	Payments   string
}

// DefaultTableNames returns attendance, students and payments.
func DefaultTableNames() TableNames {
	return TableNames{
		Attendance: domain.AttendanceTable,
		Students:   domain.StudentsTable,
		Payments:   domain.PaymentsTable,
	}
}
