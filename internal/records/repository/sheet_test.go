package repository

import (
	"context"
	"testing"

	"github.com/Starlight90415/O-quvbot/internal/records/domain"
	"github.com/Starlight90415/O-quvbot/internal/sheet"
)

func newTestRepo() (*SheetRepository, *sheet.MemoryStore) {
	mem := sheet.NewMemoryStore()
	conn := sheet.NewConn(func(context.Context) (sheet.Store, error) { return mem.Reopen(), nil })
	return NewSheetRepository(conn, TableNames{}), mem
}

func TestNewSheetRepository_DefaultNames(t *testing.T) {
	r := NewSheetRepository(nil, TableNames{Students: "oquvchilar"})
	got := r.Names()
	if got.Attendance != domain.AttendanceTable || got.Payments != domain.PaymentsTable {
		t.Errorf("names = %+v, want defaults for unset tables", got)
	}
	if got.Students != "oquvchilar" {
		t.Errorf("students = %q, want oquvchilar", got.Students)
	}
}

func TestAppendStudent_AssignsSequentialIDs(t *testing.T) {
	r, _ := newTestRepo()
	ctx := context.Background()

	for i, want := range []string{"1", "2", "3"} {
		s := &domain.Student{RegisteredBy: "42", Name: "n", Phone: "p", Subject: "s", Timestamp: "ts"}
		if err := r.AppendStudent(ctx, s); err != nil {
			t.Fatalf("AppendStudent #%d: %v", i, err)
		}
		if s.ID != want {
			t.Errorf("student #%d id = %q, want %q", i, s.ID, want)
		}
	}

	students, err := r.ListStudents(ctx)
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	if len(students) != 3 || students[2].ID != "3" || students[0].RegisteredBy != "42" {
		t.Errorf("students = %+v", students)
	}
}

func TestAppendStudent_CallerIDIgnored(t *testing.T) {
	r, _ := newTestRepo()
	s := &domain.Student{ID: "99", Name: "n"}
	if err := r.AppendStudent(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if s.ID != "1" {
		t.Errorf("id = %q, want 1", s.ID)
	}
}

func TestAppendAndListAttendanceAndPayments(t *testing.T) {
	r, _ := newTestRepo()
	ctx := context.Background()

	_ = r.AppendAttendance(ctx, &domain.Attendance{UserID: "7", DisplayName: "ali", Action: domain.ActionAttendance, Timestamp: "t1"})
	_ = r.AppendPayment(ctx, &domain.Payment{RecordedBy: "7", StudentID: "1", PaymentDate: "15.05.2025", Amount: "150000", Timestamp: "t2"})

	att, err := r.ListAttendance(ctx)
	if err != nil || len(att) != 1 || att[0].DisplayName != "ali" || att[0].Action != "Davomat" {
		t.Errorf("attendance = %+v, err = %v", att, err)
	}
	pay, err := r.ListPayments(ctx)
	if err != nil || len(pay) != 1 || pay[0].Amount != "150000" || pay[0].PaymentDate != "15.05.2025" {
		t.Errorf("payments = %+v, err = %v", pay, err)
	}
}

func TestList_EmptyTables(t *testing.T) {
	r, mem := newTestRepo()
	students, err := r.ListStudents(context.Background())
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	if len(students) != 0 {
		t.Errorf("students = %v, want empty", students)
	}
	// Listing creates the table with its header.
	tbl, _ := mem.OpenTable(context.Background(), domain.StudentsTable, domain.StudentsHeader)
	values, _ := tbl.Values(context.Background())
	if len(values) != 1 || values[0][0] != domain.ColID {
		t.Errorf("values = %v, want header only", values)
	}
}

func TestAppend_ClosedStore(t *testing.T) {
	r, mem := newTestRepo()
	ctx := context.Background()
	_ = r.AppendAttendance(ctx, &domain.Attendance{UserID: "1"})
	_ = mem.Close()

	if err := r.AppendAttendance(ctx, &domain.Attendance{UserID: "2"}); err == nil {
		t.Error("AppendAttendance on closed store should fail")
	}
	s := &domain.Student{}
	if err := r.AppendStudent(ctx, s); err == nil {
		t.Error("AppendStudent on closed store should fail")
	}
	if s.ID != "" {
		t.Errorf("failed AppendStudent should not set id, got %q", s.ID)
	}
}
