package service

import (
	"context"
	"errors"
	"testing"

	recorddomain "github.com/Starlight90415/O-quvbot/internal/records/domain"
	"github.com/Starlight90415/O-quvbot/internal/report/domain"
)

// mockReader serves fixed rows and can fail the first N ListStudents calls.
type mockReader struct {
	students   []recorddomain.Student
	attendance []recorddomain.Attendance
	payments   []recorddomain.Payment

	failStudents int
	failPayments int
	calls        map[string]int
}

func (m *mockReader) count(name string) {
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *mockReader) ListStudents(ctx context.Context) ([]recorddomain.Student, error) {
	m.count("students")
	if m.failStudents > 0 {
		m.failStudents--
		return nil, errors.New("stale handle")
	}
	return m.students, nil
}

func (m *mockReader) ListAttendance(ctx context.Context) ([]recorddomain.Attendance, error) {
	m.count("attendance")
	return m.attendance, nil
}

func (m *mockReader) ListPayments(ctx context.Context) ([]recorddomain.Payment, error) {
	m.count("payments")
	if m.failPayments > 0 {
		m.failPayments--
		return nil, errors.New("connection reset")
	}
	return m.payments, nil
}

type mockReconnector struct {
	gen   uint64
	calls int
	err   error
}

func (m *mockReconnector) Generation() uint64 { return m.gen }

func (m *mockReconnector) Reconnect(ctx context.Context, seenGen uint64) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.gen++
	return nil
}

func TestBuild_EmptyStudents(t *testing.T) {
	r := &mockReader{attendance: []recorddomain.Attendance{{UserID: "1"}}}
	out, err := NewBuilder(r, &mockReconnector{}).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("out = %v, want empty", out)
	}
}

func TestBuild_JoinSemantics(t *testing.T) {
	r := &mockReader{
		students: []recorddomain.Student{
			{ID: "1", RegisteredBy: "U", Name: "Ali", Subject: "Fizika"},
			{ID: "", RegisteredBy: "U", Name: "skipped"},
			{ID: "2", RegisteredBy: "V", Name: "Vali", Subject: "Kimyo"},
		},
		attendance: []recorddomain.Attendance{
			{UserID: "U"}, {UserID: "U"}, {UserID: "1"}, {UserID: "W"},
		},
		payments: []recorddomain.Payment{
			{StudentID: "1", PaymentDate: "20.05.2025", Amount: "200000"},
			{StudentID: "1", PaymentDate: "01.01.2020", Amount: "100000"},
			{StudentID: "99", PaymentDate: "x", Amount: "5"},
		},
	}
	out, err := NewBuilder(r, &mockReconnector{}).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []domain.StudentSummary{
		{ID: "1", Name: "Ali", Subject: "Fizika", AttendanceCount: 2, LastPayment: "100000", PaymentDate: "01.01.2020"},
		{ID: "2", Name: "Vali", Subject: "Kimyo", AttendanceCount: 0, LastPayment: domain.NotAvailable, PaymentDate: domain.NotAvailable},
	}
	if len(out) != len(want) {
		t.Fatalf("len(out) = %d, want %d: %+v", len(out), len(want), out)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %+v, want %+v", i, out[i], want[i])
		}
	}
}

func TestBuild_AttendanceAttributedToRegisteringUser(t *testing.T) {
	// Student S registered by user U; U marks attendance twice.
	r := &mockReader{
		students:   []recorddomain.Student{{ID: "1", RegisteredBy: "U", Name: "S"}},
		attendance: []recorddomain.Attendance{{UserID: "U"}, {UserID: "U"}},
	}
	out, _ := NewBuilder(r, &mockReconnector{}).Build(context.Background())
	if out[0].AttendanceCount != 2 {
		t.Errorf("attendance = %d, want 2", out[0].AttendanceCount)
	}

	out, _ = NewBuilder(r, &mockReconnector{}, WithAttendanceKey(ByStudentID)).Build(context.Background())
	if out[0].AttendanceCount != 0 {
		t.Errorf("attendance by student id = %d, want 0", out[0].AttendanceCount)
	}
}

func TestBuild_EmptyAmountAndMissingName(t *testing.T) {
	r := &mockReader{
		students: []recorddomain.Student{{ID: "1"}},
		payments: []recorddomain.Payment{{StudentID: "1", PaymentDate: "15.05.2025"}},
	}
	out, _ := NewBuilder(r, &mockReconnector{}).Build(context.Background())
	if out[0].LastPayment != domain.NotAvailable || out[0].PaymentDate != "15.05.2025" {
		t.Errorf("payment = %q / %q", out[0].LastPayment, out[0].PaymentDate)
	}
	if out[0].Name != domain.Unknown || out[0].Subject != domain.Unknown {
		t.Errorf("name/subject = %q / %q", out[0].Name, out[0].Subject)
	}
}

func TestBuild_RetryRestartsWholeBuild(t *testing.T) {
	r := &mockReader{
		students:     []recorddomain.Student{{ID: "1", Name: "Ali"}},
		failPayments: 1,
	}
	rc := &mockReconnector{gen: 5}
	out, err := NewBuilder(r, rc).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("out = %+v", out)
	}
	if rc.calls != 1 {
		t.Errorf("reconnects = %d, want 1", rc.calls)
	}
	if r.calls["students"] != 2 {
		t.Errorf("students read %d times, want 2 (full restart)", r.calls["students"])
	}
}

func TestBuild_FailsTwice(t *testing.T) {
	r := &mockReader{failStudents: 2}
	rc := &mockReconnector{}
	if _, err := NewBuilder(r, rc).Build(context.Background()); err == nil {
		t.Fatal("Build should fail after second failure")
	}
	if rc.calls != 1 {
		t.Errorf("reconnects = %d, want 1", rc.calls)
	}
}

func TestBuild_ReconnectError(t *testing.T) {
	r := &mockReader{failStudents: 1}
	rc := &mockReconnector{err: errors.New("dial")}
	_, err := NewBuilder(r, rc).Build(context.Background())
	if !errors.Is(err, rc.err) {
		t.Errorf("err = %v, want wrapping reconnect error", err)
	}
	if r.calls["students"] != 1 {
		t.Errorf("students read %d times, want 1", r.calls["students"])
	}
}
