// Package domain defines the three record kinds kept in the append-only tables and their
// fixed column layout.
package domain

import (
	"strconv"
	"time"
)

// TimestampLayout is the format of every Timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

// ActionAttendance is the Action written by the attendance command.
const ActionAttendance = "Davomat"

// Default table names.
const (
	AttendanceTable = "attendance"
	StudentsTable   = "students"
	PaymentsTable   = "payments"
)

// Column names, also the header cells.
const (
	ColUserID       = "User ID"
	ColUsername     = "Username"
	ColAction       = "Action"
	ColTimestamp    = "Timestamp"
	ColID           = "ID"
	ColRegisteredBy = "Registered By"
	ColName         = "Name"
	ColPhone        = "Phone"
	ColSubject      = "Subject"
	ColRecordedBy   = "Recorded By"
	ColStudentID    = "Student ID"
	ColPaymentDate  = "Payment Date"
	ColAmount       = "Amount"
)

// Header rows written when a table is first created.
var (
	AttendanceHeader = []string{ColUserID, ColUsername, ColAction, ColTimestamp}
	StudentsHeader   = []string{ColID, ColRegisteredBy, ColName, ColPhone, ColSubject, ColTimestamp}
	PaymentsHeader   = []string{ColRecordedBy, ColStudentID, ColPaymentDate, ColAmount, ColTimestamp}
)

// Attendance is one row of the attendance table.
type Attendance struct {
	UserID      string
	DisplayName string
	Action      string
	Timestamp   string
}

// Row returns the cells in header order.
func (a *Attendance) Row() []string {
	return []string{a.UserID, a.DisplayName, a.Action, a.Timestamp}
}

// Student is one row of the students table. ID is assigned at append time.
type Student struct {
	ID           string
	RegisteredBy string
	Name         string
	Phone        string
	Subject      string
	Timestamp    string
}

// Row returns the cells in header order.
func (s *Student) Row() []string {
	return []string{s.ID, s.RegisteredBy, s.Name, s.Phone, s.Subject, s.Timestamp}
}

// Payment is one row of the payments table. StudentID is free text and never checked
// against the students table.
type Payment struct {
	RecordedBy  string
	StudentID   string
	PaymentDate string
	Amount      string
	Timestamp   string
}

// Row returns the cells in header order.
func (p *Payment) Row() []string {
	return []string{p.RecordedBy, p.StudentID, p.PaymentDate, p.Amount, p.Timestamp}
}

// StudentIDFromRowCount derives the id of the next student from the students table row count,
// header included: the n-th data row gets id n. An empty table yields "1".
func StudentIDFromRowCount(rowCount int) string {
	if rowCount > 0 {
		return strconv.Itoa(rowCount)
	}
	return "1"
}

// FormatTimestamp renders t for a Timestamp column. Callers pass t already in the configured zone.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
