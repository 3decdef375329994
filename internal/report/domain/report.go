// Package domain holds the per-student report row.
package domain

// NotAvailable fills payment fields when a student has no payment row.
const NotAvailable = "N/A"

// Unknown fills name or subject when the students table lacks the column.
const Unknown = "Unknown"

// StudentSummary joins one students row with its attendance count and latest payment.
type StudentSummary struct {
	ID              string
	Name            string
	Subject         string
	AttendanceCount int
	LastPayment     string
	PaymentDate     string
}
