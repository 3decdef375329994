// Package domain holds the record event published after every successful append.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Actions carried by RecordEvent.Action.
const (
	ActionAttendance = "attendance"
	ActionRegister   = "register"
	ActionPayment    = "payment"
)

// RecordEvent describes one row appended to a record table. It is serialized as JSON on the
// record events topic and read back by cmd/worker.
type RecordEvent struct {
	ID        string    `json:"id"`
	Table     string    `json:"table"`
	Action    string    `json:"action"`
	UserID    string    `json:"userId"`
	StudentID string    `json:"studentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewRecordEvent returns an event with a fresh id. studentID may be empty (attendance rows).
func NewRecordEvent(table, action, userID, studentID string, at time.Time) *RecordEvent {
	return &RecordEvent{
		ID:        uuid.NewString(),
		Table:     table,
		Action:    action,
		UserID:    userID,
		StudentID: studentID,
		CreatedAt: at.UTC(),
	}
}
