// Package conversation drives the registration and payment flows: per-user state machines
// that collect one free-text field per turn and hand the result to the record writer.
package conversation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Starlight90415/O-quvbot/internal/platform/metrics"
	"github.com/Starlight90415/O-quvbot/internal/records/domain"
)

// Reply is a transport-neutral answer to one user turn.
type Reply struct {
	Text string
	// Keyboard, when set, replaces the reply keyboard with these rows of buttons.
	Keyboard [][]string
	// OneTimeKeyboard hides Keyboard after the user presses a button.
	OneTimeKeyboard bool
	// RemoveKeyboard hides a previously shown keyboard.
	RemoveKeyboard bool
}

// RecordWriter persists completed flows. *service.Writer implements it.
type RecordWriter interface {
	RecordStudent(ctx context.Context, s domain.Student) (string, error)
	RecordPayment(ctx context.Context, p domain.Payment) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics counts flow outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine runs the flows. It is safe for concurrent use across users; turns of one user must
// be delivered in order, which the bot's per-user executor guarantees.
type Engine struct {
	sessions SessionStore
	writer   RecordWriter
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewEngine returns an Engine keeping state in sessions and writing through writer.
func NewEngine(sessions SessionStore, writer RecordWriter, opts ...Option) *Engine {
	e := &Engine{
		sessions: sessions,
		writer:   writer,
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Active reports whether userID is in the middle of a flow.
func (e *Engine) Active(ctx context.Context, userID string) bool {
	_, ok := e.sessions.Get(ctx, userID)
	return ok
}

// StartRegistration begins the registration flow, discarding any flow already in progress.
func (e *Engine) StartRegistration(ctx context.Context, userID string) Reply {
	e.start(ctx, userID, FlowRegistration, StateAwaitingName)
	return Reply{Text: msgAskName}
}

// StartPayment begins the payment flow, discarding any flow already in progress.
func (e *Engine) StartPayment(ctx context.Context, userID string) Reply {
	e.start(ctx, userID, FlowPayment, StateAwaitingStudentID)
	return Reply{Text: msgAskStudentID}
}

func (e *Engine) start(ctx context.Context, userID string, flow Flow, state State) {
	if prev, ok := e.sessions.Get(ctx, userID); ok {
		e.log.Info("flow interrupted by new flow",
			zap.String("user_id", userID),
			zap.String("session_id", prev.ID),
			zap.String("flow", string(prev.Flow)),
			zap.Stringer("state", prev.State),
			zap.String("new_flow", string(flow)))
		e.metrics.FlowOutcome(string(prev.Flow), metrics.OutcomeInterrupted)
	}
	sess := newSession(userID, flow, state, e.now())
	e.sessions.Put(ctx, sess)
	e.log.Debug("flow started", zap.String("user_id", userID), zap.String("session_id", sess.ID), zap.String("flow", string(flow)))
}

// Cancel ends the user's flow without writing anything. handled is false when there was no
// flow to cancel.
func (e *Engine) Cancel(ctx context.Context, userID string) (reply Reply, handled bool) {
	sess, ok := e.sessions.Get(ctx, userID)
	if !ok {
		return Reply{}, false
	}
	e.sessions.Delete(ctx, userID)
	e.metrics.FlowOutcome(string(sess.Flow), metrics.OutcomeCancelled)
	e.log.Info("flow cancelled", zap.String("user_id", userID), zap.String("session_id", sess.ID), zap.Stringer("state", sess.State))
	return Reply{Text: msgCancelled, RemoveKeyboard: true}, true
}

// HandleText feeds one free-text message into the user's flow. handled is false when the user
// has no active flow; the caller then ignores the message.
func (e *Engine) HandleText(ctx context.Context, userID, text string) (reply Reply, handled bool) {
	sess, ok := e.sessions.Get(ctx, userID)
	if !ok {
		return Reply{}, false
	}
	sess.UpdatedAt = e.now()

	switch sess.State {
	case StateAwaitingName:
		sess.Name = text
		sess.State = StateAwaitingPhone
		e.sessions.Put(ctx, sess)
		return Reply{Text: msgAskPhone}, true

	case StateAwaitingPhone:
		sess.Phone = text
		sess.State = StateAwaitingSubject
		e.sessions.Put(ctx, sess)
		return Reply{Text: msgAskSubject, Keyboard: SubjectMenu, OneTimeKeyboard: true}, true

	case StateAwaitingSubject:
		if text == OtherSubject {
			e.sessions.Put(ctx, sess)
			return Reply{Text: msgAskCustomSubject, RemoveKeyboard: true}, true
		}
		sess.Subject = text
		return e.completeRegistration(ctx, sess), true

	case StateAwaitingStudentID:
		sess.StudentID = text
		sess.State = StateAwaitingDate
		e.sessions.Put(ctx, sess)
		return Reply{Text: msgAskDate}, true

	case StateAwaitingDate:
		sess.PaymentDate = text
		sess.State = StateAwaitingAmount
		e.sessions.Put(ctx, sess)
		return Reply{Text: msgAskAmount}, true

	case StateAwaitingAmount:
		sess.Amount = text
		return e.completePayment(ctx, sess), true
	}

	// A session in an unknown state cannot make progress.
	e.log.Error("session in unknown state", zap.String("user_id", userID), zap.Int("state", int(sess.State)))
	e.sessions.Delete(ctx, userID)
	return Reply{}, false
}

func (e *Engine) completeRegistration(ctx context.Context, sess *Session) Reply {
	e.sessions.Delete(ctx, sess.UserID)
	id, err := e.writer.RecordStudent(ctx, domain.Student{
		RegisteredBy: sess.UserID,
		Name:         sess.Name,
		Phone:        sess.Phone,
		Subject:      sess.Subject,
	})
	if err != nil {
		e.metrics.FlowOutcome(string(FlowRegistration), metrics.OutcomeFailed)
		e.log.Error("failed to register student",
			zap.String("user_id", sess.UserID), zap.String("session_id", sess.ID), zap.Error(err))
		return Reply{Text: msgStudentFailed, RemoveKeyboard: true}
	}
	e.metrics.FlowOutcome(string(FlowRegistration), metrics.OutcomeCompleted)
	e.log.Info("student registered",
		zap.String("user_id", sess.UserID), zap.String("student_id", id), zap.String("name", sess.Name))
	return Reply{Text: studentSaved(sess, id), RemoveKeyboard: true}
}

func (e *Engine) completePayment(ctx context.Context, sess *Session) Reply {
	e.sessions.Delete(ctx, sess.UserID)
	err := e.writer.RecordPayment(ctx, domain.Payment{
		RecordedBy:  sess.UserID,
		StudentID:   sess.StudentID,
		PaymentDate: sess.PaymentDate,
		Amount:      sess.Amount,
	})
	if err != nil {
		e.metrics.FlowOutcome(string(FlowPayment), metrics.OutcomeFailed)
		e.log.Error("failed to record payment",
			zap.String("user_id", sess.UserID), zap.String("session_id", sess.ID), zap.Error(err))
		return Reply{Text: msgPaymentFailed}
	}
	e.metrics.FlowOutcome(string(FlowPayment), metrics.OutcomeCompleted)
	e.log.Info("payment recorded",
		zap.String("user_id", sess.UserID), zap.String("student_id", sess.StudentID), zap.String("amount", sess.Amount))
	return Reply{Text: paymentSaved(sess)}
}
