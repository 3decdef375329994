// Package bot routes chat updates to commands and conversation flows and carries them over
// Telegram long polling.
package bot

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Starlight90415/O-quvbot/internal/conversation"
	"github.com/Starlight90415/O-quvbot/internal/platform/metrics"
	recorddomain "github.com/Starlight90415/O-quvbot/internal/records/domain"
	reportdomain "github.com/Starlight90415/O-quvbot/internal/report/domain"
)

// Command names, without the leading slash.
const (
	CmdStart      = "start"
	CmdAttendance = "davomat"
	CmdRegister   = "royxat"
	CmdPayment    = "tolov"
	CmdReport     = "hisobot"
	CmdCancel     = "cancel"
)

// Message is one incoming chat message, already stripped of transport details.
type Message struct {
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	Text      string
	// Command is the command name without slash or bot mention; empty for plain text.
	Command string
}

// Sender delivers replies to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, reply conversation.Reply) error
}

// Flows is the conversation engine as seen by the dispatcher.
type Flows interface {
	StartRegistration(ctx context.Context, userID string) conversation.Reply
	StartPayment(ctx context.Context, userID string) conversation.Reply
	Cancel(ctx context.Context, userID string) (conversation.Reply, bool)
	HandleText(ctx context.Context, userID, text string) (conversation.Reply, bool)
}

// AttendanceRecorder writes one attendance row.
type AttendanceRecorder interface {
	RecordAttendance(ctx context.Context, a recorddomain.Attendance) error
}

// Reporter builds the per-student report.
type Reporter interface {
	Build(ctx context.Context) ([]reportdomain.StudentSummary, error)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithMetrics counts commands and update latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher handles one message at a time for a user. It is the only place that turns
// failures into user-facing notices.
type Dispatcher struct {
	flows      Flows
	attendance AttendanceRecorder
	reports    Reporter
	sender     Sender
	log        *zap.Logger
	metrics    *metrics.Metrics
}

// NewDispatcher wires the dispatcher to its collaborators.
func NewDispatcher(flows Flows, attendance AttendanceRecorder, reports Reporter, sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		flows:      flows,
		attendance: attendance,
		reports:    reports,
		sender:     sender,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle processes msg. Panics are recovered and answered with a generic notice.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) {
	start := time.Now()
	defer d.metrics.ObserveUpdate(start)
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic while handling update",
				zap.Int64("user_id", msg.UserID), zap.Any("panic", r), zap.Stack("stack"))
			d.send(ctx, msg.ChatID, conversation.Reply{Text: msgInternalError})
		}
	}()

	userID := strconv.FormatInt(msg.UserID, 10)
	if msg.Command == "" {
		if reply, ok := d.flows.HandleText(ctx, userID, msg.Text); ok {
			d.send(ctx, msg.ChatID, reply)
		}
		return
	}

	switch msg.Command {
	case CmdStart:
		d.metrics.Command(msg.Command)
		d.log.Info("user started the bot", zap.String("user_id", userID), zap.String("username", msg.Username))
		d.send(ctx, msg.ChatID, conversation.Reply{Text: welcome(msg.FirstName), Keyboard: mainMenu})
	case CmdAttendance:
		d.metrics.Command(msg.Command)
		d.recordAttendance(ctx, userID, msg)
	case CmdRegister:
		d.metrics.Command(msg.Command)
		d.send(ctx, msg.ChatID, d.flows.StartRegistration(ctx, userID))
	case CmdPayment:
		d.metrics.Command(msg.Command)
		d.send(ctx, msg.ChatID, d.flows.StartPayment(ctx, userID))
	case CmdReport:
		d.metrics.Command(msg.Command)
		d.sendReport(ctx, userID, msg.ChatID)
	case CmdCancel:
		d.metrics.Command(msg.Command)
		if reply, ok := d.flows.Cancel(ctx, userID); ok {
			d.send(ctx, msg.ChatID, reply)
		}
	default:
		d.log.Debug("ignoring unknown command", zap.String("user_id", userID), zap.String("command", msg.Command))
	}
}

func (d *Dispatcher) recordAttendance(ctx context.Context, userID string, msg Message) {
	name := displayName(msg)
	err := d.attendance.RecordAttendance(ctx, recorddomain.Attendance{
		UserID:      userID,
		DisplayName: name,
		Action:      recorddomain.ActionAttendance,
	})
	if err != nil {
		d.log.Error("failed to record attendance", zap.String("user_id", userID), zap.Error(err))
		d.send(ctx, msg.ChatID, conversation.Reply{Text: msgAttendanceFailed})
		return
	}
	d.log.Info("recorded attendance", zap.String("user_id", userID), zap.String("username", name))
	d.send(ctx, msg.ChatID, conversation.Reply{Text: msgAttendanceSaved})
}

func (d *Dispatcher) sendReport(ctx context.Context, userID string, chatID int64) {
	rows, err := d.reports.Build(ctx)
	if err != nil {
		d.log.Error("failed to generate report", zap.String("user_id", userID), zap.Error(err))
		d.send(ctx, chatID, conversation.Reply{Text: msgReportFailed})
		return
	}
	parts := FormatReport(rows, MaxMessageLength)
	if len(parts) == 0 {
		d.send(ctx, chatID, conversation.Reply{Text: msgReportEmpty})
		return
	}
	for _, part := range parts {
		d.send(ctx, chatID, conversation.Reply{Text: part})
	}
	d.log.Info("user requested student report", zap.String("user_id", userID), zap.Int("students", len(rows)))
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, reply conversation.Reply) {
	if err := d.sender.Send(ctx, chatID, reply); err != nil {
		d.log.Warn("failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func displayName(msg Message) string {
	switch {
	case msg.Username != "":
		return msg.Username
	case msg.FirstName != "":
		return msg.FirstName
	default:
		return noName
	}
}
