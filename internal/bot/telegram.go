package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Starlight90415/O-quvbot/internal/conversation"
)

// NewTelegramAPI logs in with token and routes the client's own logging through log.
func NewTelegramAPI(token string, debug bool, log *zap.Logger) (*tgbotapi.BotAPI, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("bot: telegram token is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	_ = tgbotapi.SetLogger(zap.NewStdLog(log.Named("telegram")))

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot: connect to telegram: %w", err)
	}
	api.Debug = debug
	log.Info("authorized on telegram", zap.String("bot", api.Self.UserName))
	return api, nil
}

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramSender sends replies through the Bot API. *tgbotapi.BotAPI satisfies its client.
type TelegramSender struct {
	api messageSender
}

// NewTelegramSender returns a Sender backed by api.
func NewTelegramSender(api messageSender) *TelegramSender {
	return &TelegramSender{api: api}
}

// Send maps reply onto a Telegram message with the matching reply markup.
func (s *TelegramSender) Send(ctx context.Context, chatID int64, reply conversation.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.api.Send(newMessageConfig(chatID, reply)); err != nil {
		return fmt.Errorf("bot: send message: %w", err)
	}
	return nil
}

func newMessageConfig(chatID int64, reply conversation.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	switch {
	case len(reply.Keyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(reply.Keyboard))
		for _, row := range reply.Keyboard {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, label := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.OneTimeKeyboard = reply.OneTimeKeyboard
		msg.ReplyMarkup = kb
	case reply.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}
	return msg
}

// Handler processes one message.
type Handler interface {
	Handle(ctx context.Context, msg Message)
}

// Poller receives updates by long polling and hands them to the handler through the executor,
// keyed by sender so one user's messages are handled in arrival order.
type Poller struct {
	api     updateSource
	handler Handler
	exec    *Executor
	timeout int
	log     *zap.Logger
}

// NewPoller returns a Poller. timeout is the long-poll timeout in seconds.
func NewPoller(api updateSource, handler Handler, exec *Executor, timeout int, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{api: api, handler: handler, exec: exec, timeout: timeout, log: log}
}

// Run polls until ctx is cancelled or the update channel closes. Handlers already queued keep
// running after Run returns; drain them with Executor.Shutdown.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	updates := p.api.GetUpdatesChan(cfg)
	handleCtx := context.WithoutCancel(ctx)

	p.log.Info("polling for telegram updates", zap.Int("timeout_seconds", p.timeout))
	for {
		select {
		case <-ctx.Done():
			p.api.StopReceivingUpdates()
			p.log.Info("stopped polling for telegram updates")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return errors.New("bot: update channel closed")
			}
			msg, ok := toMessage(upd)
			if !ok {
				continue
			}
			key := strconv.FormatInt(msg.UserID, 10)
			if err := p.exec.Submit(key, func() { p.handler.Handle(handleCtx, msg) }); err != nil {
				p.log.Warn("dropping update", zap.Int("update_id", upd.UpdateID), zap.Error(err))
			}
		}
	}
}

// toMessage keeps text messages from users; everything else is ignored.
func toMessage(upd tgbotapi.Update) (Message, bool) {
	m := upd.Message
	if m == nil || m.From == nil || m.Chat == nil || m.Text == "" {
		return Message{}, false
	}
	msg := Message{
		ChatID:    m.Chat.ID,
		UserID:    m.From.ID,
		Username:  m.From.UserName,
		FirstName: m.From.FirstName,
		Text:      m.Text,
	}
	if m.IsCommand() {
		msg.Command = m.Command()
	}
	return msg, true
}
