package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Starlight90415/O-quvbot/internal/conversation"
)

// fakeAPI feeds updates from a channel and records sent messages.
type fakeAPI struct {
	updates chan tgbotapi.Update
	stopped atomic.Bool

	mu   sync.Mutex
	sent []tgbotapi.Chattable
	err  error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 16)}
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() { f.stopped.Store(true) }

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

// recordingHandler collects handled messages in order.
type recordingHandler struct {
	mu   sync.Mutex
	msgs []Message
}

func (h *recordingHandler) Handle(ctx context.Context, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

func textUpdate(id int, userID int64, text string) tgbotapi.Update {
	m := &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, UserName: "user", FirstName: "First"},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	}
	if len(text) > 0 && text[0] == '/' {
		m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{UpdateID: id, Message: m}
}

func TestToMessage(t *testing.T) {
	msg, ok := toMessage(textUpdate(1, 7, "/start@oquv_davomat_bot"))
	if !ok {
		t.Fatal("command update was dropped")
	}
	if msg.Command != "start" {
		t.Errorf("Command = %q, want %q", msg.Command, "start")
	}
	if msg.UserID != 7 || msg.ChatID != 7 || msg.Username != "user" || msg.FirstName != "First" {
		t.Errorf("msg = %+v", msg)
	}

	msg, ok = toMessage(textUpdate(2, 7, "Aziz"))
	if !ok || msg.Command != "" || msg.Text != "Aziz" {
		t.Errorf("text update = %+v, %v", msg, ok)
	}

	dropped := []tgbotapi.Update{
		{UpdateID: 3},
		{UpdateID: 4, Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "x"}},
		{UpdateID: 5, Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}}},
	}
	for _, upd := range dropped {
		if _, ok := toMessage(upd); ok {
			t.Errorf("update %d should be ignored", upd.UpdateID)
		}
	}
}

func TestNewMessageConfig(t *testing.T) {
	cfg := newMessageConfig(5, conversation.Reply{
		Text:            "Fan?",
		Keyboard:        [][]string{{"Fizika", "Kimyo"}, {"Boshqa..."}},
		OneTimeKeyboard: true,
	})
	kb, ok := cfg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	if !ok {
		t.Fatalf("ReplyMarkup = %T, want ReplyKeyboardMarkup", cfg.ReplyMarkup)
	}
	if !kb.OneTimeKeyboard || !kb.ResizeKeyboard {
		t.Errorf("keyboard flags = one_time:%v resize:%v, want both true", kb.OneTimeKeyboard, kb.ResizeKeyboard)
	}
	if len(kb.Keyboard) != 2 || kb.Keyboard[0][1].Text != "Kimyo" || kb.Keyboard[1][0].Text != "Boshqa..." {
		t.Errorf("keyboard = %+v", kb.Keyboard)
	}
	if cfg.ChatID != 5 || cfg.Text != "Fan?" {
		t.Errorf("cfg = chat %d text %q", cfg.ChatID, cfg.Text)
	}

	cfg = newMessageConfig(5, conversation.Reply{Text: "ok", RemoveKeyboard: true})
	if _, ok := cfg.ReplyMarkup.(tgbotapi.ReplyKeyboardRemove); !ok {
		t.Errorf("ReplyMarkup = %T, want ReplyKeyboardRemove", cfg.ReplyMarkup)
	}

	cfg = newMessageConfig(5, conversation.Reply{Text: "plain"})
	if cfg.ReplyMarkup != nil {
		t.Errorf("ReplyMarkup = %v, want nil", cfg.ReplyMarkup)
	}
}

func TestTelegramSender_WrapsError(t *testing.T) {
	api := newFakeAPI()
	api.err = errors.New("Forbidden: bot was blocked by the user")
	err := NewTelegramSender(api).Send(context.Background(), 1, conversation.Reply{Text: "x"})
	if !errors.Is(err, api.err) {
		t.Errorf("err = %v, want wrapped API error", err)
	}
}

func TestPoller_DeliversUpdatesAndStops(t *testing.T) {
	api := newFakeAPI()
	h := &recordingHandler{}
	exec := NewExecutor(nil)
	p := NewPoller(api, h, exec, 60, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	api.updates <- textUpdate(1, 1, "/royxat")
	api.updates <- textUpdate(2, 1, "Aziz")
	api.updates <- textUpdate(3, 2, "/davomat")
	api.updates <- tgbotapi.Update{UpdateID: 4}

	deadline := time.Now().Add(2 * time.Second)
	for h.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := exec.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if !api.stopped.Load() {
		t.Error("StopReceivingUpdates was not called")
	}
	if h.count() != 3 {
		t.Fatalf("handled = %d, want 3", h.count())
	}
	var user1 []string
	for _, m := range h.msgs {
		if m.UserID == 1 {
			user1 = append(user1, m.Text)
		}
	}
	if len(user1) != 2 || user1[0] != "/royxat" || user1[1] != "Aziz" {
		t.Errorf("user 1 messages = %q, want in arrival order", user1)
	}
}

func TestPoller_ClosedChannel(t *testing.T) {
	api := newFakeAPI()
	close(api.updates)
	p := NewPoller(api, &recordingHandler{}, NewExecutor(nil), 60, nil)
	if err := p.Run(context.Background()); err == nil {
		t.Error("Run should fail when the update channel closes")
	}
}

func TestNewTelegramAPI_EmptyToken(t *testing.T) {
	if _, err := NewTelegramAPI("  ", false, nil); err == nil {
		t.Error("expected error for empty token")
	}
}
