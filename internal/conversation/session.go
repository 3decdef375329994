package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Flow names a multi-turn input sequence.
type Flow string

const (
	FlowRegistration Flow = "registration"
	FlowPayment      Flow = "payment"
)

// State is the step a flow is waiting on.
type State int

const (
	StateAwaitingName State = iota + 1
	StateAwaitingPhone
	StateAwaitingSubject
	StateAwaitingStudentID
	StateAwaitingDate
	StateAwaitingAmount
)

func (s State) String() string {
	switch s {
	case StateAwaitingName:
		return "awaiting_name"
	case StateAwaitingPhone:
		return "awaiting_phone"
	case StateAwaitingSubject:
		return "awaiting_subject"
	case StateAwaitingStudentID:
		return "awaiting_student_id"
	case StateAwaitingDate:
		return "awaiting_date"
	case StateAwaitingAmount:
		return "awaiting_amount"
	default:
		return "unknown"
	}
}

// Session is one user's active flow and the fields collected so far.
type Session struct {
	ID     string
	UserID string
	Flow   Flow
	State  State

	Name    string
	Phone   string
	Subject string

	StudentID   string
	PaymentDate string
	Amount      string

	StartedAt time.Time
	UpdatedAt time.Time
}

func newSession(userID string, flow Flow, state State, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Flow:      flow,
		State:     state,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// SessionStore keeps at most one session per user.
type SessionStore interface {
	// Get returns a copy of the user's session. ok is false if there is none or it expired.
	Get(ctx context.Context, userID string) (sess *Session, ok bool)
	// Put stores sess under sess.UserID, replacing any previous session, and refreshes its idle timer.
	Put(ctx context.Context, sess *Session)
	// Delete removes the user's session. No-op if absent.
	Delete(ctx context.Context, userID string)
}

// DefaultTTL is how long a session may sit idle before it is dropped.
const DefaultTTL = 30 * time.Minute

type sessionEntry struct {
	sess      Session
	expiresAt time.Time
}

// MemorySessionStore is an in-memory SessionStore with idle expiry.
type MemorySessionStore struct {
	mu       sync.RWMutex
	m        map[string]sessionEntry
	ttl      time.Duration
	nowF     func() time.Time
	onExpire func(*Session)
}

// NewMemorySessionStore returns a store whose sessions expire after ttl without a Put.
// A non-positive ttl uses DefaultTTL.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemorySessionStore{
		m:    make(map[string]sessionEntry),
		ttl:  ttl,
		nowF: time.Now,
	}
}

// OnExpire registers fn to run (outside the lock) for every session dropped on expiry.
func (s *MemorySessionStore) OnExpire(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = fn
}

// Get returns a copy of the user's session if present and not expired.
func (s *MemorySessionStore) Get(ctx context.Context, userID string) (*Session, bool) {
	s.mu.RLock()
	e, ok := s.m[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.expire(userID, e)
		return nil, false
	}
	sess := e.sess
	return &sess, true
}

// Put stores a copy of sess.
func (s *MemorySessionStore) Put(ctx context.Context, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sess.UserID] = sessionEntry{sess: *sess, expiresAt: s.nowF().Add(s.ttl)}
}

// Delete removes the user's session.
func (s *MemorySessionStore) Delete(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}

// Sweep drops every expired session and returns how many were removed.
func (s *MemorySessionStore) Sweep(ctx context.Context) int {
	now := s.nowF()
	s.mu.RLock()
	var stale []string
	for id, e := range s.m {
		if !e.expiresAt.After(now) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	n := 0
	for _, id := range stale {
		s.mu.RLock()
		e, ok := s.m[id]
		s.mu.RUnlock()
		if ok && s.expire(id, e) {
			n++
		}
	}
	return n
}

// Len returns the number of stored sessions, expired ones included until swept.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// expire deletes the entry if it is still the one observed and reports whether it did.
func (s *MemorySessionStore) expire(userID string, seen sessionEntry) bool {
	s.mu.Lock()
	cur, ok := s.m[userID]
	if !ok || cur.sess.ID != seen.sess.ID || !cur.expiresAt.Equal(seen.expiresAt) {
		s.mu.Unlock()
		return false
	}
	delete(s.m, userID)
	hook := s.onExpire
	s.mu.Unlock()
	if hook != nil {
		sess := seen.sess
		hook(&sess)
	}
	return true
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemorySessionStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
