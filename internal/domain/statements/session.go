package statements

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound covers missing, expired, and malformed session IDs
// alike so callers cannot distinguish the cases.
var ErrSessionNotFound = errors.New("session not found")

// Phase is the lifecycle stage of a processing session.
type Phase string

const (
	PhasePending         Phase = "pending"
	PhaseExtracting      Phase = "extracting"
	PhaseClassifying     Phase = "classifying"
	PhaseAwaitingAnswers Phase = "awaiting_answers"
	PhaseMaterializing   Phase = "materializing"
	PhaseCompleted       Phase = "completed"
	PhaseFailed          Phase = "failed"
)

var sessionIDRe = regexp.MustCompile(`^session_\d{8}_\d{6}_[0-9a-f]{8}$`)

// NewSessionID mints a session identifier carrying its creation time and a
// random suffix.
func NewSessionID(now time.Time) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken.
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return fmt.Sprintf("session_%s_%s", now.Format("20060102_150405"), hex.EncodeToString(buf))
}

// ProcessingSession holds all mutable per-upload state. Access is guarded
// by the session's own mutex; the store lock only protects the map.
type ProcessingSession struct {
	mu sync.Mutex

	ID        string
	Phase     Phase
	CreatedAt time.Time
	UpdatedAt time.Time

	PDFPath     string
	ExcelPath   string
	PDFFileID   uuid.UUID
	ExcelFileID uuid.UUID

	References []ReferenceEntry
	Units      []*StatementUnit
	Queue      *ReviewQueue
	Results    *Results
	Err        string
}

// WithLock runs fn while holding the session mutex.
func (s *ProcessingSession) WithLock(fn func(*ProcessingSession)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Touch records a state change, refreshing the expiry clock.
func (s *ProcessingSession) Touch(now time.Time) {
	s.UpdatedAt = now
}

// SessionStore is an in-memory session registry with idle expiry.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*ProcessingSession
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store expiring sessions idle longer than ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*ProcessingSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers a new pending session and returns it.
func (st *SessionStore) Create() *ProcessingSession {
	now := st.now()
	sess := &ProcessingSession{
		ID:        NewSessionID(now),
		Phase:     PhasePending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()
	return sess
}

// Get returns the live session for id. Malformed and expired IDs report
// the same ErrSessionNotFound as unknown ones.
func (st *SessionStore) Get(id string) (*ProcessingSession, error) {
	if !sessionIDRe.MatchString(id) {
		return nil, ErrSessionNotFound
	}

	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	sess.mu.Lock()
	expired := st.now().Sub(sess.UpdatedAt) > st.ttl
	sess.mu.Unlock()
	if expired {
		st.Delete(id)
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes a session from the store.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// CleanupExpired evicts every idle-expired session and returns their IDs so
// the caller can reap any files they own.
func (st *SessionStore) CleanupExpired() []string {
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	var evicted []string
	for id, sess := range st.sessions {
		sess.mu.Lock()
		stale := sess.UpdatedAt.Before(cutoff)
		sess.mu.Unlock()
		if stale {
			delete(st.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Len reports the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
