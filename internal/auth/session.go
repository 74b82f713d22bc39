package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the ephemeral binding between a browser and a user account.
// It lives only in memory — restarting the server logs everyone out,
// which is acceptable for this application and keeps the data store free
// of transient state.
//
// UserID 0 marks an anonymous session. Anonymous sessions exist so that
// the register and login forms carry a CSRF token before anyone has
// authenticated.
type Session struct {
	Token     string
	UserID    int64
	CSRFToken string
	ExpiresAt time.Time
}

// Authenticated reports whether the session is bound to a real account.
func (s Session) Authenticated() bool {
	return s.UserID != 0
}

// Flash is a one-shot message queued on a session and shown on the next
// rendered page. Category feeds the CSS class ("success", "danger", ...).
type Flash struct {
	Message  string
	Category string
}

// Sessions is the in-memory session registry. All methods are safe for
// concurrent use; the map is guarded by an RWMutex because reads (every
// request) vastly outnumber writes (login/logout).
type Sessions struct {
	mu       sync.RWMutex
	active   map[string]*sessionState
	ttl      time.Duration
	remember time.Duration
}

type sessionState struct {
	session Session
	flashes []Flash
}

// NewSessions creates a registry. ttl is the ordinary session lifetime;
// remember is the extended lifetime used when the login form's
// "remember me" box is ticked.
func NewSessions(ttl, remember time.Duration) *Sessions {
	return &Sessions{
		active:   make(map[string]*sessionState),
		ttl:      ttl,
		remember: remember,
	}
}

// Lifetime returns the duration a new session would live for.
func (s *Sessions) Lifetime(remember bool) time.Duration {
	if remember {
		return s.remember
	}
	return s.ttl
}

// Create mints a fresh session bound to userID (0 for anonymous).
// Both the session token and the CSRF token are random UUIDs; the CSRF
// token is deliberately distinct from the session token so it can be
// embedded in page bodies without exposing the cookie value.
func (s *Sessions) Create(userID int64, remember bool) Session {
	sess := Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CSRFToken: uuid.NewString(),
		ExpiresAt: time.Now().Add(s.Lifetime(remember)),
	}

	s.mu.Lock()
	s.active[sess.Token] = &sessionState{session: sess}
	s.mu.Unlock()

	return sess
}

// Get returns the session for token, or ok=false when the token is
// unknown or expired. Expired sessions are removed on the spot.
func (s *Sessions) Get(token string) (Session, bool) {
	s.mu.RLock()
	state, ok := s.active[token]
	s.mu.RUnlock()

	if !ok {
		return Session{}, false
	}

	if time.Now().After(state.session.ExpiresAt) {
		s.Destroy(token)
		return Session{}, false
	}

	return state.session, true
}

// Destroy removes a session unconditionally. Destroying a token that is
// already gone is not an error.
func (s *Sessions) Destroy(token string) {
	s.mu.Lock()
	delete(s.active, token)
	s.mu.Unlock()
}

// AddFlash queues a one-shot message on the session identified by token.
// Messages queued on an unknown token are dropped silently.
func (s *Sessions) AddFlash(token, message, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.active[token]; ok {
		state.flashes = append(state.flashes, Flash{Message: message, Category: category})
	}
}

// PopFlashes returns the queued messages for token and clears the queue,
// so each message renders exactly once.
func (s *Sessions) PopFlashes(token string) []Flash {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.active[token]
	if !ok || len(state.flashes) == 0 {
		return nil
	}

	flashes := state.flashes
	state.flashes = nil
	return flashes
}
