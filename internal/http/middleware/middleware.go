// Package middleware wires the cross-cutting request concerns: loading
// the login session from its cookie, guarding authenticated routes,
// verifying CSRF tokens on state-mutating submissions, and request
// logging.
//
// The session travels in the request context. Handlers never look it up
// globally — they read it back with SessionFrom, so tests can construct
// requests with any identity they need.
package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/manog95/student-portal/internal/auth"
	"github.com/manog95/student-portal/internal/utils/render"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "session_token"

// sessionKey is an unexported context key type so no other package can
// collide with (or spoof) the session value.
type sessionKey struct{}

// SessionFrom extracts the request's session from ctx.
// ok is false only when the session middleware did not run.
func SessionFrom(ctx context.Context) (auth.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(auth.Session)
	return sess, ok
}

// SetSessionCookie writes the session cookie. maxAge 0 produces a
// browser-session cookie (dies when the browser closes); a positive
// maxAge produces the persistent "remember me" cookie.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration) {
	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		cookie.MaxAge = int(maxAge.Seconds())
	}
	http.SetCookie(w, cookie)
}

// Middleware bundles the dependencies the request wrappers need.
type Middleware struct {
	sessions *auth.Sessions
	view     *render.Renderer
	log      *slog.Logger
}

// New returns a Middleware using the given session registry, renderer,
// and logger.
func New(sessions *auth.Sessions, view *render.Renderer, log *slog.Logger) *Middleware {
	return &Middleware{sessions: sessions, view: view, log: log}
}

// WithSession resolves the request's session from its cookie and stashes
// it in the context. A request with no cookie, an unknown token, or an
// expired token gets a fresh anonymous session — so every page render
// has a CSRF token available, even before login.
func (m *Middleware) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess auth.Session
		ok := false

		if cookie, err := r.Cookie(SessionCookie); err == nil {
			sess, ok = m.sessions.Get(cookie.Value)
		}
		if !ok {
			sess = m.sessions.Create(0, false)
			SetSessionCookie(w, sess.Token, 0)
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth short-circuits anonymous requests to the login page,
// carrying the originally requested path in the next parameter so the
// login flow can send the user back where they were headed.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFrom(r.Context())
		if !ok || !sess.Authenticated() {
			target := "/login?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next(w, r)
	}
}

// VerifyCSRF rejects a POST whose csrf_token form value does not match
// the token bound to the session. The comparison is constant-time so
// the check leaks nothing about the expected token.
//
// Only POST is checked: every state-mutating route in this application
// is a POST, and GETs never mutate.
func (m *Middleware) VerifyCSRF(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sess, ok := SessionFrom(r.Context())
			token := r.PostFormValue("csrf_token")

			if !ok || token == "" ||
				subtle.ConstantTimeCompare([]byte(token), []byte(sess.CSRFToken)) != 1 {
				m.log.Warn("rejected POST with missing or stale csrf token",
					slog.String("path", r.URL.Path))
				m.view.Error(w, http.StatusBadRequest)
				return
			}
		}
		next(w, r)
	}
}

// LogRequests emits one structured log line per request.
func (m *Middleware) LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		m.log.Info("request handled",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)))
	})
}
