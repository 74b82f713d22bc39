// Package account contains the HTTP handlers for the authentication
// flows: home page, registration, login, and logout.
//
// HANDLER PATTERN USED HERE — THE CLOSURE / FACTORY PATTERN:
// ────────────────────────────────────────────────────────────
// Go's router expects handler functions with the signature:
//
//	func(http.ResponseWriter, *http.Request)
//
// That signature has no room for extra parameters like a database or a
// session registry. The dependencies live on a Handler struct built once
// at startup; each route factory method returns a function with the
// exact signature the router needs, closing over the struct.
//
//	router.HandleFunc("POST /register", accounts.Register())
//	//                                  ^^^^^^^^^^^^^^^^^^^
//	//                 Register() is called ONCE at startup. It returns
//	//                 a handler func which runs on EVERY request.
package account

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/manog95/student-portal/internal/auth"
	"github.com/manog95/student-portal/internal/forms"
	"github.com/manog95/student-portal/internal/http/middleware"
	"github.com/manog95/student-portal/internal/storage"
	"github.com/manog95/student-portal/internal/utils/render"
)

// Handler is the explicit application context for the account routes —
// constructed in main (or a test), never reached through globals.
type Handler struct {
	store    storage.Storage
	sessions *auth.Sessions
	view     *render.Renderer
	cost     int // bcrypt work factor from config
}

// New builds the account handler set.
func New(store storage.Storage, sessions *auth.Sessions, view *render.Renderer, bcryptCost int) *Handler {
	return &Handler{store: store, sessions: sessions, view: view, cost: bcryptCost}
}

// pageData assembles the values every rendered page needs: the CSRF
// token for forms and any flash messages queued on the session. Popping
// the flashes here means they render exactly once.
func (h *Handler) pageData(r *http.Request) render.Data {
	data := render.Data{}
	if sess, ok := middleware.SessionFrom(r.Context()); ok {
		data["CSRFToken"] = sess.CSRFToken
		data["Flashes"] = h.sessions.PopFlashes(sess.Token)
		data["Authenticated"] = sess.Authenticated()
	}
	return data
}

// redirectIfAuthenticated sends an already-logged-in user to the
// dashboard. Register and Login both short-circuit this way.
func redirectIfAuthenticated(w http.ResponseWriter, r *http.Request) bool {
	if sess, ok := middleware.SessionFrom(r.Context()); ok && sess.Authenticated() {
		http.Redirect(w, r, "/", http.StatusFound)
		return true
	}
	return false
}

// safeNext only accepts a local path as a post-login destination, so the
// next parameter cannot be abused as an open redirect. Anything else
// collapses to the empty string (caller falls back to the dashboard).
func safeNext(next string) string {
	if strings.HasPrefix(next, "/") &&
		!strings.HasPrefix(next, "//") &&
		!strings.Contains(next, "\\") {
		return next
	}
	return ""
}

// HomePage handles GET /home — the public landing page.
func (h *Handler) HomePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.view.HTML(w, http.StatusOK, "home.html", h.pageData(r))
	}
}

// RegisterPage handles GET /register — the Display state of the
// registration flow.
func (h *Handler) RegisterPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redirectIfAuthenticated(w, r) {
			return
		}

		data := h.pageData(r)
		data["Form"] = forms.RegisterForm{}
		data["Errors"] = forms.Errors{}
		h.view.HTML(w, http.StatusOK, "register.html", data)
	}
}

// Register handles POST /register — the Submitted state.
//
// Accepted: a User row is created with a bcrypt hash (never the raw
// password) and the browser is redirected to the login page.
// Rejected: the form re-renders with per-field errors; nothing persists.
func (h *Handler) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redirectIfAuthenticated(w, r) {
			return
		}

		form := forms.ParseRegisterForm(r)
		errs := forms.Validate(form)

		// Uniqueness runs against the store inside the validation pass,
		// not after — a duplicate username must never reach CreateUser.
		if err := form.CheckUsernameTaken(h.store, errs); err != nil {
			slog.Error("username lookup failed", slog.String("error", err.Error()))
			h.view.ServerError(w)
			return
		}

		if !errs.Valid() {
			data := h.pageData(r)
			data["Form"] = form
			data["Errors"] = errs
			h.view.HTML(w, http.StatusOK, "register.html", data)
			return
		}

		hash, err := auth.HashPassword(form.Password, h.cost)
		if err != nil {
			slog.Error("password hashing failed", slog.String("error", err.Error()))
			h.view.ServerError(w)
			return
		}

		id, err := h.store.CreateUser(form.Username, hash)
		if err != nil {
			// Includes the UNIQUE-constraint race the validation check can
			// lose; surfaced as a generic failure, detail stays in the logs.
			slog.Error("user creation failed", slog.String("error", err.Error()))
			h.view.ServerError(w)
			return
		}

		slog.Info("user registered",
			slog.Int64("id", id),
			slog.String("username", form.Username))

		if sess, ok := middleware.SessionFrom(r.Context()); ok {
			h.sessions.AddFlash(sess.Token,
				"Your account has been created! You can now log in.", "success")
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

// LoginPage handles GET /login — the Display state of the login flow.
// A next query parameter (set by the auth guard) is carried into the
// form so a successful login can resume the original request.
func (h *Handler) LoginPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redirectIfAuthenticated(w, r) {
			return
		}

		data := h.pageData(r)
		data["Form"] = forms.LoginForm{}
		data["Errors"] = forms.Errors{}
		data["Next"] = safeNext(r.URL.Query().Get("next"))
		h.view.HTML(w, http.StatusOK, "login.html", data)
	}
}

// Login handles POST /login — the Submitted state.
//
// On success the anonymous session is destroyed and replaced with an
// authenticated one (fresh token, fresh CSRF token), and the browser is
// sent to the requested next path or the dashboard. A wrong password and
// an unknown username produce the same message, so the form does not
// reveal which usernames exist.
func (h *Handler) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redirectIfAuthenticated(w, r) {
			return
		}

		form := forms.ParseLoginForm(r)
		errs := forms.Validate(form)
		next := safeNext(r.PostFormValue("next"))

		redisplay := func() {
			data := h.pageData(r)
			data["Form"] = form
			data["Errors"] = errs
			data["Next"] = next
			h.view.HTML(w, http.StatusOK, "login.html", data)
		}

		if !errs.Valid() {
			redisplay()
			return
		}

		user, err := h.store.FindUserByUsername(form.Username)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			slog.Error("user lookup failed", slog.String("error", err.Error()))
			h.view.ServerError(w)
			return
		}

		if err != nil || !auth.CheckPassword(user.PasswordHash, form.Password) {
			slog.Info("failed login attempt", slog.String("username", form.Username))
			if sess, ok := middleware.SessionFrom(r.Context()); ok {
				h.sessions.AddFlash(sess.Token,
					"Login unsuccessful. Please check username and password.", "danger")
			}
			redisplay()
			return
		}

		// Rotate the session on privilege change: the pre-login token must
		// not survive into the authenticated state.
		if old, ok := middleware.SessionFrom(r.Context()); ok {
			h.sessions.Destroy(old.Token)
		}

		sess := h.sessions.Create(user.ID, form.Remember)
		var maxAge time.Duration
		if form.Remember {
			maxAge = h.sessions.Lifetime(true)
		}
		middleware.SetSessionCookie(w, sess.Token, maxAge)

		h.sessions.AddFlash(sess.Token, "Login successful!", "success")
		slog.Info("user logged in", slog.Int64("user_id", user.ID))

		if next == "" {
			next = "/"
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
	}
}

// Logout handles GET /logout. The binding is cleared unconditionally;
// the browser keeps a fresh anonymous session so the goodbye flash has
// somewhere to live.
func (h *Handler) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sess, ok := middleware.SessionFrom(r.Context()); ok {
			h.sessions.Destroy(sess.Token)
		}

		fresh := h.sessions.Create(0, false)
		middleware.SetSessionCookie(w, fresh.Token, 0)
		h.sessions.AddFlash(fresh.Token, "You have been logged out.", "info")

		http.Redirect(w, r, "/home", http.StatusFound)
	}
}
