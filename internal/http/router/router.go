// Package router assembles the HTTP surface: every route, its handler,
// and the middleware each one sits behind. main and the tests both build
// the application through New, so what the tests exercise is exactly
// what ships.
package router

import (
	"log/slog"
	"net/http"

	"github.com/manog95/student-portal/internal/auth"
	"github.com/manog95/student-portal/internal/http/handlers/account"
	"github.com/manog95/student-portal/internal/http/handlers/student"
	"github.com/manog95/student-portal/internal/http/middleware"
	"github.com/manog95/student-portal/internal/storage"
	"github.com/manog95/student-portal/internal/utils/render"
)

// New wires the full application handler.
//
// Route table:
//
//	GET  /home          public   landing page
//	GET  /register      public   registration form
//	POST /register      public*  create account            (*CSRF)
//	GET  /login         public   login form (honors ?next=)
//	POST /login         public*  establish identity        (*CSRF)
//	GET  /logout        any      clear identity, go home
//	GET  /              auth     student listing + add form
//	POST /              auth*    add student               (*CSRF)
//	GET  /update/{id}   auth     pre-filled edit form
//	POST /update/{id}   auth*    commit edit               (*CSRF)
//	POST /delete/{id}   auth*    delete student            (*CSRF)
//
// The guard order matters: RequireAuth wraps VerifyCSRF, so an
// anonymous POST to a protected route is redirected to login rather
// than rejected for its (necessarily missing) token.
func New(store storage.Storage, sessions *auth.Sessions, view *render.Renderer,
	log *slog.Logger, bcryptCost int) http.Handler {

	accounts := account.New(store, sessions, view, bcryptCost)
	students := student.New(store, sessions, view)
	mw := middleware.New(sessions, view, log)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /home", accounts.HomePage())
	mux.HandleFunc("GET /register", accounts.RegisterPage())
	mux.HandleFunc("POST /register", mw.VerifyCSRF(accounts.Register()))
	mux.HandleFunc("GET /login", accounts.LoginPage())
	mux.HandleFunc("POST /login", mw.VerifyCSRF(accounts.Login()))
	mux.HandleFunc("GET /logout", accounts.Logout())

	// "/{$}" matches exactly the root path (Go 1.22 ServeMux syntax);
	// the plain "/" pattern below is the catch-all for everything else.
	mux.HandleFunc("GET /{$}", mw.RequireAuth(students.Index()))
	mux.HandleFunc("POST /{$}", mw.RequireAuth(mw.VerifyCSRF(students.Create())))
	mux.HandleFunc("GET /update/{id}", mw.RequireAuth(students.UpdatePage()))
	mux.HandleFunc("POST /update/{id}", mw.RequireAuth(mw.VerifyCSRF(students.Update())))
	mux.HandleFunc("POST /delete/{id}", mw.RequireAuth(mw.VerifyCSRF(students.Delete())))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		view.NotFound(w)
	})

	return mw.LogRequests(mw.WithSession(mux))
}
