// Package student contains the HTTP handlers for the student-record CRUD
// flows: the dashboard (list + add), update, and delete. Every route in
// this package sits behind the auth guard — see the route table in the
// router package.
//
// Each mutating flow follows the same state machine: GET displays the
// form, POST validates the submission, and the outcome is either a
// persistence mutation followed by a redirect, or a re-render of the
// form with per-field errors and no side effect.
package student

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/manog95/student-portal/internal/auth"
	"github.com/manog95/student-portal/internal/forms"
	"github.com/manog95/student-portal/internal/http/middleware"
	"github.com/manog95/student-portal/internal/storage"
	"github.com/manog95/student-portal/internal/utils/render"
)

// Handler is the explicit application context for the student routes.
type Handler struct {
	store    storage.Storage
	sessions *auth.Sessions
	view     *render.Renderer
}

// New builds the student handler set.
func New(store storage.Storage, sessions *auth.Sessions, view *render.Renderer) *Handler {
	return &Handler{store: store, sessions: sessions, view: view}
}

func (h *Handler) pageData(r *http.Request) render.Data {
	data := render.Data{}
	if sess, ok := middleware.SessionFrom(r.Context()); ok {
		data["CSRFToken"] = sess.CSRFToken
		data["Flashes"] = h.sessions.PopFlashes(sess.Token)
	}
	return data
}

// pathID parses the {id} path segment. The URL gives us a string; the
// database needs int64, and anything non-numeric is simply a URL that
// names no record.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// Index handles GET / — the dashboard listing every student alongside
// the add-student form.
func (h *Handler) Index() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		students, err := h.store.GetStudents()
		if err != nil {
			slog.Error("error listing students", slog.String("error", err.Error()))
			h.view.ServerError(w)
			return
		}

		data := h.pageData(r)
		data["Students"] = students
		data["Form"] = forms.StudentForm{}
		data["Errors"] = forms.Errors{}
		h.view.HTML(w, http.StatusOK, "index.html", data)
	}
}

// Create handles POST / — adding a student from the dashboard form.
//
// Rejected submissions re-render the dashboard (listing included) with
// field errors and create nothing.
func (h *Handler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := forms.ParseStudentForm(r)
		errs := forms.Validate(form)

		// selfID 0: on create, any student owning the roll_no/email is a
		// conflict.
		if err := form.CheckDuplicates(h.store, 0, errs); err != nil {
			slog.Error("duplicate check failed", slog.String("error", err.Error()))
			h.view.ServerError(w)
			return
		}

		if !errs.Valid() {
			students, err := h.store.GetStudents()
			if err != nil {
				slog.Error("error listing students", slog.String("error", err.Error()))
				h.view.ServerError(w)
				return
			}

			data := h.pageData(r)
			data["Students"] = students
			data["Form"] = form
			data["Errors"] = errs
			h.view.HTML(w, http.StatusOK, "index.html", data)
			return
		}

		id, err := h.store.CreateStudent(form.Student())
		if err != nil {
			slog.Error("error creating student", slog.String("error", err.Error()))
			h.view.ServerError(w)
			return
		}

		slog.Info("student created", slog.Int64("id", id))

		if sess, ok := middleware.SessionFrom(r.Context()); ok {
			h.sessions.AddFlash(sess.Token, "Student added successfully!", "success")
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// UpdatePage handles GET /update/{id} — the edit form pre-populated from
// the existing record. An id that names no student renders the 404 page.
func (h *Handler) UpdatePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.view.NotFound(w)
			return
		}

		student, err := h.store.GetStudentByID(id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				h.view.NotFound(w)
				return
			}
			slog.Error("error fetching student",
				slog.Int64("id", id), slog.String("error", err.Error()))
			h.view.ServerError(w)
			return
		}

		data := h.pageData(r)
		data["StudentID"] = student.ID
		data["Form"] = forms.FromStudent(student)
		data["Errors"] = forms.Errors{}
		h.view.HTML(w, http.StatusOK, "update.html", data)
	}
}

// Update handles POST /update/{id} — committing the edit.
//
// The duplicate check passes selfID so the record may keep its own
// roll_no and email while still being blocked from stealing another
// student's.
func (h *Handler) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.view.NotFound(w)
			return
		}

		if _, err := h.store.GetStudentByID(id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				h.view.NotFound(w)
				return
			}
			slog.Error("error fetching student",
				slog.Int64("id", id), slog.String("error", err.Error()))
			h.view.ServerError(w)
			return
		}

		form := forms.ParseStudentForm(r)
		errs := forms.Validate(form)

		if err := form.CheckDuplicates(h.store, id, errs); err != nil {
			slog.Error("duplicate check failed", slog.String("error", err.Error()))
			h.view.ServerError(w)
			return
		}

		if !errs.Valid() {
			data := h.pageData(r)
			data["StudentID"] = id
			data["Form"] = form
			data["Errors"] = errs
			h.view.HTML(w, http.StatusOK, "update.html", data)
			return
		}

		if _, err := h.store.UpdateStudentByID(id, form.Student()); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				h.view.NotFound(w)
				return
			}
			slog.Error("error updating student",
				slog.Int64("id", id), slog.String("error", err.Error()))
			h.view.ServerError(w)
			return
		}

		slog.Info("student updated", slog.Int64("id", id))

		if sess, ok := middleware.SessionFrom(r.Context()); ok {
			h.sessions.AddFlash(sess.Token, "Student updated successfully!", "success")
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// Delete handles POST /delete/{id}. Delete has no display state — it is
// only reachable through a form submission (with a CSRF token), never a
// plain link, so a crafted cross-site GET cannot trigger it.
func (h *Handler) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.view.NotFound(w)
			return
		}

		if err := h.store.DeleteStudentByID(id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				h.view.NotFound(w)
				return
			}
			slog.Error("error deleting student",
				slog.Int64("id", id), slog.String("error", err.Error()))
			h.view.ServerError(w)
			return
		}

		slog.Info("student deleted", slog.Int64("id", id))

		if sess, ok := middleware.SessionFrom(r.Context()); ok {
			h.sessions.AddFlash(sess.Token, "Student deleted.", "success")
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
