// Package render writes server-rendered HTML responses.
//
// Every page handler in this application finishes by either redirecting
// or rendering a template. Rather than repeating the same steps (execute
// template, set header, set status) in every handler, we centralise them
// here — the same role the shared response helpers play in a JSON API.
//
// The templates are embedded into the binary with go:embed, so the
// server has no runtime dependency on a templates directory. Markup is
// intentionally skeletal: page design is not this system's concern.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

// Data is the bag of values a handler passes to a template.
type Data map[string]any

// Renderer holds the parsed template set. Templates are parsed once at
// startup; a parse error is a boot failure, never a per-request one.
type Renderer struct {
	tmpl *template.Template
	log  *slog.Logger
}

// New parses the embedded templates and returns a ready Renderer.
func New(log *slog.Logger) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("render.New: parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, log: log}, nil
}

// HTML renders the named page with the given status code.
//
// The template executes into a buffer first: once any body byte reaches
// the client the status code is locked in, so a template that fails
// halfway must not have written anything yet. Only a fully rendered page
// is flushed.
func (rn *Renderer) HTML(w http.ResponseWriter, status int, page string, data Data) {
	var buf bytes.Buffer
	if err := rn.tmpl.ExecuteTemplate(&buf, page, data); err != nil {
		rn.log.Error("template execution failed",
			slog.String("page", page),
			slog.String("error", err.Error()))
		rn.ServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// NotFound renders the minimal 404 page.
func (rn *Renderer) NotFound(w http.ResponseWriter) {
	rn.errorPage(w, http.StatusNotFound, "404.html")
}

// ServerError renders the minimal 500 page. It deliberately carries no
// detail about what failed — the cause goes to the logs only.
func (rn *Renderer) ServerError(w http.ResponseWriter) {
	rn.errorPage(w, http.StatusInternalServerError, "500.html")
}

// Error renders the generic error page with an arbitrary status code
// (e.g. 400 for a rejected CSRF token).
func (rn *Renderer) Error(w http.ResponseWriter, status int) {
	rn.errorPage(w, status, "error.html")
}

func (rn *Renderer) errorPage(w http.ResponseWriter, status int, page string) {
	var buf bytes.Buffer
	if err := rn.tmpl.ExecuteTemplate(&buf, page, Data{"Code": status}); err != nil {
		// Last resort: the error page itself failed to render.
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
