// main is the entry point of the student portal application.
//
// STARTUP SEQUENCE:
//  1. Load configuration from a YAML file
//  2. Initialise the logger
//  3. Connect to (and set up) the SQLite database
//  4. Create the session registry and template renderer
//  5. Register all HTTP routes
//  6. Start the HTTP server in a separate goroutine
//  7. Block the main goroutine until an OS signal (Ctrl+C / kill) arrives
//  8. Gracefully shut down: finish in-flight requests, then exit
//
// RUNNING THE SERVER:
//
//	go run ./cmd/student-portal --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/student-portal
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manog95/student-portal/internal/auth"
	"github.com/manog95/student-portal/internal/config"
	"github.com/manog95/student-portal/internal/http/router"
	"github.com/manog95/student-portal/internal/storage/sqlite"
	"github.com/manog95/student-portal/internal/utils/render"
)

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	// MustLoad reads the YAML config and panics if anything is wrong.
	// The name "Must" signals: if this returns, config is guaranteed valid.
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	// slog is Go's structured logger (stdlib since Go 1.21).
	// Structured logging writes key=value pairs rather than plain strings,
	// making logs easy to filter/search in tools like Loki or Datadog.
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting student-portal",
		slog.String("env", cfg.Env),
		slog.String("version", "1.0.0"),
	)

	// ── 3. Initialise Storage (Database) ──────────────────────────────────
	// sqlite.New opens the SQLite file and creates the students and users
	// tables. We store the result as the storage.Storage INTERFACE, not
	// *sqlite.SQLite — swapping the engine later only changes this line.
	storage, err := sqlite.New(cfg)
	if err != nil {
		log.Error("failed to initialise storage",
			slog.String("error", err.Error()))
		os.Exit(1) // non-zero exit code signals failure to the OS / CI system
	}

	log.Info("storage initialised",
		slog.String("path", cfg.StoragePath))

	// ── 4. Sessions and Renderer ──────────────────────────────────────────
	// Sessions are in-memory by design: restarting the server logs
	// everyone out, and the data store never carries transient state.
	sessions := auth.NewSessions(cfg.Session.TTL, cfg.Session.RememberTTL)

	view, err := render.New(log)
	if err != nil {
		log.Error("failed to parse templates",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	// ── 5. Register HTTP Routes ───────────────────────────────────────────
	// router.New builds the ServeMux, wires each handler behind its
	// middleware (session loading, auth guard, CSRF), and returns the
	// complete application handler. See internal/http/router for the
	// route table.
	handler := router.New(storage, sessions, view, log, cfg.BcryptCost)

	// ── 6. Create the HTTP Server ─────────────────────────────────────────
	// http.Server is a struct. We configure it here but don't start it yet.
	server := &http.Server{
		Addr:    cfg.HTTPServer.Addr, // e.g. "localhost:8082"
		Handler: handler,             // every request goes through our router

		// Production hardening — set timeouts to prevent slow-client attacks.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ── 7. Start Server in a Goroutine ────────────────────────────────────
	// ListenAndServe blocks forever (it loops accepting connections).
	// If we called it here in main(), the graceful-shutdown code below
	// would never run. So we run it in a separate goroutine.
	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		// ListenAndServe returns http.ErrServerClosed when Shutdown() is
		// called. That's expected — we don't want to log it as an error.
		if err := server.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			log.Error("server encountered an error",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 8. Wait for Shutdown Signal ───────────────────────────────────────
	// make(chan os.Signal, 1) creates a buffered channel of size 1.
	// Buffered so we don't miss the signal if main is briefly busy.
	done := make(chan os.Signal, 1)

	// signal.Notify registers our channel to receive specific OS signals:
	//   os.Interrupt = Ctrl+C (SIGINT)
	//   syscall.SIGTERM = sent by `kill <pid>` or container orchestrators
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	// <-done blocks (pauses) the main goroutine here.
	// The program stays alive because this goroutine is running.
	// When a signal arrives, done receives it and we unblock.
	<-done

	log.Info("shutdown signal received, stopping server...")

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	// context.WithTimeout gives the shutdown a 5-second deadline.
	// If in-flight requests don't finish within 5 seconds,
	// the context cancels and Shutdown returns an error.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// server.Shutdown:
	//   • Stops accepting new connections
	//   • Waits for active requests to complete (up to ctx deadline)
	//   • Returns nil on clean shutdown, error if deadline exceeded
	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server stopped gracefully")
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
//
//	JSON logs are easy to ingest by log aggregators (Loki, CloudWatch, etc.)
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo, // INFO and above in production
			}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug, // more verbose in staging
			}),
		)
	default: // "dev" and anything unrecognised
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug, // all levels in development
			}),
		)
	}
}
