// Package app wires configuration, the quiz source, persistence and the
// event log into the pieces a host needs to run a session.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/p-n-ai/pai-quiz/internal/platform/config"
	"github.com/p-n-ai/pai-quiz/internal/platform/database"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/quizsource"
	"github.com/p-n-ai/pai-quiz/internal/report"
	"github.com/p-n-ai/pai-quiz/internal/session"
	"github.com/p-n-ai/pai-quiz/internal/store"
)

// App holds the long-lived dependencies of one quiz.
type App struct {
	Config     *config.Config
	Definition quiz.Definition
	Store      store.SessionStore
	Events     session.EventLogger

	db      *database.DB
	closers []func()
}

// New loads the quiz and opens persistence. A *quizsource.LoadError is
// returned unwrapped so hosts can report it as such.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	def, err := quizsource.Load(ctx, cfg.Source.Location, quizsource.WithTimeout(cfg.Source.Timeout()))
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:     cfg,
		Definition: def,
		Events:     session.NopEventLogger{},
	}

	if cfg.NeedsDatabase() {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.db = db
		a.closers = append(a.closers, db.Close)

		if err := db.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		slog.Info("database connected")
	}

	key := store.Key(quizsource.Fingerprint(def))
	st, closeStore, err := store.Open(ctx, cfg, key, a.db)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}
	a.Store = st
	a.closers = append(a.closers, closeStore)
	slog.Info("session store ready", "backend", cfg.Store.Backend, "key", key)

	if cfg.Events.Enabled {
		a.Events = session.NewPostgresEventLogger(a.db.Pool)
	}

	return a, nil
}

// NewController starts or resumes the session for this quiz.
func (a *App) NewController(ctx context.Context) *session.Controller {
	return session.New(ctx, session.Config{
		Definition: a.Definition,
		Store:      a.Store,
		Events:     a.Events,
	})
}

// Ready checks that the database, when used, and the session store answer.
func (a *App) Ready(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if _, _, err := a.Store.Load(ctx); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	return nil
}

// StoredEngine rebuilds the engine from the stored snapshot, or a fresh
// one when nothing usable is stored.
func (a *App) StoredEngine(ctx context.Context) (*quiz.Engine, error) {
	data, ok, err := a.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return quiz.New(a.Definition), nil
	}
	snap, err := quiz.DecodeSnapshot(data)
	if err != nil {
		slog.Warn("discarding unreadable session", "key", a.Store.Key(), "error", err)
		return quiz.New(a.Definition), nil
	}
	return quiz.Restore(a.Definition, snap), nil
}

// WriteReport writes the results workbook for e.
func (a *App) WriteReport(w io.Writer, e *quiz.Engine) error {
	return report.WriteXLSX(w, a.Definition, e.State(), e.Summary())
}

// SaveReport writes the results workbook for e to path.
func (a *App) SaveReport(path string, e *quiz.Engine) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := a.WriteReport(f, e); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
