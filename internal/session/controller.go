// Package session hosts one quiz session: it owns the engine, the
// countdown and the snapshot store, and applies user intents and clock
// ticks to them one at a time.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/store"
)

// TickerFunc starts a countdown source and returns its channel and a
// function that stops it.
type TickerFunc func() (<-chan time.Time, func())

// Config holds dependencies for a session controller.
type Config struct {
	Definition quiz.Definition
	Store      store.SessionStore // defaults to an in-memory store
	Events     EventLogger        // defaults to NopEventLogger
	NewTicker  TickerFunc         // defaults to a one-second time.Ticker
}

// Controller is the single owner of a quiz session. It is not safe for
// concurrent use; Run serializes ticks and intents on one goroutine.
type Controller struct {
	def       quiz.Definition
	store     store.SessionStore
	events    EventLogger
	newTicker TickerFunc

	engine *quiz.Engine
	review bool

	running    bool
	ticks      <-chan time.Time
	stopTicker func()
	writer     *snapshotWriter
}

// New creates a controller, resuming the stored session when there is one.
func New(ctx context.Context, cfg Config) *Controller {
	st := cfg.Store
	if st == nil {
		st = store.NewMemoryStore("")
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	newTicker := cfg.NewTicker
	if newTicker == nil {
		newTicker = secondTicker
	}

	c := &Controller{
		def:       cfg.Definition,
		store:     st,
		events:    events,
		newTicker: newTicker,
	}

	if snap := c.loadSnapshot(ctx); snap != nil {
		c.engine = quiz.Restore(c.def, snap)
		slog.Info("session resumed",
			"key", st.Key(),
			"index", c.engine.CurrentIndex(),
			"remaining_sec", c.engine.RemainingSec(),
			"finished", c.engine.Finished(),
		)
		c.logEvent(EventSessionResumed, map[string]any{
			"remaining_sec": c.engine.RemainingSec(),
			"answered":      len(c.engine.Answers()),
		})
	} else {
		c.engine = quiz.New(c.def)
		slog.Info("session started", "key", st.Key(), "questions", c.engine.Len())
		c.logEvent(EventSessionStarted, map[string]any{
			"questions":      c.engine.Len(),
			"time_limit_sec": c.def.TimeLimitSec,
		})
	}

	return c
}

func secondTicker() (<-chan time.Time, func()) {
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

// Engine returns the engine for read access. Callers must not mutate it
// outside the controller.
func (c *Controller) Engine() *quiz.Engine {
	return c.engine
}

// Review reports whether review mode is on.
func (c *Controller) Review() bool {
	return c.review
}

// View returns the current presentation state.
func (c *Controller) View() View {
	return buildView(c.engine, c.review)
}

// Handle applies one user intent and reports whether session state changed.
// ActionQuit is not handled here; it is the host's cue to stop Run.
func (c *Controller) Handle(ctx context.Context, in Intent) bool {
	switch in.Action {
	case ActionPrev:
		return c.persistIf(ctx, c.engine.Prev())
	case ActionNext:
		return c.persistIf(ctx, c.engine.Next())
	case ActionGoTo:
		return c.persistIf(ctx, c.engine.GoTo(in.Index))

	case ActionSelect:
		if !c.engine.Select(in.Index) {
			return false
		}
		c.persist(ctx)
		q, _ := c.engine.Current()
		c.logEvent(EventAnswerSelected, map[string]any{
			"question_id": q.ID,
			"option":      in.Index,
		})
		return true

	case ActionFinish:
		if c.engine.Finished() {
			return false
		}
		c.finish(ctx, "submitted")
		return true

	case ActionReview:
		if !c.engine.Finished() || c.review {
			return false
		}
		c.review = true
		return true

	case ActionRestart:
		c.restart(ctx)
		return true
	}

	slog.Debug("ignoring intent", "action", in.Action)
	return false
}

// Tick applies one elapsed second and reports whether state changed.
func (c *Controller) Tick(ctx context.Context) bool {
	if !c.engine.Tick() {
		return false
	}
	c.persist(ctx)
	if c.engine.Finished() {
		c.StopCountdown()
		c.logFinished("timeout")
	}
	return true
}

// Run drives the session until ctx is cancelled, intents is closed, or a
// quit intent arrives. render is called with the initial view and after
// every tick or intent that reaches the session.
func (c *Controller) Run(ctx context.Context, intents <-chan Intent, render func(View)) {
	c.running = true
	// Saves outlive cancellation so the final state still reaches the store.
	c.writer = startSnapshotWriter(context.WithoutCancel(ctx), c.store)
	defer func() {
		c.running = false
		c.StopCountdown()
		c.writer.close()
		c.writer = nil
	}()

	c.startCountdown()
	render(c.View())

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ticks:
			if c.Tick(ctx) {
				render(c.View())
			}
		case in, ok := <-intents:
			if !ok || in.Action == ActionQuit {
				return
			}
			c.Handle(ctx, in)
			render(c.View())
		}
	}
}

// StopCountdown stops the ticker. Stopping a stopped countdown is a no-op.
func (c *Controller) StopCountdown() {
	if c.stopTicker == nil {
		return
	}
	c.stopTicker()
	c.stopTicker = nil
	c.ticks = nil
}

// CountdownRunning reports whether ticks are being delivered.
func (c *Controller) CountdownRunning() bool {
	return c.stopTicker != nil
}

func (c *Controller) startCountdown() {
	if c.stopTicker != nil || c.engine.Finished() {
		return
	}
	c.ticks, c.stopTicker = c.newTicker()
}

func (c *Controller) finish(ctx context.Context, reason string) {
	c.engine.Finish()
	c.persist(ctx)
	c.StopCountdown()
	c.logFinished(reason)
}

func (c *Controller) restart(ctx context.Context) {
	c.StopCountdown()
	if c.writer != nil {
		c.writer.clear()
	} else if err := c.store.Clear(ctx); err != nil {
		slog.Warn("failed to clear session", "key", c.store.Key(), "error", err)
	}
	c.engine = quiz.New(c.def)
	c.review = false
	if c.running {
		c.startCountdown()
	}
	slog.Info("session restarted", "key", c.store.Key())
	c.logEvent(EventSessionRestarted, nil)
}

func (c *Controller) persistIf(ctx context.Context, changed bool) bool {
	if changed {
		c.persist(ctx)
	}
	return changed
}

// persist writes the snapshot through to the store. Failures only cost
// durability, so they are logged and the session carries on in memory.
// While Run is active the write is handed to the background writer.
func (c *Controller) persist(ctx context.Context) {
	data, err := json.Marshal(c.engine.State())
	if err != nil {
		slog.Warn("failed to encode session", "error", err)
		return
	}
	if c.writer != nil {
		c.writer.save(data)
		return
	}
	if err := c.store.Save(ctx, data); err != nil {
		slog.Warn("failed to save session", "key", c.store.Key(), "error", err)
	}
}

func (c *Controller) loadSnapshot(ctx context.Context) map[string]any {
	data, ok, err := c.store.Load(ctx)
	if err != nil {
		slog.Warn("failed to load session, starting fresh", "key", c.store.Key(), "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	snap, err := quiz.DecodeSnapshot(data)
	if err != nil {
		slog.Warn("discarding unreadable session", "key", c.store.Key(), "error", err)
		return nil
	}
	return snap
}

func (c *Controller) logFinished(reason string) {
	s := c.engine.Summary()
	slog.Info("quiz finished",
		"key", c.store.Key(),
		"reason", reason,
		"correct", s.Correct,
		"total", s.Total,
		"passed", s.Passed,
	)
	c.logEvent(EventQuizFinished, map[string]any{
		"reason":        reason,
		"correct":       s.Correct,
		"total":         s.Total,
		"percent":       s.Percent,
		"passed":        s.Passed,
		"remaining_sec": c.engine.RemainingSec(),
	})
}

func (c *Controller) logEvent(eventType string, data map[string]any) {
	if err := c.events.LogEvent(Event{
		SessionKey: c.store.Key(),
		EventType:  eventType,
		Data:       data,
	}); err != nil {
		slog.Warn("failed to log event", "type", eventType, "error", err)
	}
}
