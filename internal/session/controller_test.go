package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/session"
	"github.com/p-n-ai/pai-quiz/internal/store"
)

func testDefinition() quiz.Definition {
	return quiz.Definition{
		Title:         "Algebra basics",
		TimeLimitSec:  3,
		PassThreshold: 0.5,
		Questions: []quiz.Question{
			{ID: "q1", Text: "2x = 4, x = ?", Options: []string{"1", "2"}, CorrectIndex: 1},
			{ID: "q2", Text: "x + 1 = 1, x = ?", Options: []string{"0", "1"}, CorrectIndex: 0},
		},
	}
}

// manualClock hands out a ticker channel the test drives by hand.
type manualClock struct {
	ch     chan time.Time
	starts int
	stops  int
}

func newManualClock() *manualClock {
	return &manualClock{ch: make(chan time.Time)}
}

func (m *manualClock) ticker() (<-chan time.Time, func()) {
	m.starts++
	return m.ch, func() { m.stops++ }
}

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Key() string                                { return "broken" }
func (failingStore) Save(context.Context, []byte) error         { return errors.New("disk full") }
func (failingStore) Load(context.Context) ([]byte, bool, error) { return nil, false, errors.New("io error") }
func (failingStore) Clear(context.Context) error                { return errors.New("io error") }

func storedSnapshot(t *testing.T, s store.SessionStore) quiz.Snapshot {
	t.Helper()
	data, ok, err := s.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("Load() = ok %v, err %v; want stored snapshot", ok, err)
	}
	var snap quiz.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("stored snapshot is not JSON: %v", err)
	}
	return snap
}

func TestNew_FreshSession(t *testing.T) {
	events := session.NewMemoryEventLogger()
	st := store.NewMemoryStore("k")

	c := session.New(t.Context(), session.Config{Definition: testDefinition(), Store: st, Events: events})

	e := c.Engine()
	if e.CurrentIndex() != 0 || e.RemainingSec() != 3 || e.Finished() {
		t.Errorf("fresh engine state = %+v", e.State())
	}
	if got := events.Types(); !slices.Equal(got, []string{session.EventSessionStarted}) {
		t.Errorf("events = %v, want [session_started]", got)
	}
	if events.Events()[0].SessionKey != "k" {
		t.Errorf("SessionKey = %q, want k", events.Events()[0].SessionKey)
	}
}

func TestNew_ResumesStoredSession(t *testing.T) {
	st := store.NewMemoryStore("k")
	_ = st.Save(t.Context(), []byte(`{"currentIndex":1,"answers":{"q1":1},"remainingSec":2,"isFinished":false}`))
	events := session.NewMemoryEventLogger()

	c := session.New(t.Context(), session.Config{Definition: testDefinition(), Store: st, Events: events})

	e := c.Engine()
	if e.CurrentIndex() != 1 || e.RemainingSec() != 2 {
		t.Errorf("resumed state = %+v", e.State())
	}
	if a, ok := e.AnswerFor("q1"); !ok || a != 1 {
		t.Errorf("AnswerFor(q1) = %d, %v; want 1, true", a, ok)
	}
	if got := events.Types(); !slices.Equal(got, []string{session.EventSessionResumed}) {
		t.Errorf("events = %v, want [session_resumed]", got)
	}
}

func TestNew_CorruptSnapshotStartsFresh(t *testing.T) {
	st := store.NewMemoryStore("k")
	_ = st.Save(t.Context(), []byte(`{{{not json`))

	c := session.New(t.Context(), session.Config{Definition: testDefinition(), Store: st})

	if c.Engine().RemainingSec() != 3 || c.Engine().CurrentIndex() != 0 {
		t.Errorf("state = %+v, want fresh", c.Engine().State())
	}
}

func TestNew_StoreLoadFailureStartsFresh(t *testing.T) {
	c := session.New(t.Context(), session.Config{Definition: testDefinition(), Store: failingStore{}})

	if c.Engine().RemainingSec() != 3 {
		t.Errorf("RemainingSec() = %d, want 3", c.Engine().RemainingSec())
	}
}

func TestHandle_WritesThrough(t *testing.T) {
	st := store.NewMemoryStore("k")
	c := session.New(t.Context(), session.Config{Definition: testDefinition(), Store: st})

	if !c.Handle(t.Context(), session.Intent{Action: session.ActionSelect, Index: 1}) {
		t.Fatal("select should change state")
	}
	if snap := storedSnapshot(t, st); snap.Answers["q1"] != 1 {
		t.Errorf("stored answers = %v, want q1:1", snap.Answers)
	}

	c.Handle(t.Context(), session.Intent{Action: session.ActionNext})
	if snap := storedSnapshot(t, st); snap.CurrentIndex != 1 {
		t.Errorf("stored currentIndex = %d, want 1", snap.CurrentIndex)
	}

	c.Handle(t.Context(), session.Intent{Action: session.ActionGoTo, Index: 0})
	if snap := storedSnapshot(t, st); snap.CurrentIndex != 0 {
		t.Errorf("stored currentIndex = %d, want 0", snap.CurrentIndex)
	}
}

func TestHandle_Navigation(t *testing.T) {
	tests := []struct {
		name      string
		intents   []session.Intent
		wantIndex int
		wantLast  bool
	}{
		{"next", []session.Intent{{Action: session.ActionNext}}, 1, true},
		{"next past end", []session.Intent{{Action: session.ActionNext}, {Action: session.ActionNext}}, 1, false},
		{"prev at start", []session.Intent{{Action: session.ActionPrev}}, 0, false},
		{"goto valid", []session.Intent{{Action: session.ActionGoTo, Index: 1}}, 1, true},
		{"goto invalid", []session.Intent{{Action: session.ActionGoTo, Index: 5}}, 0, false},
		{"unknown action", []session.Intent{{Action: "dance"}}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := session.New(t.Context(), session.Config{Definition: testDefinition()})
			var last bool
			for _, in := range tt.intents {
				last = c.Handle(t.Context(), in)
			}
			if last != tt.wantLast {
				t.Errorf("last Handle() = %v, want %v", last, tt.wantLast)
			}
			if c.Engine().CurrentIndex() != tt.wantIndex {
				t.Errorf("CurrentIndex() = %d, want %d", c.Engine().CurrentIndex(), tt.wantIndex)
			}
		})
	}
}

func TestHandle_FinishAndReview(t *testing.T) {
	events := session.NewMemoryEventLogger()
	st := store.NewMemoryStore("k")
	c := session.New(t.Context(), session.Config{Definition: testDefinition(), Store: st, Events: events})
	ctx := t.Context()

	if c.Handle(ctx, session.Intent{Action: session.ActionReview}) {
		t.Error("review before finish should be ignored")
	}

	c.Handle(ctx, session.Intent{Action: session.ActionSelect, Index: 1})
	if !c.Handle(ctx, session.Intent{Action: session.ActionFinish}) {
		t.Fatal("finish should change state")
	}
	if c.Handle(ctx, session.Intent{Action: session.ActionFinish}) {
		t.Error("second finish should be a no-op")
	}
	if c.Handle(ctx, session.Intent{Action: session.ActionSelect, Index: 0}) {
		t.Error("select after finish should be ignored")
	}
	if !storedSnapshot(t, st).IsFinished {
		t.Error("stored snapshot should be finished")
	}

	if !c.Handle(ctx, session.Intent{Action: session.ActionReview}) || !c.Review() {
		t.Error("review after finish should turn review on")
	}
	// Navigation stays available in review mode.
	if !c.Handle(ctx, session.Intent{Action: session.ActionNext}) {
		t.Error("next in review mode should move")
	}

	v := c.View()
	if v.Summary == nil || v.Summary.Correct != 1 || v.Summary.Total != 2 || !v.Summary.Passed {
		t.Errorf("Summary = %+v, want 1/2 passed", v.Summary)
	}
	if v.Question == nil || v.Question.CorrectIndex == nil || *v.Question.CorrectIndex != 0 {
		t.Errorf("review view should reveal the correct option: %+v", v.Question)
	}

	want := []string{session.EventSessionStarted, session.EventAnswerSelected, session.EventQuizFinished}
	if got := events.Types(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	finished := events.Events()[2]
	if finished.Data["reason"] != "submitted" || finished.Data["correct"] != 1 {
		t.Errorf("finished event data = %v", finished.Data)
	}
}

func TestHandle_Restart(t *testing.T) {
	st := store.NewMemoryStore("k")
	events := session.NewMemoryEventLogger()
	c := session.New(t.Context(), session.Config{Definition: testDefinition(), Store: st, Events: events})
	ctx := t.Context()

	c.Handle(ctx, session.Intent{Action: session.ActionSelect, Index: 0})
	c.Handle(ctx, session.Intent{Action: session.ActionFinish})
	c.Handle(ctx, session.Intent{Action: session.ActionReview})

	if !c.Handle(ctx, session.Intent{Action: session.ActionRestart}) {
		t.Fatal("restart should change state")
	}

	e := c.Engine()
	if e.Finished() || e.RemainingSec() != 3 || len(e.Answers()) != 0 || e.CurrentIndex() != 0 {
		t.Errorf("state after restart = %+v, want fresh", e.State())
	}
	if c.Review() {
		t.Error("review should be off after restart")
	}
	if _, ok, _ := st.Load(ctx); ok {
		t.Error("store should be cleared on restart")
	}
	if got := events.Types(); got[len(got)-1] != session.EventSessionRestarted {
		t.Errorf("last event = %q, want session_restarted", got[len(got)-1])
	}
}

func TestHandle_StoreFailuresAreSwallowed(t *testing.T) {
	c := session.New(t.Context(), session.Config{Definition: testDefinition(), Store: failingStore{}})
	ctx := t.Context()

	if !c.Handle(ctx, session.Intent{Action: session.ActionSelect, Index: 1}) {
		t.Error("select should succeed in memory despite store failure")
	}
	if !c.Tick(ctx) {
		t.Error("tick should succeed in memory despite store failure")
	}
	if !c.Handle(ctx, session.Intent{Action: session.ActionRestart}) {
		t.Error("restart should succeed despite clear failure")
	}
}

func TestTick_ExpiresSession(t *testing.T) {
	st := store.NewMemoryStore("k")
	events := session.NewMemoryEventLogger()
	c := session.New(t.Context(), session.Config{Definition: testDefinition(), Store: st, Events: events})
	ctx := t.Context()

	for range 3 {
		if !c.Tick(ctx) {
			t.Fatal("Tick() = false before expiry")
		}
	}
	if c.Tick(ctx) {
		t.Error("Tick() after expiry = true, want false")
	}

	snap := storedSnapshot(t, st)
	if snap.RemainingSec != 0 || !snap.IsFinished {
		t.Errorf("stored snapshot = %+v, want expired and finished", snap)
	}
	last := events.Events()[len(events.Events())-1]
	if last.EventType != session.EventQuizFinished || last.Data["reason"] != "timeout" {
		t.Errorf("last event = %+v, want quiz_finished/timeout", last)
	}
}

func TestStopCountdown_Idempotent(t *testing.T) {
	clock := newManualClock()
	c := session.New(t.Context(), session.Config{Definition: testDefinition(), NewTicker: clock.ticker})

	c.StopCountdown()
	c.StopCountdown()
	if clock.stops != 0 {
		t.Errorf("stops = %d, want 0 for a countdown that never started", clock.stops)
	}
}

// runSession starts Run in the background and returns a view channel
// and a channel closed when Run returns.
func runSession(t *testing.T, ctx context.Context, c *session.Controller, intents <-chan session.Intent) (<-chan session.View, <-chan struct{}) {
	t.Helper()
	views := make(chan session.View, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, intents, func(v session.View) { views <- v })
	}()
	return views, done
}

func nextView(t *testing.T, views <-chan session.View) session.View {
	t.Helper()
	select {
	case v := <-views:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for view")
		return session.View{}
	}
}

func TestRun_TicksAndIntents(t *testing.T) {
	clock := newManualClock()
	st := store.NewMemoryStore("k")
	c := session.New(t.Context(), session.Config{Definition: testDefinition(), Store: st, NewTicker: clock.ticker})

	intents := make(chan session.Intent)
	views, done := runSession(t, t.Context(), c, intents)

	if v := nextView(t, views); v.RemainingSec != 3 || v.Total != 2 || v.Question == nil || v.Question.ID != "q1" {
		t.Fatalf("initial view = %+v", v)
	}

	clock.ch <- time.Now()
	if v := nextView(t, views); v.RemainingSec != 2 {
		t.Errorf("RemainingSec after tick = %d, want 2", v.RemainingSec)
	}

	intents <- session.Intent{Action: session.ActionSelect, Index: 1}
	if v := nextView(t, views); v.Selected == nil || *v.Selected != 1 || v.Answered != 1 {
		t.Errorf("view after select = %+v", v)
	}

	clock.ch <- time.Now()
	nextView(t, views)
	clock.ch <- time.Now()
	v := nextView(t, views)
	if !v.Finished || v.RemainingSec != 0 || v.Summary == nil {
		t.Errorf("view after expiry = %+v, want finished with summary", v)
	}
	if clock.stops != 1 {
		t.Errorf("countdown stops = %d, want 1 after expiry", clock.stops)
	}

	intents <- session.Intent{Action: session.ActionQuit}
	<-done

	if clock.starts != 1 || clock.stops != 1 {
		t.Errorf("starts/stops = %d/%d, want 1/1", clock.starts, clock.stops)
	}
	if snap := storedSnapshot(t, st); !snap.IsFinished || snap.Answers["q1"] != 1 {
		t.Errorf("stored snapshot = %+v", snap)
	}
}

func TestRun_RestartRestartsCountdown(t *testing.T) {
	clock := newManualClock()
	c := session.New(t.Context(), session.Config{Definition: testDefinition(), NewTicker: clock.ticker})

	intents := make(chan session.Intent)
	views, done := runSession(t, t.Context(), c, intents)
	nextView(t, views)

	intents <- session.Intent{Action: session.ActionFinish}
	if v := nextView(t, views); !v.Finished {
		t.Fatalf("view after finish = %+v", v)
	}

	intents <- session.Intent{Action: session.ActionRestart}
	if v := nextView(t, views); v.Finished || v.RemainingSec != 3 {
		t.Fatalf("view after restart = %+v", v)
	}

	clock.ch <- time.Now()
	if v := nextView(t, views); v.RemainingSec != 2 {
		t.Errorf("RemainingSec after restart tick = %d, want 2", v.RemainingSec)
	}

	close(intents)
	<-done

	if clock.starts != 2 || clock.stops != 2 {
		t.Errorf("starts/stops = %d/%d, want 2/2", clock.starts, clock.stops)
	}
}

func TestRun_ResumedFinishedSessionDoesNotTick(t *testing.T) {
	clock := newManualClock()
	st := store.NewMemoryStore("k")
	_ = st.Save(t.Context(), []byte(`{"currentIndex":0,"answers":{},"remainingSec":1,"isFinished":true}`))
	c := session.New(t.Context(), session.Config{Definition: testDefinition(), Store: st, NewTicker: clock.ticker})

	ctx, cancel := context.WithCancel(t.Context())
	views, done := runSession(t, ctx, c, make(chan session.Intent))

	if v := nextView(t, views); !v.Finished {
		t.Errorf("initial view = %+v, want finished", v)
	}
	cancel()
	<-done

	if clock.starts != 0 {
		t.Errorf("countdown started %d times for a finished session", clock.starts)
	}
}

// slowStore delays every save, like a backend that is timing out.
type slowStore struct {
	*store.MemoryStore
	delay time.Duration
}

func (s slowStore) Save(ctx context.Context, data []byte) error {
	time.Sleep(s.delay)
	return s.MemoryStore.Save(ctx, data)
}

func TestRun_SlowStoreDoesNotStretchCountdown(t *testing.T) {
	def := testDefinition()
	def.TimeLimitSec = 60
	clock := newManualClock()
	st := slowStore{MemoryStore: store.NewMemoryStore("k"), delay: 100 * time.Millisecond}
	c := session.New(t.Context(), session.Config{Definition: def, Store: st, NewTicker: clock.ticker})

	intents := make(chan session.Intent)
	views, done := runSession(t, t.Context(), c, intents)
	nextView(t, views)

	start := time.Now()
	for range 10 {
		select {
		case clock.ch <- time.Now():
		case <-time.After(time.Second):
			t.Fatal("tick loop blocked on the store")
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("delivering 10 ticks took %v, want the loop to keep pace", elapsed)
	}

	var last session.View
	for range 10 {
		last = nextView(t, views)
	}
	if last.RemainingSec != 50 {
		t.Errorf("RemainingSec = %d, want 50 after 10 ticks", last.RemainingSec)
	}

	close(intents)
	<-done

	// The latest state is flushed before Run returns.
	if snap := storedSnapshot(t, st); snap.RemainingSec != 50 {
		t.Errorf("stored RemainingSec = %d, want 50", snap.RemainingSec)
	}
}

func TestRun_RestartClearIsNotOverwrittenByOlderSave(t *testing.T) {
	clock := newManualClock()
	st := slowStore{MemoryStore: store.NewMemoryStore("k"), delay: 20 * time.Millisecond}
	c := session.New(t.Context(), session.Config{Definition: testDefinition(), Store: st, NewTicker: clock.ticker})

	intents := make(chan session.Intent)
	views, done := runSession(t, t.Context(), c, intents)
	nextView(t, views)

	intents <- session.Intent{Action: session.ActionSelect, Index: 1}
	nextView(t, views)
	intents <- session.Intent{Action: session.ActionRestart}
	nextView(t, views)

	close(intents)
	<-done

	if _, ok, _ := st.Load(t.Context()); ok {
		t.Error("store should stay cleared after restart")
	}
}
