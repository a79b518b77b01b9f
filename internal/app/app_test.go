package app_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/p-n-ai/pai-quiz/internal/app"
	"github.com/p-n-ai/pai-quiz/internal/platform/config"
	"github.com/p-n-ai/pai-quiz/internal/quizsource"
	"github.com/p-n-ai/pai-quiz/internal/session"
)

const quizYAML = `
title: Fractions
timeLimitSec: 30
passThreshold: 0.5
questions:
  - id: f1
    text: "1/2 + 1/2 = ?"
    options: ["1", "2"]
    correctIndex: 0
  - id: f2
    text: "1/4 of 8 = ?"
    options: ["2", "4"]
    correctIndex: 0
`

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "quiz.yaml")
	if err := os.WriteFile(path, []byte(quizYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return &config.Config{
		Source: config.SourceConfig{Location: path, TimeoutSec: 1},
		Store:  config.StoreConfig{Backend: backend, Dir: filepath.Join(dir, "state")},
	}
}

func TestNew_LoadError(t *testing.T) {
	cfg := testConfig(t, config.StoreMemory)
	cfg.Source.Location = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := app.New(t.Context(), cfg)

	var loadErr *quizsource.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("New() error = %v, want *LoadError", err)
	}
}

func TestApp_ResumeAcrossInstances(t *testing.T) {
	cfg := testConfig(t, config.StoreFile)

	first, err := app.New(t.Context(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c := first.NewController(t.Context())
	c.Handle(t.Context(), session.Intent{Action: session.ActionSelect, Index: 0})
	c.Handle(t.Context(), session.Intent{Action: session.ActionNext})
	first.Close()

	second, err := app.New(t.Context(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer second.Close()

	resumed := second.NewController(t.Context())
	if got := resumed.Engine().CurrentIndex(); got != 1 {
		t.Errorf("resumed CurrentIndex() = %d, want 1", got)
	}
	if a, ok := resumed.Engine().AnswerFor("f1"); !ok || a != 0 {
		t.Errorf("AnswerFor(f1) = %d, %v; want 0, true", a, ok)
	}
}

func TestApp_StoredEngineAndReport(t *testing.T) {
	a, err := app.New(t.Context(), testConfig(t, config.StoreMemory))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	e, err := a.StoredEngine(t.Context())
	if err != nil {
		t.Fatalf("StoredEngine() error = %v", err)
	}
	if e.RemainingSec() != 30 || e.Finished() {
		t.Errorf("empty store should give a fresh engine, got %+v", e.State())
	}

	c := a.NewController(t.Context())
	c.Handle(t.Context(), session.Intent{Action: session.ActionSelect, Index: 0})
	c.Handle(t.Context(), session.Intent{Action: session.ActionFinish})

	e, err = a.StoredEngine(t.Context())
	if err != nil {
		t.Fatalf("StoredEngine() error = %v", err)
	}
	if !e.Finished() || e.Summary().Correct != 1 {
		t.Errorf("stored engine = %+v, want finished with 1 correct", e.State())
	}

	var buf bytes.Buffer
	if err := a.WriteReport(&buf, e); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
		t.Error("report is not a zip container")
	}

	path := filepath.Join(t.TempDir(), "results.xlsx")
	if err := a.SaveReport(path, e); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("report file missing or empty: %v", err)
	}
}

func TestApp_Ready(t *testing.T) {
	a, err := app.New(t.Context(), testConfig(t, config.StoreMemory))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if err := a.Ready(context.Background()); err != nil {
		t.Errorf("Ready() error = %v", err)
	}
}
