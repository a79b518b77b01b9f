// Command quiz runs a timed quiz in the terminal. Progress is saved after
// every answer and tick, so an interrupted session resumes where it left off.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-quiz/internal/app"
	"github.com/p-n-ai/pai-quiz/internal/platform/config"
	"github.com/p-n-ai/pai-quiz/internal/platform/logger"
	"github.com/p-n-ai/pai-quiz/internal/quizsource"
	"github.com/p-n-ai/pai-quiz/internal/render"
	"github.com/p-n-ai/pai-quiz/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	// stdout belongs to the quiz screen.
	slog.SetDefault(logger.New(os.Stderr, cfg.Log))

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		var loadErr *quizsource.LoadError
		if errors.As(err, &loadErr) {
			fmt.Fprintf(os.Stderr, "cannot load quiz from %s: %s\n", loadErr.Source, loadErr.Reason)
			if loadErr.Err != nil {
				fmt.Fprintf(os.Stderr, "  %v\n", loadErr.Err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "cannot start quiz: %v\n", err)
		}
		os.Exit(1)
	}
	defer a.Close()

	run(ctx, a, os.Stdin, os.Stdout)
}

// run drives one terminal session until quit, end of input or ctx ends.
func run(ctx context.Context, a *app.App, in io.Reader, out io.Writer) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := render.New(out, language.English)
	c := a.NewController(ctx)
	intents := make(chan session.Intent)

	go readCommands(ctx, in, intents, r)

	reported := false
	c.Run(ctx, intents, func(v session.View) {
		if err := r.Render(v); err != nil {
			slog.Warn("render failed", "error", err)
		}
		if !v.Finished {
			reported = false
			return
		}
		if reported || a.Config.Report.Path == "" {
			return
		}
		reported = true
		if err := a.SaveReport(a.Config.Report.Path, c.Engine()); err != nil {
			slog.Warn("failed to write report", "path", a.Config.Report.Path, "error", err)
			r.Notice("could not write results: " + err.Error())
			return
		}
		r.Notice("results written to " + a.Config.Report.Path)
	})
}

func readCommands(ctx context.Context, in io.Reader, out chan<- session.Intent, r *render.Renderer) {
	defer close(out)

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		intent, err := session.ParseCommand(sc.Text())
		if err != nil {
			r.Notice(err.Error())
			continue
		}
		select {
		case out <- intent:
		case <-ctx.Done():
			return
		}
	}
	if err := sc.Err(); err != nil {
		slog.Warn("reading input failed", "error", err)
	}
}
