// Package render draws a session view as plain terminal text.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/p-n-ai/pai-quiz/internal/session"
)

const help = "commands: n next, p prev, g N goto, N select, f finish, r review, restart, q quit"

// Renderer writes views to a terminal. Render and Notice may be called
// from different goroutines.
type Renderer struct {
	mu sync.Mutex
	w  io.Writer
	p  *message.Printer
}

// New returns a renderer that formats numbers for the given language.
func New(w io.Writer, tag language.Tag) *Renderer {
	return &Renderer{w: w, p: message.NewPrinter(tag)}
}

// Render writes one full frame for v.
func (r *Renderer) Render(v session.View) error {
	text := r.Text(v)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := io.WriteString(r.w, text)
	return err
}

// Notice writes a one-line message below the current frame.
func (r *Renderer) Notice(msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintf(r.w, "! %s\n", msg)
	return err
}

// Text formats v without writing it.
func (r *Renderer) Text(v session.View) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(v.Title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", max(utf8.RuneCountInString(v.Title), 1)))
	b.WriteString("\n")

	if v.Total == 0 {
		b.WriteString("This quiz has no questions.\n")
	} else {
		r.p.Fprintf(&b, "Question %d/%d   Time left %s   Answered %d/%d\n",
			v.Index+1, v.Total, Clock(v.RemainingSec), v.Answered, v.Total)
	}

	if q := v.Question; q != nil {
		b.WriteString("\n")
		b.WriteString(q.Text)
		b.WriteString("\n")
		if q.Topic != "" {
			fmt.Fprintf(&b, "Topic: %s\n", q.Topic)
		}
		for i, opt := range q.Options {
			mark := " "
			if v.Selected != nil && *v.Selected == i {
				mark = "x"
			}
			fmt.Fprintf(&b, "  [%s] %d) %s", mark, i+1, opt)
			if q.CorrectIndex != nil && *q.CorrectIndex == i {
				b.WriteString("  <- correct")
			}
			b.WriteString("\n")
		}
		if v.Review && q.CorrectIndex != nil {
			b.WriteString(answerVerdict(v.Selected, *q.CorrectIndex))
			b.WriteString("\n")
		}
	}

	if s := v.Summary; s != nil {
		status := "FAILED"
		if s.Passed {
			status = "PASSED"
		}
		b.WriteString("\n")
		r.p.Fprintf(&b, "Finished: %d of %d correct (%v) %s\n",
			s.Correct, s.Total, number.Percent(s.Percent), status)
		if !v.Review {
			b.WriteString("Type r to review your answers or restart to begin again.\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(help)
	b.WriteString("\n> ")

	return b.String()
}

func answerVerdict(selected *int, correct int) string {
	switch {
	case selected == nil:
		return "Not answered."
	case *selected == correct:
		return "Your answer is correct."
	default:
		return "Your answer is wrong."
	}
}

// Clock formats seconds as mm:ss. Minutes are not wrapped into hours.
func Clock(sec int) string {
	sec = max(sec, 0)
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}
