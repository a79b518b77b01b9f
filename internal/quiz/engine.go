package quiz

import "maps"

// Engine owns the progress of one quiz session: position, answers,
// remaining time and phase. It is not safe for concurrent use; a single
// owner serializes every call.
type Engine struct {
	def       Definition
	current   int
	answers   map[string]int
	remaining int
	phase     Phase
}

// New creates an engine at the start of the quiz.
func New(def Definition) *Engine {
	return &Engine{
		def:       def,
		answers:   make(map[string]int),
		remaining: max(def.TimeLimitSec, 0),
		phase:     PhaseInProgress,
	}
}

// Definition returns the quiz the engine was built from.
func (e *Engine) Definition() Definition {
	return e.def
}

// Title returns the quiz title.
func (e *Engine) Title() string {
	return e.def.Title
}

// Len returns the number of questions.
func (e *Engine) Len() int {
	return len(e.def.Questions)
}

// CurrentIndex returns the position of the current question.
func (e *Engine) CurrentIndex() int {
	return e.current
}

// Current returns the question at the current position.
// ok is false when the quiz has no questions.
func (e *Engine) Current() (Question, bool) {
	if len(e.def.Questions) == 0 {
		return Question{}, false
	}
	return e.def.Questions[e.current], true
}

// RemainingSec returns the seconds left on the countdown.
func (e *Engine) RemainingSec() int {
	return e.remaining
}

// Phase returns the scoring lifecycle phase.
func (e *Engine) Phase() Phase {
	return e.phase
}

// Finished reports whether the quiz has been submitted.
func (e *Engine) Finished() bool {
	return e.phase == PhaseFinished
}

// Answers returns a copy of the recorded answers keyed by question ID.
func (e *Engine) Answers() map[string]int {
	return maps.Clone(e.answers)
}

// AnswerFor returns the recorded option for a question.
func (e *Engine) AnswerFor(id string) (int, bool) {
	v, ok := e.answers[id]
	return v, ok
}

// SelectedIndex returns the recorded option for the current question.
func (e *Engine) SelectedIndex() (int, bool) {
	q, ok := e.Current()
	if !ok {
		return 0, false
	}
	return e.AnswerFor(q.ID)
}

// GoTo moves to index if it is within bounds.
func (e *Engine) GoTo(index int) bool {
	if index < 0 || index >= len(e.def.Questions) {
		return false
	}
	e.current = index
	return true
}

// Next advances one question, stopping at the last one.
func (e *Engine) Next() bool {
	return e.GoTo(e.current + 1)
}

// Prev steps back one question, stopping at the first one.
func (e *Engine) Prev() bool {
	return e.GoTo(e.current - 1)
}

// Select records option as the answer to the current question,
// replacing any earlier choice. Option is not range checked; an
// out-of-range value never scores. Selections after finish are ignored.
func (e *Engine) Select(option int) bool {
	if e.phase == PhaseFinished {
		return false
	}
	q, ok := e.Current()
	if !ok {
		return false
	}
	e.answers[q.ID] = option
	return true
}

// Tick accounts for one elapsed second. When the countdown reaches zero
// the quiz is finished as part of the same call. It reports whether the
// state changed.
func (e *Engine) Tick() bool {
	if e.phase == PhaseFinished || e.remaining <= 0 {
		return false
	}
	e.remaining--
	if e.remaining == 0 {
		e.Finish()
	}
	return true
}

// Finish submits the quiz and returns its summary. Calling it again
// returns the same summary.
func (e *Engine) Finish() Summary {
	e.phase = PhaseFinished
	return e.Summary()
}

// Summary scores the recorded answers without changing the phase.
func (e *Engine) Summary() Summary {
	total := len(e.def.Questions)
	correct := 0
	for _, q := range e.def.Questions {
		if a, ok := e.answers[q.ID]; ok && a == q.CorrectIndex {
			correct++
		}
	}

	var percent float64
	if total > 0 {
		percent = float64(correct) / float64(total)
	}

	return Summary{
		Correct: correct,
		Total:   total,
		Percent: percent,
		Passed:  percent >= e.def.PassThreshold,
	}
}

// State returns a copy of the session progress for persistence.
func (e *Engine) State() Snapshot {
	return Snapshot{
		CurrentIndex: e.current,
		Answers:      maps.Clone(e.answers),
		RemainingSec: e.remaining,
		IsFinished:   e.phase == PhaseFinished,
	}
}
