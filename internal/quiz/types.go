// Package quiz implements the timed multiple-choice quiz state machine.
package quiz

// Question is a single multiple-choice quiz item.
type Question struct {
	ID           string   `json:"id" yaml:"id"`
	Text         string   `json:"text" yaml:"text"`
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"correctIndex" yaml:"correctIndex"`
	Topic        string   `json:"topic,omitempty" yaml:"topic,omitempty"`
}

// Definition is the immutable quiz configuration a session is built from.
type Definition struct {
	Title         string     `json:"title" yaml:"title"`
	TimeLimitSec  int        `json:"timeLimitSec" yaml:"timeLimitSec"`
	PassThreshold float64    `json:"passThreshold" yaml:"passThreshold"`
	Questions     []Question `json:"questions" yaml:"questions"`
}

// Phase is the scoring lifecycle of a session.
type Phase int

const (
	PhaseInProgress Phase = iota
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseInProgress:
		return "in_progress"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Summary is the score derived from the recorded answers.
type Summary struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"` // fraction in [0,1]
	Passed  bool    `json:"passed"`
}

// Snapshot captures the mutable session fields of an Engine.
// The quiz definition is deliberately not part of it.
type Snapshot struct {
	CurrentIndex int            `json:"currentIndex"`
	Answers      map[string]int `json:"answers"`
	RemainingSec int            `json:"remainingSec"`
	IsFinished   bool           `json:"isFinished"`
}
