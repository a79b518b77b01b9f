package session

import "github.com/p-n-ai/pai-quiz/internal/quiz"

// View is the presentation state of a session after an operation.
type View struct {
	Title        string        `json:"title"`
	Index        int           `json:"index"`
	Total        int           `json:"total"`
	Question     *QuestionView `json:"question,omitempty"`
	Selected     *int          `json:"selected,omitempty"`
	Answered     int           `json:"answered"`
	RemainingSec int           `json:"remainingSec"`
	Finished     bool          `json:"finished"`
	Review       bool          `json:"review"`
	Summary      *quiz.Summary `json:"summary,omitempty"`
}

// QuestionView is the current question as shown to the user. The correct
// option is only revealed in review mode.
type QuestionView struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	Topic        string   `json:"topic,omitempty"`
	CorrectIndex *int     `json:"correctIndex,omitempty"`
}

func buildView(e *quiz.Engine, review bool) View {
	v := View{
		Title:        e.Title(),
		Index:        e.CurrentIndex(),
		Total:        e.Len(),
		Answered:     len(e.Answers()),
		RemainingSec: e.RemainingSec(),
		Finished:     e.Finished(),
		Review:       review,
	}

	if q, ok := e.Current(); ok {
		qv := &QuestionView{
			ID:      q.ID,
			Text:    q.Text,
			Options: q.Options,
			Topic:   q.Topic,
		}
		if review {
			correct := q.CorrectIndex
			qv.CorrectIndex = &correct
		}
		v.Question = qv
	}

	if sel, ok := e.SelectedIndex(); ok {
		v.Selected = &sel
	}

	if e.Finished() {
		s := e.Summary()
		v.Summary = &s
	}

	return v
}
