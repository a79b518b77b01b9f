package quiz

import (
	"encoding/json"
	"fmt"
	"math"
)

// DecodeSnapshot parses stored snapshot text into the loosely typed form
// accepted by Restore.
func DecodeSnapshot(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return raw, nil
}

// Restore rebuilds an engine for def from a previously captured snapshot.
// Every field is restored on its own: a missing, mistyped or out-of-range
// field falls back to its fresh-start value without affecting the others.
func Restore(def Definition, snap map[string]any) *Engine {
	e := New(def)
	if snap == nil {
		return e
	}

	if idx, ok := intField(snap["currentIndex"]); ok && idx >= 0 && idx < e.Len() {
		e.current = idx
	}

	if rem, ok := intField(snap["remainingSec"]); ok && rem >= 0 && rem <= e.remaining {
		e.remaining = rem
	}

	if finished, ok := snap["isFinished"].(bool); ok && finished {
		e.phase = PhaseFinished
	}
	// An expired countdown cannot be ticked again, so it can only mean
	// the session already ended.
	if e.remaining == 0 && def.TimeLimitSec > 0 {
		e.phase = PhaseFinished
	}

	e.answers = answersField(snap["answers"], def.Questions)
	return e
}

// answersField keeps the well-typed entries for questions that exist in
// the quiz and drops everything else.
func answersField(v any, questions []Question) map[string]int {
	out := make(map[string]int)

	var entries map[string]any
	switch m := v.(type) {
	case map[string]any:
		entries = m
	case map[string]int:
		entries = make(map[string]any, len(m))
		for k, n := range m {
			entries[k] = n
		}
	default:
		return out
	}

	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}

	for id, raw := range entries {
		if _, ok := known[id]; !ok {
			continue
		}
		if n, ok := intField(raw); ok {
			out[id] = n
		}
	}
	return out
}

// intField accepts JSON numbers and Go integers holding an integral value.
func intField(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		if n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}
