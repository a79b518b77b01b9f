package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Action is a user intent forwarded by a presentation adapter.
type Action string

const (
	ActionPrev    Action = "prev"
	ActionNext    Action = "next"
	ActionGoTo    Action = "goto"
	ActionSelect  Action = "select"
	ActionFinish  Action = "finish"
	ActionReview  Action = "review"
	ActionRestart Action = "restart"
	ActionQuit    Action = "quit"
)

// Intent is one discrete user action. Index is zero based and only used
// by ActionGoTo and ActionSelect.
type Intent struct {
	Action Action `json:"action"`
	Index  int    `json:"index,omitempty"`
}

// ParseCommand turns a line typed at the terminal into an intent.
// Question and option numbers are one based on the command line.
func ParseCommand(line string) (Intent, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Intent{}, fmt.Errorf("empty command")
	}

	cmd, args := fields[0], fields[1:]

	if n, err := strconv.Atoi(cmd); err == nil && len(args) == 0 {
		return Intent{Action: ActionSelect, Index: n - 1}, nil
	}

	switch cmd {
	case "n", "next":
		return Intent{Action: ActionNext}, nil
	case "p", "prev", "previous":
		return Intent{Action: ActionPrev}, nil
	case "f", "finish", "submit":
		return Intent{Action: ActionFinish}, nil
	case "r", "review":
		return Intent{Action: ActionReview}, nil
	case "restart":
		return Intent{Action: ActionRestart}, nil
	case "q", "quit", "exit":
		return Intent{Action: ActionQuit}, nil
	case "g", "goto", "s", "select":
		if len(args) != 1 {
			return Intent{}, fmt.Errorf("%s needs a number", cmd)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return Intent{}, fmt.Errorf("%s: %q is not a number", cmd, args[0])
		}
		action := ActionGoTo
		if cmd == "s" || cmd == "select" {
			action = ActionSelect
		}
		return Intent{Action: action, Index: n - 1}, nil
	}

	return Intent{}, fmt.Errorf("unknown command %q", cmd)
}
