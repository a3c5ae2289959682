// Package action maps verdicts to the platform action taken on a comment.
package action

import (
	"fmt"
	"strings"

	"github.com/whisper/moderator/internal/verdict"
)

// Action is what the platform integration does with a comment.
type Action string

const (
	Approve Action = "approve"
	Hide    Action = "hide"
	Remove  Action = "remove"
	// Queue leaves the comment for a human on the platform side.
	Queue Action = "queue"
	// HideAndQueue hides the comment and queues it for a human.
	HideAndQueue Action = "hide_and_queue"
)

// Mode is the deployment-wide enforcement mode.
type Mode string

const (
	// Full removes comments with REMOVE or BAN verdicts.
	Full Mode = "FULL"
	// MaxHide never removes: REMOVE and BAN are hidden and queued instead.
	MaxHide Mode = "MAX_HIDE"
)

// ParseMode accepts "full" or "max_hide" in any case.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case Full:
		return Full, nil
	case MaxHide:
		return MaxHide, nil
	}
	return "", fmt.Errorf("action: unknown mode %q", s)
}

// For returns the action for v under mode.
func For(v verdict.Verdict, mode Mode) (Action, error) {
	switch v {
	case verdict.Accept:
		return Approve, nil
	case verdict.Hide:
		return Hide, nil
	case verdict.Remove, verdict.Ban:
		if mode == MaxHide {
			return HideAndQueue, nil
		}
		return Remove, nil
	case verdict.HumanReview:
		return Queue, nil
	}
	return "", fmt.Errorf("%w: %d", verdict.ErrUnknownVerdict, int(v))
}

// ForCode maps an external verdict code.
func ForCode(code int, mode Mode) (Action, error) {
	v, err := verdict.FromCode(code)
	if err != nil {
		return "", err
	}
	return For(v, mode)
}
