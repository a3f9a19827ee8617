package cursor

import (
	"errors"
	"fmt"

	"github.com/kingrea/callsheet/internal/worklist"
)

// ErrRefused wraps every guard refusal.
var ErrRefused = errors.New("cursor: action refused")

// GuardContext is the slice of cursor state the guards look at.
type GuardContext struct {
	State         State
	HasCurrent    bool
	HasPrevious   bool
	Authenticated bool
	Restored      bool // current came back through GoBack and is already closed
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // Human-readable reason (populated when not allowed)
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRefused, r.Reason)
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func deny(format string, args ...any) GuardResult {
	return GuardResult{Reason: fmt.Sprintf(format, args...)}
}

// CanMark evaluates whether the current record may be closed with status.
// Rule: only a presented record can be marked, and only while logged in.
func CanMark(ctx GuardContext, status worklist.Status) GuardResult {
	if status != worklist.StatusDone && status != worklist.StatusInvalid {
		return deny("cannot mark a record as %s", status)
	}
	if ctx.State != StatePresenting || !ctx.HasCurrent {
		return deny("no verified customer is on screen (state: %s)", ctx.State)
	}
	if !ctx.Authenticated {
		return deny("you are not logged in")
	}
	return allow()
}

// CanGoBack evaluates whether the previous record can be restored.
// Rule: one level of history, and never while a record is still unresolved.
func CanGoBack(ctx GuardContext) GuardResult {
	if !ctx.HasPrevious {
		return deny("no previous customer in history")
	}
	switch ctx.State {
	case StatePresenting, StateExhausted:
		return allow()
	default:
		return deny("cannot go back while %s", ctx.State)
	}
}

// CanAdvance evaluates whether the walk may move on without a mark.
// Rule: a record the operator has not closed yet is never stepped over.
func CanAdvance(ctx GuardContext) GuardResult {
	switch ctx.State {
	case StateScanning:
		return deny("a check is already running")
	case StatePresenting:
		if ctx.HasCurrent && !ctx.Restored {
			return deny("mark the customer on screen done or invalid first")
		}
	}
	return allow()
}

// CanPreview evaluates whether the pre-login preview may run.
// Rule: only before anything has been shown.
func CanPreview(ctx GuardContext) GuardResult {
	if ctx.State != StateIdle || ctx.HasCurrent {
		return deny("preview is only available before the walk starts")
	}
	return allow()
}
