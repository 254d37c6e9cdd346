package event

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by ledger read paths when no record matches.
var ErrNotFound = errors.New("not found")

// BlockedError is the agent-visible BLOCK signal raised by framework
// adapters. It carries the full Event so callers can log forensics.
// Inside the interception pipeline BLOCK is a normal return value, never
// an error.
type BlockedError struct {
	Event Event
}

// Error implements the error interface.
func (e *BlockedError) Error() string {
	return fmt.Sprintf("action %q blocked: risk score %.2f: %s",
		e.Event.Action.ToolName, e.Event.Assessment.Score, e.Event.Assessment.Reason)
}

// AsBlocked unwraps err into a *BlockedError if it is one.
func AsBlocked(err error) (*BlockedError, bool) {
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return blocked, true
	}
	return nil, false
}
