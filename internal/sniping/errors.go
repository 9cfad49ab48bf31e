// internal/sniping/errors.go
package sniping

import (
	"errors"
	"fmt"
)

// Rejection stages, used as log field and metric label.
const (
	StageFilter  = "filter"
	StageDedup   = "dedup"
	StageSizing  = "sizing"
	StageDelay   = "delay"
	StageExecute = "execute"
)

// ErrRejected matches every RejectError.
var ErrRejected = errors.New("trigger rejected")

// RejectError explains why a trigger did not become a decision.
type RejectError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *RejectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rejected at %s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("rejected at %s: %s", e.Stage, e.Reason)
}

func (e *RejectError) Unwrap() error { return e.Err }

func (e *RejectError) Is(target error) bool { return target == ErrRejected }

func reject(stage, reason string, err error) *RejectError {
	return &RejectError{Stage: stage, Reason: reason, Err: err}
}
