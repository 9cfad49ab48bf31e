// internal/transaction/errors.go
package transaction

import (
	"errors"
	"fmt"
)

// Pipeline stages reported in Error.
const (
	StageResolve = "resolve"
	StageLoad    = "load"
	StageQuote   = "quote"
	StageBuild   = "build"
	StageSubmit  = "submit"
	StageConfirm = "confirm"
	StageStore   = "store"
)

var (
	// ErrSubmissionRejected means the node refused the transaction in
	// preflight. Nothing was written to the store.
	ErrSubmissionRejected = errors.New("submission rejected")
	// ErrTransactionFailed means the transaction landed with an error.
	ErrTransactionFailed = errors.New("transaction failed on chain")
	// ErrTimeout means confirmation and the re-check chain were both
	// inconclusive. The position keeps its previous status.
	ErrTimeout = errors.New("confirmation timed out")
	// ErrInsufficientBalance means the wallet cannot cover the trade plus the
	// SOL reserve.
	ErrInsufficientBalance = errors.New("insufficient SOL balance")
)

// Error is a pipeline failure tagged with the stage it happened in.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	return &Error{Stage: stage, Err: err}
}
