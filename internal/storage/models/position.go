// internal/storage/models/position.go
package models

import "time"

// PositionStatus is the lifecycle state of a position row.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
	// StatusVoided marks an optimistic entry whose transaction definitively failed.
	StatusVoided PositionStatus = "voided"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitNone       ExitReason = "none"
	ExitTakeProfit ExitReason = "take_profit"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTimeStop   ExitReason = "time_stop"
	ExitManual     ExitReason = "manual"
	ExitCopyExit   ExitReason = "copy_exit"
)

// Position is one entry into a token. TokenAddress identifies the position;
// at most one row per token is open at any time.
type Position struct {
	ID           int64
	TokenAddress string
	PoolID       string
	EntryPrice   float64
	EntrySOL     float64
	TokenAmount  uint64
	EntryTime    time.Time
	Status       PositionStatus
	ExitReason   ExitReason
	ExitPrice    *float64
	ExitTime     *time.Time
	PnLPercent   *float64
	CopiedFrom   *string
	EntryTx      string
	ExitTx       *string
	Note         *string
}

// IsOpen reports whether the position still holds tokens.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// HeldFor returns how long the position has been held at now.
func (p *Position) HeldFor(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// ClosePatch carries the fields written when a position is closed.
type ClosePatch struct {
	Reason     ExitReason
	ExitPrice  float64
	ExitTime   time.Time
	PnLPercent float64
	ExitTx     string
}
