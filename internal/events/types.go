// internal/events/types.go
package events

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType represents the type of event.
type EventType string

const (
	// Trade lifecycle events
	TradeSubmitted EventType = "trade.submitted"
	TradeConfirmed EventType = "trade.confirmed"
	TradeFailed    EventType = "trade.failed"
	TradeAmbiguous EventType = "trade.ambiguous"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	ID        string
	EventType EventType
	EventTime time.Time
}

// NewBaseEvent stamps a fresh id and the current time.
func NewBaseEvent(t EventType) BaseEvent {
	return BaseEvent{ID: uuid.NewString(), EventType: t, EventTime: time.Now()}
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// TradeEvent reports a stage of an entry or exit transaction.
type TradeEvent struct {
	BaseEvent
	Side        Side
	Token       string
	PoolID      string
	Signature   string
	SOLAmount   float64
	TokenAmount uint64
	Price       float64
	PnLPercent  float64
	Reason      string // exit reason, or the trigger kind for entries
	CopiedFrom  string
	Error       string
}

// Fields renders e for structured logs.
func (e TradeEvent) Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("event", string(e.EventType)),
		zap.String("side", string(e.Side)),
		zap.String("token", e.Token),
		zap.String("signature", e.Signature),
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	return fields
}
