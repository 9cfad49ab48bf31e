// internal/events/redis_sink.go
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSink appends trade events to a Redis stream and mirrors the set of
// open positions into a hash keyed by token, so external dashboards can
// follow the bot without touching its database.
type RedisSink struct {
	rdb     redis.Cmdable
	stream  string
	openKey string
	logger  *zap.Logger
}

type openPositionDoc struct {
	PoolID      string  `json:"pool_id"`
	Signature   string  `json:"signature"`
	SOLAmount   float64 `json:"sol_amount"`
	TokenAmount uint64  `json:"token_amount"`
	EntryPrice  float64 `json:"entry_price"`
	CopiedFrom  string  `json:"copied_from,omitempty"`
	OpenedAtMs  int64   `json:"opened_at_ms"`
}

// NewRedisSink creates a sink writing to stream and stream+":open".
func NewRedisSink(rdb redis.Cmdable, stream string, logger *zap.Logger) *RedisSink {
	return &RedisSink{
		rdb:     rdb,
		stream:  stream,
		openKey: stream + ":open",
		logger:  logger.Named("redis-sink"),
	}
}

// Attach subscribes the sink to every trade event on bus.
func (s *RedisSink) Attach(bus *Bus) Subscription {
	return bus.Subscribe(s, TradeSubmitted, TradeConfirmed, TradeFailed, TradeAmbiguous)
}

// Handle implements Handler.
func (s *RedisSink) Handle(ctx context.Context, event Event) error {
	ev, ok := event.(TradeEvent)
	if !ok {
		return nil
	}

	pipe := s.rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: streamValues(ev),
	})

	if ev.EventType == TradeConfirmed {
		switch ev.Side {
		case SideBuy:
			doc, err := json.Marshal(openPositionDoc{
				PoolID:      ev.PoolID,
				Signature:   ev.Signature,
				SOLAmount:   ev.SOLAmount,
				TokenAmount: ev.TokenAmount,
				EntryPrice:  ev.Price,
				CopiedFrom:  ev.CopiedFrom,
				OpenedAtMs:  ev.EventTime.UnixMilli(),
			})
			if err != nil {
				return fmt.Errorf("marshal open position: %w", err)
			}
			pipe.HSet(ctx, s.openKey, ev.Token, string(doc))
		case SideSell:
			pipe.HDel(ctx, s.openKey, ev.Token)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("Failed to mirror trade event", append(ev.Fields(), zap.NamedError("redis_error", err))...)
		return err
	}
	return nil
}

func streamValues(ev TradeEvent) map[string]interface{} {
	values := map[string]interface{}{
		"id":        ev.ID,
		"type":      string(ev.EventType),
		"ts_ms":     ev.EventTime.UnixMilli(),
		"side":      string(ev.Side),
		"token":     ev.Token,
		"signature": ev.Signature,
	}
	if ev.PoolID != "" {
		values["pool_id"] = ev.PoolID
	}
	if ev.SOLAmount != 0 {
		values["sol_amount"] = ev.SOLAmount
	}
	if ev.TokenAmount != 0 {
		values["token_amount"] = ev.TokenAmount
	}
	if ev.Price != 0 {
		values["price"] = ev.Price
	}
	if ev.Side == SideSell && ev.EventType == TradeConfirmed {
		values["pnl_percent"] = ev.PnLPercent
	}
	if ev.Reason != "" {
		values["reason"] = ev.Reason
	}
	if ev.CopiedFrom != "" {
		values["copied_from"] = ev.CopiedFrom
	}
	if ev.Error != "" {
		values["error"] = ev.Error
	}
	return values
}

// OpenPositions returns the mirrored open positions keyed by token.
func (s *RedisSink) OpenPositions(ctx context.Context) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, s.openKey).Result()
}
