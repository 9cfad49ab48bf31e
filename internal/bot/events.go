// internal/bot/events.go
package bot

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/events"
	"github.com/rovshanmuradov/raydium-sniper/internal/logger"
)

// TradeJournal logs every trade event on the bus and keeps running totals.
type TradeJournal struct {
	logger *zap.Logger

	mu     sync.Mutex
	counts map[events.EventType]int
	// realized суммирует PnL (в процентах) закрытых позиций.
	realized float64
	closed   int
}

// NewTradeJournal creates a journal.
func NewTradeJournal(log *zap.Logger) *TradeJournal {
	return &TradeJournal{
		logger: log.Named("journal"),
		counts: make(map[events.EventType]int),
	}
}

// Attach subscribes the journal to all trade events on bus.
func (j *TradeJournal) Attach(bus *events.Bus) events.Subscription {
	return bus.Subscribe(j, events.TradeSubmitted, events.TradeConfirmed, events.TradeFailed, events.TradeAmbiguous)
}

// Handle implements events.Handler.
func (j *TradeJournal) Handle(_ context.Context, event events.Event) error {
	ev, ok := event.(events.TradeEvent)
	if !ok {
		return nil
	}

	j.mu.Lock()
	j.counts[ev.EventType]++
	if ev.EventType == events.TradeConfirmed && ev.Side == events.SideSell {
		j.realized += ev.PnLPercent
		j.closed++
	}
	j.mu.Unlock()

	fields := append(ev.Fields(), zap.String("short_token", logger.ShortenAddress(ev.Token)))
	switch ev.EventType {
	case events.TradeFailed:
		j.logger.Warn("Trade failed", fields...)
	case events.TradeAmbiguous:
		j.logger.Warn("Trade unresolved", fields...)
	case events.TradeConfirmed:
		j.logger.Info("Trade confirmed", fields...)
	default:
		j.logger.Debug("Trade submitted", fields...)
	}
	return nil
}

// Summary is a snapshot of the journal totals.
type Summary struct {
	Submitted int
	Confirmed int
	Failed    int
	Ambiguous int
	Closed    int
	// AvgPnLPercent is the mean realized PnL of confirmed sells.
	AvgPnLPercent float64
}

// Summary returns the totals seen so far.
func (j *TradeJournal) Summary() Summary {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := Summary{
		Submitted: j.counts[events.TradeSubmitted],
		Confirmed: j.counts[events.TradeConfirmed],
		Failed:    j.counts[events.TradeFailed],
		Ambiguous: j.counts[events.TradeAmbiguous],
		Closed:    j.closed,
	}
	if j.closed > 0 {
		s.AvgPnLPercent = j.realized / float64(j.closed)
	}
	return s
}
