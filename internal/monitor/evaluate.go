// internal/monitor/evaluate.go
package monitor

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/raydium-sniper/internal/config"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/models"
)

var hundred = decimal.NewFromInt(100)

// PnLPercent returns (price - entry) / entry * 100, rounded to 6 places.
// Decimal arithmetic keeps threshold prices such as 0.90 against 1.0 at
// exactly -10.
func PnLPercent(entry, price float64) decimal.Decimal {
	e := decimal.NewFromFloat(entry)
	if e.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(price).Sub(e).Div(e).Mul(hundred).Round(6)
}

// Evaluate decides whether pos should be closed at price. Rules apply in
// order: take profit, stop loss, time stop. A zero stop loss or max hold
// time disables that rule.
func Evaluate(pos *models.Position, price float64, now time.Time, cfg config.StrategyConfig) (models.ExitReason, float64, bool) {
	pnl := PnLPercent(pos.EntryPrice, price)
	pnlF := pnl.InexactFloat64()

	if pnl.GreaterThanOrEqual(decimal.NewFromFloat(cfg.TakeProfitPercent)) {
		return models.ExitTakeProfit, pnlF, true
	}
	if cfg.StopLossPercent > 0 && pnl.LessThanOrEqual(decimal.NewFromFloat(cfg.StopLossPercent).Neg()) {
		return models.ExitStopLoss, pnlF, true
	}
	if cfg.MaxHoldTime > 0 && pos.HeldFor(now) >= cfg.MaxHoldTime {
		return models.ExitTimeStop, pnlF, true
	}
	return models.ExitNone, pnlF, false
}
