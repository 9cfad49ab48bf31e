// internal/monitor/evaluate_test.go
package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rovshanmuradov/raydium-sniper/internal/config"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/models"
)

func exitRules() config.StrategyConfig {
	return config.StrategyConfig{
		TakeProfitPercent: 50,
		StopLossPercent:   10,
		MaxHoldTime:       time.Hour,
	}
}

func TestEvaluate(t *testing.T) {
	entry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pos := &models.Position{TokenAddress: "mint", EntryPrice: 1.0, EntryTime: entry, Status: models.StatusOpen}

	tests := []struct {
		name   string
		price  float64
		held   time.Duration
		rules  func(*config.StrategyConfig)
		want   models.ExitReason
		exit   bool
		pnlApx float64
	}{
		{name: "take profit at threshold", price: 1.5, want: models.ExitTakeProfit, exit: true, pnlApx: 50},
		{name: "just below take profit", price: 1.49, want: models.ExitNone, pnlApx: 49},
		{name: "stop loss at threshold", price: 0.90, want: models.ExitStopLoss, exit: true, pnlApx: -10},
		{name: "just above stop loss", price: 0.91, want: models.ExitNone, pnlApx: -9},
		{name: "time stop", price: 1.1, held: time.Hour, want: models.ExitTimeStop, exit: true, pnlApx: 10},
		{name: "before time stop", price: 1.1, held: 59 * time.Minute, want: models.ExitNone, pnlApx: 10},
		{
			name:   "take profit wins over time stop",
			price:  2,
			held:   2 * time.Hour,
			want:   models.ExitTakeProfit,
			exit:   true,
			pnlApx: 100,
		},
		{
			name:   "stop loss wins over time stop",
			price:  0.5,
			held:   2 * time.Hour,
			want:   models.ExitStopLoss,
			exit:   true,
			pnlApx: -50,
		},
		{
			name:   "zero stop loss disables rule",
			price:  0.2,
			rules:  func(c *config.StrategyConfig) { c.StopLossPercent = 0 },
			want:   models.ExitNone,
			pnlApx: -80,
		},
		{
			name:   "zero max hold disables rule",
			price:  1,
			held:   48 * time.Hour,
			rules:  func(c *config.StrategyConfig) { c.MaxHoldTime = 0 },
			want:   models.ExitNone,
			pnlApx: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := exitRules()
			if tt.rules != nil {
				tt.rules(&rules)
			}
			reason, pnl, exit := Evaluate(pos, tt.price, entry.Add(tt.held), rules)
			assert.Equal(t, tt.want, reason)
			assert.Equal(t, tt.exit, exit)
			assert.InDelta(t, tt.pnlApx, pnl, 1e-6)
		})
	}
}

func TestPnLPercent(t *testing.T) {
	assert.Equal(t, "-10", PnLPercent(1.0, 0.9).String())
	assert.Equal(t, "50", PnLPercent(0.000002, 0.000003).String())
	assert.True(t, PnLPercent(0, 1).IsZero())
}
