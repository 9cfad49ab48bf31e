// =================================
// File: internal/config/strategy.go
// =================================
package config

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// StrategyConfig is the read-only view of the settings the strategy engine
// and the exit monitor act on. It is built once at startup and shared by
// value.
type StrategyConfig struct {
	SnipingEnabled bool

	PositionSizeSOL float64
	MinLiquiditySOL float64

	RequireNoMintAuthority   bool
	RequireNoFreezeAuthority bool

	TakeProfitPercent float64
	StopLossPercent   float64
	MaxHoldTime       time.Duration

	CopyEnabled  bool
	CopyMode     string
	CopyFixedSOL float64
	CopyRatio    float64
	CopyMaxSOL   float64
	CopyDelay    time.Duration
	FollowSells  bool

	watched        map[solana.PublicKey]struct{}
	watchedInOrder []solana.PublicKey
}

func newStrategyConfig(c *Config) StrategyConfig {
	sc := StrategyConfig{
		SnipingEnabled:           c.Sniping.Enabled,
		PositionSizeSOL:          c.Entry.PositionSizeSOL,
		MinLiquiditySOL:          c.Entry.MinLiquiditySOL,
		RequireNoMintAuthority:   c.Filters.CheckMintAuthority,
		RequireNoFreezeAuthority: c.Filters.CheckFreezeAuthority,
		TakeProfitPercent:        c.Exit.TakeProfitPercent,
		StopLossPercent:          c.Exit.StopLossPercent,
		MaxHoldTime:              time.Duration(c.Exit.MaxHoldTimeMin) * time.Minute,
		CopyEnabled:              c.CopyTrading.Enabled,
		CopyMode:                 c.CopyTrading.Mode,
		CopyFixedSOL:             c.CopyTrading.FixedAmountSOL,
		CopyRatio:                c.CopyTrading.ProportionalRatio,
		CopyMaxSOL:               c.CopyTrading.MaxSOLPerTrade,
		CopyDelay:                time.Duration(c.CopyTrading.DelayMs) * time.Millisecond,
		FollowSells:              c.CopyTrading.FollowSells,
		watched:                  make(map[solana.PublicKey]struct{}),
	}
	for _, raw := range c.CopyTrading.TargetWallets {
		pk, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			// Validate уже отбросил такие адреса.
			continue
		}
		if _, dup := sc.watched[pk]; dup {
			continue
		}
		sc.watched[pk] = struct{}{}
		sc.watchedInOrder = append(sc.watchedInOrder, pk)
	}
	return sc
}

// IsWatched reports whether wallet is one of the copy-trading targets.
func (s StrategyConfig) IsWatched(wallet solana.PublicKey) bool {
	_, ok := s.watched[wallet]
	return ok
}

// WatchedWallets returns the copy-trading targets in configuration order.
func (s StrategyConfig) WatchedWallets() []solana.PublicKey {
	return append([]solana.PublicKey(nil), s.watchedInOrder...)
}

// CopySize returns the SOL amount to spend when copying a buy of sourceSOL.
func (s StrategyConfig) CopySize(sourceSOL float64) float64 {
	size := s.CopyFixedSOL
	if s.CopyMode == CopyModeProportional {
		size = sourceSOL * s.CopyRatio
	}
	if s.CopyMaxSOL > 0 && size > s.CopyMaxSOL {
		size = s.CopyMaxSOL
	}
	return size
}
