// internal/dex/raydium/pool_cache.go
package raydium

import (
	"context"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// PoolFinder looks a pool up remotely. It returns ErrPoolNotFound when the
// pair has no pool; any other error is treated as an upstream failure.
type PoolFinder interface {
	FindPool(ctx context.Context, mintA, mintB solana.PublicKey) (solana.PublicKey, error)
}

// Locator resolves a mint pair to its AMM pool id and remembers the answer
// for the lifetime of the process.
type Locator struct {
	finder PoolFinder
	pools  map[string]solana.PublicKey
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewLocator создает локатор пулов поверх удаленного поиска
func NewLocator(finder PoolFinder, logger *zap.Logger) *Locator {
	return &Locator{
		finder: finder,
		pools:  make(map[string]solana.PublicKey),
		logger: logger.Named("pool-locator"),
	}
}

// pairKey is independent of argument order.
func pairKey(a, b solana.PublicKey) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

// Resolve returns the pool id for the pair. A remote failure yields an error
// matching both ErrPoolNotFound and ErrUpstream.
func (l *Locator) Resolve(ctx context.Context, baseMint, quoteMint solana.PublicKey) (solana.PublicKey, error) {
	key := pairKey(baseMint, quoteMint)

	l.mu.RLock()
	id, ok := l.pools[key]
	l.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := l.finder.FindPool(ctx, baseMint, quoteMint)
	if err != nil {
		if errors.Is(err, ErrPoolNotFound) {
			l.logger.Debug("no pool for pair",
				zap.String("base_mint", baseMint.String()),
				zap.String("quote_mint", quoteMint.String()))
			return solana.PublicKey{}, ErrPoolNotFound
		}
		l.logger.Warn("pool lookup failed",
			zap.String("base_mint", baseMint.String()),
			zap.String("quote_mint", quoteMint.String()),
			zap.Error(err))
		return solana.PublicKey{}, &upstreamNotFound{err: err}
	}

	l.Seed(baseMint, quoteMint, id)
	return id, nil
}

// Seed records a pool id observed elsewhere, e.g. in an initialize2 event.
func (l *Locator) Seed(baseMint, quoteMint, pool solana.PublicKey) {
	l.mu.Lock()
	l.pools[pairKey(baseMint, quoteMint)] = pool
	l.mu.Unlock()
}

// Len returns the number of cached pairs.
func (l *Locator) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pools)
}
