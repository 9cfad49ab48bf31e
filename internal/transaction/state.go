// internal/transaction/state.go
package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain"
	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
)

// MarketState is a fresh snapshot of a pool, its market and its vault
// balances. It is loaded per trade.
type MarketState struct {
	Pool         *raydium.PoolDescriptor
	Market       *raydium.MarketDescriptor
	BaseReserve  uint64
	QuoteReserve uint64
}

// Reserves returns the vault balances on the input and output side of dir.
func (s *MarketState) Reserves(dir raydium.SwapDirection) (in, out uint64) {
	if dir == raydium.QuoteIn {
		return s.QuoteReserve, s.BaseReserve
	}
	return s.BaseReserve, s.QuoteReserve
}

// TokenDecimals returns the decimals of the non-WSOL side.
func (s *MarketState) TokenDecimals() uint8 {
	if s.Pool.SolIsBase() {
		return s.Pool.QuoteDecimals
	}
	return s.Pool.BaseDecimals
}

// StateLoader loads a MarketState by pool id.
type StateLoader interface {
	Load(ctx context.Context, poolID solana.PublicKey) (*MarketState, error)
}

// AccountReader is the part of blockchain.Client the chain loader needs.
type AccountReader interface {
	GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
	GetMultipleAccountsData(ctx context.Context, pubkeys []solana.PublicKey) ([][]byte, error)
}

// ChainLoader reads pool, market and vault accounts over RPC.
type ChainLoader struct {
	chain   AccountReader
	decoder *raydium.StateDecoder
}

// NewChainLoader creates a loader backed by chain.
func NewChainLoader(chain AccountReader, logger *zap.Logger) *ChainLoader {
	return &ChainLoader{chain: chain, decoder: raydium.NewStateDecoder(logger)}
}

// Load fetches the pool, then the market and both vaults in one batch.
// Transport failures wrap raydium.ErrUpstream; malformed accounts return
// the decoder's *raydium.DecodeError.
func (l *ChainLoader) Load(ctx context.Context, poolID solana.PublicKey) (*MarketState, error) {
	data, err := l.chain.GetAccountData(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch pool %s: %w", raydium.ErrUpstream, poolID, err)
	}
	pool, err := l.decoder.DecodePool(poolID, data)
	if err != nil {
		return nil, err
	}

	accounts, err := l.chain.GetMultipleAccountsData(ctx, []solana.PublicKey{pool.MarketID, pool.BaseVault, pool.QuoteVault})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch market and vaults: %w", raydium.ErrUpstream, err)
	}
	if len(accounts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 accounts, got %d", raydium.ErrUpstream, len(accounts))
	}
	for i, name := range []string{"market", "base vault", "quote vault"} {
		if accounts[i] == nil {
			return nil, fmt.Errorf("%w: %s", blockchain.ErrAccountNotFound, name)
		}
	}

	market, err := l.decoder.DecodeMarket(pool.MarketID, pool.MarketProgramID, accounts[0])
	if err != nil {
		return nil, err
	}
	base, err := raydium.DecodeTokenAccountAmount(accounts[1])
	if err != nil {
		return nil, err
	}
	quote, err := raydium.DecodeTokenAccountAmount(accounts[2])
	if err != nil {
		return nil, err
	}
	if base == 0 || quote == 0 {
		return nil, errors.New("pool has an empty vault")
	}

	return &MarketState{Pool: pool, Market: market, BaseReserve: base, QuoteReserve: quote}, nil
}
