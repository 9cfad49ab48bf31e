// internal/dex/raydium/state.go
package raydium

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// layoutReader reads fixed-offset fields from a buffer whose length was
// checked by the caller.
type layoutReader []byte

func (r layoutReader) u64(offset int) uint64 {
	return binary.LittleEndian.Uint64(r[offset : offset+8])
}

func (r layoutReader) u32(offset int) uint32 {
	return binary.LittleEndian.Uint32(r[offset : offset+4])
}

func (r layoutReader) pubkey(offset int) solana.PublicKey {
	return solana.PublicKeyFromBytes(r[offset : offset+32])
}

// DecodePool decodes an AMM v4 pool account. Buffers shorter than
// PoolAccountSize yield a Truncated error; an unknown status, out of range
// decimals or a zero fee denominator yield BadMagic.
func DecodePool(data []byte) (*PoolDescriptor, error) {
	if len(data) < PoolAccountSize {
		return nil, &DecodeError{Account: "pool", Kind: Truncated, Got: len(data), Want: PoolAccountSize}
	}
	r := layoutReader(data)

	status := r.u64(offStatus)
	if status == PoolStatusUninitialized || status > PoolStatusWaitingTrade {
		return nil, &DecodeError{Account: "pool", Kind: BadMagic, Detail: fmt.Sprintf("unknown status %d", status)}
	}

	baseDecimals, quoteDecimals := r.u64(offBaseDecimal), r.u64(offQuoteDecimal)
	if baseDecimals > maxTokenDecimals || quoteDecimals > maxTokenDecimals {
		return nil, &DecodeError{
			Account: "pool",
			Kind:    BadMagic,
			Detail:  fmt.Sprintf("decimals out of range: base=%d quote=%d", baseDecimals, quoteDecimals),
		}
	}

	pool := &PoolDescriptor{
		Status:              status,
		Nonce:               r.u64(offNonce),
		BaseDecimals:        uint8(baseDecimals),
		QuoteDecimals:       uint8(quoteDecimals),
		TradeFeeNumerator:   r.u64(offTradeFeeNum),
		TradeFeeDenominator: r.u64(offTradeFeeDen),
		SwapFeeNumerator:    r.u64(offSwapFeeNum),
		SwapFeeDenominator:  r.u64(offSwapFeeDen),
		PoolOpenTime:        r.u64(offPoolOpenTime),
		BaseVault:           r.pubkey(offBaseVault),
		QuoteVault:          r.pubkey(offQuoteVault),
		BaseMint:            r.pubkey(offBaseMint),
		QuoteMint:           r.pubkey(offQuoteMint),
		LPMint:              r.pubkey(offLPMint),
		OpenOrders:          r.pubkey(offOpenOrders),
		MarketID:            r.pubkey(offMarketID),
		MarketProgramID:     r.pubkey(offMarketProgramID),
		TargetOrders:        r.pubkey(offTargetOrders),
		WithdrawQueue:       r.pubkey(offWithdrawQueue),
		LPVault:             r.pubkey(offLPVault),
		Owner:               r.pubkey(offOwner),
		LPReserve:           r.u64(offLPReserve),
	}
	if pool.SwapFeeDenominator == 0 || pool.TradeFeeDenominator == 0 {
		return nil, &DecodeError{Account: "pool", Kind: BadMagic, Detail: "zero fee denominator"}
	}

	authority, err := AuthorityAddress()
	if err != nil {
		return nil, fmt.Errorf("derive amm authority: %w", err)
	}
	pool.Authority = authority

	return pool, nil
}

// StateDecoder отвечает за декодирование аккаунтов пула и маркета с логированием.
type StateDecoder struct {
	logger *zap.Logger
}

// NewStateDecoder создает новый декодер состояния
func NewStateDecoder(logger *zap.Logger) *StateDecoder {
	return &StateDecoder{
		logger: logger.Named("state-decoder"),
	}
}

// DecodePool decodes the pool account stored at id.
func (d *StateDecoder) DecodePool(id solana.PublicKey, data []byte) (*PoolDescriptor, error) {
	pool, err := DecodePool(data)
	if err != nil {
		d.logger.Debug("pool decode failed",
			zap.String("pool_id", id.String()),
			zap.Int("data_length", len(data)),
			zap.Error(err))
		return nil, err
	}
	pool.ID = id

	d.logger.Debug("pool decoded",
		zap.String("pool_id", id.String()),
		zap.String("base_mint", pool.BaseMint.String()),
		zap.String("quote_mint", pool.QuoteMint.String()),
		zap.Uint64("status", pool.Status))
	return pool, nil
}

// DecodeMarket decodes the market account stored at id and owned by programID.
func (d *StateDecoder) DecodeMarket(id, programID solana.PublicKey, data []byte) (*MarketDescriptor, error) {
	market, err := DecodeMarket(data)
	if err != nil {
		d.logger.Debug("market decode failed",
			zap.String("market_id", id.String()),
			zap.Int("data_length", len(data)),
			zap.Error(err))
		return nil, err
	}
	market.ID = id
	market.ProgramID = programID

	if market.HasHeader {
		signer, err := VaultSignerAddress(id, market.VaultSignerNonce, programID)
		if err != nil {
			return nil, fmt.Errorf("derive vault signer for market %s: %w", id, err)
		}
		market.VaultSigner = signer
	}
	return market, nil
}
