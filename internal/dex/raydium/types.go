// internal/dex/raydium/types.go
// Package raydium decodes Raydium AMM v4 / order-book accounts and builds swap instructions.
package raydium

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PoolDescriptor is one decoded snapshot of an AMM v4 pool account.
// It is re-fetched per trade and never cached.
type PoolDescriptor struct {
	ID            solana.PublicKey
	Status        uint64
	Nonce         uint64
	BaseDecimals  uint8
	QuoteDecimals uint8

	TradeFeeNumerator   uint64
	TradeFeeDenominator uint64
	SwapFeeNumerator    uint64
	SwapFeeDenominator  uint64
	PoolOpenTime        uint64

	BaseVault       solana.PublicKey
	QuoteVault      solana.PublicKey
	BaseMint        solana.PublicKey
	QuoteMint       solana.PublicKey
	LPMint          solana.PublicKey
	OpenOrders      solana.PublicKey
	MarketID        solana.PublicKey
	MarketProgramID solana.PublicKey
	TargetOrders    solana.PublicKey
	WithdrawQueue   solana.PublicKey
	LPVault         solana.PublicKey
	Owner           solana.PublicKey
	LPReserve       uint64

	// Authority is derived, not stored in the account.
	Authority solana.PublicKey
}

// TokenMint возвращает mint, который не является WSOL.
func (p *PoolDescriptor) TokenMint() solana.PublicKey {
	if p.BaseMint.Equals(WrappedSolMint) {
		return p.QuoteMint
	}
	return p.BaseMint
}

// SolIsBase reports whether the pool's base side is wrapped SOL.
func (p *PoolDescriptor) SolIsBase() bool {
	return p.BaseMint.Equals(WrappedSolMint)
}

// MarketDescriptor is a decoded order-book market. EventQueue, Bids and Asks
// always come from the last MarketTailSize bytes; the header fields are only
// filled when the buffer is large enough to carry them.
type MarketDescriptor struct {
	ID         solana.PublicKey
	ProgramID  solana.PublicKey
	EventQueue solana.PublicKey
	Bids       solana.PublicKey
	Asks       solana.PublicKey

	HasHeader        bool
	VaultSignerNonce uint64
	BaseMint         solana.PublicKey
	QuoteMint        solana.PublicKey
	BaseVault        solana.PublicKey
	QuoteVault       solana.PublicKey
	VaultSigner      solana.PublicKey
}

// MintInfo is the subset of an SPL mint used by safety filters.
type MintInfo struct {
	MintAuthority   *solana.PublicKey
	FreezeAuthority *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	Initialized     bool
}

// HasMintAuthority reports whether new supply can still be minted.
func (m *MintInfo) HasMintAuthority() bool { return m.MintAuthority != nil }

// HasFreezeAuthority reports whether holder accounts can be frozen.
func (m *MintInfo) HasFreezeAuthority() bool { return m.FreezeAuthority != nil }

// SwapDirection определяет направление свапа
type SwapDirection uint8

const (
	// QuoteIn spends the quote token and receives base.
	QuoteIn SwapDirection = iota
	// BaseIn spends the base token and receives quote.
	BaseIn
)

func (d SwapDirection) String() string {
	switch d {
	case QuoteIn:
		return "quote_in"
	case BaseIn:
		return "base_in"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// SwapParams содержит всё необходимое для построения SwapBaseIn
type SwapParams struct {
	Pool         *PoolDescriptor
	Market       *MarketDescriptor
	Direction    SwapDirection
	AmountIn     uint64
	MinAmountOut uint64

	// UserSource / UserDestination are the owner's token accounts for the
	// input and output side of Direction.
	UserSource      solana.PublicKey
	UserDestination solana.PublicKey
	Owner           solana.PublicKey
}

// DecodeErrorKind classifies malformed account bytes.
type DecodeErrorKind uint8

const (
	Truncated DecodeErrorKind = iota + 1
	BadMagic
)

func (k DecodeErrorKind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case BadMagic:
		return "bad magic"
	default:
		return "unknown"
	}
}

// ErrDecode is matched by every *DecodeError.
var ErrDecode = errors.New("decode error")

// DecodeError describes why an account buffer could not be decoded.
type DecodeError struct {
	Account string
	Kind    DecodeErrorKind
	Got     int
	Want    int
	Detail  string
}

func (e *DecodeError) Error() string {
	if e.Kind == Truncated {
		return fmt.Sprintf("decode %s: %s: got %d bytes, need at least %d", e.Account, e.Kind, e.Got, e.Want)
	}
	return fmt.Sprintf("decode %s: %s: %s", e.Account, e.Kind, e.Detail)
}

// Is lets errors.Is(err, ErrDecode) match any decode failure.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// IsTruncated reports whether err is a Truncated decode error.
func IsTruncated(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Kind == Truncated
}

// IsBadMagic reports whether err is a BadMagic decode error.
func IsBadMagic(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Kind == BadMagic
}

// ValidationError представляет ошибку валидации
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

var (
	// ErrInvalidAmount is returned for a zero swap input.
	ErrInvalidAmount = errors.New("amount in must be positive")
	// ErrPoolNotFound means no pool exists for the pair, or the lookup failed (see ErrUpstream).
	ErrPoolNotFound = errors.New("pool not found")
	// ErrUpstream marks a failure of a remote dependency.
	ErrUpstream = errors.New("upstream failure")
)

// upstreamNotFound matches both ErrPoolNotFound and ErrUpstream so callers can
// tell "lookup failed" from "no pool exists".
type upstreamNotFound struct {
	err error
}

func (e *upstreamNotFound) Error() string {
	return fmt.Sprintf("%v: %v: %v", ErrPoolNotFound, ErrUpstream, e.err)
}

func (e *upstreamNotFound) Is(target error) bool {
	return target == ErrPoolNotFound || target == ErrUpstream
}

func (e *upstreamNotFound) Unwrap() error { return e.err }
