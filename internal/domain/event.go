// Package domain holds the transient values passed between trigger sources,
// the strategy engine, the exit monitor and the execution pipeline.
package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TriggerKind identifies a trigger variant.
type TriggerKind int

const (
	TriggerNewPool TriggerKind = iota
	TriggerCopySignal
	TriggerCopyExit
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerNewPool:
		return "new_pool"
	case TriggerCopySignal:
		return "copy_signal"
	case TriggerCopyExit:
		return "copy_exit"
	default:
		return "unknown"
	}
}

// Trigger is an observed on-chain event that may lead to a trade.
// Implemented by NewPool, CopySignal and CopyExit.
type Trigger interface {
	Kind() TriggerKind
	Token() solana.PublicKey
	ObservedAt() time.Time
	zapcore.ObjectMarshaler
}

// NewPool is emitted when a WSOL-paired AMM pool is initialized.
type NewPool struct {
	TokenMint    solana.PublicKey
	PoolID       solana.PublicKey
	LiquiditySOL float64
	Signature    solana.Signature
	Observed     time.Time
}

func (e NewPool) Kind() TriggerKind       { return TriggerNewPool }
func (e NewPool) Token() solana.PublicKey { return e.TokenMint }
func (e NewPool) ObservedAt() time.Time   { return e.Observed }

func (e NewPool) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("kind", e.Kind().String())
	enc.AddString("token", e.TokenMint.String())
	enc.AddString("pool", e.PoolID.String())
	enc.AddFloat64("liquidity_sol", e.LiquiditySOL)
	enc.AddString("signature", e.Signature.String())
	return nil
}

// CopySignal is emitted when a watched wallet buys a token with SOL.
type CopySignal struct {
	SourceWallet solana.PublicKey
	TokenMint    solana.PublicKey
	SOLAmount    float64
	Signature    solana.Signature
	Observed     time.Time
}

func (e CopySignal) Kind() TriggerKind       { return TriggerCopySignal }
func (e CopySignal) Token() solana.PublicKey { return e.TokenMint }
func (e CopySignal) ObservedAt() time.Time   { return e.Observed }

func (e CopySignal) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("kind", e.Kind().String())
	enc.AddString("wallet", e.SourceWallet.String())
	enc.AddString("token", e.TokenMint.String())
	enc.AddFloat64("sol_amount", e.SOLAmount)
	enc.AddString("signature", e.Signature.String())
	return nil
}

// CopyExit is emitted when a watched wallet sells a token.
type CopyExit struct {
	SourceWallet solana.PublicKey
	TokenMint    solana.PublicKey
	Signature    solana.Signature
	Observed     time.Time
}

func (e CopyExit) Kind() TriggerKind       { return TriggerCopyExit }
func (e CopyExit) Token() solana.PublicKey { return e.TokenMint }
func (e CopyExit) ObservedAt() time.Time   { return e.Observed }

func (e CopyExit) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("kind", e.Kind().String())
	enc.AddString("wallet", e.SourceWallet.String())
	enc.AddString("token", e.TokenMint.String())
	enc.AddString("signature", e.Signature.String())
	return nil
}

// EntryDecision asks the pipeline to buy SOLAmount worth of Token.
// PoolID may be zero, in which case the pipeline locates the pool.
type EntryDecision struct {
	Token      solana.PublicKey
	PoolID     solana.PublicKey
	SOLAmount  float64
	CopiedFrom *solana.PublicKey
	Trigger    Trigger
}

// ExitDecision asks the pipeline to sell the whole position.
type ExitDecision struct {
	Position   *models.Position
	Reason     models.ExitReason
	Price      float64
	PnLPercent float64
}

// Fields returns the zap fields describing the decision.
func (d EntryDecision) Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("token", d.Token.String()),
		zap.Float64("sol_amount", d.SOLAmount),
	}
	if !d.PoolID.IsZero() {
		fields = append(fields, zap.String("pool", d.PoolID.String()))
	}
	if d.CopiedFrom != nil {
		fields = append(fields, zap.String("copied_from", d.CopiedFrom.String()))
	}
	if d.Trigger != nil {
		fields = append(fields, zap.Object("trigger", d.Trigger))
	}
	return fields
}

// Fields returns the zap fields describing the decision.
func (d ExitDecision) Fields() []zap.Field {
	return []zap.Field{
		zap.String("token", d.Position.TokenAddress),
		zap.String("reason", string(d.Reason)),
		zap.Float64("price", d.Price),
		zap.Float64("pnl_percent", d.PnLPercent),
	}
}

// TradeResult is what the execution pipeline reports for one entry or exit.
type TradeResult struct {
	Signature   solana.Signature
	Confirmed   bool
	SOLAmount   float64
	TokenAmount uint64
	Price       float64
	Position    *models.Position
}
