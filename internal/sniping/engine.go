// internal/sniping/engine.go
// Package sniping decides which triggers become trades.
package sniping

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/config"
	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/domain"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/models"
)

// Executor carries out decisions. Implemented by transaction.Pipeline.
type Executor interface {
	Enter(ctx context.Context, d domain.EntryDecision) (*domain.TradeResult, error)
	Exit(ctx context.Context, d domain.ExitDecision) (*domain.TradeResult, error)
}

// PositionReader is the read side of the position store.
type PositionReader interface {
	HasOpen(ctx context.Context, token string) (bool, error)
	GetOpen(ctx context.Context, token string) (*models.Position, error)
}

// AccountFetcher loads raw account bytes.
type AccountFetcher interface {
	GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
}

// PoolSeeder primes the market locator with pools seen by the listener.
type PoolSeeder interface {
	Seed(base, quote, pool solana.PublicKey)
}

// Engine filters, deduplicates, sizes and delays triggers before handing
// them to the Executor. Handle is safe for concurrent use.
type Engine struct {
	cfg    config.StrategyConfig
	store  PositionReader
	chain  AccountFetcher
	exec   Executor
	seeder PoolSeeder
	claims *Claims
	logger *zap.Logger
	grace  time.Duration
	now    func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithPoolSeeder makes NewPool triggers prime the locator cache.
func WithPoolSeeder(s PoolSeeder) Option {
	return func(e *Engine) { e.seeder = s }
}

// WithClaims shares the per-token lease table with other components.
func WithClaims(c *Claims) Option {
	return func(e *Engine) { e.claims = c }
}

// WithShutdownGrace bounds how long in-flight executions may run after Run's
// context is cancelled.
func WithShutdownGrace(d time.Duration) Option {
	return func(e *Engine) { e.grace = d }
}

// NewEngine creates a strategy engine.
func NewEngine(cfg config.StrategyConfig, store PositionReader, chain AccountFetcher, exec Executor, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		store:  store,
		chain:  chain,
		exec:   exec,
		claims: NewClaims(),
		logger: logger.Named("strategy-engine"),
		grace:  35 * time.Second,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Claims returns the engine's per-token lease table.
func (e *Engine) Claims() *Claims {
	return e.claims
}

// Run handles every trigger from in on its own goroutine until ctx is
// cancelled or in is closed, then waits for in-flight handlers. Executions
// already started get up to the shutdown grace period to finish.
func (e *Engine) Run(ctx context.Context, in <-chan domain.Trigger) error {
	execCtx, cancelExec := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelExec()

	var wg sync.WaitGroup
	defer func() {
		stop := context.AfterFunc(ctx, func() {
			timer := time.NewTimer(e.grace)
			defer timer.Stop()
			select {
			case <-timer.C:
				e.logger.Warn("Shutdown grace elapsed, cancelling in-flight executions")
				cancelExec()
			case <-execCtx.Done():
			}
		})
		wg.Wait()
		stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-in:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = e.handle(ctx, execCtx, t)
			}()
		}
	}
}

// Handle processes one trigger. It returns a *RejectError when the trigger
// is filtered out, or the executor's error.
func (e *Engine) Handle(ctx context.Context, t domain.Trigger) error {
	return e.handle(ctx, ctx, t)
}

func (e *Engine) handle(ctx, execCtx context.Context, t domain.Trigger) error {
	var err error
	switch ev := t.(type) {
	case domain.NewPool:
		err = e.handleEntry(ctx, execCtx, t, e.filterNewPool(ctx, ev))
	case domain.CopySignal:
		err = e.handleEntry(ctx, execCtx, t, e.filterCopySignal(ev))
	case domain.CopyExit:
		err = e.handleCopyExit(ctx, execCtx, ev)
	default:
		err = reject(StageFilter, "unknown trigger", nil)
	}

	var rej *RejectError
	if errors.As(err, &rej) {
		rejections.WithLabelValues(rej.Stage).Inc()
		e.logger.Info("Trigger rejected",
			zap.Object("trigger", t),
			zap.String("stage", rej.Stage),
			zap.String("reason", rej.Reason),
			zap.NamedError("cause", rej.Err))
	}
	return err
}

func (e *Engine) filterNewPool(ctx context.Context, ev domain.NewPool) *RejectError {
	if !e.cfg.SnipingEnabled {
		return reject(StageFilter, "sniping disabled", nil)
	}
	if ev.LiquiditySOL < e.cfg.MinLiquiditySOL {
		return reject(StageFilter, "liquidity below minimum", nil)
	}
	if !e.cfg.RequireNoMintAuthority && !e.cfg.RequireNoFreezeAuthority {
		return nil
	}

	data, err := e.chain.GetAccountData(ctx, ev.TokenMint)
	if err != nil {
		return reject(StageFilter, "mint fetch failed", err)
	}
	mint, err := raydium.DecodeMint(data)
	if err != nil {
		return reject(StageFilter, "mint decode failed", err)
	}
	if e.cfg.RequireNoMintAuthority && mint.HasMintAuthority() {
		return reject(StageFilter, "mint authority is set", nil)
	}
	if e.cfg.RequireNoFreezeAuthority && mint.HasFreezeAuthority() {
		return reject(StageFilter, "freeze authority is set", nil)
	}
	return nil
}

func (e *Engine) filterCopySignal(ev domain.CopySignal) *RejectError {
	if !e.cfg.CopyEnabled {
		return reject(StageFilter, "copy trading disabled", nil)
	}
	if !e.cfg.IsWatched(ev.SourceWallet) {
		return reject(StageFilter, "wallet not watched", nil)
	}
	return nil
}

func (e *Engine) handleEntry(ctx, execCtx context.Context, t domain.Trigger, filterErr *RejectError) error {
	if filterErr != nil {
		return filterErr
	}

	token := t.Token().String()
	release, ok := e.claims.TryClaim(token)
	if !ok {
		return reject(StageDedup, "entry already in flight", nil)
	}
	defer release()

	open, err := e.store.HasOpen(ctx, token)
	if err != nil {
		return reject(StageDedup, "position lookup failed", err)
	}
	if open {
		return reject(StageDedup, "position already open", nil)
	}

	decision := domain.EntryDecision{Token: t.Token(), Trigger: t}
	switch ev := t.(type) {
	case domain.NewPool:
		decision.PoolID = ev.PoolID
		decision.SOLAmount = e.cfg.PositionSizeSOL
		if e.seeder != nil {
			e.seeder.Seed(ev.TokenMint, raydium.WrappedSolMint, ev.PoolID)
		}
	case domain.CopySignal:
		wallet := ev.SourceWallet
		decision.CopiedFrom = &wallet
		decision.SOLAmount = e.cfg.CopySize(ev.SOLAmount)
		if decision.SOLAmount <= 0 {
			return reject(StageSizing, "copy size is zero", nil)
		}
		if err := e.waitCopyDelay(ctx, ev.Observed); err != nil {
			return reject(StageDelay, "cancelled during copy delay", err)
		}
	}

	decisions.WithLabelValues("entry").Inc()
	e.logger.Info("Entry decision", decision.Fields()...)
	if _, err := e.exec.Enter(execCtx, decision); err != nil {
		e.logger.Error("Entry failed", append(decision.Fields(), zap.Error(err))...)
		return err
	}
	return nil
}

// waitCopyDelay blocks until observed + CopyDelay.
func (e *Engine) waitCopyDelay(ctx context.Context, observed time.Time) error {
	wait := observed.Add(e.cfg.CopyDelay).Sub(e.now())
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) handleCopyExit(ctx, execCtx context.Context, ev domain.CopyExit) error {
	if !e.cfg.CopyEnabled || !e.cfg.FollowSells {
		return reject(StageFilter, "copy sells disabled", nil)
	}
	if !e.cfg.IsWatched(ev.SourceWallet) {
		return reject(StageFilter, "wallet not watched", nil)
	}

	token := ev.TokenMint.String()
	release, ok := e.claims.TryClaim(token)
	if !ok {
		return reject(StageDedup, "trade already in flight", nil)
	}
	defer release()

	pos, err := e.store.GetOpen(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return reject(StageDedup, "no open position", nil)
	}
	if err != nil {
		return reject(StageDedup, "position lookup failed", err)
	}

	decision := domain.ExitDecision{Position: pos, Reason: models.ExitCopyExit}
	decisions.WithLabelValues("exit").Inc()
	e.logger.Info("Exit decision", decision.Fields()...)
	if _, err := e.exec.Exit(execCtx, decision); err != nil {
		e.logger.Error("Exit failed", append(decision.Fields(), zap.Error(err))...)
		return err
	}
	return nil
}
