// internal/transaction/pipeline.go
// Package transaction turns entry and exit decisions into signed Raydium
// swaps, submits them and records the outcome in the position store.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain"
	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/domain"
	"github.com/rovshanmuradov/raydium-sniper/internal/events"
	"github.com/rovshanmuradov/raydium-sniper/internal/monitor"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/models"
	"github.com/rovshanmuradov/raydium-sniper/internal/wallet"
)

// ErrNoTokens means an exit found nothing to sell. The position is voided.
var ErrNoTokens = errors.New("no token balance to sell")

// Config holds the pipeline tunables.
type Config struct {
	SlippageBps    uint16
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	SOLReserve     float64
	SubmitAttempts uint
	// RecheckTimeout bounds the re-check chain after a confirmation timeout.
	RecheckTimeout time.Duration
}

// DefaultConfig returns 50 bps slippage, 500 ms polling for up to 30 s and
// a 0.02 SOL reserve.
func DefaultConfig() Config {
	return Config{
		SlippageBps:    50,
		ConfirmTimeout: 30 * time.Second,
		PollInterval:   500 * time.Millisecond,
		SOLReserve:     0.02,
		SubmitAttempts: 3,
		RecheckTimeout: 10 * time.Second,
	}
}

// PoolResolver finds the pool of a pair when a decision carries none.
type PoolResolver interface {
	Resolve(ctx context.Context, baseMint, quoteMint solana.PublicKey) (solana.PublicKey, error)
}

// Deps are the pipeline's collaborators. Loader defaults to a ChainLoader
// over Chain; Prices and Events are optional.
type Deps struct {
	Chain   blockchain.Client
	Wallet  *wallet.Wallet
	Store   storage.PositionStore
	Loader  StateLoader
	Locator PoolResolver
	Fees    *FeeManager
	Prices  monitor.PriceSource
	Events  events.Publisher
	Logger  *zap.Logger
}

// Pipeline executes entries and exits. It is safe for concurrent use; the
// caller guarantees one trade per token at a time.
type Pipeline struct {
	cfg     Config
	chain   blockchain.Client
	wallet  *wallet.Wallet
	store   storage.PositionStore
	loader  StateLoader
	locator PoolResolver
	fees    *FeeManager
	prices  monitor.PriceSource
	events  events.Publisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewPipeline creates a pipeline.
func NewPipeline(cfg Config, deps Deps) *Pipeline {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = def.ConfirmTimeout
	}
	if cfg.SubmitAttempts == 0 {
		cfg.SubmitAttempts = def.SubmitAttempts
	}
	if cfg.RecheckTimeout <= 0 {
		cfg.RecheckTimeout = def.RecheckTimeout
	}

	logger := deps.Logger.Named("pipeline")
	if deps.Loader == nil {
		deps.Loader = NewChainLoader(deps.Chain, logger)
	}
	if deps.Events == nil {
		deps.Events = events.Discard
	}
	if deps.Fees == nil {
		deps.Fees = NewFeeManager(1_400_000, 10_000, 10_000, logger)
	}

	return &Pipeline{
		cfg:     cfg,
		chain:   deps.Chain,
		wallet:  deps.Wallet,
		store:   deps.Store,
		loader:  deps.Loader,
		locator: deps.Locator,
		fees:    deps.Fees,
		prices:  deps.Prices,
		events:  deps.Events,
		logger:  logger,
		now:     time.Now,
	}
}

// Enter buys d.SOLAmount worth of d.Token. The position row is inserted as
// soon as the node accepts the transaction. A transaction that fails on chain
// voids the row; an unresolved confirmation leaves it open and returns
// ErrTimeout together with the partial result.
func (p *Pipeline) Enter(ctx context.Context, d domain.EntryDecision) (*domain.TradeResult, error) {
	log := p.logger.With(zap.String("side", string(events.SideBuy)), zap.String("token", d.Token.String()))

	amountIn := raydium.SOLToLamports(d.SOLAmount)
	if amountIn == 0 {
		return nil, p.fail(events.SideBuy, OutcomeError, stageErr(StageQuote, fmt.Errorf("sol amount %v is too small", d.SOLAmount)))
	}

	poolID, err := p.resolvePool(ctx, d.Token, d.PoolID)
	if err != nil {
		return nil, p.fail(events.SideBuy, OutcomeError, err)
	}
	state, err := p.loader.Load(ctx, poolID)
	if err != nil {
		return nil, p.fail(events.SideBuy, OutcomeError, stageErr(StageLoad, err))
	}
	if !state.Pool.TokenMint().Equals(d.Token) {
		return nil, p.fail(events.SideBuy, OutcomeError, stageErr(StageLoad, fmt.Errorf("pool %s does not pair %s with WSOL", poolID, d.Token)))
	}

	if err := p.checkBalance(ctx, amountIn); err != nil {
		return nil, p.fail(events.SideBuy, OutcomeError, err)
	}
	tokenATA, err := p.wallet.GetATA(d.Token)
	if err != nil {
		return nil, p.fail(events.SideBuy, OutcomeError, stageErr(StageBuild, err))
	}
	// Остаток от прошлых позиций: re-check сравнивает с ним, а не с нулём.
	heldBefore, err := p.tokenBalance(ctx, tokenATA)
	if err != nil {
		return nil, p.fail(events.SideBuy, OutcomeError, stageErr(StageLoad, fmt.Errorf("%w: token balance: %w", raydium.ErrUpstream, err)))
	}

	dir, err := raydium.DirectionFor(state.Pool, raydium.WrappedSolMint)
	if err != nil {
		return nil, p.fail(events.SideBuy, OutcomeError, stageErr(StageQuote, err))
	}
	expected, minOut, err := p.quote(state, dir, amountIn)
	if err != nil {
		return nil, p.fail(events.SideBuy, OutcomeError, err)
	}

	tx, err := p.buildTx(ctx, events.SideBuy, swapPlan{
		State:        state,
		Direction:    dir,
		AmountIn:     amountIn,
		MinAmountOut: minOut,
		WrapLamports: amountIn,
		TokenMint:    d.Token,
	})
	if err != nil {
		return nil, p.fail(events.SideBuy, OutcomeError, err)
	}

	log.Info("Submitting buy",
		zap.String("pool", poolID.String()),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("expected_out", expected),
		zap.Uint64("min_out", minOut))

	start := p.now()
	sig, err := p.submit(ctx, tx, log)
	if err != nil {
		return nil, p.fail(events.SideBuy, submitOutcome(err), err)
	}

	// Транзакция уже отправлена: дальше store пишем без отмены по ctx.
	storeCtx := context.WithoutCancel(ctx)

	price := p.entryPrice(ctx, d.Token, amountIn, expected, state.TokenDecimals())
	pos := &models.Position{
		TokenAddress: d.Token.String(),
		PoolID:       poolID.String(),
		EntryPrice:   price,
		EntrySOL:     d.SOLAmount,
		TokenAmount:  expected,
		EntryTime:    start,
		EntryTx:      sig.String(),
	}
	if d.CopiedFrom != nil {
		from := d.CopiedFrom.String()
		pos.CopiedFrom = &from
	}
	storeErr := p.store.OpenPosition(storeCtx, pos)
	if storeErr != nil {
		log.Error("Optimistic insert failed, transaction is in flight without a row",
			zap.String("signature", sig.String()), zap.Error(storeErr))
	}

	result := &domain.TradeResult{Signature: sig, SOLAmount: d.SOLAmount, TokenAmount: expected, Price: price, Position: pos}
	ev := events.TradeEvent{
		Side:        events.SideBuy,
		Token:       pos.TokenAddress,
		PoolID:      pos.PoolID,
		Signature:   sig.String(),
		SOLAmount:   d.SOLAmount,
		TokenAmount: expected,
		Price:       price,
	}
	if d.Trigger != nil {
		ev.Reason = d.Trigger.Kind().String()
	}
	if pos.CopiedFrom != nil {
		ev.CopiedFrom = *pos.CopiedFrom
	}
	p.publish(events.TradeSubmitted, ev)

	status := p.awaitConfirmation(ctx, sig, log)
	if status == nil {
		status = p.recheck(storeCtx, sig, log, func(ctx context.Context) (bool, error) {
			balance, err := p.tokenBalance(ctx, tokenATA)
			return balance > heldBefore, err
		})
	}

	switch status.State {
	case blockchain.SignatureConfirmed:
		TrackConfirmation(start)
		transactions.WithLabelValues(string(events.SideBuy), OutcomeConfirmed).Inc()
		result.Confirmed = true
		p.publish(events.TradeConfirmed, ev)
		log.Info("Buy confirmed", zap.String("signature", sig.String()), zap.Float64("entry_price", price))
		if storeErr != nil {
			return result, stageErr(StageStore, storeErr)
		}
		return result, nil

	case blockchain.SignatureFailed:
		transactions.WithLabelValues(string(events.SideBuy), OutcomeFailed).Inc()
		if storeErr == nil {
			if err := p.store.VoidPosition(storeCtx, pos.TokenAddress, "transaction failed: "+status.Err); err != nil {
				log.Error("Void failed", zap.Error(err))
			}
		}
		ev.Error = status.Err
		p.publish(events.TradeFailed, ev)
		log.Warn("Buy failed on chain", zap.String("signature", sig.String()), zap.String("error", status.Err))
		return nil, stageErr(StageConfirm, fmt.Errorf("%w: %s", ErrTransactionFailed, status.Err))

	default:
		transactions.WithLabelValues(string(events.SideBuy), OutcomeTimeout).Inc()
		ev.Error = ErrTimeout.Error()
		p.publish(events.TradeAmbiguous, ev)
		log.Warn("Buy unresolved, position left open", zap.String("signature", sig.String()))
		return result, stageErr(StageConfirm, ErrTimeout)
	}
}

// Exit sells the whole token balance of d.Position. A submitted sell is
// recorded on the open row as pending; the row changes status only once the
// sell is confirmed, or when there is nothing left to sell. A zero balance
// after an unconfirmed sell settles that sell instead of voiding the row.
func (p *Pipeline) Exit(ctx context.Context, d domain.ExitDecision) (*domain.TradeResult, error) {
	pos := d.Position
	log := p.logger.With(
		zap.String("side", string(events.SideSell)),
		zap.String("token", pos.TokenAddress),
		zap.String("reason", string(d.Reason)))

	mint, err := solana.PublicKeyFromBase58(pos.TokenAddress)
	if err != nil {
		return nil, p.fail(events.SideSell, OutcomeError, stageErr(StageResolve, err))
	}
	tokenATA, err := p.wallet.GetATA(mint)
	if err != nil {
		return nil, p.fail(events.SideSell, OutcomeError, stageErr(StageResolve, err))
	}

	balance, err := p.tokenBalance(ctx, tokenATA)
	if err != nil {
		return nil, p.fail(events.SideSell, OutcomeError, stageErr(StageLoad, err))
	}
	if balance == 0 && pos.ExitTx != nil && *pos.ExitTx != "" {
		return p.settlePendingExit(ctx, d, log)
	}
	if balance == 0 {
		log.Warn("Nothing to sell, voiding position")
		if err := p.store.VoidPosition(ctx, pos.TokenAddress, "no token balance at exit"); err != nil && !errors.Is(err, storage.ErrNotOpen) {
			return nil, p.fail(events.SideSell, OutcomeError, stageErr(StageStore, err))
		}
		return nil, p.fail(events.SideSell, OutcomeError, stageErr(StageQuote, ErrNoTokens))
	}

	var hint solana.PublicKey
	if pos.PoolID != "" {
		if hint, err = solana.PublicKeyFromBase58(pos.PoolID); err != nil {
			log.Warn("Stored pool id is invalid, locating pool", zap.Error(err))
			hint = solana.PublicKey{}
		}
	}
	poolID, err := p.resolvePool(ctx, mint, hint)
	if err != nil {
		return nil, p.fail(events.SideSell, OutcomeError, err)
	}
	state, err := p.loader.Load(ctx, poolID)
	if err != nil {
		return nil, p.fail(events.SideSell, OutcomeError, stageErr(StageLoad, err))
	}

	dir, err := raydium.DirectionFor(state.Pool, mint)
	if err != nil {
		return nil, p.fail(events.SideSell, OutcomeError, stageErr(StageQuote, err))
	}
	expected, minOut, err := p.quote(state, dir, balance)
	if err != nil {
		return nil, p.fail(events.SideSell, OutcomeError, err)
	}

	tx, err := p.buildTx(ctx, events.SideSell, swapPlan{
		State:        state,
		Direction:    dir,
		AmountIn:     balance,
		MinAmountOut: minOut,
		TokenMint:    mint,
	})
	if err != nil {
		return nil, p.fail(events.SideSell, OutcomeError, err)
	}

	log.Info("Submitting sell",
		zap.String("pool", poolID.String()),
		zap.Uint64("amount_in", balance),
		zap.Uint64("expected_sol_lamports", expected),
		zap.Uint64("min_out", minOut))

	start := p.now()
	sig, err := p.submit(ctx, tx, log)
	if err != nil {
		return nil, p.fail(events.SideSell, submitOutcome(err), err)
	}
	storeCtx := context.WithoutCancel(ctx)

	exitPrice, pnl := d.Price, d.PnLPercent
	if exitPrice <= 0 {
		exitPrice = raydium.PriceInSOL(expected, balance, state.TokenDecimals())
		pnl = monitor.PnLPercent(pos.EntryPrice, exitPrice).InexactFloat64()
	}
	soldFor := raydium.LamportsToSOL(expected)

	result := &domain.TradeResult{Signature: sig, SOLAmount: soldFor, TokenAmount: balance, Price: exitPrice, Position: pos}
	ev := events.TradeEvent{
		Side:        events.SideSell,
		Token:       pos.TokenAddress,
		PoolID:      poolID.String(),
		Signature:   sig.String(),
		SOLAmount:   soldFor,
		TokenAmount: balance,
		Price:       exitPrice,
		PnLPercent:  pnl,
		Reason:      string(d.Reason),
	}
	p.publish(events.TradeSubmitted, ev)

	pending := models.ClosePatch{Reason: d.Reason, ExitPrice: exitPrice, PnLPercent: pnl, ExitTx: sig.String()}
	if err := p.store.MarkExitPending(storeCtx, pos.TokenAddress, pending); err != nil {
		log.Error("Recording pending sell failed", zap.String("signature", sig.String()), zap.Error(err))
	}

	status := p.awaitConfirmation(ctx, sig, log)
	if status == nil {
		status = p.recheck(storeCtx, sig, log, func(ctx context.Context) (bool, error) {
			left, err := p.tokenBalance(ctx, tokenATA)
			return left == 0, err
		})
	}

	switch status.State {
	case blockchain.SignatureConfirmed:
		TrackConfirmation(start)
		transactions.WithLabelValues(string(events.SideSell), OutcomeConfirmed).Inc()
		result.Confirmed = true

		err := p.store.ClosePosition(storeCtx, pos.TokenAddress, models.ClosePatch{
			Reason:     d.Reason,
			ExitPrice:  exitPrice,
			ExitTime:   p.now(),
			PnLPercent: pnl,
			ExitTx:     sig.String(),
		})
		p.publish(events.TradeConfirmed, ev)
		log.Info("Sell confirmed",
			zap.String("signature", sig.String()),
			zap.Float64("exit_price", exitPrice),
			zap.Float64("pnl_percent", pnl))
		if err != nil && !errors.Is(err, storage.ErrNotOpen) {
			return result, stageErr(StageStore, err)
		}
		return result, nil

	case blockchain.SignatureFailed:
		transactions.WithLabelValues(string(events.SideSell), OutcomeFailed).Inc()
		ev.Error = status.Err
		p.publish(events.TradeFailed, ev)
		log.Warn("Sell failed on chain, position stays open", zap.String("signature", sig.String()), zap.String("error", status.Err))
		return nil, stageErr(StageConfirm, fmt.Errorf("%w: %s", ErrTransactionFailed, status.Err))

	default:
		transactions.WithLabelValues(string(events.SideSell), OutcomeTimeout).Inc()
		ev.Error = ErrTimeout.Error()
		p.publish(events.TradeAmbiguous, ev)
		log.Warn("Sell unresolved, position stays open", zap.String("signature", sig.String()))
		return result, stageErr(StageConfirm, ErrTimeout)
	}
}

// settlePendingExit resolves a position whose earlier sell went unconfirmed
// and whose token balance is now gone. The row is closed with the pending
// sell's reason and PnL unless that signature is known to have failed.
func (p *Pipeline) settlePendingExit(ctx context.Context, d domain.ExitDecision, log *zap.Logger) (*domain.TradeResult, error) {
	pos := d.Position
	sig, err := solana.SignatureFromBase58(*pos.ExitTx)
	if err != nil {
		return nil, p.fail(events.SideSell, OutcomeError, stageErr(StageResolve, fmt.Errorf("stored exit signature: %w", err)))
	}
	log = log.With(zap.String("signature", sig.String()))

	status, err := p.chain.GetSignatureStatus(ctx, sig, true)
	if err != nil {
		return nil, p.fail(events.SideSell, OutcomeError, stageErr(StageConfirm, fmt.Errorf("%w: pending sell status: %w", raydium.ErrUpstream, err)))
	}

	if status != nil && status.State == blockchain.SignatureFailed {
		log.Warn("Pending sell failed and no tokens remain, voiding position", zap.String("error", status.Err))
		if err := p.store.VoidPosition(ctx, pos.TokenAddress, "no token balance at exit, pending sell failed: "+status.Err); err != nil && !errors.Is(err, storage.ErrNotOpen) {
			return nil, p.fail(events.SideSell, OutcomeError, stageErr(StageStore, err))
		}
		return nil, p.fail(events.SideSell, OutcomeError, stageErr(StageQuote, ErrNoTokens))
	}

	patch := models.ClosePatch{
		Reason:     d.Reason,
		ExitPrice:  d.Price,
		ExitTime:   p.now(),
		PnLPercent: d.PnLPercent,
		ExitTx:     sig.String(),
	}
	if pos.ExitReason != "" && pos.ExitReason != models.ExitNone {
		patch.Reason = pos.ExitReason
	}
	if pos.ExitPrice != nil {
		patch.ExitPrice = *pos.ExitPrice
	}
	if pos.PnLPercent != nil {
		patch.PnLPercent = *pos.PnLPercent
	}

	if err := p.store.ClosePosition(ctx, pos.TokenAddress, patch); err != nil && !errors.Is(err, storage.ErrNotOpen) {
		return nil, p.fail(events.SideSell, OutcomeError, stageErr(StageStore, err))
	}
	transactions.WithLabelValues(string(events.SideSell), OutcomeConfirmed).Inc()

	p.publish(events.TradeConfirmed, events.TradeEvent{
		Side:       events.SideSell,
		Token:      pos.TokenAddress,
		PoolID:     pos.PoolID,
		Signature:  sig.String(),
		Price:      patch.ExitPrice,
		PnLPercent: patch.PnLPercent,
		Reason:     string(patch.Reason),
	})
	log.Info("Pending sell settled, position closed",
		zap.String("exit_reason", string(patch.Reason)),
		zap.Float64("pnl_percent", patch.PnLPercent))

	return &domain.TradeResult{Signature: sig, Price: patch.ExitPrice, Position: pos, Confirmed: true}, nil
}

func (p *Pipeline) resolvePool(ctx context.Context, token, hint solana.PublicKey) (solana.PublicKey, error) {
	if !hint.IsZero() {
		return hint, nil
	}
	if p.locator == nil {
		return solana.PublicKey{}, stageErr(StageResolve, raydium.ErrPoolNotFound)
	}
	id, err := p.locator.Resolve(ctx, token, raydium.WrappedSolMint)
	if err != nil {
		return solana.PublicKey{}, stageErr(StageResolve, err)
	}
	return id, nil
}

func (p *Pipeline) checkBalance(ctx context.Context, amountIn uint64) error {
	balance, err := p.chain.GetBalance(ctx, p.wallet.PublicKey, rpc.CommitmentConfirmed)
	if err != nil {
		return stageErr(StageQuote, fmt.Errorf("%w: get balance: %w", raydium.ErrUpstream, err))
	}
	need := amountIn + raydium.SOLToLamports(p.cfg.SOLReserve)
	if balance < need {
		return stageErr(StageQuote, fmt.Errorf("%w: have %d lamports, need %d", ErrInsufficientBalance, balance, need))
	}
	return nil
}

func (p *Pipeline) quote(state *MarketState, dir raydium.SwapDirection, amountIn uint64) (expected, minOut uint64, err error) {
	reserveIn, reserveOut := state.Reserves(dir)
	expected, err = raydium.Quote(amountIn, reserveIn, reserveOut)
	if err != nil {
		return 0, 0, stageErr(StageQuote, err)
	}
	if expected == 0 {
		return 0, 0, stageErr(StageQuote, errors.New("expected output is zero"))
	}
	return expected, raydium.MinAmountOut(expected, p.cfg.SlippageBps), nil
}

func (p *Pipeline) buildTx(ctx context.Context, side events.Side, plan swapPlan) (*solana.Transaction, error) {
	instructions, err := buildSwapInstructions(p.wallet, p.fees.Instructions(side), plan)
	if err != nil {
		return nil, stageErr(StageBuild, err)
	}
	blockhash, err := p.chain.GetRecentBlockhash(ctx)
	if err != nil {
		return nil, stageErr(StageBuild, fmt.Errorf("%w: recent blockhash: %w", raydium.ErrUpstream, err))
	}
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(p.wallet.PublicKey))
	if err != nil {
		return nil, stageErr(StageBuild, fmt.Errorf("create transaction: %w", err))
	}
	if err := p.wallet.SignTransaction(tx); err != nil {
		return nil, stageErr(StageBuild, fmt.Errorf("sign transaction: %w", err))
	}
	return tx, nil
}

// entryPrice prefers the price API and falls back to the quote.
func (p *Pipeline) entryPrice(ctx context.Context, token solana.PublicKey, lamportsIn, tokensOut uint64, decimals uint8) float64 {
	if p.prices != nil {
		price, err := p.prices.Price(ctx, token)
		if err == nil && price > 0 {
			return price
		}
		p.logger.Debug("Entry price from API unavailable, using quote", zap.Error(err))
	}
	return raydium.PriceInSOL(lamportsIn, tokensOut, decimals)
}

func (p *Pipeline) tokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	balance, err := p.chain.GetTokenAccountBalance(ctx, account)
	if errors.Is(err, blockchain.ErrAccountNotFound) {
		return 0, nil
	}
	return balance, err
}

func (p *Pipeline) publish(t events.EventType, ev events.TradeEvent) {
	ev.BaseEvent = events.NewBaseEvent(t)
	if err := p.events.Publish(ev); err != nil {
		p.logger.Debug("Trade event dropped", append(ev.Fields(), zap.NamedError("cause", err))...)
	}
}

// fail counts a trade that never reached confirmation and returns err.
func (p *Pipeline) fail(side events.Side, outcome string, err error) error {
	transactions.WithLabelValues(string(side), outcome).Inc()
	return err
}

func submitOutcome(err error) string {
	if errors.Is(err, ErrSubmissionRejected) {
		return OutcomeRejected
	}
	return OutcomeError
}
