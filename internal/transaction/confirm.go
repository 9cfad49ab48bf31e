// internal/transaction/confirm.go
package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain"
	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain/solbc"
	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
)

// submit sends tx with preflight at confirmed commitment. Transport errors
// are retried; a preflight rejection is final and maps to
// ErrSubmissionRejected.
func (p *Pipeline) submit(ctx context.Context, tx *solana.Transaction, log *zap.Logger) (solana.Signature, error) {
	opts := blockchain.TransactionOptions{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	}

	op := func() (solana.Signature, error) {
		sig, err := p.chain.SendTransactionWithOpts(ctx, tx, opts)
		if err != nil && solbc.IsSimulationError(err) {
			return solana.Signature{}, backoff.Permanent(err)
		}
		return sig, err
	}
	notify := func(err error, d time.Duration) {
		log.Warn("Send failed, retrying", zap.Duration("backoff", d), zap.Error(err))
	}

	sig, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     200 * time.Millisecond,
			RandomizationFactor: 0.2,
			Multiplier:          2,
			MaxInterval:         2 * time.Second,
		}),
		backoff.WithMaxTries(p.cfg.SubmitAttempts),
		backoff.WithNotify(notify))
	if err == nil {
		return sig, nil
	}

	if solbc.IsSimulationError(err) {
		log.Error("Transaction rejected in preflight",
			zap.Strings("logs", solbc.SimulationLogs(err)),
			zap.Error(err))
		return solana.Signature{}, stageErr(StageSubmit, fmt.Errorf("%w: %w", ErrSubmissionRejected, err))
	}
	return solana.Signature{}, stageErr(StageSubmit, fmt.Errorf("%w: send transaction: %w", raydium.ErrUpstream, err))
}

// awaitConfirmation polls the signature every PollInterval until it is
// confirmed or failed. It returns nil when ConfirmTimeout elapses or ctx is
// cancelled first.
func (p *Pipeline) awaitConfirmation(ctx context.Context, sig solana.Signature, log *zap.Logger) *blockchain.SignatureStatus {
	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		status, err := p.chain.GetSignatureStatus(waitCtx, sig, false)
		switch {
		case err != nil:
			log.Debug("Status poll failed", zap.String("signature", sig.String()), zap.Error(err))
		case status == nil:
		case status.State == blockchain.SignatureConfirmed, status.State == blockchain.SignatureFailed:
			return status
		}

		select {
		case <-waitCtx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// recheck runs after a confirmation timeout: one status query that also
// searches the ledger history, then settled, which inspects the token
// balance. The returned status is SignatureUnknown when both are
// inconclusive.
func (p *Pipeline) recheck(ctx context.Context, sig solana.Signature, log *zap.Logger, settled func(context.Context) (bool, error)) *blockchain.SignatureStatus {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RecheckTimeout)
	defer cancel()

	status, err := p.chain.GetSignatureStatus(ctx, sig, true)
	if err == nil && status != nil && (status.State == blockchain.SignatureConfirmed || status.State == blockchain.SignatureFailed) {
		log.Info("Re-check resolved signature", zap.String("signature", sig.String()), zap.Stringer("state", status.State))
		return status
	}
	if err != nil {
		log.Warn("Re-check status query failed", zap.Error(err))
	}

	ok, err := settled(ctx)
	if err != nil {
		log.Warn("Re-check balance query failed", zap.Error(err))
		return &blockchain.SignatureStatus{State: blockchain.SignatureUnknown}
	}
	if ok {
		log.Info("Re-check: balance shows the swap landed", zap.String("signature", sig.String()))
		return &blockchain.SignatureStatus{State: blockchain.SignatureConfirmed}
	}
	return &blockchain.SignatureStatus{State: blockchain.SignatureUnknown}
}
