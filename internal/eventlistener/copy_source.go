// internal/eventlistener/copy_source.go
package eventlistener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/raydium-sniper/internal/domain"
)

// CopyRPC is the RPC surface CopySource needs.
type CopyRPC interface {
	TxFetcher
	SignatureLister
}

// CopySource watches the lamport balance of every target wallet and turns
// their swaps into CopySignal / CopyExit triggers.
type CopySource struct {
	ws       AccountSubscriber
	rpc      CopyRPC
	wallets  []solana.PublicKey
	out      chan<- domain.Trigger
	logger   *zap.Logger
	seen     *seenSet
	sigLimit int
	tries    uint
	now      func() time.Time
}

// NewCopySource creates a copy source for wallets.
func NewCopySource(ws AccountSubscriber, rpc CopyRPC, wallets []solana.PublicKey, out chan<- domain.Trigger, logger *zap.Logger) *CopySource {
	return &CopySource{
		ws:       ws,
		rpc:      rpc,
		wallets:  wallets,
		out:      out,
		logger:   logger.Named("copy-source"),
		seen:     newSeenSet(defaultSeenSize),
		sigLimit: 5,
		tries:    defaultFetchTries,
		now:      time.Now,
	}
}

// Run subscribes to every wallet and processes notifications until ctx is
// cancelled. Signatures that exist before Run starts are never copied.
func (s *CopySource) Run(ctx context.Context) error {
	if len(s.wallets) == 0 {
		<-ctx.Done()
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	for _, wallet := range s.wallets {
		notes, err := s.ws.SubscribeAccount(wallet.String())
		if err != nil {
			// уже запущенные watch-горутины не должны пережить Run
			cancel()
			_ = g.Wait()
			return err
		}
		s.prime(ctx, wallet)

		g.Go(func() error {
			s.watch(gctx, wallet, notes)
			return nil
		})
	}
	s.logger.Info("Watching copy-trading wallets", zap.Int("count", len(s.wallets)))
	return g.Wait()
}

// prime marks the wallet's current history as seen.
func (s *CopySource) prime(ctx context.Context, wallet solana.PublicKey) {
	sigs, err := s.rpc.GetSignaturesForAddress(ctx, wallet, s.sigLimit)
	if err != nil {
		s.logger.Warn("Failed to prime wallet history", zap.String("wallet", wallet.String()), zap.Error(err))
		return
	}
	for _, sig := range sigs {
		s.seen.Add(sig)
	}
}

func (s *CopySource) watch(ctx context.Context, wallet solana.PublicKey, notes <-chan json.RawMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-notes:
			if !ok {
				return
			}
			s.Poll(ctx, wallet)
		}
	}
}

// Poll fetches the newest signatures of wallet and emits triggers for the
// ones not processed yet, oldest first.
func (s *CopySource) Poll(ctx context.Context, wallet solana.PublicKey) {
	observed := s.now()
	sigs, err := s.rpc.GetSignaturesForAddress(ctx, wallet, s.sigLimit)
	if err != nil {
		notificationsDropped.WithLabelValues("copy", "signatures").Inc()
		s.logger.Warn("Failed to list wallet signatures", zap.String("wallet", wallet.String()), zap.Error(err))
		return
	}

	for i := len(sigs) - 1; i >= 0; i-- {
		sig := sigs[i]
		if !s.seen.Add(sig) {
			continue
		}

		view, err := fetchTransaction(ctx, s.rpc, sig, s.tries)
		if err != nil {
			notificationsDropped.WithLabelValues("copy", "fetch").Inc()
			s.logger.Warn("Failed to fetch wallet transaction",
				zap.String("wallet", wallet.String()),
				zap.String("signature", sig.String()),
				zap.Error(err))
			continue
		}

		triggers := AnalyzeBalanceChange(wallet, view, observed)
		if len(triggers) == 0 {
			notificationsDropped.WithLabelValues("copy", "no_swap").Inc()
			continue
		}
		for _, t := range triggers {
			if !emit(ctx, s.out, t, s.logger) {
				return
			}
		}
	}
}
