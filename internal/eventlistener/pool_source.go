// internal/eventlistener/pool_source.go
package eventlistener

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain"
	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/domain"
)

// Reasons a pool notification yields no trigger.
var (
	ErrNoInitialize2 = errors.New("transaction has no initialize2 instruction")
	ErrNotSOLPair    = errors.New("pool is not paired with WSOL")
)

// PoolSource watches the AMM program logs and emits NewPool for every
// successful initialize2 of a WSOL pair.
type PoolSource struct {
	ws      LogsSubscriber
	rpc     TxFetcher
	out     chan<- domain.Trigger
	logger  *zap.Logger
	seen    *seenSet
	workers int
	tries   uint
	now     func() time.Time
}

// NewPoolSource creates a pool source writing to out.
func NewPoolSource(ws LogsSubscriber, rpc TxFetcher, out chan<- domain.Trigger, logger *zap.Logger) *PoolSource {
	return &PoolSource{
		ws:      ws,
		rpc:     rpc,
		out:     out,
		logger:  logger.Named("pool-source"),
		seen:    newSeenSet(defaultSeenSize),
		workers: 8,
		tries:   defaultFetchTries,
		now:     time.Now,
	}
}

// Run consumes log notifications until ctx is cancelled or the
// subscription channel closes.
func (s *PoolSource) Run(ctx context.Context) error {
	notes, err := s.ws.SubscribeLogs(raydium.RaydiumV4ProgramID.String())
	if err != nil {
		return err
	}
	s.logger.Info("Watching AMM program logs", zap.String("program", raydium.RaydiumV4ProgramID.String()))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-notes:
			if !ok {
				return nil
			}
			sig, ok := s.accept(raw)
			if !ok {
				continue
			}
			observed := s.now()
			g.Go(func() error {
				s.handle(gctx, sig, observed)
				return nil
			})
		}
	}
}

// accept filters notifications down to new, successful initialize2 logs.
func (s *PoolSource) accept(raw json.RawMessage) (solana.Signature, bool) {
	var n LogsNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		s.logger.Debug("Malformed logs notification", zap.Error(err))
		return solana.Signature{}, false
	}
	if n.Failed() || !mentionsInitialize2(n.Value.Logs) {
		return solana.Signature{}, false
	}
	sig, err := solana.SignatureFromBase58(n.Value.Signature)
	if err != nil {
		return solana.Signature{}, false
	}
	if !s.seen.Add(sig) {
		return solana.Signature{}, false
	}
	return sig, true
}

func (s *PoolSource) handle(ctx context.Context, sig solana.Signature, observed time.Time) {
	view, err := fetchTransaction(ctx, s.rpc, sig, s.tries)
	if err != nil {
		notificationsDropped.WithLabelValues("pool", "fetch").Inc()
		s.logger.Warn("Failed to fetch pool transaction", zap.String("signature", sig.String()), zap.Error(err))
		return
	}

	ev, err := ExtractNewPool(view, observed)
	if err != nil {
		reason := "decode"
		if errors.Is(err, ErrNotSOLPair) {
			reason = "not_sol_pair"
		} else if errors.Is(err, ErrNoInitialize2) {
			reason = "no_initialize2"
		}
		notificationsDropped.WithLabelValues("pool", reason).Inc()
		s.logger.Debug("Pool transaction skipped", zap.String("signature", sig.String()), zap.Error(err))
		return
	}

	emit(ctx, s.out, ev, s.logger)
}

func mentionsInitialize2(logs []string) bool {
	for _, line := range logs {
		if strings.Contains(line, "initialize2") {
			return true
		}
	}
	return false
}

// ExtractNewPool finds the initialize2 instruction in view and converts it
// to a NewPool trigger.
func ExtractNewPool(view *blockchain.TxView, observed time.Time) (domain.NewPool, error) {
	for _, ix := range view.Instructions {
		if !ix.ProgramID.Equals(raydium.RaydiumV4ProgramID) ||
			len(ix.Data) == 0 || ix.Data[0] != raydium.InstructionInitialize2 {
			continue
		}

		init, err := raydium.ParseInitialize2(ix.Accounts, ix.Data)
		if err != nil {
			return domain.NewPool{}, err
		}
		token, ok := init.TokenMint()
		if !ok {
			return domain.NewPool{}, ErrNotSOLPair
		}
		return domain.NewPool{
			TokenMint:    token,
			PoolID:       init.PoolID,
			LiquiditySOL: raydium.LamportsToSOL(init.LiquidityLamports()),
			Signature:    view.Signature,
			Observed:     observed,
		}, nil
	}
	return domain.NewPool{}, ErrNoInitialize2
}
