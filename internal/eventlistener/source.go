// internal/eventlistener/source.go
// Package eventlistener turns Solana pubsub notifications into strategy triggers.
package eventlistener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain"
	"github.com/rovshanmuradov/raydium-sniper/internal/domain"
)

// LogsSubscriber is the part of WSClient used by PoolSource.
type LogsSubscriber interface {
	SubscribeLogs(address string) (<-chan json.RawMessage, error)
}

// AccountSubscriber is the part of WSClient used by CopySource.
type AccountSubscriber interface {
	SubscribeAccount(account string) (<-chan json.RawMessage, error)
}

// TxFetcher fetches confirmed transactions.
type TxFetcher interface {
	GetTransaction(ctx context.Context, sig solana.Signature) (*blockchain.TxView, error)
}

// SignatureLister lists the newest signatures of an address.
type SignatureLister interface {
	GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, limit int) ([]solana.Signature, error)
}

const (
	defaultFetchTries = 4
	defaultSeenSize   = 4096
)

// fetchTransaction retries GetTransaction: right after a confirmed
// notification the node may not have indexed the transaction yet.
func fetchTransaction(ctx context.Context, rpc TxFetcher, sig solana.Signature, tries uint) (*blockchain.TxView, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	return backoff.Retry(ctx, func() (*blockchain.TxView, error) {
		return rpc.GetTransaction(ctx, sig)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(tries))
}

// emit delivers t to out unless ctx ends first.
func emit(ctx context.Context, out chan<- domain.Trigger, t domain.Trigger, logger *zap.Logger) bool {
	select {
	case out <- t:
		triggersEmitted.WithLabelValues(t.Kind().String()).Inc()
		logger.Info("Trigger emitted", zap.Object("trigger", t))
		return true
	case <-ctx.Done():
		return false
	}
}
