package bot

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/eventlistener"
	"github.com/rovshanmuradov/raydium-sniper/internal/monitor"
	"github.com/rovshanmuradov/raydium-sniper/internal/sniping"
	"github.com/rovshanmuradov/raydium-sniper/internal/transaction"
)

// BalanceReader reads the wallet's SOL balance.
type BalanceReader interface {
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
}

// Collector owns the process registry and the wallet balance gauge.
type Collector struct {
	registry *prometheus.Registry
	balance  prometheus.Gauge
	chain    BalanceReader
	wallet   solana.PublicKey
	logger   *zap.Logger
}

// NewCollector registers the runtime collectors and every component's
// metrics on a private registry.
func NewCollector(chain BalanceReader, wallet solana.PublicKey, logger *zap.Logger) (*Collector, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, register := range []func(prometheus.Registerer) error{
		eventlistener.RegisterMetrics,
		sniping.RegisterMetrics,
		monitor.RegisterMetrics,
		transaction.RegisterMetrics,
	} {
		if err := register(reg); err != nil {
			return nil, err
		}
	}

	balance := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sniper_wallet_balance_sol",
		Help: "SOL balance of the trading wallet",
	})
	if err := reg.Register(balance); err != nil {
		return nil, err
	}

	return &Collector{
		registry: reg,
		balance:  balance,
		chain:    chain,
		wallet:   wallet,
		logger:   logger.Named("metrics"),
	}, nil
}

// Registry returns the registry served on /metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RefreshBalance updates the wallet balance gauge.
func (c *Collector) RefreshBalance(ctx context.Context) error {
	lamports, err := c.chain.GetBalance(ctx, c.wallet, rpc.CommitmentConfirmed)
	if err != nil {
		return err
	}
	c.balance.Set(raydium.LamportsToSOL(lamports))
	return nil
}

// Serve exposes /metrics on addr and refreshes the balance gauge every
// interval until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, interval time.Duration) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("Metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := c.RefreshBalance(ctx); err != nil && ctx.Err() == nil {
			c.logger.Debug("Balance refresh failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil
		case <-ticker.C:
		}
	}
}
