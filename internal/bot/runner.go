// internal/bot/runner.go
// Package bot wires the trigger sources, strategy engine, exit monitor and
// execution pipeline into one process.
package bot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain/solbc"
	"github.com/rovshanmuradov/raydium-sniper/internal/config"
	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/domain"
	"github.com/rovshanmuradov/raydium-sniper/internal/eventlistener"
	"github.com/rovshanmuradov/raydium-sniper/internal/events"
	"github.com/rovshanmuradov/raydium-sniper/internal/monitor"
	"github.com/rovshanmuradov/raydium-sniper/internal/sniping"
	"github.com/rovshanmuradov/raydium-sniper/internal/transaction"
	"github.com/rovshanmuradov/raydium-sniper/internal/wallet"
)

const (
	triggerBuffer    = 256
	eventBuffer      = 1024
	priceTTL         = 5 * time.Second
	monitorWorkers   = 4
	balanceRefresh   = 30 * time.Second
	shutdownPerClose = 10 * time.Second
)

// Runner owns the process lifecycle.
type Runner struct {
	cfg        *config.Config
	logger     *zap.Logger
	shutdown   *ShutdownHandler
	shutdownCh chan os.Signal
	journal    *TradeJournal
}

// NewRunner creates a runner for a validated cfg.
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		logger:     logger,
		shutdown:   NewShutdownHandler(logger, shutdownPerClose),
		shutdownCh: make(chan os.Signal, 1),
		journal:    NewTradeJournal(logger),
	}
}

// Run starts every component and blocks until SIGINT/SIGTERM or the first
// component failure. In-flight trades get the configured shutdown grace.
func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(r.shutdownCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case sig := <-r.shutdownCh:
			r.logger.Info("📡 Signal received: " + sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	defer func() {
		if err := r.shutdown.Shutdown(context.Background()); err != nil {
			r.logger.Warn("Shutdown finished with errors", zap.Error(err))
		}
	}()

	w, err := wallet.Load(r.cfg.Wallet.KeyPath)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	r.logger.Info("Wallet loaded", zap.String("address", w.String()))

	chain := solbc.NewClient(r.cfg.RPC.HTTP, r.logger)

	store, err := OpenStore(ctx, r.cfg.Database, r.logger)
	if err != nil {
		return err
	}
	r.shutdown.Add("position-store", store)

	bus := events.NewBus(r.logger, eventBuffer)
	r.journal.Attach(bus)
	if r.cfg.Redis.Addr != "" {
		if err := r.attachRedis(ctx, bus); err != nil {
			return err
		}
	}

	strategy := r.cfg.Strategy()
	locator := raydium.NewLocator(raydium.NewAPIService(raydium.APIConfig{
		PoolListURL:   r.cfg.Discovery.PoolListURL,
		PoolByMintURL: r.cfg.Discovery.PoolByMintURL,
	}, r.logger), r.logger)
	prices := monitor.NewPriceCache(monitor.NewJupiterPrice(r.cfg.Price.URL, r.logger), priceTTL, r.logger)

	pipeline := transaction.NewPipeline(transaction.Config{
		SlippageBps:    r.cfg.Execution.SlippageBps,
		ConfirmTimeout: r.cfg.ConfirmTimeout(),
		SOLReserve:     r.cfg.Execution.SOLReserve,
	}, transaction.Deps{
		Chain:   chain,
		Wallet:  w,
		Store:   store,
		Locator: locator,
		Fees:    transaction.NewFeeManager(r.cfg.Fees.ComputeUnitLimit, r.cfg.Fees.Buy, r.cfg.Fees.Sell, r.logger),
		Prices:  prices,
		Events:  bus,
		Logger:  r.logger,
	})

	claims := sniping.NewClaims()
	engine := sniping.NewEngine(strategy, store, chain, pipeline, r.logger,
		sniping.WithPoolSeeder(locator),
		sniping.WithClaims(claims),
		sniping.WithShutdownGrace(r.cfg.ShutdownGrace()))

	exits := monitor.NewService(monitor.ServiceConfig{
		Strategy:    strategy,
		Interval:    r.cfg.CheckInterval(),
		Concurrency: monitorWorkers,
		Store:       store,
		Prices:      prices,
		Executor:    pipeline,
		Claims:      claims,
		Logger:      r.logger,

		ShutdownGrace: r.cfg.ShutdownGrace(),
	})

	ws := eventlistener.NewWSClient(eventlistener.DefaultWSConfig(r.cfg.RPC.WS, r.cfg.RPC.FallbackWS), r.logger)
	triggers := make(chan domain.Trigger, triggerBuffer)
	pools := eventlistener.NewPoolSource(ws, chain, triggers, r.logger)

	var collector *Collector
	if r.cfg.Metrics.Addr != "" {
		if collector, err = NewCollector(chain, w.PublicKey, r.logger); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ws.Run(gctx) })
	g.Go(func() error { return pools.Run(gctx) })
	if strategy.CopyEnabled {
		copies := eventlistener.NewCopySource(ws, chain, strategy.WatchedWallets(), triggers, r.logger)
		g.Go(func() error { return copies.Run(gctx) })
	}
	g.Go(func() error { return engine.Run(gctx, triggers) })
	g.Go(func() error { return exits.Run(gctx) })

	// Шина переживает остальные компоненты: события выполнений, завершающихся
	// в grace-период, ещё доставляются.
	busCtx, stopBus := context.WithCancel(context.WithoutCancel(ctx))
	busDone := make(chan struct{})
	go func() {
		defer close(busDone)
		_ = bus.Run(busCtx)
	}()

	if collector != nil {
		g.Go(func() error { return collector.Serve(gctx, r.cfg.Metrics.Addr, balanceRefresh) })
	}

	r.logger.Info("🚀 Sniper started",
		zap.Bool("sniping", strategy.SnipingEnabled),
		zap.Bool("copy_trading", strategy.CopyEnabled),
		zap.Int("watched_wallets", len(strategy.WatchedWallets())),
		zap.Float64("position_size_sol", strategy.PositionSizeSOL),
		zap.String("database", r.cfg.Database.Driver))

	err = g.Wait()
	stopBus()
	<-busDone

	summary := r.journal.Summary()
	r.logger.Info("👋 Sniper stopped",
		zap.Int("trades_confirmed", summary.Confirmed),
		zap.Int("trades_failed", summary.Failed),
		zap.Int("positions_closed", summary.Closed),
		zap.Float64("avg_pnl_percent", summary.AvgPnLPercent))
	return err
}

func (r *Runner) attachRedis(ctx context.Context, bus *events.Bus) error {
	rdb := redis.NewClient(&redis.Options{Addr: r.cfg.Redis.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("connect redis %s: %w", r.cfg.Redis.Addr, err)
	}
	events.NewRedisSink(rdb, r.cfg.Redis.Stream, r.logger).Attach(bus)
	r.shutdown.Add("redis", rdb)
	r.logger.Info("Trade events mirrored to redis",
		zap.String("addr", r.cfg.Redis.Addr),
		zap.String("stream", r.cfg.Redis.Stream))
	return nil
}
