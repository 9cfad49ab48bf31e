// internal/monitor/service.go
// Package monitor closes open positions on take profit, stop loss and time
// stop.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/raydium-sniper/internal/config"
	"github.com/rovshanmuradov/raydium-sniper/internal/domain"
	"github.com/rovshanmuradov/raydium-sniper/internal/sniping"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/models"
)

// PositionLister is the part of the position store the monitor reads.
type PositionLister interface {
	ListOpen(ctx context.Context) ([]*models.Position, error)
}

// ServiceConfig holds the monitor's collaborators.
type ServiceConfig struct {
	Strategy    config.StrategyConfig
	Interval    time.Duration
	Concurrency int

	Store    PositionLister
	Prices   PriceSource
	Executor sniping.Executor
	// Claims is shared with the strategy engine so that an exit never runs
	// next to an entry or a copied exit for the same token.
	Claims *sniping.Claims
	Logger *zap.Logger
	// ShutdownGrace bounds how long an exit already submitted may run after
	// Run's context is cancelled.
	ShutdownGrace time.Duration
}

// Service sweeps open positions on a fixed interval.
type Service struct {
	cfg         config.StrategyConfig
	interval    time.Duration
	concurrency int

	store  PositionLister
	prices PriceSource
	exec   sniping.Executor
	claims *sniping.Claims
	logger *zap.Logger
	grace  time.Duration
	now    func() time.Time
}

// NewService creates an exit monitor.
func NewService(sc ServiceConfig) *Service {
	if sc.Interval <= 0 {
		sc.Interval = time.Minute
	}
	if sc.Concurrency <= 0 {
		sc.Concurrency = 4
	}
	if sc.Claims == nil {
		sc.Claims = sniping.NewClaims()
	}
	if sc.ShutdownGrace <= 0 {
		sc.ShutdownGrace = 35 * time.Second
	}
	return &Service{
		cfg:         sc.Strategy,
		interval:    sc.Interval,
		concurrency: sc.Concurrency,
		store:       sc.Store,
		prices:      sc.Prices,
		exec:        sc.Executor,
		claims:      sc.Claims,
		logger:      sc.Logger.Named("exit-monitor"),
		grace:       sc.ShutdownGrace,
		now:         time.Now,
	}
}

// Run sweeps immediately and then every interval until ctx is cancelled.
// A failed sweep is logged and retried on the next tick. Exits in flight at
// cancellation get up to the shutdown grace period to finish.
func (s *Service) Run(ctx context.Context) error {
	execCtx, cancelExec := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelExec()
	stop := context.AfterFunc(ctx, func() {
		timer := time.NewTimer(s.grace)
		defer timer.Stop()
		select {
		case <-timer.C:
			s.logger.Warn("Shutdown grace elapsed, cancelling in-flight exits")
			cancelExec()
		case <-execCtx.Done():
		}
	})
	defer stop()

	s.logger.Info("Exit monitor started",
		zap.Duration("interval", s.interval),
		zap.Float64("take_profit", s.cfg.TakeProfitPercent),
		zap.Float64("stop_loss", s.cfg.StopLossPercent),
		zap.Duration("max_hold", s.cfg.MaxHoldTime))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.sweep(ctx, execCtx); err != nil && ctx.Err() == nil {
			s.logger.Error("Sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("Exit monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep checks every open position once and executes the exits that match.
// It returns the decisions handed to the executor, whether or not the exit
// succeeded.
func (s *Service) Sweep(ctx context.Context) ([]domain.ExitDecision, error) {
	return s.sweep(ctx, ctx)
}

// sweep reads positions and prices on ctx and runs exits on execCtx.
func (s *Service) sweep(ctx, execCtx context.Context) ([]domain.ExitDecision, error) {
	positions, err := s.store.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}
	openPositions.Set(float64(len(positions)))

	var (
		mu        sync.Mutex
		decisions []domain.ExitDecision
	)
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, pos := range positions {
		g.Go(func() error {
			d, ok := s.check(ctx, execCtx, pos)
			if !ok {
				return nil
			}
			mu.Lock()
			decisions = append(decisions, d)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sweeps.Inc()
	s.logger.Debug("Sweep completed",
		zap.Int("open", len(positions)),
		zap.Int("exits", len(decisions)))
	return decisions, nil
}

// check evaluates one position and runs the exit when a rule matches.
func (s *Service) check(ctx, execCtx context.Context, pos *models.Position) (domain.ExitDecision, bool) {
	log := s.logger.With(zap.String("token", pos.TokenAddress))

	if pos.EntryPrice <= 0 {
		log.Warn("Position has no entry price, skipping")
		return domain.ExitDecision{}, false
	}
	mint, err := solana.PublicKeyFromBase58(pos.TokenAddress)
	if err != nil {
		log.Error("Invalid token address in store", zap.Error(err))
		return domain.ExitDecision{}, false
	}

	price, err := s.prices.Price(ctx, mint)
	if err != nil || price <= 0 {
		priceFailures.Inc()
		log.Warn("Price unavailable, skipping position", zap.Float64("price", price), zap.Error(err))
		return domain.ExitDecision{}, false
	}

	reason, pnl, exit := Evaluate(pos, price, s.now(), s.cfg)
	if !exit {
		log.Debug("Position held",
			zap.Float64("price", price),
			zap.Float64("pnl_percent", pnl),
			zap.Duration("held", pos.HeldFor(s.now())))
		return domain.ExitDecision{}, false
	}

	release, ok := s.claims.TryClaim(pos.TokenAddress)
	if !ok {
		// Сделка по токену уже идёт, проверим на следующем проходе.
		log.Debug("Trade in flight, skipping")
		return domain.ExitDecision{}, false
	}
	defer release()

	decision := domain.ExitDecision{Position: pos, Reason: reason, Price: price, PnLPercent: pnl}
	exitsTriggered.WithLabelValues(string(reason)).Inc()
	log.Info("Exit triggered", decision.Fields()...)

	if _, err := s.exec.Exit(execCtx, decision); err != nil {
		log.Error("Exit failed, position stays open", append(decision.Fields(), zap.Error(err))...)
	}
	return decision, true
}
