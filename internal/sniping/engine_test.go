package sniping

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/raydium-sniper/internal/config"
	"github.com/rovshanmuradov/raydium-sniper/internal/domain"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/models"
)

var watchedWallet = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")

type memStore struct {
	mu   sync.Mutex
	open map[string]*models.Position
}

func newMemStore() *memStore {
	return &memStore{open: make(map[string]*models.Position)}
}

func (s *memStore) HasOpen(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.open[token]
	return ok, nil
}

func (s *memStore) GetOpen(_ context.Context, token string) (*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.open[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p, nil
}

func (s *memStore) insert(p *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.open[p.TokenAddress]; ok {
		return storage.ErrAlreadyOpen
	}
	s.open[p.TokenAddress] = p
	return nil
}

// recordingExecutor opens a position on Enter, like the real pipeline does.
type recordingExecutor struct {
	store *memStore
	hold  time.Duration

	mu      sync.Mutex
	entries []domain.EntryDecision
	exits   []domain.ExitDecision
	times   []time.Time
}

func (x *recordingExecutor) Enter(_ context.Context, d domain.EntryDecision) (*domain.TradeResult, error) {
	x.mu.Lock()
	x.entries = append(x.entries, d)
	x.times = append(x.times, time.Now())
	x.mu.Unlock()

	time.Sleep(x.hold)
	pos := &models.Position{TokenAddress: d.Token.String(), EntrySOL: d.SOLAmount, EntryTime: time.Now(), Status: models.StatusOpen}
	if err := x.store.insert(pos); err != nil {
		return nil, err
	}
	return &domain.TradeResult{Confirmed: true, Position: pos}, nil
}

func (x *recordingExecutor) Exit(_ context.Context, d domain.ExitDecision) (*domain.TradeResult, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.exits = append(x.exits, d)
	return &domain.TradeResult{Confirmed: true}, nil
}

func (x *recordingExecutor) entryCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}

type mintChain struct {
	data map[solana.PublicKey][]byte
	err  error
}

func (c *mintChain) GetAccountData(_ context.Context, pk solana.PublicKey) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	d, ok := c.data[pk]
	if !ok {
		return nil, errors.New("account not found")
	}
	return d, nil
}

func encodeMint(mintAuthority, freezeAuthority *solana.PublicKey) []byte {
	buf := make([]byte, 82)
	if mintAuthority != nil {
		binary.LittleEndian.PutUint32(buf[0:4], 1)
		copy(buf[4:36], mintAuthority[:])
	}
	binary.LittleEndian.PutUint64(buf[36:44], 1_000_000_000)
	buf[44] = 6
	buf[45] = 1
	if freezeAuthority != nil {
		binary.LittleEndian.PutUint32(buf[46:50], 1)
		copy(buf[50:82], freezeAuthority[:])
	}
	return buf
}

func testStrategy(t *testing.T, mutate func(*config.Config)) config.StrategyConfig {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.CopyTrading.Enabled = true
	cfg.CopyTrading.TargetWallets = []string{watchedWallet.String()}
	cfg.CopyTrading.DelayMs = 0
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())
	return cfg.Strategy()
}

type fixture struct {
	engine *Engine
	store  *memStore
	exec   *recordingExecutor
	chain  *mintChain
	token  solana.PublicKey
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	store := newMemStore()
	exec := &recordingExecutor{store: store}
	token := solana.NewWallet().PublicKey()
	chain := &mintChain{data: map[solana.PublicKey][]byte{token: encodeMint(nil, nil)}}
	return &fixture{
		engine: NewEngine(testStrategy(t, mutate), store, chain, exec, zaptest.NewLogger(t)),
		store:  store,
		exec:   exec,
		chain:  chain,
		token:  token,
	}
}

func (f *fixture) newPool(liquidity float64) domain.NewPool {
	return domain.NewPool{
		TokenMint:    f.token,
		PoolID:       solana.NewWallet().PublicKey(),
		LiquiditySOL: liquidity,
		Observed:     time.Now(),
	}
}

func (f *fixture) copySignal(sol float64) domain.CopySignal {
	return domain.CopySignal{SourceWallet: watchedWallet, TokenMint: f.token, SOLAmount: sol, Observed: time.Now()}
}

func assertRejected(t *testing.T, err error, stage string) {
	t.Helper()
	var rej *RejectError
	require.ErrorAs(t, err, &rej)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, stage, rej.Stage)
}

func TestEngine_NewPoolEntry(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.newPool(12)

	require.NoError(t, f.engine.Handle(context.Background(), ev))

	require.Equal(t, 1, f.exec.entryCount())
	d := f.exec.entries[0]
	assert.Equal(t, f.token, d.Token)
	assert.Equal(t, ev.PoolID, d.PoolID)
	assert.Equal(t, 0.1, d.SOLAmount)
	assert.Nil(t, d.CopiedFrom)
}

func TestEngine_NewPoolFilters(t *testing.T) {
	authority := solana.NewWallet().PublicKey()

	tests := []struct {
		name      string
		mutate    func(*config.Config)
		mint      []byte
		liquidity float64
		chainErr  error
		accepted  bool
	}{
		{name: "low liquidity", liquidity: 4.99},
		{name: "exact minimum", liquidity: 5, accepted: true},
		{name: "mint authority set", liquidity: 10, mint: encodeMint(&authority, nil)},
		{name: "freeze authority set", liquidity: 10, mint: encodeMint(nil, &authority)},
		{
			name:      "authority allowed by config",
			liquidity: 10,
			mint:      encodeMint(&authority, &authority),
			mutate: func(c *config.Config) {
				c.Filters.CheckMintAuthority = false
				c.Filters.CheckFreezeAuthority = false
			},
			accepted: true,
		},
		{name: "mint fetch fails", liquidity: 10, chainErr: errors.New("rpc down")},
		{name: "mint truncated", liquidity: 10, mint: make([]byte, 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.mutate)
			if tt.mint != nil {
				f.chain.data[f.token] = tt.mint
			}
			f.chain.err = tt.chainErr

			err := f.engine.Handle(context.Background(), f.newPool(tt.liquidity))
			if tt.accepted {
				require.NoError(t, err)
				assert.Equal(t, 1, f.exec.entryCount())
				return
			}
			assertRejected(t, err, StageFilter)
			assert.Equal(t, 0, f.exec.entryCount())
		})
	}
}

func TestEngine_NewPoolSnipingDisabled(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Sniping.Enabled = false })

	err := f.engine.Handle(context.Background(), f.newPool(50))
	assertRejected(t, err, StageFilter)
	assert.Contains(t, err.Error(), "sniping disabled")
	assert.Equal(t, 0, f.exec.entryCount())

	// копирование от этого переключателя не зависит
	require.NoError(t, f.engine.Handle(context.Background(), f.copySignal(1)))
	assert.Equal(t, 1, f.exec.entryCount())
}

func TestEngine_CopySignalSizing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		source float64
		want   float64
	}{
		{name: "fixed", source: 3, want: 0.1},
		{
			name:   "fixed capped",
			source: 3,
			mutate: func(c *config.Config) { c.CopyTrading.FixedAmountSOL = 2 },
			want:   0.5,
		},
		{
			name:   "proportional",
			source: 3,
			mutate: func(c *config.Config) { c.CopyTrading.Mode = config.CopyModeProportional },
			want:   0.3,
		},
		{
			name:   "proportional capped",
			source: 40,
			mutate: func(c *config.Config) { c.CopyTrading.Mode = config.CopyModeProportional },
			want:   0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.mutate)
			require.NoError(t, f.engine.Handle(context.Background(), f.copySignal(tt.source)))

			require.Equal(t, 1, f.exec.entryCount())
			d := f.exec.entries[0]
			assert.InDelta(t, tt.want, d.SOLAmount, 1e-9)
			require.NotNil(t, d.CopiedFrom)
			assert.Equal(t, watchedWallet, *d.CopiedFrom)
		})
	}
}

func TestEngine_CopySignalFilters(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, func(c *config.Config) { c.CopyTrading.Enabled = false })
		assertRejected(t, f.engine.Handle(context.Background(), f.copySignal(1)), StageFilter)
	})
	t.Run("unknown wallet", func(t *testing.T) {
		f := newFixture(t, nil)
		ev := f.copySignal(1)
		ev.SourceWallet = solana.NewWallet().PublicKey()
		assertRejected(t, f.engine.Handle(context.Background(), ev), StageFilter)
	})
}

func TestEngine_DedupOpenPosition(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.engine.Handle(context.Background(), f.newPool(10)))

	assertRejected(t, f.engine.Handle(context.Background(), f.newPool(10)), StageDedup)
	assertRejected(t, f.engine.Handle(context.Background(), f.copySignal(1)), StageDedup)
	assert.Equal(t, 1, f.exec.entryCount())
}

func TestEngine_ConcurrentTriggersSingleEntry(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.hold = 50 * time.Millisecond

	var wg sync.WaitGroup
	var accepted, rejected atomic.Int32
	for i := 0; i < 8; i++ {
		var trig domain.Trigger = f.newPool(10)
		if i%2 == 1 {
			trig = f.copySignal(1)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.engine.Handle(context.Background(), trig)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, ErrRejected):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(7), rejected.Load())
	assert.Equal(t, 1, f.exec.entryCount())
	assert.False(t, f.engine.Claims().Held(f.token.String()), "claim released")
}

func TestEngine_CopyDelayHonoured(t *testing.T) {
	const delay = 150 * time.Millisecond
	f := newFixture(t, func(c *config.Config) { c.CopyTrading.DelayMs = int(delay / time.Millisecond) })

	ev := f.copySignal(1)
	require.NoError(t, f.engine.Handle(context.Background(), ev))

	require.Equal(t, 1, f.exec.entryCount())
	assert.False(t, f.exec.times[0].Before(ev.Observed.Add(delay)), "executed before observed+delay")
}

func TestEngine_CopyDelayMeasuredFromObservation(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.CopyTrading.DelayMs = 10_000 })

	ev := f.copySignal(1)
	ev.Observed = time.Now().Add(-11 * time.Second)

	start := time.Now()
	require.NoError(t, f.engine.Handle(context.Background(), ev))
	assert.Less(t, time.Since(start), time.Second)
}

func TestEngine_CopyDelayCancelled(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.CopyTrading.DelayMs = 10_000 })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assertRejected(t, f.engine.Handle(ctx, f.copySignal(1)), StageDelay)
	assert.Equal(t, 0, f.exec.entryCount())
	assert.False(t, f.engine.Claims().Held(f.token.String()))
}

func TestEngine_CopyExit(t *testing.T) {
	f := newFixture(t, nil)
	exit := domain.CopyExit{SourceWallet: watchedWallet, TokenMint: f.token, Observed: time.Now()}

	assertRejected(t, f.engine.Handle(context.Background(), exit), StageDedup)

	require.NoError(t, f.engine.Handle(context.Background(), f.newPool(10)))
	require.NoError(t, f.engine.Handle(context.Background(), exit))

	require.Len(t, f.exec.exits, 1)
	assert.Equal(t, models.ExitCopyExit, f.exec.exits[0].Reason)
	assert.Equal(t, f.token.String(), f.exec.exits[0].Position.TokenAddress)
}

func TestEngine_CopyExitNotFollowed(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.CopyTrading.FollowSells = false })
	require.NoError(t, f.engine.Handle(context.Background(), f.newPool(10)))

	exit := domain.CopyExit{SourceWallet: watchedWallet, TokenMint: f.token}
	assertRejected(t, f.engine.Handle(context.Background(), exit), StageFilter)
	assert.Empty(t, f.exec.exits)
}

func TestEngine_RunWaitsForInFlight(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.hold = 100 * time.Millisecond

	in := make(chan domain.Trigger, 1)
	in <- f.newPool(10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.engine.Run(ctx, in) }()

	require.Eventually(t, func() bool { return f.exec.entryCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	ok, err := f.store.HasOpen(context.Background(), f.token.String())
	require.NoError(t, err)
	assert.True(t, ok, "in-flight entry completed after cancel")
}

type seedRecorder struct {
	base, quote, pool solana.PublicKey
}

func (s *seedRecorder) Seed(base, quote, pool solana.PublicKey) {
	s.base, s.quote, s.pool = base, quote, pool
}

func TestEngine_SeedsLocator(t *testing.T) {
	f := newFixture(t, nil)
	seeder := &seedRecorder{}
	WithPoolSeeder(seeder)(f.engine)

	ev := f.newPool(10)
	require.NoError(t, f.engine.Handle(context.Background(), ev))
	assert.Equal(t, ev.PoolID, seeder.pool)
	assert.Equal(t, f.token, seeder.base)
}
