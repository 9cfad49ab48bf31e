// internal/transaction/fakes_test.go
package transaction

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain"
	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/events"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/sqlite"
	"github.com/rovshanmuradov/raydium-sniper/internal/wallet"
)

// fakeChain is an in-memory blockchain.Client. Sequences pop their first
// element per call and repeat the last one.
type fakeChain struct {
	mu sync.Mutex

	lamports      uint64
	tokenBalances map[solana.PublicKey][]uint64
	accounts      map[solana.PublicKey][]byte

	sendErrs  []error
	sendCalls int
	sent      []*solana.Transaction

	statuses      []*blockchain.SignatureStatus
	history       *blockchain.SignatureStatus
	historyCalls  int
	blockhashErr  error
	multipleCalls int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		lamports:      10 * raydium.LamportsPerSOL,
		tokenBalances: make(map[solana.PublicKey][]uint64),
		accounts:      make(map[solana.PublicKey][]byte),
		statuses: []*blockchain.SignatureStatus{
			{State: blockchain.SignaturePending},
			{State: blockchain.SignatureConfirmed, Slot: 42},
		},
	}
}

func (c *fakeChain) GetRecentBlockhash(context.Context) (solana.Hash, error) {
	if c.blockhashErr != nil {
		return solana.Hash{}, c.blockhashErr
	}
	return solana.HashFromBytes(make([]byte, 32)), nil
}

func (c *fakeChain) GetAccountData(_ context.Context, pk solana.PublicKey) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.accounts[pk]
	if !ok {
		return nil, blockchain.ErrAccountNotFound
	}
	return data, nil
}

func (c *fakeChain) GetMultipleAccountsData(_ context.Context, pks []solana.PublicKey) ([][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.multipleCalls++
	out := make([][]byte, len(pks))
	for i, pk := range pks {
		out[i] = c.accounts[pk]
	}
	return out, nil
}

func (c *fakeChain) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendCalls++
	if opts.SkipPreflight || opts.PreflightCommitment != rpc.CommitmentConfirmed {
		return solana.Signature{}, errors.New("unexpected send options")
	}
	if len(c.sendErrs) > 0 {
		err := c.sendErrs[0]
		c.sendErrs = c.sendErrs[1:]
		return solana.Signature{}, err
	}
	c.sent = append(c.sent, tx)
	return tx.Signatures[0], nil
}

func (c *fakeChain) GetSignatureStatus(_ context.Context, _ solana.Signature, searchHistory bool) (*blockchain.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if searchHistory {
		c.historyCalls++
		if c.history != nil {
			return c.history, nil
		}
		return &blockchain.SignatureStatus{State: blockchain.SignatureUnknown}, nil
	}
	st := c.statuses[0]
	if len(c.statuses) > 1 {
		c.statuses = c.statuses[1:]
	}
	return st, nil
}

func (c *fakeChain) GetBalance(context.Context, solana.PublicKey, rpc.CommitmentType) (uint64, error) {
	return c.lamports, nil
}

func (c *fakeChain) GetTokenAccountBalance(_ context.Context, account solana.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq, ok := c.tokenBalances[account]
	if !ok || len(seq) == 0 {
		return 0, blockchain.ErrAccountNotFound
	}
	v := seq[0]
	if len(seq) > 1 {
		c.tokenBalances[account] = seq[1:]
	}
	return v, nil
}

func (c *fakeChain) GetSignaturesForAddress(context.Context, solana.PublicKey, int) ([]solana.Signature, error) {
	return nil, nil
}

func (c *fakeChain) GetTransaction(context.Context, solana.Signature) (*blockchain.TxView, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeChain) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type staticLoader struct {
	state *MarketState
	err   error
	calls int
}

func (l *staticLoader) Load(_ context.Context, poolID solana.PublicKey) (*MarketState, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	if !poolID.Equals(l.state.Pool.ID) {
		return nil, errors.New("unknown pool")
	}
	return l.state, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TradeEvent
}

func (r *recordingPublisher) Publish(ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev.(events.TradeEvent))
	return nil
}

func (r *recordingPublisher) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixedPrice float64

func (f fixedPrice) Price(context.Context, solana.PublicKey) (float64, error) {
	if f <= 0 {
		return 0, errors.New("no price")
	}
	return float64(f), nil
}

type fixedLocator struct {
	pool  solana.PublicKey
	calls int
}

func (l *fixedLocator) Resolve(context.Context, solana.PublicKey, solana.PublicKey) (solana.PublicKey, error) {
	l.calls++
	return l.pool, nil
}

// testMarketState pairs a fresh token (base, 6 decimals) with WSOL (quote).
// Reserves: 1,000,000 tokens against 100 SOL.
func testMarketState(token solana.PublicKey) *MarketState {
	authority, err := raydium.AuthorityAddress()
	if err != nil {
		panic(err)
	}
	key := func() solana.PublicKey { return solana.NewWallet().PublicKey() }
	pool := &raydium.PoolDescriptor{
		ID:                  key(),
		Status:              raydium.PoolStatusSwapOnly,
		BaseDecimals:        6,
		QuoteDecimals:       9,
		TradeFeeDenominator: 10_000,
		SwapFeeDenominator:  10_000,
		BaseVault:           key(),
		QuoteVault:          key(),
		BaseMint:            token,
		QuoteMint:           raydium.WrappedSolMint,
		OpenOrders:          key(),
		MarketID:            key(),
		MarketProgramID:     raydium.OpenBookProgramID,
		TargetOrders:        key(),
		Authority:           authority,
	}
	market := &raydium.MarketDescriptor{
		ID:          pool.MarketID,
		ProgramID:   pool.MarketProgramID,
		EventQueue:  key(),
		Bids:        key(),
		Asks:        key(),
		HasHeader:   true,
		BaseMint:    token,
		QuoteMint:   raydium.WrappedSolMint,
		BaseVault:   key(),
		QuoteVault:  key(),
		VaultSigner: key(),
	}
	return &MarketState{
		Pool:         pool,
		Market:       market,
		BaseReserve:  1_000_000 * 1_000_000,
		QuoteReserve: 100 * raydium.LamportsPerSOL,
	}
}

type harness struct {
	pipeline *Pipeline
	chain    *fakeChain
	loader   *staticLoader
	locator  *fixedLocator
	store    *sqlite.Store
	events   *recordingPublisher
	wallet   *wallet.Wallet
	token    solana.PublicKey
	state    *MarketState
	tokenATA solana.PublicKey
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	w, err := wallet.NewWallet(solana.NewWallet().PrivateKey.String())
	require.NoError(t, err)

	store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "trades.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	token := solana.NewWallet().PublicKey()
	state := testMarketState(token)
	tokenATA, err := w.GetATA(token)
	require.NoError(t, err)

	h := &harness{
		chain:    newFakeChain(),
		loader:   &staticLoader{state: state},
		locator:  &fixedLocator{pool: state.Pool.ID},
		store:    store,
		events:   &recordingPublisher{},
		wallet:   w,
		token:    token,
		state:    state,
		tokenATA: tokenATA,
	}

	cfg := DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.ConfirmTimeout = 100 * time.Millisecond
	cfg.RecheckTimeout = time.Second

	h.pipeline = NewPipeline(cfg, Deps{
		Chain:   h.chain,
		Wallet:  w,
		Store:   store,
		Loader:  h.loader,
		Locator: h.locator,
		Fees:    NewFeeManager(1_400_000, 10_000, 20_000, logger),
		Prices:  fixedPrice(0.0001),
		Events:  h.events,
		Logger:  logger,
	})
	return h
}
