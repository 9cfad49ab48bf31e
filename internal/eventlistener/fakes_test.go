package eventlistener

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain"
	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
)

type fakeSubscriber struct {
	logs     chan json.RawMessage
	accounts map[string]chan json.RawMessage
	failing  map[string]error
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		logs:     make(chan json.RawMessage, 8),
		accounts: make(map[string]chan json.RawMessage),
	}
}

func (f *fakeSubscriber) SubscribeLogs(string) (<-chan json.RawMessage, error) {
	return f.logs, nil
}

func (f *fakeSubscriber) SubscribeAccount(account string) (<-chan json.RawMessage, error) {
	if err := f.failing[account]; err != nil {
		return nil, err
	}
	ch, ok := f.accounts[account]
	if !ok {
		ch = make(chan json.RawMessage, 8)
		f.accounts[account] = ch
	}
	return ch, nil
}

type fakeRPC struct {
	mu    sync.Mutex
	txs   map[solana.Signature]*blockchain.TxView
	sigs  []solana.Signature
	calls int
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{txs: make(map[solana.Signature]*blockchain.TxView)}
}

func (f *fakeRPC) GetTransaction(_ context.Context, sig solana.Signature) (*blockchain.TxView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	tx, ok := f.txs[sig]
	if !ok {
		return nil, errors.New("not found")
	}
	return tx, nil
}

func (f *fakeRPC) GetSignaturesForAddress(_ context.Context, _ solana.PublicKey, limit int) ([]solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.sigs) {
		limit = len(f.sigs)
	}
	return append([]solana.Signature(nil), f.sigs[:limit]...), nil
}

// addTx registers view as the newest signature.
func (f *fakeRPC) addTx(view *blockchain.TxView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs[view.Signature] = view
	f.sigs = append([]solana.Signature{view.Signature}, f.sigs...)
}

func randomSignature() solana.Signature {
	var sig solana.Signature
	copy(sig[:], solana.NewWallet().PrivateKey[:64])
	return sig
}

func initialize2View(sig solana.Signature, pool, coin, pc solana.PublicKey, pcAmount, coinAmount uint64) *blockchain.TxView {
	data := make([]byte, 26)
	data[0] = raydium.InstructionInitialize2
	data[1] = 254
	binary.LittleEndian.PutUint64(data[2:10], 0)
	binary.LittleEndian.PutUint64(data[10:18], pcAmount)
	binary.LittleEndian.PutUint64(data[18:26], coinAmount)

	accounts := make([]solana.PublicKey, 21)
	for i := range accounts {
		accounts[i] = solana.NewWallet().PublicKey()
	}
	accounts[4] = pool
	accounts[8] = coin
	accounts[9] = pc

	return &blockchain.TxView{
		Signature: sig,
		Instructions: []blockchain.InstructionView{
			{ProgramID: solana.SystemProgramID, Data: []byte{2, 0, 0, 0}},
			{ProgramID: raydium.RaydiumV4ProgramID, Accounts: accounts, Data: data},
		},
	}
}

func logsNotification(sig solana.Signature, failed bool, logs ...string) json.RawMessage {
	errValue := "null"
	if failed {
		errValue = `{"InstructionError":[0,"Custom"]}`
	}
	logsJSON, _ := json.Marshal(logs)
	return json.RawMessage(`{"context":{"slot":1},"value":{"signature":"` + sig.String() +
		`","err":` + errValue + `,"logs":` + string(logsJSON) + `}}`)
}
