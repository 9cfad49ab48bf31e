// internal/dex/raydium/initialize.go
package raydium

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PoolInit is the content of an initialize2 instruction.
type PoolInit struct {
	PoolID         solana.PublicKey
	CoinMint       solana.PublicKey
	PcMint         solana.PublicKey
	OpenTime       uint64
	InitPcAmount   uint64
	InitCoinAmount uint64
}

// TokenMint returns the non-WSOL side of the pool and false when neither side is WSOL.
func (p *PoolInit) TokenMint() (solana.PublicKey, bool) {
	switch {
	case p.PcMint.Equals(WrappedSolMint):
		return p.CoinMint, true
	case p.CoinMint.Equals(WrappedSolMint):
		return p.PcMint, true
	default:
		return solana.PublicKey{}, false
	}
}

// LiquidityLamports returns the opening WSOL amount of the pool.
func (p *PoolInit) LiquidityLamports() uint64 {
	if p.PcMint.Equals(WrappedSolMint) {
		return p.InitPcAmount
	}
	if p.CoinMint.Equals(WrappedSolMint) {
		return p.InitCoinAmount
	}
	return 0
}

// ParseInitialize2 decodes an initialize2 instruction given its resolved
// account list and raw data.
func ParseInitialize2(accounts []solana.PublicKey, data []byte) (*PoolInit, error) {
	if len(data) < init2DataSize {
		return nil, &DecodeError{Account: "initialize2", Kind: Truncated, Got: len(data), Want: init2DataSize}
	}
	if data[0] != InstructionInitialize2 {
		return nil, &DecodeError{Account: "initialize2", Kind: BadMagic, Detail: fmt.Sprintf("instruction tag %d", data[0])}
	}
	if len(accounts) < init2MinAccounts {
		return nil, &DecodeError{Account: "initialize2 accounts", Kind: Truncated, Got: len(accounts), Want: init2MinAccounts}
	}

	return &PoolInit{
		PoolID:         accounts[init2AccountAmm],
		CoinMint:       accounts[init2AccountCoinMint],
		PcMint:         accounts[init2AccountPcMint],
		OpenTime:       binary.LittleEndian.Uint64(data[2:10]),
		InitPcAmount:   binary.LittleEndian.Uint64(data[10:18]),
		InitCoinAmount: binary.LittleEndian.Uint64(data[18:26]),
	}, nil
}
