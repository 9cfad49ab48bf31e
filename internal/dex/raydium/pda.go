// internal/dex/raydium/pda.go
package raydium

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

var authorityOnce = sync.OnceValues(func() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(AmmAuthoritySeed)}, RaydiumV4ProgramID)
	return addr, err
})

// AuthorityAddress returns the AMM v4 authority PDA shared by all pools.
func AuthorityAddress() (solana.PublicKey, error) {
	return authorityOnce()
}

// VaultSignerAddress derives the market vault signer from the market id and
// the nonce stored in the market header.
func VaultSignerAddress(market solana.PublicKey, nonce uint64, marketProgram solana.PublicKey) (solana.PublicKey, error) {
	nonceLE := make([]byte, 8)
	binary.LittleEndian.PutUint64(nonceLE, nonce)

	addr, err := solana.CreateProgramAddress([][]byte{market.Bytes(), nonceLE}, marketProgram)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("create program address: %w", err)
	}
	return addr, nil
}
