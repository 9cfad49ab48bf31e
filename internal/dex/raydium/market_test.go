// internal/dex/raydium/market_test.go
package raydium

import (
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMarket_TailAtAnyLength(t *testing.T) {
	for _, n := range []int{96, 97, 200, 387, 388, 388 + 200} {
		t.Run(fmt.Sprintf("len=%d", n), func(t *testing.T) {
			got, err := DecodeMarket(encodeMarket(n, 7))
			require.NoError(t, err)

			assert.Equal(t, testEventQueue, got.EventQueue)
			assert.Equal(t, testBids, got.Bids)
			assert.Equal(t, testAsks, got.Asks)
			assert.Equal(t, n >= MarketHeaderSize, got.HasHeader)
		})
	}
}

func TestDecodeMarket_Header(t *testing.T) {
	got, err := DecodeMarket(encodeMarket(MarketHeaderSize, 3))
	require.NoError(t, err)

	assert.True(t, got.HasHeader)
	assert.Equal(t, uint64(3), got.VaultSignerNonce)
	assert.Equal(t, WrappedSolMint, got.BaseMint)
	assert.Equal(t, testUSDCMint, got.QuoteMint)
	assert.Equal(t, testSerumCoinVault, got.BaseVault)
	assert.Equal(t, testSerumPcVault, got.QuoteVault)
	// Vault signer is derived by StateDecoder, not by the pure decoder.
	assert.True(t, got.VaultSigner.IsZero())
}

func TestDecodeMarket_NoHeaderBelowHeaderSize(t *testing.T) {
	got, err := DecodeMarket(encodeMarket(MarketHeaderSize-1, 3))
	require.NoError(t, err)
	assert.False(t, got.HasHeader)
	assert.Equal(t, solana.PublicKey{}, got.BaseVault)
}

func TestDecodeMarket_Truncated(t *testing.T) {
	for _, n := range []int{0, 32, MarketTailSize - 1} {
		got, err := DecodeMarket(make([]byte, n))
		assert.Nil(t, got)
		assert.True(t, IsTruncated(err), "length %d", n)
	}
}
