// internal/dex/raydium/state_test.go
package raydium

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestAuthorityAddress(t *testing.T) {
	addr, err := AuthorityAddress()
	require.NoError(t, err)
	assert.Equal(t, testAmmAuthority, addr)
}

func TestDecodePool_RoundTrip(t *testing.T) {
	want := testPool()
	want.Authority = testAmmAuthority

	got, err := DecodePool(encodePool(want, PoolAccountSize))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, got.SolIsBase())
	assert.Equal(t, testUSDCMint, got.TokenMint())
}

func TestDecodePool_LongerBuffer(t *testing.T) {
	want := testPool()
	got, err := DecodePool(encodePool(want, PoolAccountSize+64))
	require.NoError(t, err)
	assert.Equal(t, want.MarketID, got.MarketID)
	assert.Equal(t, want.LPReserve, got.LPReserve)
}

func TestDecodePool_Truncated(t *testing.T) {
	buf := encodePool(testPool(), PoolAccountSize)

	for _, n := range []int{0, 1, 336, PoolAccountSize - 1} {
		got, err := DecodePool(buf[:n])
		require.Error(t, err, "length %d", n)
		assert.Nil(t, got)
		assert.True(t, IsTruncated(err))
		assert.True(t, errors.Is(err, ErrDecode))

		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, n, de.Got)
		assert.Equal(t, PoolAccountSize, de.Want)
	}
}

func TestDecodePool_BadMagic(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *PoolDescriptor)
	}{
		{
			name:   "uninitialized status",
			mutate: func(p *PoolDescriptor) { p.Status = PoolStatusUninitialized },
		},
		{
			name:   "unknown status",
			mutate: func(p *PoolDescriptor) { p.Status = 99 },
		},
		{
			name:   "decimals out of range",
			mutate: func(p *PoolDescriptor) { p.BaseDecimals = 40 },
		},
		{
			name:   "zero swap fee denominator",
			mutate: func(p *PoolDescriptor) { p.SwapFeeDenominator = 0 },
		},
		{
			name:   "zero trade fee denominator",
			mutate: func(p *PoolDescriptor) { p.TradeFeeDenominator = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPool()
			tt.mutate(p)

			got, err := DecodePool(encodePool(p, PoolAccountSize))
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, IsBadMagic(err))
			assert.False(t, IsTruncated(err))
		})
	}
}

func TestStateDecoder_DecodePool(t *testing.T) {
	dec := NewStateDecoder(zaptest.NewLogger(t))

	got, err := dec.DecodePool(testPoolID, encodePool(testPool(), PoolAccountSize))
	require.NoError(t, err)
	assert.Equal(t, testPoolID, got.ID)
	assert.Equal(t, testAmmAuthority, got.Authority)

	_, err = dec.DecodePool(testPoolID, []byte{1, 2, 3})
	assert.True(t, IsTruncated(err))
}

func TestStateDecoder_DecodeMarket(t *testing.T) {
	dec := NewStateDecoder(zaptest.NewLogger(t))

	// Первый nonce, для которого адрес лежит вне кривой.
	var (
		nonce  uint64
		signer = testMarketID
		err    error
	)
	for nonce = 0; nonce < 256; nonce++ {
		signer, err = VaultSignerAddress(testMarketID, nonce, testSerumProgram)
		if err == nil {
			break
		}
	}
	require.NoError(t, err)

	got, err := dec.DecodeMarket(testMarketID, testSerumProgram, encodeMarket(388, nonce))
	require.NoError(t, err)
	assert.Equal(t, testMarketID, got.ID)
	assert.Equal(t, testSerumProgram, got.ProgramID)
	assert.True(t, got.HasHeader)
	assert.Equal(t, nonce, got.VaultSignerNonce)
	assert.Equal(t, signer, got.VaultSigner)
	assert.Equal(t, testSerumCoinVault, got.BaseVault)
	assert.Equal(t, testSerumPcVault, got.QuoteVault)
}
