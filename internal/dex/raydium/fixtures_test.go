// internal/dex/raydium/fixtures_test.go
package raydium

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// SOL-USDC pool on mainnet.
var (
	testPoolID         = solana.MPK("58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2")
	testAmmAuthority   = solana.MPK("5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1")
	testOpenOrders     = solana.MPK("HRk9CMrpq7Qr6mhLkWGJR19dZ1P7RtUcYP3qHWKKYXAh")
	testTargetOrders   = solana.MPK("CZza3Ej4Mc58MnxWA385itCC9jCo3L1D7zc3LKy1bZMR")
	testBaseVault      = solana.MPK("DQyrAcCrDXQ7NeoqGgDCZwBvWDcYmFCjSb9JtteuvPpz")
	testQuoteVault     = solana.MPK("HLmqeL62xR1QoZ1HKKbXRrdN1p3phKpxRMb2VVopvBBz")
	testSerumProgram   = solana.MPK("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	testMarketID       = solana.MPK("8BnEgHoWFysVcuFFX7QztDmzuH8r5ZFvyP3sYwn1XTh6")
	testBids           = solana.MPK("DfiHxtHBUHwEXPEHAuruucxxRc8qYPZniGqBeqkMqZQF")
	testAsks           = solana.MPK("BBLkJKGGxkxZsFWUMQB4HnLkADmMr3NFYN4YbC4LpmKJ")
	testEventQueue     = solana.MPK("8w4n3fcajhgN8TF74j42ehWvbVJnck5cewpjwhRQpyyc")
	testSerumCoinVault = solana.MPK("JCC1k8CrZX8QPAgwqErNWVg9m4ckVGADqHhYEDns8qJy")
	testSerumPcVault   = solana.MPK("D8Lg4ASqHHpwBTZYfbm1v3wPqBUPvGP5ezm6gCaASTR6")
	testUSDCMint       = solana.MPK("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	testLPMint         = solana.MPK("8HoQnePLqPj4M7PUDzfw8e3Ymdwgc7NLGnaTUapubyvu")
)

func putU64(buf []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(buf[off:off+8], v)
}

func putKey(buf []byte, off int, k solana.PublicKey) {
	copy(buf[off:off+32], k[:])
}

// testPool returns the descriptor encodePool writes.
func testPool() *PoolDescriptor {
	return &PoolDescriptor{
		Status:              PoolStatusSwapOnly,
		Nonce:               254,
		BaseDecimals:        9,
		QuoteDecimals:       6,
		TradeFeeNumerator:   25,
		TradeFeeDenominator: 10000,
		SwapFeeNumerator:    25,
		SwapFeeDenominator:  10000,
		PoolOpenTime:        1_700_000_000,
		BaseVault:           testBaseVault,
		QuoteVault:          testQuoteVault,
		BaseMint:            WrappedSolMint,
		QuoteMint:           testUSDCMint,
		LPMint:              testLPMint,
		OpenOrders:          testOpenOrders,
		MarketID:            testMarketID,
		MarketProgramID:     testSerumProgram,
		TargetOrders:        testTargetOrders,
		WithdrawQueue:       solana.MPK("G7xeGGLevkRwB5f44QNgQtrPKBdMfkT6ZZwpS9xcC97n"),
		LPVault:             solana.MPK("Awpt6N7ZYPBa4vG4BQNFhFxDj4sxExAA9rpBAoBw2uok"),
		Owner:               solana.MPK("GThUX1Atko4tqhN2NaiTazWSeFWMuiUvfFnyJyUghFMJ"),
		LPReserve:           42_000_000,
	}
}

func encodePool(p *PoolDescriptor, size int) []byte {
	buf := make([]byte, size)
	putU64(buf, offStatus, p.Status)
	putU64(buf, offNonce, p.Nonce)
	putU64(buf, offBaseDecimal, uint64(p.BaseDecimals))
	putU64(buf, offQuoteDecimal, uint64(p.QuoteDecimals))
	putU64(buf, offTradeFeeNum, p.TradeFeeNumerator)
	putU64(buf, offTradeFeeDen, p.TradeFeeDenominator)
	putU64(buf, offSwapFeeNum, p.SwapFeeNumerator)
	putU64(buf, offSwapFeeDen, p.SwapFeeDenominator)
	putU64(buf, offPoolOpenTime, p.PoolOpenTime)
	putKey(buf, offBaseVault, p.BaseVault)
	putKey(buf, offQuoteVault, p.QuoteVault)
	putKey(buf, offBaseMint, p.BaseMint)
	putKey(buf, offQuoteMint, p.QuoteMint)
	putKey(buf, offLPMint, p.LPMint)
	putKey(buf, offOpenOrders, p.OpenOrders)
	putKey(buf, offMarketID, p.MarketID)
	putKey(buf, offMarketProgramID, p.MarketProgramID)
	putKey(buf, offTargetOrders, p.TargetOrders)
	putKey(buf, offWithdrawQueue, p.WithdrawQueue)
	putKey(buf, offLPVault, p.LPVault)
	putKey(buf, offOwner, p.Owner)
	putU64(buf, offLPReserve, p.LPReserve)
	return buf
}

// encodeMarket writes a market buffer of size bytes. Header fields are only
// written when size leaves room for them.
func encodeMarket(size int, nonce uint64) []byte {
	buf := make([]byte, size)
	if size >= MarketHeaderSize {
		putU64(buf, offMarketVaultSignerNonce, nonce)
		putKey(buf, offMarketBaseMint, WrappedSolMint)
		putKey(buf, offMarketQuoteMint, testUSDCMint)
		putKey(buf, offMarketBaseVault, testSerumCoinVault)
		putKey(buf, offMarketQuoteVault, testSerumPcVault)
	}
	tail := size - MarketTailSize
	putKey(buf, tail, testEventQueue)
	putKey(buf, tail+32, testBids)
	putKey(buf, tail+64, testAsks)
	return buf
}

func encodeMint(mintAuth, freezeAuth *solana.PublicKey, supply uint64, decimals uint8) []byte {
	buf := make([]byte, MintAccountSize)
	if mintAuth != nil {
		binary.LittleEndian.PutUint32(buf[offMintAuthorityOption:], 1)
		putKey(buf, offMintAuthority, *mintAuth)
	}
	putU64(buf, offMintSupply, supply)
	buf[offMintDecimals] = decimals
	buf[offMintInitialized] = 1
	if freezeAuth != nil {
		binary.LittleEndian.PutUint32(buf[offFreezeAuthorityOption:], 1)
		putKey(buf, offFreezeAuthority, *freezeAuth)
	}
	return buf
}

// testMarket returns a market with a vault signer that does not need deriving.
func testMarket() *MarketDescriptor {
	return &MarketDescriptor{
		ID:          testMarketID,
		ProgramID:   testSerumProgram,
		EventQueue:  testEventQueue,
		Bids:        testBids,
		Asks:        testAsks,
		HasHeader:   true,
		BaseMint:    WrappedSolMint,
		QuoteMint:   testUSDCMint,
		BaseVault:   testSerumCoinVault,
		QuoteVault:  testSerumPcVault,
		VaultSigner: solana.MPK("CTz5UMLQm2SRWHzQnU62Pi4yJqbNGjgRBHqqp6oDHfF7"),
	}
}
