// internal/dex/raydium/constants.go
package raydium

import (
	"github.com/gagliardetto/solana-go"
)

// Program IDs
var (
	TokenProgramID           = solana.MPK("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	RaydiumV4ProgramID       = solana.MPK("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	OpenBookProgramID        = solana.MPK("srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX")
	SystemProgramID          = solana.MPK("11111111111111111111111111111111")
	AssociatedTokenProgramID = solana.MPK("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	WrappedSolMint           = solana.MPK("So11111111111111111111111111111111111111112")
)

// Instruction opcodes of the AMM v4 program.
const (
	InstructionInitialize2 uint8 = 1
	InstructionSwapBaseIn  uint8 = 9
)

const (
	SwapAccountsCount = 18
	swapDataSize      = 17

	// AmmAuthoritySeed is the only seed of the AMM authority PDA.
	AmmAuthoritySeed = "amm authority"

	LamportsPerSOL = 1_000_000_000
)

// AMM v4 (AmmInfo) account layout. u64 header fields come first, followed by
// swap accounting and the pubkey block.
const (
	PoolAccountSize = 752

	offStatus          = 0
	offNonce           = 8
	offBaseDecimal     = 32
	offQuoteDecimal    = 40
	offTradeFeeNum     = 144
	offTradeFeeDen     = 152
	offSwapFeeNum      = 176
	offSwapFeeDen      = 184
	offPoolOpenTime    = 224
	offBaseVault       = 336
	offQuoteVault      = 368
	offBaseMint        = 400
	offQuoteMint       = 432
	offLPMint          = 464
	offOpenOrders      = 496
	offMarketID        = 528
	offMarketProgramID = 560
	offTargetOrders    = 592
	offWithdrawQueue   = 624
	offLPVault         = 656
	offOwner           = 688
	offLPReserve       = 720

	maxTokenDecimals = 18
)

// Order-book market layout. The queue block is addressed from the end of the
// buffer, the header block from the start.
const (
	MarketTailSize   = 96
	MarketHeaderSize = 388

	offMarketVaultSignerNonce = 45
	offMarketBaseMint         = 53
	offMarketQuoteMint        = 85
	offMarketBaseVault        = 117
	offMarketQuoteVault       = 165
)

// SPL mint layout.
const (
	MintAccountSize = 82

	offMintAuthorityOption   = 0
	offMintAuthority         = 4
	offMintSupply            = 36
	offMintDecimals          = 44
	offMintInitialized       = 45
	offFreezeAuthorityOption = 46
	offFreezeAuthority       = 50
)

// initialize2 instruction account positions and payload layout:
// u8 tag | u8 nonce | u64 open_time | u64 init_pc_amount | u64 init_coin_amount
const (
	init2AccountAmm      = 4
	init2AccountCoinMint = 8
	init2AccountPcMint   = 9
	init2MinAccounts     = 10
	init2DataSize        = 26
)

// Pool status values of the AMM v4 program.
const (
	PoolStatusUninitialized uint64 = iota
	PoolStatusInitialized
	PoolStatusDisabled
	PoolStatusWithdrawOnly
	PoolStatusLiquidityOnly
	PoolStatusOrderBookOnly
	PoolStatusSwapOnly
	PoolStatusWaitingTrade
)

// Swap constants
const (
	DefaultSlippageBps uint16 = 50
	MaxSlippageBps     uint16 = 10_000

	feeKeepNumerator   = 997
	feeKeepDenominator = 1000
)
