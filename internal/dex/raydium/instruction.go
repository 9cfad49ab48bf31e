// internal/dex/raydium/instruction.go
package raydium

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// swapAccountSpec describes one slot of the SwapBaseIn account list.
type swapAccountSpec struct {
	name     string
	key      func(p SwapParams) solana.PublicKey
	writable bool
	signer   bool
}

// swapAccountLayout is the account order required by the AMM v4 program for
// SwapBaseIn. The program rejects any other order.
var swapAccountLayout = [SwapAccountsCount]swapAccountSpec{
	{"token_program", func(SwapParams) solana.PublicKey { return TokenProgramID }, false, false},
	{"amm_id", func(p SwapParams) solana.PublicKey { return p.Pool.ID }, true, false},
	{"amm_authority", func(p SwapParams) solana.PublicKey { return p.Pool.Authority }, false, false},
	{"amm_open_orders", func(p SwapParams) solana.PublicKey { return p.Pool.OpenOrders }, true, false},
	{"amm_target_orders", func(p SwapParams) solana.PublicKey { return p.Pool.TargetOrders }, true, false},
	{"pool_coin_vault", func(p SwapParams) solana.PublicKey { return p.Pool.BaseVault }, true, false},
	{"pool_pc_vault", func(p SwapParams) solana.PublicKey { return p.Pool.QuoteVault }, true, false},
	{"serum_program", func(p SwapParams) solana.PublicKey { return p.Pool.MarketProgramID }, false, false},
	{"serum_market", func(p SwapParams) solana.PublicKey { return p.Pool.MarketID }, true, false},
	{"serum_bids", func(p SwapParams) solana.PublicKey { return p.Market.Bids }, true, false},
	{"serum_asks", func(p SwapParams) solana.PublicKey { return p.Market.Asks }, true, false},
	{"serum_event_queue", func(p SwapParams) solana.PublicKey { return p.Market.EventQueue }, true, false},
	{"serum_coin_vault", func(p SwapParams) solana.PublicKey { return p.Market.BaseVault }, true, false},
	{"serum_pc_vault", func(p SwapParams) solana.PublicKey { return p.Market.QuoteVault }, true, false},
	{"serum_vault_signer", func(p SwapParams) solana.PublicKey { return p.Market.VaultSigner }, false, false},
	{"user_source", func(p SwapParams) solana.PublicKey { return p.UserSource }, true, false},
	{"user_destination", func(p SwapParams) solana.PublicKey { return p.UserDestination }, true, false},
	{"user_owner", func(p SwapParams) solana.PublicKey { return p.Owner }, false, true},
}

// SwapAccountNames returns the slot names of the SwapBaseIn account list in order.
func SwapAccountNames() []string {
	names := make([]string, 0, SwapAccountsCount)
	for _, spec := range swapAccountLayout {
		names = append(names, spec.name)
	}
	return names
}

// BuildSwap builds a SwapBaseIn instruction. It does not sign, submit or
// compute slippage: MinAmountOut is taken as given.
func BuildSwap(params SwapParams) (solana.Instruction, error) {
	if err := validateSwapParams(params); err != nil {
		return nil, err
	}

	metas := make(solana.AccountMetaSlice, 0, SwapAccountsCount)
	for _, spec := range swapAccountLayout {
		metas = append(metas, solana.NewAccountMeta(spec.key(params), spec.writable, spec.signer))
	}

	return solana.NewInstruction(RaydiumV4ProgramID, metas, serializeSwapData(params.AmountIn, params.MinAmountOut)), nil
}

func validateSwapParams(params SwapParams) error {
	if params.AmountIn == 0 {
		return ErrInvalidAmount
	}
	if params.Pool == nil {
		return &ValidationError{Field: "pool", Message: "is required"}
	}
	if params.Market == nil {
		return &ValidationError{Field: "market", Message: "is required"}
	}
	if !params.Market.HasHeader || params.Market.VaultSigner.IsZero() {
		return &ValidationError{Field: "market", Message: "vaults and vault signer are not decoded"}
	}
	if params.Direction != QuoteIn && params.Direction != BaseIn {
		return &ValidationError{Field: "direction", Message: params.Direction.String()}
	}

	for _, check := range []struct {
		key  solana.PublicKey
		name string
	}{
		{params.Pool.ID, "pool id"},
		{params.Pool.Authority, "amm authority"},
		{params.UserSource, "user source"},
		{params.UserDestination, "user destination"},
		{params.Owner, "owner"},
	} {
		if check.key.IsZero() {
			return &ValidationError{Field: check.name, Message: "is required"}
		}
	}
	return nil
}

// serializeSwapData: u8 opcode | u64 amount_in | u64 min_amount_out, little endian.
func serializeSwapData(amountIn, minAmountOut uint64) []byte {
	data := make([]byte, swapDataSize)
	data[0] = InstructionSwapBaseIn
	binary.LittleEndian.PutUint64(data[1:9], amountIn)
	binary.LittleEndian.PutUint64(data[9:17], minAmountOut)
	return data
}

// SwapSides maps a direction to the input and output mints of pool.
func SwapSides(pool *PoolDescriptor, dir SwapDirection) (in, out solana.PublicKey, err error) {
	switch dir {
	case QuoteIn:
		return pool.QuoteMint, pool.BaseMint, nil
	case BaseIn:
		return pool.BaseMint, pool.QuoteMint, nil
	default:
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("unknown swap direction %s", dir)
	}
}

// DirectionFor returns the direction that spends inputMint in pool.
func DirectionFor(pool *PoolDescriptor, inputMint solana.PublicKey) (SwapDirection, error) {
	switch {
	case pool.QuoteMint.Equals(inputMint):
		return QuoteIn, nil
	case pool.BaseMint.Equals(inputMint):
		return BaseIn, nil
	default:
		return 0, fmt.Errorf("mint %s is not traded by pool %s", inputMint, pool.ID)
	}
}
