// internal/transaction/builder.go
package transaction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/wallet"
)

// swapPlan is everything needed to assemble one swap transaction.
type swapPlan struct {
	State        *MarketState
	Direction    raydium.SwapDirection
	AmountIn     uint64
	MinAmountOut uint64
	// WrapLamports is transferred into the WSOL account before the swap.
	// Zero on sells.
	WrapLamports uint64
	// TokenMint is the non-WSOL side of the pool.
	TokenMint solana.PublicKey
}

// buildSwapInstructions returns, in order: compute budget, idempotent ATA
// creation for WSOL and the token, the WSOL wrap (buys only), the swap and
// the WSOL close that returns the remaining lamports to the wallet.
func buildSwapInstructions(w *wallet.Wallet, budget []solana.Instruction, plan swapPlan) ([]solana.Instruction, error) {
	wsolATA, err := w.GetATA(raydium.WrappedSolMint)
	if err != nil {
		return nil, fmt.Errorf("derive wsol ata: %w", err)
	}
	tokenATA, err := w.GetATA(plan.TokenMint)
	if err != nil {
		return nil, fmt.Errorf("derive token ata: %w", err)
	}

	instructions := make([]solana.Instruction, 0, len(budget)+6)
	instructions = append(instructions, budget...)

	for _, mint := range []solana.PublicKey{raydium.WrappedSolMint, plan.TokenMint} {
		inst, err := w.CreateATAIdempotentInstruction(mint)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, inst)
	}

	if plan.WrapLamports > 0 {
		instructions = append(instructions,
			system.NewTransferInstruction(plan.WrapLamports, w.PublicKey, wsolATA).Build(),
			token.NewSyncNativeInstruction(wsolATA).Build(),
		)
	}

	source, destination := wsolATA, tokenATA
	inputMint, _, err := raydium.SwapSides(plan.State.Pool, plan.Direction)
	if err != nil {
		return nil, err
	}
	if !inputMint.Equals(raydium.WrappedSolMint) {
		source, destination = tokenATA, wsolATA
	}

	swap, err := raydium.BuildSwap(raydium.SwapParams{
		Pool:            plan.State.Pool,
		Market:          plan.State.Market,
		Direction:       plan.Direction,
		AmountIn:        plan.AmountIn,
		MinAmountOut:    plan.MinAmountOut,
		UserSource:      source,
		UserDestination: destination,
		Owner:           w.PublicKey,
	})
	if err != nil {
		return nil, fmt.Errorf("build swap: %w", err)
	}
	instructions = append(instructions, swap)

	instructions = append(instructions,
		token.NewCloseAccountInstruction(wsolATA, w.PublicKey, w.PublicKey, []solana.PublicKey{}).Build())

	return instructions, nil
}
