// internal/transaction/fee_manager.go
package transaction

import (
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/events"
)

// PriorityConfig is one compute budget profile.
type PriorityConfig struct {
	ComputeUnits uint32 // лимит compute units
	PriorityFee  uint64 // micro-lamports за compute unit
	HeapSize     uint32 // дополнительная heap память, 0 = не запрашивать
}

// FeeManager builds the compute budget prefix of swap transactions.
type FeeManager struct {
	profiles map[events.Side]PriorityConfig
	logger   *zap.Logger
}

// NewFeeManager creates a fee manager with separate buy and sell priority
// fees sharing one compute unit limit.
func NewFeeManager(unitLimit uint32, buyFee, sellFee uint64, logger *zap.Logger) *FeeManager {
	return &FeeManager{
		profiles: map[events.Side]PriorityConfig{
			events.SideBuy:  {ComputeUnits: unitLimit, PriorityFee: buyFee},
			events.SideSell: {ComputeUnits: unitLimit, PriorityFee: sellFee},
		},
		logger: logger.Named("fee-manager"),
	}
}

// Profile returns the compute budget profile for side.
func (fm *FeeManager) Profile(side events.Side) PriorityConfig {
	return fm.profiles[side]
}

// Instructions returns the compute budget instructions for side.
func (fm *FeeManager) Instructions(side events.Side) []solana.Instruction {
	cfg := fm.profiles[side]
	fm.logger.Debug("Compute budget",
		zap.String("side", string(side)),
		zap.Uint32("units", cfg.ComputeUnits),
		zap.Uint64("micro_lamports", cfg.PriorityFee))
	return budgetInstructions(cfg)
}

func budgetInstructions(cfg PriorityConfig) []solana.Instruction {
	var instructions []solana.Instruction

	if cfg.ComputeUnits > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitLimitInstruction(cfg.ComputeUnits).Build())
	}
	if cfg.PriorityFee > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitPriceInstruction(cfg.PriorityFee).Build())
	}
	if cfg.HeapSize > 0 {
		instructions = append(instructions, computebudget.NewRequestHeapFrameInstruction(cfg.HeapSize).Build())
	}
	return instructions
}
