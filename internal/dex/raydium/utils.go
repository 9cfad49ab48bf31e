// internal/dex/raydium/utils.go
package raydium

import (
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/shopspring/decimal"
)

var lamportsPerSOL = decimal.NewFromInt(LamportsPerSOL)

// SOLToLamports конвертирует SOL в лампорты с округлением вниз.
func SOLToLamports(sol float64) uint64 {
	if sol <= 0 {
		return 0
	}
	return uint64(decimal.NewFromFloat(sol).Mul(lamportsPerSOL).Floor().IntPart())
}

// LamportsToSOL конвертирует лампорты в SOL.
func LamportsToSOL(lamports uint64) float64 {
	f, _ := decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(lamportsPerSOL).Float64()
	return f
}

// TokenAmountToDecimal конвертирует uint64 в decimal с учетом decimals
func TokenAmountToDecimal(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

// Quote returns the constant-product output for amountIn after the 0.3%
// pool fee: out = in*997*reserveOut / (reserveIn*1000 + in*997).
func Quote(amountIn, reserveIn, reserveOut uint64) (uint64, error) {
	if reserveIn == 0 || reserveOut == 0 {
		return 0, fmt.Errorf("reserves cannot be zero")
	}
	in := new(big.Int).SetUint64(amountIn)
	inWithFee := new(big.Int).Mul(in, big.NewInt(feeKeepNumerator))

	num := new(big.Int).Mul(inWithFee, new(big.Int).SetUint64(reserveOut))
	den := new(big.Int).Mul(new(big.Int).SetUint64(reserveIn), big.NewInt(feeKeepDenominator))
	den.Add(den, inWithFee)

	return new(big.Int).Quo(num, den).Uint64(), nil
}

// MinAmountOut applies slippageBps to expected, rounding down.
func MinAmountOut(expected uint64, slippageBps uint16) uint64 {
	if slippageBps >= MaxSlippageBps {
		return 0
	}
	slippage := decimal.NewFromInt(int64(slippageBps)).Div(decimal.NewFromInt(int64(MaxSlippageBps)))
	amount := decimal.NewFromBigInt(new(big.Int).SetUint64(expected), 0)
	return amount.Mul(decimal.NewFromInt(1).Sub(slippage)).Floor().BigInt().Uint64()
}

// PriceInSOL returns the SOL price of one whole token implied by a swap of
// solLamports for tokenAmount base units.
func PriceInSOL(solLamports, tokenAmount uint64, tokenDecimals uint8) float64 {
	if tokenAmount == 0 {
		return 0
	}
	sol := TokenAmountToDecimal(solLamports, 9)
	tokens := TokenAmountToDecimal(tokenAmount, tokenDecimals)
	f, _ := sol.Div(tokens).Float64()
	return f
}

// DecodeTokenAccountAmount decodes an SPL token account and returns its amount.
func DecodeTokenAccountAmount(data []byte) (uint64, error) {
	var acc token.Account
	if err := bin.NewBinDecoder(data).Decode(&acc); err != nil {
		return 0, &DecodeError{Account: "token account", Kind: Truncated, Got: len(data), Want: 165}
	}
	return acc.Amount, nil
}
