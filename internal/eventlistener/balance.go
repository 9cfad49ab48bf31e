// internal/eventlistener/balance.go
package eventlistener

import (
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain"
	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/domain"
)

// AnalyzeBalanceChange derives copy triggers from the balance deltas wallet
// saw in view. Native SOL and WSOL spent together form the buy size; every
// other mint whose balance grew yields a CopySignal and every mint whose
// balance shrank yields a CopyExit. Failed transactions yield nothing.
func AnalyzeBalanceChange(wallet solana.PublicKey, view *blockchain.TxView, observed time.Time) []domain.Trigger {
	if view == nil || view.Failed {
		return nil
	}

	var solSpent int64
	if idx := indexOf(view.AccountKeys, wallet); idx >= 0 &&
		idx < len(view.PreBalances) && idx < len(view.PostBalances) {
		solSpent = int64(view.PreBalances[idx]) - int64(view.PostBalances[idx])
	}

	deltas := tokenDeltas(wallet, view)
	if wsol, ok := deltas[raydium.WrappedSolMint]; ok {
		solSpent -= wsol
		delete(deltas, raydium.WrappedSolMint)
	}

	mints := make([]solana.PublicKey, 0, len(deltas))
	for mint := range deltas {
		mints = append(mints, mint)
	}
	sort.Slice(mints, func(i, j int) bool { return mints[i].String() < mints[j].String() })

	var out []domain.Trigger
	for _, mint := range mints {
		switch d := deltas[mint]; {
		case d > 0 && solSpent > 0:
			out = append(out, domain.CopySignal{
				SourceWallet: wallet,
				TokenMint:    mint,
				SOLAmount:    raydium.LamportsToSOL(uint64(solSpent)),
				Signature:    view.Signature,
				Observed:     observed,
			})
		case d < 0:
			out = append(out, domain.CopyExit{
				SourceWallet: wallet,
				TokenMint:    mint,
				Signature:    view.Signature,
				Observed:     observed,
			})
		}
	}
	return out
}

// tokenDeltas returns post-pre token amounts per mint over the accounts
// owned by wallet.
func tokenDeltas(wallet solana.PublicKey, view *blockchain.TxView) map[solana.PublicKey]int64 {
	type accountKey struct {
		index uint16
		mint  solana.PublicKey
	}
	pre := make(map[accountKey]uint64)
	for _, b := range view.PreTokenBalances {
		if b.Owner.Equals(wallet) {
			pre[accountKey{b.AccountIndex, b.Mint}] = b.Amount
		}
	}

	deltas := make(map[solana.PublicKey]int64)
	for _, b := range view.PostTokenBalances {
		if !b.Owner.Equals(wallet) {
			continue
		}
		k := accountKey{b.AccountIndex, b.Mint}
		deltas[b.Mint] += int64(b.Amount) - int64(pre[k])
		delete(pre, k)
	}
	// Закрытые в этой транзакции аккаунты есть только в pre.
	for k, amount := range pre {
		deltas[k.mint] -= int64(amount)
	}

	for mint, d := range deltas {
		if d == 0 {
			delete(deltas, mint)
		}
	}
	return deltas
}

func indexOf(keys []solana.PublicKey, key solana.PublicKey) int {
	for i, k := range keys {
		if k.Equals(key) {
			return i
		}
	}
	return -1
}
