// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain"
)

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc    *rpc.Client
	logger *zap.Logger
}

var maxSupportedTxVersion uint64 = 0

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, logger *zap.Logger) *Client {
	return &Client{
		rpc:    rpc.New(rpcURL),
		logger: logger.Named("solbc-client"),
	}
}

// GetRecentBlockhash получает последний blockhash.
func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		c.logger.Error("GetRecentBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// GetAccountData returns the raw bytes of pubkey.
func (c *Client) GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	result, err := c.rpc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, blockchain.ErrAccountNotFound
		}
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	if result == nil || result.Value == nil || result.Value.Data == nil {
		return nil, blockchain.ErrAccountNotFound
	}
	return result.Value.Data.GetBinary(), nil
}

// GetMultipleAccountsData получает данные нескольких аккаунтов за один запрос
func (c *Client) GetMultipleAccountsData(ctx context.Context, pubkeys []solana.PublicKey) ([][]byte, error) {
	if len(pubkeys) == 0 {
		return nil, nil
	}

	res, err := c.rpc.GetMultipleAccountsWithOpts(ctx, pubkeys, &rpc.GetMultipleAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		c.logger.Debug("GetMultipleAccounts error", zap.Int("count", len(pubkeys)), zap.Error(err))
		return nil, err
	}

	out := make([][]byte, len(pubkeys))
	for i, acc := range res.Value {
		if i >= len(out) {
			break
		}
		if acc != nil && acc.Data != nil {
			out[i] = acc.Data.GetBinary()
		}
	}
	return out, nil
}

// SendTransactionWithOpts отправляет транзакцию с заданными опциями.
func (c *Client) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
	})
	if err != nil {
		c.logger.Error("SendTransactionWithOpts error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// GetSignatureStatus получает статус одной транзакции.
func (c *Client) GetSignatureStatus(ctx context.Context, sig solana.Signature, searchHistory bool) (*blockchain.SignatureStatus, error) {
	result, err := c.rpc.GetSignatureStatuses(ctx, searchHistory, sig)
	if err != nil {
		c.logger.Debug("GetSignatureStatuses error", zap.String("signature", sig.String()), zap.Error(err))
		return nil, err
	}

	if result == nil || len(result.Value) == 0 || result.Value[0] == nil {
		return &blockchain.SignatureStatus{State: blockchain.SignatureUnknown}, nil
	}

	st := result.Value[0]
	out := &blockchain.SignatureStatus{Slot: st.Slot}
	switch {
	case st.Err != nil:
		out.State = blockchain.SignatureFailed
		out.Err = fmt.Sprintf("%v", st.Err)
	case st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		st.ConfirmationStatus == rpc.ConfirmationStatusFinalized:
		out.State = blockchain.SignatureConfirmed
	default:
		out.State = blockchain.SignaturePending
	}
	return out, nil
}

// GetBalance получает баланс аккаунта.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	result, err := c.rpc.GetBalance(ctx, pubkey, commitment)
	if err != nil {
		c.logger.Error("GetBalance error", zap.Error(err))
		return 0, err
	}
	return result.Value, nil
}

// GetTokenAccountBalance получает баланс токенного аккаунта
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	result, err := c.rpc.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		if IsAccountNotFoundError(err) {
			return 0, blockchain.ErrAccountNotFound
		}
		return 0, err
	}
	if result == nil || result.Value == nil {
		return 0, blockchain.ErrAccountNotFound
	}
	amount, err := strconv.ParseUint(result.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", result.Value.Amount, err)
	}
	return amount, nil
}

// GetSignaturesForAddress returns up to limit of the newest signatures of address.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, limit int) ([]solana.Signature, error) {
	result, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, address, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		c.logger.Debug("GetSignaturesForAddress error", zap.String("address", address.String()), zap.Error(err))
		return nil, err
	}

	sigs := make([]solana.Signature, 0, len(result))
	for _, s := range result {
		sigs = append(sigs, s.Signature)
	}
	return sigs, nil
}

// GetTransaction fetches sig and converts it to a TxView.
func (c *Client) GetTransaction(ctx context.Context, sig solana.Signature) (*blockchain.TxView, error) {
	result, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxSupportedTxVersion,
	})
	if err != nil {
		c.logger.Debug("GetTransaction error", zap.String("signature", sig.String()), zap.Error(err))
		return nil, err
	}
	if result == nil || result.Transaction == nil {
		return nil, fmt.Errorf("transaction %s: %w", sig, rpc.ErrNotFound)
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", sig, err)
	}
	return newTxView(sig, result.Slot, tx, result.Meta), nil
}

func newTxView(sig solana.Signature, slot uint64, tx *solana.Transaction, meta *rpc.TransactionMeta) *blockchain.TxView {
	view := &blockchain.TxView{
		Signature:   sig,
		Slot:        slot,
		AccountKeys: append([]solana.PublicKey(nil), tx.Message.AccountKeys...),
	}

	if meta != nil {
		view.Failed = meta.Err != nil
		view.LogMessages = meta.LogMessages
		view.PreBalances = meta.PreBalances
		view.PostBalances = meta.PostBalances
		view.AccountKeys = append(view.AccountKeys, meta.LoadedAddresses.Writable...)
		view.AccountKeys = append(view.AccountKeys, meta.LoadedAddresses.ReadOnly...)
		view.PreTokenBalances = convertTokenBalances(meta.PreTokenBalances)
		view.PostTokenBalances = convertTokenBalances(meta.PostTokenBalances)
	}

	for _, ci := range tx.Message.Instructions {
		ix := blockchain.InstructionView{Data: ci.Data}
		if int(ci.ProgramIDIndex) < len(view.AccountKeys) {
			ix.ProgramID = view.AccountKeys[ci.ProgramIDIndex]
		}
		for _, idx := range ci.Accounts {
			if int(idx) < len(view.AccountKeys) {
				ix.Accounts = append(ix.Accounts, view.AccountKeys[idx])
			}
		}
		view.Instructions = append(view.Instructions, ix)
	}
	return view
}

func convertTokenBalances(in []rpc.TokenBalance) []blockchain.TokenBalance {
	out := make([]blockchain.TokenBalance, 0, len(in))
	for _, b := range in {
		tb := blockchain.TokenBalance{
			AccountIndex: b.AccountIndex,
			Mint:         b.Mint,
		}
		if b.Owner != nil {
			tb.Owner = *b.Owner
		}
		if b.UiTokenAmount != nil {
			tb.Decimals = b.UiTokenAmount.Decimals
			if amount, err := strconv.ParseUint(b.UiTokenAmount.Amount, 10, 64); err == nil {
				tb.Amount = amount
			}
		}
		out = append(out, tb)
	}
	return out
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
