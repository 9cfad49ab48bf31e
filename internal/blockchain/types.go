// internal/blockchain/types.go
package blockchain

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrAccountNotFound is returned when an account does not exist on chain.
var ErrAccountNotFound = errors.New("account not found")

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// SignatureState is the coarse outcome of a submitted transaction.
type SignatureState int

const (
	// SignatureUnknown: the node has not seen the signature.
	SignatureUnknown SignatureState = iota
	SignaturePending
	SignatureConfirmed
	SignatureFailed
)

func (s SignatureState) String() string {
	switch s {
	case SignaturePending:
		return "pending"
	case SignatureConfirmed:
		return "confirmed"
	case SignatureFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SignatureStatus describes one signature as reported by getSignatureStatuses.
type SignatureStatus struct {
	State SignatureState
	Slot  uint64
	Err   string
}

// InstructionView is a compiled instruction with its accounts resolved.
type InstructionView struct {
	ProgramID solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte
}

// TokenBalance is one entry of pre/post token balances.
type TokenBalance struct {
	AccountIndex uint16
	Owner        solana.PublicKey
	Mint         solana.PublicKey
	Amount       uint64
	Decimals     uint8
}

// TxView is the part of a confirmed transaction the trigger sources read.
// AccountKeys lists static keys followed by loaded writable and loaded
// read-only addresses, so instruction account indexes resolve against it.
type TxView struct {
	Signature         solana.Signature
	Slot              uint64
	Failed            bool
	AccountKeys       []solana.PublicKey
	Instructions      []InstructionView
	LogMessages       []string
	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// Client определяет общий интерфейс для взаимодействия с блокчейном.
type Client interface {
	// Получить последний blockhash.
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	// GetAccountData returns raw account bytes or ErrAccountNotFound.
	GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
	// GetMultipleAccountsData returns raw bytes per key; missing accounts are nil.
	GetMultipleAccountsData(ctx context.Context, pubkeys []solana.PublicKey) ([][]byte, error)
	// Отправить транзакцию с опциями.
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts TransactionOptions) (solana.Signature, error)
	// GetSignatureStatus reports one signature; searchHistory also queries the ledger history.
	GetSignatureStatus(ctx context.Context, sig solana.Signature, searchHistory bool) (*SignatureStatus, error)
	// Получить баланс аккаунта.
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
	// GetTokenAccountBalance returns the raw amount or ErrAccountNotFound.
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	// GetSignaturesForAddress returns the newest signatures first.
	GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, limit int) ([]solana.Signature, error)
	// GetTransaction fetches a confirmed transaction.
	GetTransaction(ctx context.Context, sig solana.Signature) (*TxView, error)
}
