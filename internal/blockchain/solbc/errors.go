// internal/blockchain/solbc/errors.go
package solbc

import (
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// rpcCodeSendTransactionPreflightFailure is returned when preflight simulation fails.
const rpcCodeSendTransactionPreflightFailure = -32002

// IsAccountNotFoundError проверяет, является ли ошибка "not found"
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "could not find account")
}

// IsSimulationError reports whether the node rejected a transaction during
// preflight. Such a rejection is final; resending the same bytes fails again.
func IsSimulationError(err error) bool {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	return rpcErr.Code == rpcCodeSendTransactionPreflightFailure ||
		strings.Contains(rpcErr.Message, "Transaction simulation failed")
}

// SimulationLogs extracts program logs from a preflight rejection.
func SimulationLogs(err error) []string {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Data == nil {
		return nil
	}
	dataMap, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := dataMap["logs"].([]interface{})
	if !ok {
		return nil
	}

	logs := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			logs = append(logs, s)
		}
	}
	return logs
}
