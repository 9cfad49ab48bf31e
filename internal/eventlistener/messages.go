// internal/eventlistener/messages.go
package eventlistener

import (
	"encoding/json"
)

// JSON-RPC envelopes of the Solana pubsub API.

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// wsMessage covers both subscribe responses (ID set) and notifications
// (Method set).
type wsMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wsRPCError     `json:"error,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  *wsNotifyParams `json:"params,omitempty"`
}

type wsNotifyParams struct {
	Subscription int64           `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// NotificationContext is the context part of every notification.
type NotificationContext struct {
	Slot uint64 `json:"slot"`
}

// LogsNotification is the result of a logsNotification.
type LogsNotification struct {
	Context NotificationContext `json:"context"`
	Value   struct {
		Signature string          `json:"signature"`
		Err       json.RawMessage `json:"err"`
		Logs      []string        `json:"logs"`
	} `json:"value"`
}

// Failed reports whether the transaction carried an error.
func (n *LogsNotification) Failed() bool {
	return len(n.Value.Err) > 0 && string(n.Value.Err) != "null"
}

// AccountNotification is the result of an accountNotification.
type AccountNotification struct {
	Context NotificationContext `json:"context"`
	Value   struct {
		Lamports uint64 `json:"lamports"`
		Owner    string `json:"owner"`
	} `json:"value"`
}
