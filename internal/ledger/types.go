package ledger

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	aptos "github.com/aptos-labs/aptos-go-sdk"
)

// EntryFunctionPayload is the body of a state-changing call.
type EntryFunctionPayload struct {
	Type          string   `json:"type"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// NewEntryFunction builds an entry_function_payload for fn.
func NewEntryFunction(fn string, args ...any) EntryFunctionPayload {
	if args == nil {
		args = []any{}
	}
	return EntryFunctionPayload{
		Type:          "entry_function_payload",
		Function:      fn,
		TypeArguments: []string{},
		Arguments:     args,
	}
}

// Address marks a view argument as a Move address rather than a Move string.
type Address string

// ViewRequest names a view function and its arguments. Arguments may be Address,
// string, uint64 or bool.
type ViewRequest struct {
	Function  string
	Arguments []any
}

// PendingTransaction is what a wallet hands back after submitting.
type PendingTransaction struct {
	Hash string `json:"hash"`
}

// Transaction is the subset of a node transaction the marketplace reads.
type Transaction struct {
	Type     string `json:"type"`
	Hash     string `json:"hash"`
	Version  string `json:"version"`
	Success  bool   `json:"success"`
	VMStatus string `json:"vm_status"`
}

// Pending reports whether the node has not committed the transaction yet.
func (t Transaction) Pending() bool {
	return t.Type == "pending_transaction"
}

// FunctionID renders the fully-qualified Move function name.
func FunctionID(moduleAddress, moduleName, fn string) string {
	return fmt.Sprintf("%s::%s::%s", moduleAddress, moduleName, fn)
}

// NodeError is a non-2xx reply from the fullnode.
type NodeError struct {
	StatusCode  int    `json:"-"`
	Message     string `json:"message"`
	ErrorCode   string `json:"error_code"`
	VMErrorCode int    `json:"vm_error_code"`
}

func (e *NodeError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("node returned %d (%s): %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("node returned %d: %s", e.StatusCode, e.Message)
}

func decodeNodeError(status int, body []byte) *NodeError {
	ne := &NodeError{StatusCode: status}
	if err := json.Unmarshal(body, ne); err != nil || ne.Message == "" {
		ne.Message = strings.TrimSpace(string(body))
	}
	return ne
}

func isNotFound(err error) bool {
	var ne *NodeError
	return errors.As(err, &ne) && ne.StatusCode == 404
}

// CodeUserRejected is the wallet-standard code for a declined signature request.
const CodeUserRejected = 4001

// WalletError is a failure reported by the signing side.
type WalletError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *WalletError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("wallet error %d", e.Code)
	}
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// ErrorCode exposes the numeric rejection code.
func (e *WalletError) ErrorCode() int {
	return e.Code
}

// NormalizeAddress renders an account address as lower-case 0x hex without leading
// zeros, so long and short forms compare equal. Strings that do not parse as an
// address are only trimmed and lower-cased.
func NormalizeAddress(addr string) string {
	a := strings.ToLower(strings.TrimSpace(addr))
	if a == "" {
		return ""
	}
	var parsed aptos.AccountAddress
	if err := parsed.ParseStringRelaxed(a); err != nil {
		return a
	}
	short := strings.TrimLeft(hex.EncodeToString(parsed[:]), "0")
	if short == "" {
		short = "0"
	}
	return "0x" + short
}

// SameAddress compares two addresses after normalisation.
func SameAddress(a, b string) bool {
	return a != "" && NormalizeAddress(a) == NormalizeAddress(b)
}
