// Package chain defines the ledger access the distribution engine depends on
// and provides two implementations: RPCClient, which delegates signing to a
// wallet behind a JSON-RPC endpoint, and KeyedClient, which signs locally
// with a private key.
package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Call is a contract invocation: target address plus ABI-encoded calldata.
type Call struct {
	To   common.Address
	Data []byte
}

// TxHandle identifies a transaction that the network has accepted.
type TxHandle struct {
	Hash  common.Hash
	Nonce uint64 // zero when the wallet assigned the nonce
}

// ReceiptStatus is the execution result recorded in a receipt.
type ReceiptStatus int

const (
	// ReceiptReverted means the transaction was included but execution failed.
	ReceiptReverted ReceiptStatus = iota
	// ReceiptSuccess means the transaction was included and executed.
	ReceiptSuccess
)

func (s ReceiptStatus) String() string {
	switch s {
	case ReceiptSuccess:
		return "success"
	case ReceiptReverted:
		return "revert"
	default:
		return fmt.Sprintf("ReceiptStatus(%d)", int(s))
	}
}

// Receipt is the confirmation record of an included transaction.
type Receipt struct {
	TxHash      common.Hash
	Status      ReceiptStatus
	BlockNumber uint64
	GasUsed     uint64
}

// Succeeded reports whether the receipt indicates successful execution.
func (r *Receipt) Succeeded() bool { return r != nil && r.Status == ReceiptSuccess }

// Reader performs read-only contract calls against the latest state.
type Reader interface {
	ReadState(ctx context.Context, call Call) ([]byte, error)
}

// Client is read and write access to the ledger for a single signing account.
//
// Submit returns as soon as the transaction is accepted by the network and
// has a hash; it does not wait for inclusion. AwaitReceipt blocks until the
// transaction is included or ctx ends. All methods return *Error for
// failures reported by the node or wallet.
type Client interface {
	Reader

	// Sender returns the account that signs submitted transactions.
	Sender() common.Address

	// Submit signs and broadcasts call.
	Submit(ctx context.Context, call Call) (*TxHandle, error)

	// AwaitReceipt waits for the transaction to be included.
	AwaitReceipt(ctx context.Context, h *TxHandle) (*Receipt, error)
}
