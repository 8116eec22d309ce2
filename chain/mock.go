package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// MockClient is a test double for Client.
// All function fields must be set before the corresponding method is called.
type MockClient struct {
	SenderAddr     common.Address
	ReadStateFn    func(ctx context.Context, call Call) ([]byte, error)
	SubmitFn       func(ctx context.Context, call Call) (*TxHandle, error)
	AwaitReceiptFn func(ctx context.Context, h *TxHandle) (*Receipt, error)
}

// Compile-time interface check.
var _ Client = (*MockClient)(nil)

func (m *MockClient) Sender() common.Address { return m.SenderAddr }

func (m *MockClient) ReadState(ctx context.Context, call Call) ([]byte, error) {
	return m.ReadStateFn(ctx, call)
}

func (m *MockClient) Submit(ctx context.Context, call Call) (*TxHandle, error) {
	return m.SubmitFn(ctx, call)
}

func (m *MockClient) AwaitReceipt(ctx context.Context, h *TxHandle) (*Receipt, error) {
	return m.AwaitReceiptFn(ctx, h)
}
