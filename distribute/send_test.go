package distribute

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libairdrop-go/chain"
	"github.com/bitfsorg/libairdrop-go/token"
)

func TestTransfer(t *testing.T) {
	recipient := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	hash := common.HexToHash("0xabc")
	var sent chain.Call
	client := &chain.MockClient{
		SubmitFn: func(ctx context.Context, call chain.Call) (*chain.TxHandle, error) {
			sent = call
			return &chain.TxHandle{Hash: hash}, nil
		},
		AwaitReceiptFn: func(ctx context.Context, h *chain.TxHandle) (*chain.Receipt, error) {
			return &chain.Receipt{TxHash: h.Hash, Status: chain.ReceiptSuccess, BlockNumber: 9}, nil
		},
	}

	r, err := Transfer(context.Background(), client, testToken, recipient, big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, uint64(9), r.BlockNumber)
	assert.Equal(t, testToken, sent.To)
	assert.True(t, bytes.HasPrefix(sent.Data, token.ERC20.Methods["transfer"].ID))
}

func TestTransferReverted(t *testing.T) {
	client := &chain.MockClient{
		SubmitFn: func(ctx context.Context, call chain.Call) (*chain.TxHandle, error) {
			return &chain.TxHandle{Hash: common.HexToHash("0x1")}, nil
		},
		AwaitReceiptFn: func(ctx context.Context, h *chain.TxHandle) (*chain.Receipt, error) {
			return &chain.Receipt{TxHash: h.Hash, Status: chain.ReceiptReverted}, nil
		},
	}
	r, err := Transfer(context.Background(), client, testToken, testSender, big.NewInt(1))
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.NotNil(t, r)
}

func TestTransferUserRejected(t *testing.T) {
	client := &chain.MockClient{
		SubmitFn: func(ctx context.Context, call chain.Call) (*chain.TxHandle, error) {
			return nil, &chain.Error{Code: chain.CodeUserRejected, Message: "denied"}
		},
	}
	_, err := Transfer(context.Background(), client, testToken, testSender, big.NewInt(1))
	assert.True(t, chain.IsUserRejected(err))
}

func TestTransferRejectsNonPositive(t *testing.T) {
	_, err := Transfer(context.Background(), &chain.MockClient{}, testToken, testSender, big.NewInt(0))
	assert.Error(t, err)
	_, err = Transfer(context.Background(), &chain.MockClient{}, testToken, testSender, nil)
	assert.Error(t, err)
}
