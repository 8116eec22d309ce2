package distribute

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libairdrop-go/chain"
	"github.com/bitfsorg/libairdrop-go/token"
)

// Transfer sends amount of tokenAddr directly to one recipient and waits for
// the receipt. It bypasses the distributor and needs no approval; it is
// meant for topping up individual recipients after a run.
func Transfer(ctx context.Context, client chain.Client, tokenAddr, to common.Address, amount *big.Int) (*chain.Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("distribute: transfer amount must be positive")
	}
	data, err := token.PackTransfer(to, amount)
	if err != nil {
		return nil, err
	}
	h, err := client.Submit(ctx, chain.Call{To: tokenAddr, Data: data})
	if err != nil {
		return nil, err
	}
	receipt, err := client.AwaitReceipt(ctx, h)
	if err != nil {
		return nil, err
	}
	if !receipt.Succeeded() {
		return receipt, fmt.Errorf("%w: %s", ErrTransferFailed, h.Hash.Hex())
	}
	return receipt, nil
}
