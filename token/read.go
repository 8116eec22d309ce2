package token

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libairdrop-go/chain"
)

// Allowance reads how much spender may pull from owner's balance of tokenAddr.
func Allowance(ctx context.Context, r chain.Reader, tokenAddr, owner, spender common.Address) (*big.Int, error) {
	data, err := PackAllowance(owner, spender)
	if err != nil {
		return nil, err
	}
	out, err := r.ReadState(ctx, chain.Call{To: tokenAddr, Data: data})
	if err != nil {
		return nil, err
	}
	return unpackUint256(ERC20, "allowance", out)
}

// BalanceOf reads account's balance of tokenAddr in raw units.
func BalanceOf(ctx context.Context, r chain.Reader, tokenAddr, account common.Address) (*big.Int, error) {
	data, err := PackBalanceOf(account)
	if err != nil {
		return nil, err
	}
	out, err := r.ReadState(ctx, chain.Call{To: tokenAddr, Data: data})
	if err != nil {
		return nil, err
	}
	return unpackUint256(ERC20, "balanceOf", out)
}

// Decimals reads the token's decimals().
func Decimals(ctx context.Context, r chain.Reader, tokenAddr common.Address) (uint8, error) {
	data, err := PackDecimals()
	if err != nil {
		return 0, err
	}
	out, err := r.ReadState(ctx, chain.Call{To: tokenAddr, Data: data})
	if err != nil {
		return 0, err
	}
	vals, err := ERC20.Unpack("decimals", out)
	if err != nil {
		return 0, fmt.Errorf("%w: decimals: %w", ErrUnexpectedOutput, err)
	}
	d, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: decimals returned %T", ErrUnexpectedOutput, vals[0])
	}
	return d, nil
}

// TotalRaised reads the presale's running total of contributions in wei.
func TotalRaised(ctx context.Context, r chain.Reader, presale common.Address) (*big.Int, error) {
	data, err := Presale.Pack("totalRaised")
	if err != nil {
		return nil, err
	}
	out, err := r.ReadState(ctx, chain.Call{To: presale, Data: data})
	if err != nil {
		return nil, err
	}
	return unpackUint256(Presale, "totalRaised", out)
}

// Contributors reads the presale's getContributors() view. The returned
// slices are aligned by index.
func Contributors(ctx context.Context, r chain.Reader, presale common.Address) ([]common.Address, []*big.Int, error) {
	data, err := Presale.Pack("getContributors")
	if err != nil {
		return nil, nil, err
	}
	out, err := r.ReadState(ctx, chain.Call{To: presale, Data: data})
	if err != nil {
		return nil, nil, err
	}
	vals, err := Presale.Unpack("getContributors", out)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: getContributors: %w", ErrUnexpectedOutput, err)
	}
	addrs, ok := vals[0].([]common.Address)
	if !ok {
		return nil, nil, fmt.Errorf("%w: getContributors addresses are %T", ErrUnexpectedOutput, vals[0])
	}
	amounts, ok := vals[1].([]*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("%w: getContributors amounts are %T", ErrUnexpectedOutput, vals[1])
	}
	if len(addrs) != len(amounts) {
		return nil, nil, fmt.Errorf("%w: %d addresses, %d amounts", ErrLengthMismatch, len(addrs), len(amounts))
	}
	return addrs, amounts, nil
}

// DistributorOwner reads the distributor's owner().
func DistributorOwner(ctx context.Context, r chain.Reader, distributor common.Address) (common.Address, error) {
	data, err := Distributor.Pack("owner")
	if err != nil {
		return common.Address{}, err
	}
	out, err := r.ReadState(ctx, chain.Call{To: distributor, Data: data})
	if err != nil {
		return common.Address{}, err
	}
	vals, err := Distributor.Unpack("owner", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: owner: %w", ErrUnexpectedOutput, err)
	}
	owner, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: owner returned %T", ErrUnexpectedOutput, vals[0])
	}
	return owner, nil
}
