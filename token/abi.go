// Package token holds the ABI bindings the airdrop needs: the ERC20 subset
// used for approval and balance checks, the batch distributor, and the
// presale contract contributions are read from.
package token

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20JSON = `[
{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

const distributorJSON = `[
{"inputs":[{"name":"token","type":"address"},{"name":"recipients","type":"address[]"},{"name":"amounts","type":"uint256[]"}],"name":"distribute","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[],"name":"owner","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const presaleJSON = `[
{"inputs":[],"name":"totalRaised","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getContributors","outputs":[{"name":"","type":"address[]"},{"name":"","type":"uint256[]"}],"stateMutability":"view","type":"function"},
{"anonymous":false,"inputs":[{"indexed":true,"name":"contributor","type":"address"},{"indexed":false,"name":"amount","type":"uint256"}],"name":"ContributionReceived","type":"event"}
]`

var (
	// ERC20 is the token interface subset used by the airdrop.
	ERC20 = mustParse(erc20JSON)

	// Distributor is the batch distribution contract.
	Distributor = mustParse(distributorJSON)

	// Presale is the contract that recorded contributions.
	Presale = mustParse(presaleJSON)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("token: parse abi: %v", err))
	}
	return parsed
}

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20.Pack("approve", spender, amount)
}

// PackAllowance encodes allowance(owner, spender).
func PackAllowance(owner, spender common.Address) ([]byte, error) {
	return ERC20.Pack("allowance", owner, spender)
}

// PackTransfer encodes transfer(to, amount).
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return ERC20.Pack("transfer", to, amount)
}

// PackBalanceOf encodes balanceOf(account).
func PackBalanceOf(account common.Address) ([]byte, error) {
	return ERC20.Pack("balanceOf", account)
}

// PackDecimals encodes decimals().
func PackDecimals() ([]byte, error) {
	return ERC20.Pack("decimals")
}

// PackDistribute encodes distribute(token, recipients, amounts).
func PackDistribute(tokenAddr common.Address, recipients []common.Address, amounts []*big.Int) ([]byte, error) {
	if len(recipients) != len(amounts) {
		return nil, fmt.Errorf("%w: %d recipients, %d amounts", ErrLengthMismatch, len(recipients), len(amounts))
	}
	return Distributor.Pack("distribute", tokenAddr, recipients, amounts)
}

// unpackUint256 decodes a single uint256 return value.
func unpackUint256(a abi.ABI, method string, data []byte) (*big.Int, error) {
	out, err := a.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnexpectedOutput, method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", ErrUnexpectedOutput, method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrUnexpectedOutput, method, out[0])
	}
	return v, nil
}
