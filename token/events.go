package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContributionReceived is a decoded presale contribution event.
type ContributionReceived struct {
	Contributor common.Address
	Amount      *big.Int
	BlockNumber uint64
	TxIndex     uint
	LogIndex    uint
}

// ContributionReceivedTopic is topic[0] of ContributionReceived logs.
var ContributionReceivedTopic = Presale.Events["ContributionReceived"].ID

// ParseContributionReceived decodes a ContributionReceived log.
func ParseContributionReceived(lg types.Log) (*ContributionReceived, error) {
	if len(lg.Topics) != 2 || lg.Topics[0] != ContributionReceivedTopic {
		return nil, fmt.Errorf("%w: not ContributionReceived (tx %s, index %d)", ErrUnexpectedLog, lg.TxHash.Hex(), lg.Index)
	}
	var body struct {
		Amount *big.Int
	}
	if err := Presale.UnpackIntoInterface(&body, "ContributionReceived", lg.Data); err != nil {
		return nil, fmt.Errorf("%w: decode ContributionReceived: %w", ErrUnexpectedLog, err)
	}
	return &ContributionReceived{
		Contributor: common.BytesToAddress(lg.Topics[1].Bytes()),
		Amount:      body.Amount,
		BlockNumber: lg.BlockNumber,
		TxIndex:     lg.TxIndex,
		LogIndex:    lg.Index,
	}, nil
}
