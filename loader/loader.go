// Package loader reads presale contributions from the chain. Loading is best
// effort: a source that partly fails reports what it skipped instead of
// failing the whole load.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libairdrop-go/chain"
	"github.com/bitfsorg/libairdrop-go/plan"
	"github.com/bitfsorg/libairdrop-go/token"
)

// Loader produces the contributor list a distribution is planned from.
type Loader interface {
	Load(ctx context.Context) (*Result, error)
}

// BlockRange is an inclusive block interval.
type BlockRange struct {
	From uint64
	To   uint64
}

func (r BlockRange) String() string { return fmt.Sprintf("%d-%d", r.From, r.To) }

// Result is the outcome of a load.
type Result struct {
	// Contributions holds one record per contributor, amounts summed, in the
	// order each contributor first appeared.
	Contributions []plan.Contribution

	// TotalRaised is the presale's own running total, nil if it could not be read.
	TotalRaised *big.Int

	// SkippedRanges lists block ranges whose logs could not be fetched.
	SkippedRanges []BlockRange

	// Events is the number of contribution records consumed.
	Events int
}

// Complete reports whether every part of the source was read.
func (r *Result) Complete() bool { return len(r.SkippedRanges) == 0 }

// Sum returns the total of all contribution amounts.
func (r *Result) Sum() *big.Int {
	sum := new(big.Int)
	for _, c := range r.Contributions {
		sum.Add(sum, c.Amount)
	}
	return sum
}

// aggregator sums contributions per address in first-seen order.
type aggregator struct {
	index map[common.Address]int
	out   []plan.Contribution
}

func newAggregator() *aggregator {
	return &aggregator{index: make(map[common.Address]int)}
}

func (a *aggregator) add(addr common.Address, amount *big.Int, block uint64) {
	if i, ok := a.index[addr]; ok {
		a.out[i].Amount.Add(a.out[i].Amount, amount)
		a.out[i].LastBlock = max(a.out[i].LastBlock, block)
		return
	}
	a.index[addr] = len(a.out)
	a.out = append(a.out, plan.Contribution{Address: addr, Amount: new(big.Int).Set(amount), LastBlock: block})
}

// readTotalRaised is best effort; a failure is logged and yields nil.
func readTotalRaised(ctx context.Context, log *slog.Logger, r chain.Reader, presale common.Address) *big.Int {
	if r == nil {
		return nil
	}
	total, err := token.TotalRaised(ctx, r, presale)
	if err != nil {
		log.Warn("loader: failed to read totalRaised", "presale", presale.Hex(), "error", err)
		return nil
	}
	return total
}
