// Package plan partitions a contributor list into distributor-sized batches
// and derives the token allocation for each contributor.
//
// A Plan is derived data: it is never persisted and is rebuilt from the
// loader output whenever a distribution is started.
package plan

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DefaultBatchSize is the number of recipients sent per distribute() call.
const DefaultBatchSize = 150

// Contribution is one contributor's aggregated presale deposit, in wei.
type Contribution struct {
	Address common.Address
	Amount  *big.Int

	// LastBlock is the block of the contributor's most recent deposit, zero
	// when the source carries no block information.
	LastBlock uint64
}

// Entry is one recipient and the raw token amount it should receive.
type Entry struct {
	Address   common.Address
	RawAmount *big.Int
}

// Batch is a bounded group of recipients delivered in one transaction.
// Recipients and Amounts are positionally aligned.
type Batch struct {
	Index      int // 0-based position in the plan
	Recipients []common.Address
	Amounts    []*big.Int
}

// Len returns the number of recipients in the batch.
func (b Batch) Len() int { return len(b.Recipients) }

// Total returns the sum of the batch amounts.
func (b Batch) Total() *big.Int {
	sum := new(big.Int)
	for _, a := range b.Amounts {
		sum.Add(sum, a)
	}
	return sum
}

// Plan is an ordered sequence of batches plus the approval the distributor
// contract needs to move every amount in it.
type Plan struct {
	Batches   []Batch
	Total     *big.Int // exact sum of every entry amount
	BatchSize int
}

// Recipients returns the number of entries covered by the plan.
func (p *Plan) Recipients() int {
	n := 0
	for _, b := range p.Batches {
		n += b.Len()
	}
	return n
}

// New partitions entries into consecutive batches of at most batchSize,
// preserving input order. Amounts are copied so later mutation of the
// caller's entries cannot change the plan.
func New(entries []Entry, batchSize int) (*Plan, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries to distribute", ErrInvalidInput)
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("%w: batch size must be at least 1, got %d", ErrInvalidInput, batchSize)
	}

	seen := make(map[common.Address]int, len(entries))
	total := new(big.Int)
	for i, e := range entries {
		if e.Address == (common.Address{}) {
			return nil, fmt.Errorf("%w: entry[%d] has zero address", ErrInvalidInput, i)
		}
		if e.RawAmount == nil || e.RawAmount.Sign() < 0 {
			return nil, fmt.Errorf("%w: entry[%d] %s has negative or missing amount", ErrInvalidInput, i, e.Address.Hex())
		}
		if prev, dup := seen[e.Address]; dup {
			return nil, fmt.Errorf("%w: %w: %s at entries %d and %d",
				ErrInvalidInput, ErrDuplicateAddress, e.Address.Hex(), prev, i)
		}
		seen[e.Address] = i
		total.Add(total, e.RawAmount)
	}

	numBatches := (len(entries) + batchSize - 1) / batchSize
	p := &Plan{
		Batches:   make([]Batch, 0, numBatches),
		Total:     total,
		BatchSize: batchSize,
	}
	for start := 0; start < len(entries); start += batchSize {
		end := min(start+batchSize, len(entries))
		b := Batch{
			Index:      len(p.Batches),
			Recipients: make([]common.Address, 0, end-start),
			Amounts:    make([]*big.Int, 0, end-start),
		}
		for _, e := range entries[start:end] {
			b.Recipients = append(b.Recipients, e.Address)
			b.Amounts = append(b.Amounts, new(big.Int).Set(e.RawAmount))
		}
		p.Batches = append(p.Batches, b)
	}
	return p, nil
}

// Allocate converts raw wei contributions into token entries at the given
// rate. The contribution is read at ContributionDecimals precision.
func Allocate(contributions []Contribution, rate decimal.Decimal, tokenDecimals int32) ([]Entry, error) {
	entries := make([]Entry, 0, len(contributions))
	for i, c := range contributions {
		if c.Amount == nil {
			return nil, fmt.Errorf("%w: contribution[%d] %s has no amount", ErrInvalidInput, i, c.Address.Hex())
		}
		amt, err := TokenAmount(FromRaw(c.Amount, ContributionDecimals), rate, tokenDecimals)
		if err != nil {
			return nil, fmt.Errorf("contribution[%d] %s: %w", i, c.Address.Hex(), err)
		}
		entries = append(entries, Entry{Address: c.Address, RawAmount: amt})
	}
	return entries, nil
}
