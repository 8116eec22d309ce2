package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libairdrop-go/chain"
	"github.com/bitfsorg/libairdrop-go/token"
)

// ViewLoader reads contributions from the presale's getContributors view.
// It is a single call, so it either fully succeeds or fails.
type ViewLoader struct {
	Logger  *slog.Logger
	Reader  chain.Reader
	Presale common.Address
}

var _ Loader = (*ViewLoader)(nil)

func (v *ViewLoader) Load(ctx context.Context) (*Result, error) {
	if v.Reader == nil {
		return nil, errors.New("loader: reader is required")
	}
	log := v.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	addrs, amounts, err := token.Contributors(ctx, v.Reader, v.Presale)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceFailed, err)
	}

	agg := newAggregator()
	for i, a := range addrs {
		if a == (common.Address{}) || amounts[i] == nil {
			continue
		}
		agg.add(a, amounts[i], 0)
	}
	res := &Result{
		Contributions: agg.out,
		TotalRaised:   readTotalRaised(ctx, log, v.Reader, v.Presale),
		Events:        len(addrs),
	}
	if len(agg.out) < len(addrs) {
		log.Debug("loader: merged duplicate contributors", "records", len(addrs), "contributors", len(agg.out))
	}
	log.Info("loader: loaded contributions from view", "contributors", len(res.Contributions))
	return res, nil
}
