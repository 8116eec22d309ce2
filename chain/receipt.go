package chain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"

	"github.com/bitfsorg/libairdrop-go/retry"
)

const (
	// DefaultPollInterval is how often a pending receipt is re-queried.
	DefaultPollInterval = 2 * time.Second

	// DefaultReceiptTimeout bounds the wait for a single receipt.
	DefaultReceiptTimeout = 5 * time.Minute
)

// fetchReceiptFunc returns the receipt, or nil without error while the
// transaction is still pending.
type fetchReceiptFunc func(ctx context.Context) (*Receipt, error)

// receiptPoller waits for a transaction receipt by polling.
type receiptPoller struct {
	log      *slog.Logger
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration
}

// wait polls fetch until it returns a receipt, a non-retryable error, the
// timeout elapses, or ctx ends.
func (p *receiptPoller) wait(ctx context.Context, hash common.Hash, fetch fetchReceiptFunc) (*Receipt, error) {
	var deadline <-chan time.Time
	if p.timeout > 0 {
		timer := p.clock.NewTimer(p.timeout)
		defer timer.Stop()
		deadline = timer.Chan()
	}
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		receipt, err := fetch(ctx)
		switch {
		case err != nil && !retry.IsRetryable(err):
			return nil, wrapError(err)
		case err != nil:
			p.log.Debug("chain: receipt poll failed, retrying", "tx", hash.Hex(), "error", err)
		case receipt != nil:
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, fmt.Errorf("%w: %s after %s", ErrReceiptTimeout, hash.Hex(), p.timeout)
		case <-ticker.Chan():
		}
	}
}
