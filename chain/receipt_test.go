package chain

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pollResult struct {
	receipt *Receipt
	err     error
}

func TestReceiptPollerWaitsForInclusion(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := &receiptPoller{
		log:      slog.New(slog.DiscardHandler),
		clock:    clock,
		interval: time.Second,
		timeout:  time.Minute,
	}

	var calls atomic.Int32
	done := make(chan pollResult, 1)
	go func() {
		r, err := p.wait(context.Background(), testHash, func(ctx context.Context) (*Receipt, error) {
			if calls.Add(1) < 3 {
				return nil, nil
			}
			return &Receipt{TxHash: testHash, Status: ReceiptSuccess}, nil
		})
		done <- pollResult{r, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))

	for want := int32(2); want <= 3; want++ {
		clock.Advance(time.Second)
		require.Eventually(t, func() bool { return calls.Load() >= want }, 2*time.Second, time.Millisecond)
	}

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.True(t, res.receipt.Succeeded())
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not return")
	}
}

func TestReceiptPollerTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := &receiptPoller{
		log:      slog.New(slog.DiscardHandler),
		clock:    clock,
		interval: time.Second,
		timeout:  10 * time.Second,
	}

	done := make(chan pollResult, 1)
	go func() {
		r, err := p.wait(context.Background(), testHash, func(ctx context.Context) (*Receipt, error) {
			return nil, nil
		})
		done <- pollResult{r, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	clock.Advance(10 * time.Second)

	select {
	case res := <-done:
		assert.ErrorIs(t, res.err, ErrReceiptTimeout)
		assert.Nil(t, res.receipt)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not time out")
	}
}

func TestReceiptPollerRetriesTransientErrors(t *testing.T) {
	p := &receiptPoller{
		log:      slog.New(slog.DiscardHandler),
		clock:    clockwork.NewRealClock(),
		interval: time.Millisecond,
		timeout:  time.Second,
	}

	calls := 0
	r, err := p.wait(context.Background(), testHash, func(ctx context.Context) (*Receipt, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection reset by peer")
		}
		return &Receipt{Status: ReceiptReverted}, nil
	})
	require.NoError(t, err)
	assert.False(t, r.Succeeded())
	assert.Equal(t, 2, calls)
}

func TestReceiptPollerContextCanceled(t *testing.T) {
	p := &receiptPoller{
		log:      slog.New(slog.DiscardHandler),
		clock:    clockwork.NewRealClock(),
		interval: time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.wait(ctx, testHash, func(ctx context.Context) (*Receipt, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
