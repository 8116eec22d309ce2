// Package distribute drives a planned airdrop on chain: one approval for the
// plan total followed by a strictly sequential series of batch
// distribute() calls, with per-batch outcome accounting.
package distribute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/bitfsorg/libairdrop-go/chain"
	"github.com/bitfsorg/libairdrop-go/metrics"
	"github.com/bitfsorg/libairdrop-go/plan"
	"github.com/bitfsorg/libairdrop-go/token"
)

// DefaultInterBatchDelay is the pause between consecutive batches.
const DefaultInterBatchDelay = 1500 * time.Millisecond

type Config struct {
	Logger          *slog.Logger
	Clock           clockwork.Clock
	Token           common.Address
	Distributor     common.Address
	TokenDecimals   int32 // only used to format amounts in messages
	InterBatchDelay time.Duration
	Observer        Observer // optional
	Recorder        Recorder // optional
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Token == (common.Address{}) {
		return errors.New("token address is required")
	}
	if cfg.Distributor == (common.Address{}) {
		return errors.New("distributor address is required")
	}
	if cfg.InterBatchDelay < 0 {
		return errors.New("inter-batch delay must not be negative")
	}
	if cfg.TokenDecimals < 0 || cfg.TokenDecimals > plan.MaxDecimals {
		return fmt.Errorf("token decimals must be between 0 and %d", plan.MaxDecimals)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Engine executes distribution runs for one signing account. At most one
// run is active at a time.
type Engine struct {
	log    *slog.Logger
	cfg    Config
	client chain.Client

	mu      sync.Mutex
	run     *Run // current or most recent run
	running bool
	abort   chan struct{}
	aborted bool
}

func New(client chain.Client, cfg Config) (*Engine, error) {
	if client == nil {
		return nil, errors.New("chain client is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		log:    cfg.Logger,
		cfg:    cfg,
		client: client,
	}, nil
}

// State returns the state of the current run, or StateIdle if none has started.
func (e *Engine) State() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return StateIdle
	}
	return e.run.State
}

// Running reports whether a run is in progress.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Snapshot returns a copy of the current or most recent run, or nil.
func (e *Engine) Snapshot() *Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return nil
	}
	return e.run.clone()
}

// Abort asks the active run to stop before its next batch. A batch already
// submitted is still awaited. Abort is a no-op when nothing is running.
func (e *Engine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && !e.aborted {
		e.aborted = true
		close(e.abort)
	}
}

// DistributeAll approves the plan total for the distributor and then sends
// every batch in order. Per-batch failures are recorded in the returned run
// and do not stop the remaining batches; the error is non-nil only when the
// run ends Aborted or could not start.
func (e *Engine) DistributeAll(ctx context.Context, p *plan.Plan) (result *Run, err error) {
	if p == nil || len(p.Batches) == 0 || p.Total == nil {
		return nil, ErrEmptyPlan
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	run := &Run{
		ID:          uuid.New(),
		Plan:        p,
		Token:       e.cfg.Token,
		Distributor: e.cfg.Distributor,
		Sender:      e.client.Sender(),
		Approval:    ApprovalOutcome{Status: ApprovalPending, Amount: new(big.Int).Set(p.Total)},
		Outcomes:    make([]BatchOutcome, 0, len(p.Batches)),
		State:       StateApproving,
		StartedAt:   e.cfg.Clock.Now(),
	}
	e.run = run
	e.running = true
	e.aborted = false
	e.abort = make(chan struct{})
	abort := e.abort
	e.mu.Unlock()

	// The returned run is always the final snapshot taken by finish.
	defer func() { result = e.finish(run) }()

	log := e.log.With("run", run.ID.String())
	log.Info("distribute: run started",
		"batches", len(p.Batches),
		"recipients", p.Recipients(),
		"total", plan.FormatUnits(p.Total, e.cfg.TokenDecimals),
		"sender", run.Sender.Hex())

	e.notify(run, -1, fmt.Sprintf("Approving %s tokens for distributor %s",
		plan.FormatUnits(p.Total, e.cfg.TokenDecimals), e.cfg.Distributor.Hex()))

	if err := e.approve(ctx, log, run); err != nil {
		err = fmt.Errorf("%w: %w", ErrApprovalFailed, err)
		e.update(func() {
			run.Approval.Status = ApprovalFailed
			run.Approval.Err = err
			run.State = StateAborted
			run.Err = err
		})
		metrics.ApprovalsTotal.WithLabelValues(ApprovalFailed.String()).Inc()
		log.Error("distribute: approval failed", "error", err, "user_rejected", chain.IsUserRejected(err))
		e.notify(run, -1, approvalFailureMessage(err))
		return nil, err
	}

	e.update(func() { run.State = StateDistributing })
	e.notify(run, -1, fmt.Sprintf("Distributing %d batches", len(p.Batches)))

	last := len(p.Batches) - 1
	for i, b := range p.Batches {
		if err := checkAbort(ctx, abort); err != nil {
			return nil, e.stop(log, run, err)
		}

		e.sendBatch(ctx, log, run, b)

		if i < last && e.cfg.InterBatchDelay > 0 {
			e.notify(run, i, fmt.Sprintf("Batch %d of %d complete. Waiting %s before next batch.",
				i+1, len(p.Batches), e.cfg.InterBatchDelay))
			timer := e.cfg.Clock.NewTimer(e.cfg.InterBatchDelay)
			select {
			case <-ctx.Done():
			case <-abort:
			case <-timer.Chan():
			}
			timer.Stop()
		}
	}

	var summary Summary
	e.update(func() {
		run.State = StateCompleted
		summary = run.Summary()
	})
	log.Info("distribute: run completed", "summary", summary.String())
	e.notify(run, -1, completionMessage(summary))
	return nil, nil
}

// approve ensures the distributor may pull the plan total from the sender.
func (e *Engine) approve(ctx context.Context, log *slog.Logger, run *Run) error {
	total := run.Approval.Amount
	allowance, err := token.Allowance(ctx, e.client, e.cfg.Token, run.Sender, e.cfg.Distributor)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}
	e.update(func() { run.Approval.Allowance = allowance })

	if allowance.Cmp(total) >= 0 {
		e.update(func() { run.Approval.Status = ApprovalSkipped })
		metrics.ApprovalsTotal.WithLabelValues(ApprovalSkipped.String()).Inc()
		log.Info("distribute: allowance sufficient, skipping approval",
			"allowance", allowance.String(), "total", total.String())
		e.notify(run, -1, "Existing allowance covers the total; approval skipped")
		return nil
	}

	data, err := token.PackApprove(e.cfg.Distributor, total)
	if err != nil {
		return err
	}
	h, err := e.client.Submit(ctx, chain.Call{To: e.cfg.Token, Data: data})
	if err != nil {
		return err
	}
	hash := h.Hash
	e.update(func() { run.Approval.TxHash = &hash })
	log.Info("distribute: approval submitted", "tx", hash.Hex())
	e.notify(run, -1, fmt.Sprintf("Approval transaction sent: %s. Waiting for confirmation...", hash.Hex()))

	receipt, err := e.client.AwaitReceipt(ctx, h)
	if err != nil {
		return err
	}
	if !receipt.Succeeded() {
		return fmt.Errorf("approval transaction %s reverted in block %d", hash.Hex(), receipt.BlockNumber)
	}

	e.update(func() { run.Approval.Status = ApprovalConfirmed })
	metrics.ApprovalsTotal.WithLabelValues(ApprovalConfirmed.String()).Inc()
	log.Info("distribute: approval confirmed", "tx", hash.Hex(), "block", receipt.BlockNumber)
	e.notify(run, -1, "Token approval confirmed")
	return nil
}

// sendBatch submits one batch and waits for its receipt. Failures are
// recorded on the outcome; they never propagate.
func (e *Engine) sendBatch(ctx context.Context, log *slog.Logger, run *Run, b plan.Batch) {
	n := len(run.Plan.Batches)
	var idx int
	e.update(func() {
		run.Outcomes = append(run.Outcomes, BatchOutcome{
			BatchIndex: b.Index,
			Recipients: b.Len(),
			Amount:     b.Total(),
			Status:     BatchPending,
		})
		idx = len(run.Outcomes) - 1
	})
	e.notify(run, b.Index, fmt.Sprintf("Processing batch %d of %d (%d recipients)", b.Index+1, n, b.Len()))

	start := e.cfg.Clock.Now()
	fail := func(status BatchStatus, err error) {
		e.update(func() {
			run.Outcomes[idx].Status = status
			run.Outcomes[idx].Err = err
		})
		e.observeBatch(status, b.Len(), start)
		log.Warn("distribute: batch "+status.String(), "batch", b.Index+1, "of", n, "error", err)
		e.notify(run, b.Index, fmt.Sprintf("Batch %d of %d %s: %v", b.Index+1, n, status, err))
	}

	data, err := token.PackDistribute(e.cfg.Token, b.Recipients, b.Amounts)
	if err != nil {
		fail(BatchFailed, fmt.Errorf("%w: %w", ErrBatchSubmission, err))
		return
	}
	h, err := e.client.Submit(ctx, chain.Call{To: e.cfg.Distributor, Data: data})
	if err != nil {
		fail(BatchFailed, fmt.Errorf("%w: %w", ErrBatchSubmission, err))
		return
	}

	hash := h.Hash
	e.update(func() {
		run.Outcomes[idx].Status = BatchSubmitted
		run.Outcomes[idx].TxHash = &hash
	})
	log.Info("distribute: batch submitted", "batch", b.Index+1, "of", n, "tx", hash.Hex())
	e.notify(run, b.Index, fmt.Sprintf("Batch %d transaction sent: %s. Waiting for confirmation...", b.Index+1, hash.Hex()))

	receipt, err := e.client.AwaitReceipt(ctx, h)
	if err != nil {
		fail(BatchFailed, fmt.Errorf("%w: %s: %w", ErrBatchUnconfirmed, hash.Hex(), err))
		return
	}

	block := receipt.BlockNumber
	e.update(func() {
		run.Outcomes[idx].BlockNumber = &block
		run.Outcomes[idx].GasUsed = receipt.GasUsed
	})
	if !receipt.Succeeded() {
		fail(BatchReverted, fmt.Errorf("%w: %s in block %d", ErrBatchReverted, hash.Hex(), block))
		return
	}

	var summary Summary
	e.update(func() {
		run.Outcomes[idx].Status = BatchConfirmed
		summary = run.Summary()
	})
	e.observeBatch(BatchConfirmed, b.Len(), start)
	log.Info("distribute: batch confirmed", "batch", b.Index+1, "of", n, "tx", hash.Hex(), "block", block)
	e.notify(run, b.Index, fmt.Sprintf("Batch %d successful! Confirmed in block %d. Successful batches: %d/%d",
		b.Index+1, block, summary.Confirmed, n))
}

func (e *Engine) observeBatch(status BatchStatus, recipients int, start time.Time) {
	metrics.BatchesTotal.WithLabelValues(status.String()).Inc()
	metrics.RecipientsTotal.WithLabelValues(status.String()).Add(float64(recipients))
	metrics.BatchDuration.Observe(e.cfg.Clock.Since(start).Seconds())
}

// stop ends the run early because of an abort request or ctx cancellation.
func (e *Engine) stop(log *slog.Logger, run *Run, cause error) error {
	err := fmt.Errorf("%w: %w", ErrAborted, cause)
	var summary Summary
	e.update(func() {
		run.State = StateAborted
		run.Err = err
		summary = run.Summary()
	})
	log.Warn("distribute: run aborted", "reason", cause, "summary", summary.String())
	e.notify(run, -1, fmt.Sprintf("Distribution aborted: %d of %d batches not attempted", summary.Skipped, summary.Total))
	return err
}

// finish releases the single-flight guard and returns the final snapshot.
// It runs on every exit path, including panics, and leaves the run in a
// terminal state.
func (e *Engine) finish(run *Run) *Run {
	e.mu.Lock()
	if !run.State.Terminal() {
		run.State = StateAborted
		if run.Err == nil {
			run.Err = ErrAborted
		}
	}
	run.FinishedAt = e.cfg.Clock.Now()
	e.running = false
	snap := run.clone()
	e.mu.Unlock()

	metrics.RunsTotal.WithLabelValues(snap.State.String()).Inc()
	metrics.RunDuration.Observe(snap.Duration().Seconds())

	if e.cfg.Recorder != nil {
		if err := e.cfg.Recorder.Record(snap); err != nil {
			e.log.Warn("distribute: failed to record run", "run", snap.ID.String(), "error", err)
		}
	}
	return snap
}

func (e *Engine) update(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// notify builds a Progress under the lock and delivers it outside it so
// observers may call back into the engine.
func (e *Engine) notify(run *Run, batch int, msg string) {
	if e.cfg.Observer == nil {
		return
	}
	e.mu.Lock()
	p := Progress{
		RunID:        run.ID,
		State:        run.State,
		Batch:        batch,
		TotalBatches: len(run.Plan.Batches),
		Summary:      run.Summary(),
		Message:      msg,
	}
	e.mu.Unlock()
	e.cfg.Observer.OnProgress(p)
}

func checkAbort(ctx context.Context, abort <-chan struct{}) error {
	select {
	case <-abort:
		return errors.New("abort requested")
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

func approvalFailureMessage(err error) string {
	if chain.IsUserRejected(err) {
		return "Approval denied by user."
	}
	return fmt.Sprintf("Token approval failed: %v", err)
}

func completionMessage(s Summary) string {
	if s.Confirmed == s.Total {
		return "Airdrop completed successfully for all batches"
	}
	return fmt.Sprintf("Airdrop completed with some issues: %d successful, %d reverted, %d failed",
		s.Confirmed, s.Reverted, s.Failed)
}
