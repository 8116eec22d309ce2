package distribute

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/bitfsorg/libairdrop-go/plan"
)

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "approving", StateApproving.String())
	assert.Equal(t, "distributing", StateDistributing.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "aborted", StateAborted.String())
	assert.Equal(t, "RunState(9)", RunState(9).String())

	assert.Equal(t, "confirmed", BatchConfirmed.String())
	assert.Equal(t, "BatchStatus(9)", BatchStatus(9).String())
	assert.Equal(t, "skipped", ApprovalSkipped.String())
}

func TestTerminal(t *testing.T) {
	assert.False(t, StateApproving.Terminal())
	assert.False(t, StateDistributing.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateAborted.Terminal())

	assert.False(t, BatchPending.Terminal())
	assert.False(t, BatchSubmitted.Terminal())
	assert.True(t, BatchConfirmed.Terminal())
	assert.True(t, BatchReverted.Terminal())
	assert.True(t, BatchFailed.Terminal())
}

func TestRunSummary(t *testing.T) {
	p := &plan.Plan{Batches: make([]plan.Batch, 4), Total: big.NewInt(0)}
	run := &Run{
		Plan: p,
		Outcomes: []BatchOutcome{
			{Status: BatchConfirmed},
			{Status: BatchReverted},
			{Status: BatchFailed},
		},
		State: StateDistributing,
	}
	s := run.Summary()
	assert.Equal(t, Summary{Total: 4, Confirmed: 1, Reverted: 1, Failed: 1}, s)
	assert.Equal(t, 3, s.Attempted())

	run.State = StateAborted
	assert.Equal(t, 1, run.Summary().Skipped)
}

func TestRunDuration(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := &Run{StartedAt: start}
	assert.Zero(t, run.Duration())
	run.FinishedAt = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, run.Duration())
}

func TestRunCloneIndependence(t *testing.T) {
	h := common.HexToHash("0x01")
	block := uint64(5)
	run := &Run{
		Approval: ApprovalOutcome{Amount: big.NewInt(10), TxHash: &h},
		Outcomes: []BatchOutcome{{Amount: big.NewInt(3), TxHash: &h, BlockNumber: &block}},
	}
	c := run.clone()
	c.Approval.Amount.SetInt64(0)
	*c.Approval.TxHash = common.Hash{}
	*c.Outcomes[0].BlockNumber = 99
	c.Outcomes[0].Amount.SetInt64(0)

	assert.Equal(t, int64(10), run.Approval.Amount.Int64())
	assert.Equal(t, h, *run.Approval.TxHash)
	assert.Equal(t, uint64(5), *run.Outcomes[0].BlockNumber)
	assert.Equal(t, int64(3), run.Outcomes[0].Amount.Int64())
}

func TestCompletionMessage(t *testing.T) {
	assert.Equal(t, "Airdrop completed successfully for all batches", completionMessage(Summary{Total: 2, Confirmed: 2}))
	assert.Equal(t, "Airdrop completed with some issues: 1 successful, 1 reverted, 0 failed",
		completionMessage(Summary{Total: 2, Confirmed: 1, Reverted: 1}))
}
