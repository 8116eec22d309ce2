package distribute

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/bitfsorg/libairdrop-go/plan"
)

// RunState is the lifecycle state of a distribution run.
type RunState int

const (
	StateIdle RunState = iota
	StateApproving
	StateDistributing
	StateCompleted
	StateAborted
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateApproving:
		return "approving"
	case StateDistributing:
		return "distributing"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// Terminal reports whether no further transitions can happen.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// BatchStatus is the progress of a single batch transaction.
type BatchStatus int

const (
	BatchPending BatchStatus = iota
	BatchSubmitted
	BatchConfirmed
	BatchReverted
	BatchFailed
)

func (s BatchStatus) String() string {
	switch s {
	case BatchPending:
		return "pending"
	case BatchSubmitted:
		return "submitted"
	case BatchConfirmed:
		return "confirmed"
	case BatchReverted:
		return "reverted"
	case BatchFailed:
		return "failed"
	default:
		return fmt.Sprintf("BatchStatus(%d)", int(s))
	}
}

// Terminal reports whether the batch has reached a final status.
func (s BatchStatus) Terminal() bool {
	return s == BatchConfirmed || s == BatchReverted || s == BatchFailed
}

// ApprovalStatus is the result of the approval step.
type ApprovalStatus int

const (
	ApprovalPending ApprovalStatus = iota
	// ApprovalSkipped means the existing allowance already covered the total.
	ApprovalSkipped
	ApprovalConfirmed
	ApprovalFailed
)

func (s ApprovalStatus) String() string {
	switch s {
	case ApprovalPending:
		return "pending"
	case ApprovalSkipped:
		return "skipped"
	case ApprovalConfirmed:
		return "confirmed"
	case ApprovalFailed:
		return "failed"
	default:
		return fmt.Sprintf("ApprovalStatus(%d)", int(s))
	}
}

// ApprovalOutcome records the approval step of a run.
type ApprovalOutcome struct {
	Status    ApprovalStatus
	Amount    *big.Int // total requested for the run
	Allowance *big.Int // allowance observed before approving, nil if the read failed
	TxHash    *common.Hash
	Err       error
}

// BatchOutcome records what happened to one batch. It is created when
// submission begins and is final once Status is terminal.
type BatchOutcome struct {
	BatchIndex  int
	Recipients  int
	Amount      *big.Int
	Status      BatchStatus
	TxHash      *common.Hash
	BlockNumber *uint64
	GasUsed     uint64
	Err         error
}

// Summary counts batch outcomes. Skipped batches were never attempted
// because the run was aborted.
type Summary struct {
	Total     int
	Confirmed int
	Reverted  int
	Failed    int
	Skipped   int
}

// Attempted is the number of batches that reached a terminal status.
func (s Summary) Attempted() int { return s.Confirmed + s.Reverted + s.Failed }

func (s Summary) String() string {
	return fmt.Sprintf("confirmed=%d reverted=%d failed=%d skipped=%d total=%d",
		s.Confirmed, s.Reverted, s.Failed, s.Skipped, s.Total)
}

// Run is one invocation of DistributeAll. The engine owns the live value;
// callers only ever receive copies.
type Run struct {
	ID          uuid.UUID
	Plan        *plan.Plan
	Token       common.Address
	Distributor common.Address
	Sender      common.Address
	Approval    ApprovalOutcome
	Outcomes    []BatchOutcome
	State       RunState
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Summary counts the run's batch outcomes.
func (r *Run) Summary() Summary {
	s := Summary{}
	if r.Plan != nil {
		s.Total = len(r.Plan.Batches)
	}
	for _, o := range r.Outcomes {
		switch o.Status {
		case BatchConfirmed:
			s.Confirmed++
		case BatchReverted:
			s.Reverted++
		case BatchFailed:
			s.Failed++
		}
	}
	if r.State == StateAborted {
		s.Skipped = s.Total - len(r.Outcomes)
	}
	return s
}

// Duration is the wall time of a finished run, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Run) clone() *Run {
	c := *r
	c.Approval = r.Approval.clone()
	c.Outcomes = make([]BatchOutcome, len(r.Outcomes))
	for i, o := range r.Outcomes {
		c.Outcomes[i] = o.clone()
	}
	return &c
}

func (a ApprovalOutcome) clone() ApprovalOutcome {
	a.Amount = copyBig(a.Amount)
	a.Allowance = copyBig(a.Allowance)
	if a.TxHash != nil {
		h := *a.TxHash
		a.TxHash = &h
	}
	return a
}

func (o BatchOutcome) clone() BatchOutcome {
	o.Amount = copyBig(o.Amount)
	if o.TxHash != nil {
		h := *o.TxHash
		o.TxHash = &h
	}
	if o.BlockNumber != nil {
		n := *o.BlockNumber
		o.BlockNumber = &n
	}
	return o
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

// Progress is a point-in-time notification about a run.
type Progress struct {
	RunID        uuid.UUID
	State        RunState
	Batch        int // zero-based batch index, -1 when not about a batch
	TotalBatches int
	Summary      Summary
	Message      string
}

// Observer receives progress notifications. OnProgress is called
// synchronously from the goroutine running DistributeAll.
type Observer interface {
	OnProgress(p Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(p Progress)

func (f ObserverFunc) OnProgress(p Progress) { f(p) }

// Recorder persists the final snapshot of every run.
type Recorder interface {
	Record(run *Run) error
}
