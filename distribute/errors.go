package distribute

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libairdrop-go/plan"
)

var (
	// ErrAlreadyRunning indicates a distribution run is already in progress on this engine.
	ErrAlreadyRunning = errors.New("distribute: a distribution is already running")

	// ErrApprovalFailed indicates the allowance check or approval transaction failed.
	ErrApprovalFailed = errors.New("distribute: approval failed")

	// ErrBatchSubmission indicates a batch transaction was not accepted by the network.
	ErrBatchSubmission = errors.New("distribute: batch submission failed")

	// ErrBatchUnconfirmed indicates a batch transaction was accepted but its receipt could not be obtained.
	ErrBatchUnconfirmed = errors.New("distribute: batch receipt unavailable")

	// ErrBatchReverted indicates a batch transaction was included but reverted.
	ErrBatchReverted = errors.New("distribute: batch reverted")

	// ErrAborted indicates the run was stopped before all batches were attempted.
	ErrAborted = errors.New("distribute: run aborted")

	// ErrEmptyPlan indicates DistributeAll was called without batches. It
	// matches plan.ErrInvalidInput.
	ErrEmptyPlan = fmt.Errorf("%w: plan has no batches", plan.ErrInvalidInput)

	// ErrTransferFailed indicates a single transfer reverted.
	ErrTransferFailed = errors.New("distribute: transfer reverted")
)
