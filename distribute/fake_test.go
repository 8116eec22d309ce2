package distribute

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libairdrop-go/chain"
	"github.com/bitfsorg/libairdrop-go/plan"
	"github.com/bitfsorg/libairdrop-go/token"
)

var (
	testSender      = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testToken       = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testDistributor = common.HexToAddress("0xA902Ee075B3781436A91D708d31483d1b1DEd96C")
)

type txInfo struct {
	approve bool
	batch   int
	amount  *big.Int // approved amount or batch total
}

// fakeLedger simulates the token and distributor contracts behind a chain.MockClient.
type fakeLedger struct {
	mu    sync.Mutex
	clock clockwork.Clock

	allowance        *big.Int
	allowanceErr     error
	approveSubmitErr error
	approveReverts   bool
	submitErrs       map[int]error // by distribute call number
	reverts          map[int]bool
	receiptErrs      map[int]error

	// When set, Submit signals entered and then waits for release.
	entered chan struct{}
	release chan struct{}

	reads        int
	approvals    []*big.Int
	batches      [][]common.Address
	batchAmounts [][]*big.Int
	submitTimes  []time.Time
	nextHash     int64
	txs          map[common.Hash]txInfo
}

func newFakeLedger(clock clockwork.Clock) *fakeLedger {
	return &fakeLedger{
		clock:       clock,
		allowance:   new(big.Int),
		submitErrs:  map[int]error{},
		reverts:     map[int]bool{},
		receiptErrs: map[int]error{},
		txs:         map[common.Hash]txInfo{},
	}
}

func (f *fakeLedger) client() *chain.MockClient {
	return &chain.MockClient{
		SenderAddr:     testSender,
		ReadStateFn:    f.readState,
		SubmitFn:       f.submit,
		AwaitReceiptFn: f.awaitReceipt,
	}
}

func (f *fakeLedger) readState(ctx context.Context, call chain.Call) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if call.To != testToken || !bytes.HasPrefix(call.Data, token.ERC20.Methods["allowance"].ID) {
		return nil, fmt.Errorf("unexpected read to %s", call.To.Hex())
	}
	if f.allowanceErr != nil {
		return nil, f.allowanceErr
	}
	return token.ERC20.Methods["allowance"].Outputs.Pack(f.allowance)
}

func (f *fakeLedger) submit(ctx context.Context, call chain.Call) (*chain.TxHandle, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var info txInfo
	switch {
	case call.To == testToken && bytes.HasPrefix(call.Data, token.ERC20.Methods["approve"].ID):
		if f.approveSubmitErr != nil {
			return nil, f.approveSubmitErr
		}
		args, err := token.ERC20.Methods["approve"].Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		f.approvals = append(f.approvals, args[1].(*big.Int))
		info.approve = true
		info.amount = args[1].(*big.Int)
	case call.To == testDistributor && bytes.HasPrefix(call.Data, token.Distributor.Methods["distribute"].ID):
		n := len(f.batches)
		f.submitTimes = append(f.submitTimes, f.clock.Now())
		args, err := token.Distributor.Methods["distribute"].Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		f.batches = append(f.batches, args[1].([]common.Address))
		f.batchAmounts = append(f.batchAmounts, args[2].([]*big.Int))
		if err := f.submitErrs[n]; err != nil {
			return nil, err
		}
		info.batch = n
		info.amount = new(big.Int)
		for _, a := range args[2].([]*big.Int) {
			info.amount.Add(info.amount, a)
		}
	default:
		return nil, fmt.Errorf("unexpected submit to %s", call.To.Hex())
	}

	f.nextHash++
	h := common.BigToHash(big.NewInt(f.nextHash))
	f.txs[h] = info
	return &chain.TxHandle{Hash: h}, nil
}

func (f *fakeLedger) awaitReceipt(ctx context.Context, h *chain.TxHandle) (*chain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.txs[h.Hash]
	if !ok {
		return nil, fmt.Errorf("unknown tx %s", h.Hash.Hex())
	}
	r := &chain.Receipt{TxHash: h.Hash, Status: chain.ReceiptSuccess, BlockNumber: uint64(100 + f.nextHash), GasUsed: 21000}
	if info.approve {
		if f.approveReverts {
			r.Status = chain.ReceiptReverted
		} else {
			f.allowance = new(big.Int).Set(info.amount)
		}
		return r, nil
	}
	if err := f.receiptErrs[info.batch]; err != nil {
		return nil, err
	}
	if f.reverts[info.batch] {
		r.Status = chain.ReceiptReverted
		return r, nil
	}
	// A mined distribute() pulls its total through transferFrom.
	f.allowance = new(big.Int).Sub(f.allowance, info.amount)
	if f.allowance.Sign() < 0 {
		f.allowance.SetInt64(0)
	}
	return r, nil
}

func (f *fakeLedger) approvalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.approvals)
}

func (f *fakeLedger) currentAllowance() *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.allowance)
}

func (f *fakeLedger) distributeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func newTestEngine(t *testing.T, client chain.Client, clock clockwork.Clock, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := Config{
		Logger:          testLogger(),
		Clock:           clock,
		Token:           testToken,
		Distributor:     testDistributor,
		TokenDecimals:   2,
		InterBatchDelay: DefaultInterBatchDelay,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(client, cfg)
	require.NoError(t, err)
	return e
}

func addr(i int) common.Address {
	return common.BigToAddress(big.NewInt(int64(0x1000 + i)))
}

// makePlan builds a plan of n entries where entry i receives (i+1)*100 raw units.
func makePlan(t *testing.T, n, batchSize int) *plan.Plan {
	t.Helper()
	entries := make([]plan.Entry, n)
	for i := range entries {
		entries[i] = plan.Entry{Address: addr(i), RawAmount: big.NewInt(int64(i+1) * 100)}
	}
	p, err := plan.New(entries, batchSize)
	require.NoError(t, err)
	return p
}

type runResult struct {
	run *Run
	err error
}

// distributeWithClock runs DistributeAll in the background and advances the
// fake clock through each inter-batch delay until the run returns.
func distributeWithClock(t *testing.T, e *Engine, clock *clockwork.FakeClock, p *plan.Plan) (*Run, error) {
	t.Helper()
	done := make(chan runResult, 1)
	go func() {
		run, err := e.DistributeAll(context.Background(), p)
		done <- runResult{run, err}
	}()

	for {
		select {
		case res := <-done:
			return res.run, res.err
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		err := clock.BlockUntilContext(ctx, 1)
		cancel()
		if err == nil {
			clock.Advance(e.cfg.InterBatchDelay)
		}
	}
}
