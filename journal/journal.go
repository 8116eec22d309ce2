// Package journal keeps a local record of finished distribution runs in a
// bbolt database, so an operator can see which batches landed after the
// process exits.
package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libairdrop-go/distribute"
)

var (
	bucketRuns       = []byte("runs")
	bucketRunsByTime = []byte("runs_by_time")
)

// Report is the persisted form of a finished run. Errors are kept as text.
type Report struct {
	ID          uuid.UUID
	Token       common.Address
	Distributor common.Address
	Sender      common.Address
	State       string
	Err         string
	StartedAt   time.Time
	FinishedAt  time.Time
	Total       *big.Int
	BatchSize   int
	Recipients  int
	Approval    ApprovalReport
	Batches     []BatchReport
	Summary     distribute.Summary
}

// ApprovalReport is the persisted approval step.
type ApprovalReport struct {
	Status    string
	Amount    *big.Int
	Allowance *big.Int
	TxHash    string
	Err       string
}

// BatchReport is the persisted outcome of one batch.
type BatchReport struct {
	Index       int
	Recipients  int
	Amount      *big.Int
	Status      string
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Err         string
}

// Journal persists run reports. It implements distribute.Recorder.
type Journal struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ distribute.Recorder = (*Journal)(nil)

// Open opens or creates the journal database at dbPath.
// The parent directory is created if it does not exist.
func Open(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("journal: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRuns, bucketRunsByTime} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("journal: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }

// Record stores the final snapshot of a run. Recording the same run twice
// replaces the earlier report.
func (j *Journal) Record(run *distribute.Run) error {
	if run == nil {
		return ErrNilRun
	}
	rep := NewReport(run)
	data, err := encodeGob(rep)
	if err != nil {
		return fmt.Errorf("journal: encode report: %w", err)
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		byTime := tx.Bucket(bucketRunsByTime)

		if old := runs.Get(rep.ID[:]); old != nil {
			var prev Report
			if err := decodeGob(old, &prev); err == nil {
				if err := byTime.Delete(timeKey(prev.StartedAt, prev.ID)); err != nil {
					return fmt.Errorf("journal: delete time index: %w", err)
				}
			}
		}
		if err := runs.Put(rep.ID[:], data); err != nil {
			return fmt.Errorf("journal: put run: %w", err)
		}
		if err := byTime.Put(timeKey(rep.StartedAt, rep.ID), rep.ID[:]); err != nil {
			return fmt.Errorf("journal: put time index: %w", err)
		}
		return nil
	})
}

// Get returns the report recorded under id.
func (j *Journal) Get(id uuid.UUID) (*Report, error) {
	var rep Report
	err := j.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRuns).Get(id[:])
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err := decodeGob(data, &rep); err != nil {
			return fmt.Errorf("journal: decode report: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// List returns up to limit reports, most recently started first.
// A limit of zero or less returns every report.
func (j *Journal) List(limit int) ([]*Report, error) {
	var out []*Report
	err := j.db.View(func(tx *bbolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		c := tx.Bucket(bucketRunsByTime).Cursor()
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			data := runs.Get(id)
			if data == nil {
				continue
			}
			var rep Report
			if err := decodeGob(data, &rep); err != nil {
				return fmt.Errorf("journal: decode report %x: %w", id, err)
			}
			out = append(out, &rep)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NewReport converts a run snapshot into its persisted form.
func NewReport(run *distribute.Run) *Report {
	rep := &Report{
		ID:          run.ID,
		Token:       run.Token,
		Distributor: run.Distributor,
		Sender:      run.Sender,
		State:       run.State.String(),
		Err:         errString(run.Err),
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		Summary:     run.Summary(),
		Approval: ApprovalReport{
			Status:    run.Approval.Status.String(),
			Amount:    run.Approval.Amount,
			Allowance: run.Approval.Allowance,
			TxHash:    hashString(run.Approval.TxHash),
			Err:       errString(run.Approval.Err),
		},
	}
	if run.Plan != nil {
		rep.Total = run.Plan.Total
		rep.BatchSize = run.Plan.BatchSize
		rep.Recipients = run.Plan.Recipients()
	}
	for _, o := range run.Outcomes {
		b := BatchReport{
			Index:      o.BatchIndex,
			Recipients: o.Recipients,
			Amount:     o.Amount,
			Status:     o.Status.String(),
			TxHash:     hashString(o.TxHash),
			GasUsed:    o.GasUsed,
			Err:        errString(o.Err),
		}
		if o.BlockNumber != nil {
			b.BlockNumber = *o.BlockNumber
		}
		rep.Batches = append(rep.Batches, b)
	}
	return rep
}

// timeKey orders the index by start time, with the run ID breaking ties.
func timeKey(t time.Time, id uuid.UUID) []byte {
	k := make([]byte, 8+len(id))
	binary.BigEndian.PutUint64(k, uint64(t.UnixNano()))
	copy(k[8:], id[:])
	return k
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func hashString(h *common.Hash) string {
	if h == nil {
		return ""
	}
	return h.Hex()
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
