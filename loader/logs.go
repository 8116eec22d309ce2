package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bitfsorg/libairdrop-go/chain"
	"github.com/bitfsorg/libairdrop-go/metrics"
	"github.com/bitfsorg/libairdrop-go/token"
)

const (
	// DefaultRangeSize is the number of blocks requested per eth_getLogs call.
	DefaultRangeSize = 1000

	// DefaultConcurrency bounds the number of range requests in flight.
	DefaultConcurrency = 4

	// DefaultRateLimit is the sustained request rate against the node.
	DefaultRateLimit = rate.Limit(10)
)

// LogSource is the node surface needed to scan event logs. Both
// *chain.RPCClient and *ethclient.Client satisfy it.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

type LogLoaderConfig struct {
	Logger      *slog.Logger
	Source      LogSource
	Reader      chain.Reader // optional, used for totalRaised
	Presale     common.Address
	FromBlock   uint64
	ToBlock     uint64 // 0 means the current head
	RangeSize   uint64
	Concurrency int
	RateLimit   rate.Limit
}

func (cfg *LogLoaderConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Source == nil {
		return errors.New("log source is required")
	}
	if cfg.Presale == (common.Address{}) {
		return errors.New("presale address is required")
	}
	if cfg.ToBlock != 0 && cfg.ToBlock < cfg.FromBlock {
		return fmt.Errorf("to block %d is before from block %d", cfg.ToBlock, cfg.FromBlock)
	}
	if cfg.RangeSize == 0 {
		cfg.RangeSize = DefaultRangeSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	return nil
}

// LogLoader rebuilds contributions from ContributionReceived events.
type LogLoader struct {
	log *slog.Logger
	cfg LogLoaderConfig
}

// Compile-time interface check.
var _ Loader = (*LogLoader)(nil)

func NewLogLoader(cfg LogLoaderConfig) (*LogLoader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LogLoader{log: cfg.Logger, cfg: cfg}, nil
}

// Load scans [FromBlock, head] in fixed-size ranges. Ranges that fail are
// skipped and reported in the result; only a failure to read the head or
// cancellation of ctx fails the load.
func (l *LogLoader) Load(ctx context.Context) (*Result, error) {
	head := l.cfg.ToBlock
	if head == 0 {
		n, err := l.cfg.Source.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrHeadUnavailable, err)
		}
		head = n
	}

	res := &Result{TotalRaised: readTotalRaised(ctx, l.log, l.cfg.Reader, l.cfg.Presale)}
	if l.cfg.FromBlock > head {
		l.log.Warn("loader: start block is past head", "from", l.cfg.FromBlock, "head", head)
		return res, nil
	}

	ranges := splitRanges(l.cfg.FromBlock, head, l.cfg.RangeSize)
	l.log.Info("loader: scanning contribution logs",
		"from", l.cfg.FromBlock, "to", head, "ranges", len(ranges))

	results := make([][]types.Log, len(ranges))
	failed := make([]bool, len(ranges))
	var mu sync.Mutex
	fetched := 0

	limiter := rate.NewLimiter(l.cfg.RateLimit, l.cfg.Concurrency)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Concurrency)
	for i, r := range ranges {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			logs, err := l.cfg.Source.FilterLogs(gctx, ethereum.FilterQuery{
				FromBlock: new(big.Int).SetUint64(r.From),
				ToBlock:   new(big.Int).SetUint64(r.To),
				Addresses: []common.Address{l.cfg.Presale},
				Topics:    [][]common.Hash{{token.ContributionReceivedTopic}},
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				metrics.LoaderRangesTotal.WithLabelValues("skipped").Inc()
				l.log.Warn("loader: failed to fetch logs, skipping range", "range", r.String(), "error", err)
				failed[i] = true
				return nil
			}
			metrics.LoaderRangesTotal.WithLabelValues("ok").Inc()
			results[i] = logs

			mu.Lock()
			fetched += len(logs)
			total := fetched
			mu.Unlock()
			l.log.Debug("loader: fetched logs", "range", r.String(), "logs", len(logs), "total", total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := newAggregator()
	for i, logs := range results {
		if failed[i] {
			res.SkippedRanges = append(res.SkippedRanges, ranges[i])
			continue
		}
		slices.SortFunc(logs, func(a, b types.Log) int {
			if a.BlockNumber != b.BlockNumber {
				if a.BlockNumber < b.BlockNumber {
					return -1
				}
				return 1
			}
			return int(a.Index) - int(b.Index)
		})
		for _, lg := range logs {
			if lg.Removed {
				continue
			}
			ev, err := token.ParseContributionReceived(lg)
			if err != nil {
				l.log.Warn("loader: skipping undecodable log", "tx", lg.TxHash.Hex(), "error", err)
				continue
			}
			if ev.Contributor == (common.Address{}) {
				continue
			}
			agg.add(ev.Contributor, ev.Amount, lg.BlockNumber)
			res.Events++
		}
	}
	metrics.LoaderLogsTotal.Add(float64(res.Events))
	res.Contributions = agg.out

	if len(res.SkippedRanges) > 0 {
		l.log.Warn("loader: some log ranges could not be fetched, data may be incomplete",
			"skipped", len(res.SkippedRanges), "ranges", len(ranges))
	}
	l.log.Info("loader: loaded contributions",
		"contributors", len(res.Contributions), "events", res.Events)
	return res, nil
}

// splitRanges divides [from, to] into inclusive ranges of at most size blocks.
func splitRanges(from, to, size uint64) []BlockRange {
	var out []BlockRange
	for start := from; start <= to; {
		end := to
		if to-start >= size {
			end = start + size - 1
		}
		out = append(out, BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}
	return out
}
