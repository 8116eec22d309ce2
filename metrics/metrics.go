package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "airdrop_build_info",
			Help: "Build information of the airdrop distributor",
		},
		[]string{"version", "commit", "date"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_runs_total",
			Help: "Total number of distribution runs by final state",
		},
		[]string{"state"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "airdrop_run_duration_seconds",
			Help:    "Duration of distribution runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~8192s (~2.3 hours)
		},
	)

	ApprovalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_approvals_total",
			Help: "Total number of approval steps by outcome",
		},
		[]string{"outcome"},
	)

	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_batches_total",
			Help: "Total number of batches by terminal status",
		},
		[]string{"status"},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "airdrop_batch_duration_seconds",
			Help:    "Time from batch submission to terminal status",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~1024s
		},
	)

	RecipientsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_recipients_total",
			Help: "Total number of recipients by batch status",
		},
		[]string{"status"},
	)

	LoaderRangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_loader_ranges_total",
			Help: "Total number of log ranges fetched by result",
		},
		[]string{"status"},
	)

	LoaderLogsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airdrop_loader_logs_total",
			Help: "Total number of contribution logs decoded",
		},
	)
)
