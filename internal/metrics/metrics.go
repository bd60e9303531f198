// Package metrics exposes the Prometheus collectors shared by the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PoolInFlight tracks external invocations currently holding a pool slot.
	PoolInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reelmerge_pool_in_flight",
		Help: "External operations currently holding a worker pool slot",
	})

	// PoolWaitDuration tracks how long a stage waited for a pool slot.
	PoolWaitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reelmerge_pool_wait_seconds",
		Help:    "Time spent waiting for a worker pool slot",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"stage"})

	// StageDuration tracks the wall time of each pipeline stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reelmerge_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"stage", "result"})

	// ClipsTotal counts clips by the stage they reached and whether they survived it.
	ClipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelmerge_clips_total",
		Help: "Clips processed, by stage and result",
	}, []string{"stage", "result"})

	// JobsTotal counts finished jobs.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelmerge_jobs_total",
		Help: "Jobs finished, by mode and result",
	}, []string{"mode", "result"})

	// MergeStrategyTotal counts which merge path produced the artifact.
	MergeStrategyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelmerge_merge_strategy_total",
		Help: "Merged artifacts by the strategy that produced them",
	}, []string{"strategy"})

	// RetentionRemovedTotal counts artifacts deleted by the retention sweep.
	RetentionRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelmerge_retention_removed_total",
		Help: "Output artifacts removed by the retention sweep",
	})
)

// Result label values.
const (
	ResultOK   = "ok"
	ResultFail = "fail"
)

// Outcome maps an error to a result label.
func Outcome(err error) string {
	if err != nil {
		return ResultFail
	}
	return ResultOK
}
