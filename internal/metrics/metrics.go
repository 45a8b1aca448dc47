// Package metrics exposes Prometheus metrics for ranking, relatedness and
// recommendation units of work.
//
// Usage:
//
//	start := time.Now()
//	err := compute()
//	metrics.ObserveUnit(metrics.UnitRanking, start, err)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Unit kinds used as the "unit" label.
const (
	UnitRanking        = "ranking"
	UnitRelated        = "related"
	UnitRecommendation = "recommendation"
)

var (
	// UnitsTotal counts completed units of work by kind and outcome.
	UnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklibrio_engine_units_total",
			Help: "Total number of units of work by kind and outcome",
		},
		[]string{"unit", "outcome"},
	)

	// UnitDuration tracks how long units of work take.
	UnitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booklibrio_engine_unit_duration_seconds",
			Help:    "Duration of units of work in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 1, 2.5, 10, 30, 60},
		},
		[]string{"unit"},
	)

	// RankingEntries records the entry count of the latest snapshot per ranking type.
	RankingEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "booklibrio_engine_ranking_entries",
			Help: "Number of entries in the active snapshot per ranking type",
		},
		[]string{"type"},
	)

	// CandidatesTotal counts recommendation candidates by source reason before deduplication.
	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklibrio_engine_recommendation_candidates_total",
			Help: "Recommendation candidates produced per source before deduplication",
		},
		[]string{"reason"},
	)

	// SignalErrorsTotal counts failed signal reads by query name.
	SignalErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklibrio_engine_signal_errors_total",
			Help: "Failed signal reads by query",
		},
		[]string{"signal"},
	)

	// CacheLookupsTotal counts ranking cache lookups by result (hit, miss, error).
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklibrio_engine_cache_lookups_total",
			Help: "Ranking cache lookups by result",
		},
		[]string{"result"},
	)

	// BreakerState reports the signal circuit breaker state (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booklibrio_engine_signal_breaker_state",
			Help: "Signal reader circuit breaker state",
		},
	)
)

// ObserveUnit records the outcome and duration of one unit of work.
func ObserveUnit(unit string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	UnitsTotal.WithLabelValues(unit, outcome).Inc()
	UnitDuration.WithLabelValues(unit).Observe(time.Since(start).Seconds())
}
