package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsSeen = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "factcheckd",
		Subsystem: "chain",
		Name:      "requests_total",
		Help:      "RequestSubmitted events by dedup outcome.",
	}, []string{"outcome"})

	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "factcheckd",
		Subsystem: "chain",
		Name:      "submissions_total",
		Help:      "Verification submissions by model and outcome.",
	}, []string{"model", "outcome"})

	submitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "factcheckd",
		Subsystem: "chain",
		Name:      "submission_duration_seconds",
		Help:      "Time from request to submission or dead letter, retries included.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"model"})

	pollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "factcheckd",
		Subsystem: "chain",
		Name:      "poll_errors_total",
		Help:      "Polls that failed before processing logs.",
	})

	headBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "factcheckd",
		Subsystem: "chain",
		Name:      "head_block",
		Help:      "Last block number seen by the watcher.",
	})

	watcherState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "factcheckd",
		Subsystem: "chain",
		Name:      "state",
		Help:      "Watcher state (0 idle, 1 processing).",
	})
)
