package checkpoint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckpointHits tracks lookups that found a resume point
	CheckpointHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkpoint_hits_total",
			Help: "Total number of batch checkpoint hits",
		},
	)

	// CheckpointMisses tracks lookups without a resume point
	CheckpointMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkpoint_misses_total",
			Help: "Total number of batch checkpoint misses",
		},
	)

	// CheckpointErrors tracks checkpoint operation errors
	CheckpointErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_errors_total",
			Help: "Total number of checkpoint operation errors",
		},
		[]string{"operation"}, // "get", "save", "delete"
	)
)
