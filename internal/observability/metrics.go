// Package observability exposes the analyzer's Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "l5x_parse_seconds",
		Help:    "Time spent parsing one export document.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	ParsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "l5x_parses_total",
		Help: "Parse runs by file kind and outcome.",
	}, []string{"kind", "outcome"})

	ActiveParses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "l5x_active_parses",
		Help: "Parse runs currently holding a worker slot.",
	})

	ReferencesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "l5x_references_extracted_total",
		Help: "Total tag references produced by the reference extractor.",
	})

	UnknownMnemonics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "l5x_unknown_mnemonics_total",
		Help: "Instruction calls whose mnemonic had no operand table entry and defaulted to Read.",
	})

	DiffDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "l5x_diff_seconds",
		Help:    "Time spent diffing snapshots.",
		Buckets: prometheus.DefBuckets,
	}, []string{"scope"})

	SnapshotsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "l5x_snapshots_stored_total",
		Help: "Snapshots published to the snapshot store.",
	})

	NamingViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "l5x_naming_violations_total",
		Help: "Naming rule violations reported, by severity.",
	}, []string{"severity"})
)
