package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calltree_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	MethodsExpanded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calltree_methods_expanded_total",
		Help: "Total number of methods whose bodies were scanned for self-calls.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "calltree_graph_edges",
		Help: "Number of edges in the most recently built call graph.",
	})

	UnresolvedCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calltree_unresolved_calls_total",
		Help: "Total number of collected call names no class in the MRO defines.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calltree_analysis_seconds",
		Help:    "Time spent on high-level analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	AttributeClasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calltree_attribute_classes_total",
		Help: "Total number of class definitions processed by the attribute collector.",
	})

	LambdaCaptures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calltree_lambda_captures_total",
		Help: "Lambda source captures by outcome.",
	}, []string{"outcome"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calltree_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	HistorySnapshots = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calltree_history_snapshots_total",
		Help: "Total number of attribute snapshots persisted.",
	})
)
