// Package metrics provides Prometheus metrics for graph builds and BOM calculations
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Calculation kinds used as the "kind" label
const (
	KindExplosion = "explosion"
	KindCosting   = "costing"
	KindWhereUsed = "where_used"
	KindImpact    = "impact"
)

// Status label values
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Recorder owns one set of BOM metrics registered on a single registerer
type Recorder struct {
	buildsTotal         *prometheus.CounterVec
	buildDuration       prometheus.Histogram
	calculationsTotal   *prometheus.CounterVec
	calculationDuration *prometheus.HistogramVec
	dirtyMarks          prometheus.Counter
	graphNodes          prometheus.Gauge
	graphEdges          prometheus.Gauge
}

// NewRecorder registers the BOM metrics on reg. A nil reg leaves them unregistered,
// which is what tests and embedded callers without a /metrics endpoint want.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		buildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bom_graph_builds_total",
				Help: "Total number of BOM graph builds",
			},
			[]string{"status"},
		),
		buildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bom_graph_build_duration_seconds",
				Help:    "Time taken to load and order a BOM graph",
				Buckets: prometheus.DefBuckets,
			},
		),
		calculationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bom_calculations_total",
				Help: "Total number of BOM calculations",
			},
			[]string{"kind", "status"},
		),
		calculationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bom_calculation_duration_seconds",
				Help:    "Duration of BOM calculations",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"kind"},
		),
		dirtyMarks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bom_dirty_marks_total",
				Help: "Total number of components marked dirty, ancestors included",
			},
		),
		graphNodes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bom_graph_nodes",
				Help: "Number of vertices in the most recently built graph",
			},
		),
		graphEdges: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bom_graph_edges",
				Help: "Number of edges in the most recently built graph",
			},
		),
	}
}

// RecordBuild records a graph build; nodes and edges are ignored on error
func (r *Recorder) RecordBuild(err error, nodes, edges int, duration time.Duration) {
	r.buildsTotal.WithLabelValues(status(err)).Inc()
	r.buildDuration.Observe(duration.Seconds())
	if err == nil {
		r.graphNodes.Set(float64(nodes))
		r.graphEdges.Set(float64(edges))
	}
}

// RecordCalculation records one engine call of the given kind
func (r *Recorder) RecordCalculation(kind string, err error, duration time.Duration) {
	r.calculationsTotal.WithLabelValues(kind, status(err)).Inc()
	r.calculationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordDirty adds n newly dirtied components
func (r *Recorder) RecordDirty(n int) {
	r.dirtyMarks.Add(float64(n))
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
