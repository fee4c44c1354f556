package observability

import (
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and gauges for map generation runs.
// Each Metrics owns its registry, so a process or test can create several.
type Metrics struct {
	RowsRead    prometheus.Counter
	RowsSkipped *prometheus.CounterVec // labels: reason={short_row,not_numeric}
	RowsDropped prometheus.Counter
	Markers     prometheus.Counter
	Runs        *prometheus.CounterVec // labels: variant={stream,cluster}, outcome={success,error}
	LastRun     prometheus.Gauge

	registry *prometheus.Registry
	clock    clockwork.Clock
}

// NewMetrics creates all metrics on a fresh registry.
func NewMetrics() *Metrics {
	return NewMetricsWithClock(clockwork.NewRealClock())
}

// NewMetricsWithClock is NewMetrics with an explicit time source for LastRun.
func NewMetricsWithClock(clock clockwork.Clock) *Metrics {
	m := &Metrics{
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "violations_map",
			Name:      "rows_read_total",
			Help:      "Data rows read from the input file.",
		}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "violations_map",
			Name:      "rows_skipped_total",
			Help:      "Rows skipped because a coordinate could not be parsed.",
		}, []string{"reason"}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "violations_map",
			Name:      "rows_dropped_total",
			Help:      "Rows dropped up front for missing coordinates.",
		}),
		Markers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "violations_map",
			Name:      "markers_total",
			Help:      "Markers placed on generated maps.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "violations_map",
			Name:      "runs_total",
			Help:      "Map generation runs by variant and outcome.",
		}, []string{"variant", "outcome"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "violations_map",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run.",
		}),
		registry: prometheus.NewRegistry(),
		clock:    clock,
	}

	m.registry.MustRegister(
		m.RowsRead,
		m.RowsSkipped,
		m.RowsDropped,
		m.Markers,
		m.Runs,
		m.LastRun,
	)

	return m
}

// RunFinished records the outcome of one run.
func (m *Metrics) RunFinished(variant string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.Runs.WithLabelValues(variant, outcome).Inc()
	m.LastRun.Set(float64(m.clock.Now().Unix()))
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics to path in the text exposition format, for
// pickup by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
