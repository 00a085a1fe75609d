package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the Prometheus counters, histograms, and gauges for one ETL run.
type Metrics struct {
	RunSuccess       prometheus.Gauge
	RecordsPublished prometheus.Counter
	ChunksWritten    prometheus.Counter
	ChartsRendered   prometheus.Counter
	AlertsSent       prometheus.Counter

	PhaseDuration            *prometheus.HistogramVec // label: phase
	ParameterComputeDuration *prometheus.HistogramVec // label: parameter
}

// NewMetrics creates and registers all run metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunSuccess,
		m.RecordsPublished,
		m.ChunksWritten,
		m.ChartsRendered,
		m.AlertsSent,
		m.PhaseDuration,
		m.ParameterComputeDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "thermal_etl",
			Name:      "run_success",
			Help:      "1 when the run completed or found no work, 0 on failure.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thermal_etl",
			Name:      "records_published_total",
			Help:      "Point forecast records written to the query store.",
		}),
		ChunksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thermal_etl",
			Name:      "chunks_written_total",
			Help:      "Bulk-write chunks completed.",
		}),
		ChartsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thermal_etl",
			Name:      "charts_rendered_total",
			Help:      "Daily chart images rendered and uploaded.",
		}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thermal_etl",
			Name:      "alerts_sent_total",
			Help:      "Out-of-band escalation alerts fired.",
		}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "thermal_etl",
			Name:      "phase_duration_seconds",
			Help:      "Duration of each pipeline phase.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		ParameterComputeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "thermal_etl",
			Name:      "parameter_compute_duration_seconds",
			Help:      "Duration of one staged parameter computation, fetch included.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"parameter"}),
	}
}

// Push sends the default registry to a Pushgateway. The job runs to
// completion and exits, so there is no scrape target to expose; an empty
// URL disables pushing. Push failures never fail the run.
func Push(url string, logger *slog.Logger) {
	if url == "" {
		return
	}
	if err := push.New(url, "thermal_etl").Gatherer(prometheus.DefaultGatherer).Push(); err != nil {
		logger.Warn("metrics push failed", "url", url, "error", err)
	}
}
