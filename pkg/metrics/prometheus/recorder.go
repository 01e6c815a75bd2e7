// Package prometheus provides a Prometheus-backed meter.Recorder,
// registering its constructor with pkg/metrics during init so callers
// never need to import this package directly.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dittoblocks/blocks/pkg/metrics"
	"github.com/dittoblocks/blocks/pkg/store/meter"
)

func init() {
	metrics.RegisterRecorderConstructor(newRecorder)
}

// recorderMetrics holds the Prometheus collectors a meter.Recorder
// reports store events into, labeled by operation ("list", "stat",
// "get", "put", "delete", "erase").
type recorderMetrics struct {
	latency *prometheus.HistogramVec
	bytes   *prometheus.CounterVec
}

// newRecorder builds a meter.Recorder against the active registry.
func newRecorder() meter.Recorder {
	reg := metrics.GetRegistry()

	m := &recorderMetrics{
		latency: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "blocks_store_operation_duration_seconds",
				Help: "Duration of store operations by label.",
				Buckets: []float64{
					0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
				},
			},
			[]string{"label"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blocks_store_bytes_total",
				Help: "Bytes flowing through store content streams by label.",
			},
			[]string{"label"},
		),
	}

	return func(e meter.Event) {
		switch e.Type {
		case "latency":
			// Event.Value for latency is a time.Duration stored as
			// float64 nanoseconds; convert to seconds for Prometheus
			// convention.
			m.latency.WithLabelValues(e.Label).Observe(e.Value / 1e9)
		case "bytes":
			m.bytes.WithLabelValues(e.Label).Add(e.Value)
		}
	}
}
