// Package metrics gates Prometheus registration behind an explicit
// InitRegistry call, so importing the store packages never pulls in a
// metrics dependency unless the caller opts in.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dittoblocks/blocks/pkg/store/meter"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection, creating a fresh Prometheus
// registry. Call once during startup before constructing any meter
// recorders. Calling it again replaces the registry.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return registry != nil
}

// GetRegistry returns the active registry, or nil if metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

// newPrometheusRecorder is registered by pkg/metrics/prometheus during
// its package initialization. The indirection lets this package expose
// NewRecorder without importing the prometheus client library directly,
// avoiding an import cycle between metrics and metrics/prometheus.
var newPrometheusRecorder func() meter.Recorder

// RegisterRecorderConstructor is called by pkg/metrics/prometheus's
// init to wire its constructor into this package.
func RegisterRecorderConstructor(constructor func() meter.Recorder) {
	newPrometheusRecorder = constructor
}

// NewRecorder returns a meter.Recorder backed by the active Prometheus
// registry, or nil if metrics are disabled. A nil Recorder is exactly
// what meter.New expects to disable instrumentation overhead.
func NewRecorder() meter.Recorder {
	if !IsEnabled() || newPrometheusRecorder == nil {
		return nil
	}
	return newPrometheusRecorder()
}
