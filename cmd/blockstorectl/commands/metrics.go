package commands

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dittoblocks/blocks/cmd/blockstorectl/cmdutil"
	"github.com/dittoblocks/blocks/internal/logger"
	"github.com/dittoblocks/blocks/pkg/metrics"
)

// startMetricsIfEnabled turns on Prometheus collection and serves
// /metrics on Flags.MetricsAddr when --metrics is set. A "metered: true"
// store config has no effect until this has run, since
// pkg/config.metricsRecorder falls back to a nil recorder while
// metrics.IsEnabled reports false.
func startMetricsIfEnabled() {
	if !cmdutil.Flags.Metrics {
		return
	}

	metrics.InitRegistry()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	logger.Info("metrics enabled", "addr", cmdutil.Flags.MetricsAddr)
	go func() {
		if err := http.ListenAndServe(cmdutil.Flags.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", logger.Err(err))
		}
	}()
}
