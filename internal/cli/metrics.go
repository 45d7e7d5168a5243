package cli

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsRegistry is a dedicated registry rather than the global default, so
// repeated test runs in-process never hit a "duplicate metrics collector"
// panic from prometheus.DefaultRegisterer.
var metricsRegistry = prometheus.NewRegistry()

func prometheusRegisterer() prometheus.Registerer {
	return metricsRegistry
}

// startMetricsServer exposes /metrics on addr in the background. Bind
// failures are logged, not fatal — a run should never fail because its
// metrics exporter couldn't claim a port.
func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
}
