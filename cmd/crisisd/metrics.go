package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Process-level Prometheus collectors. Domain metrics flow through the
// OpenTelemetry registry; these cover the daemon itself.

var (
	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "crisis",
			Subsystem: "daemon",
			Name:      "build_info",
			Help:      "Build information for the running daemon",
		},
		[]string{"version", "environment"},
	)

	uptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "crisis",
			Subsystem: "daemon",
			Name:      "uptime_seconds",
			Help:      "Seconds since the daemon started",
		},
	)
)

// serveMetrics exposes /metrics and keeps the uptime gauge current
func serveMetrics(addr string, logger *zap.Logger) {
	start := time.Now()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			uptimeSeconds.Set(time.Since(start).Seconds())
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("metrics server listening", zap.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}
