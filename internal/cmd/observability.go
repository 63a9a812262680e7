package cmd

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/genpod/internal/config"
	"github.com/felixgeelhaar/genpod/internal/log"
	"github.com/felixgeelhaar/genpod/internal/metrics"
	"github.com/felixgeelhaar/genpod/internal/telemetry"
)

func setupLogging(cfg *config.Config) *log.Logger {
	l := log.New(log.FromSettings(cfg.Log.Level, cfg.Log.Format))
	log.SetDefaultLogger(l)
	return l
}

// setupObservability starts tracing and, when metrics.addr is set, the
// /metrics endpoint. The returned cleanup flushes spans and stops serving.
func setupObservability(ctx context.Context, cfg *config.Config) (*metrics.Metrics, func()) {
	reg, m := metrics.NewRegistry()

	serveCtx, cancel := context.WithCancel(ctx)
	if cfg.Metrics.Addr != "" {
		go serveMetrics(serveCtx, cfg.Metrics.Addr, reg)
	}

	shutdown, err := telemetry.InitProvider(ctx, telemetry.FromSettings(cfg.Telemetry.Enabled, cfg.Telemetry.Endpoint))
	if err != nil {
		logger.Warn("Failed to initialize telemetry", "error", err)
		shutdown = nil
	}

	return m, func() {
		cancel()
		if shutdown != nil {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("Failed to flush telemetry", "error", err)
			}
		}
	}
}

func serveMetrics(ctx context.Context, addr string, reg prometheus.Gatherer) {
	logger.Info("serving metrics", "addr", addr)
	if err := metrics.Serve(ctx, addr, reg); err != nil {
		logger.WithError(err).Warn("metrics endpoint stopped", "addr", addr)
	}
}
