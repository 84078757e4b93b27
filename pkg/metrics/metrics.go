// Package metrics exposes the forwarder's Prometheus counters and a small
// HTTP server for scraping them, alongside a health probe endpoint.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// MessagesReceived counts raw messages handed to the pipeline, per source.
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_messages_received_total",
			Help: "Total number of messages received from the broker",
		},
		[]string{"source"},
	)

	// MessagesDropped counts messages discarded during translation, by reason
	// ("topic" for resolution failures, "payload" for decode failures).
	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_messages_dropped_total",
			Help: "Total number of messages dropped during translation, by reason",
		},
		[]string{"reason"},
	)

	// PointsWritten counts points successfully written to the database.
	PointsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forwarder_points_written_total",
			Help: "Total number of points written to the time-series database",
		},
	)

	// WriteErrors counts failed batch writes, after retries were exhausted.
	WriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forwarder_write_errors_total",
			Help: "Total number of failed batch writes to the time-series database",
		},
	)
)

// ServerConfig holds settings for the metrics HTTP server.
type ServerConfig struct {
	Addr              string
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
}

// StartServer serves /metrics and /healthz on cfg.Addr until ctx is
// cancelled, then shuts down gracefully within cfg.ShutdownTimeout.
func StartServer(ctx context.Context, cfg ServerConfig, logger zerolog.Logger) {
	if cfg.Addr == "" {
		cfg.Addr = ":9100"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 3 * time.Second
	}

	log := logger.With().Str("component", "MetricsServer").Logger()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	go func() {
		log.Info().Str("address", cfg.Addr).Msg("Metrics server listening.")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed.")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down metrics server.")
			return
		}
		log.Info().Msg("Metrics server stopped.")
	}()
}
