// Package http serves the operational endpoints: Prometheus metrics and
// health checks. The server is optional and only started when enabled in
// the config.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tunesync/internal/core"
)

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics
}

// Metrics are the pipeline counters exposed at /metrics. Registered on a
// private registry so tests can build servers freely.
type Metrics struct {
	TracksSearched *prometheus.CounterVec
	TracksSwitched prometheus.Counter
	SyncTracks     *prometheus.CounterVec
	APIErrors      *prometheus.CounterVec
	SearchTime     prometheus.Histogram
	LibrarySize    prometheus.Gauge
}

func newMetrics(registry *prometheus.Registry) *Metrics {
	metrics := &Metrics{
		TracksSearched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunesync_tracks_searched_total",
				Help: "Total number of tracks searched, by outcome",
			},
			[]string{"status"},
		),
		TracksSwitched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tunesync_checker_switched_total",
				Help: "Total number of tracks whose URI changed during checking",
			},
		),
		SyncTracks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunesync_sync_tracks_total",
				Help: "Total number of playlist track operations",
			},
			[]string{"op"},
		),
		APIErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunesync_api_errors_total",
				Help: "Total number of remote API errors, by status code",
			},
			[]string{"code"},
		),
		SearchTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tunesync_search_duration_seconds",
				Help:    "Time spent searching one collection",
				Buckets: prometheus.DefBuckets,
			},
		),
		LibrarySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tunesync_library_size",
				Help: "Number of tracks in the scanned library",
			},
		),
	}

	registry.MustRegister(
		metrics.TracksSearched,
		metrics.TracksSwitched,
		metrics.SyncTracks,
		metrics.APIErrors,
		metrics.SearchTime,
		metrics.LibrarySize,
	)
	return metrics
}

func setupRoutes(registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"tunesync"}`))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"tunesync"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return mux
}

func createHTTPServer(config *core.ServerConfig, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func NewServer(config *core.ServerConfig, logger *zap.Logger) *Server {
	registry := prometheus.NewRegistry()
	metrics := newMetrics(registry)
	mux := setupRoutes(registry)

	return &Server{
		config:  config,
		logger:  logger.Named("http"),
		server:  createHTTPServer(config, mux),
		metrics: metrics,
	}
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown failed", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}

func (s *Server) RecordSearch(status string) {
	s.metrics.TracksSearched.WithLabelValues(status).Inc()
}

func (s *Server) RecordSwitched() {
	s.metrics.TracksSwitched.Inc()
}

func (s *Server) RecordSyncOp(op string, count int) {
	s.metrics.SyncTracks.WithLabelValues(op).Add(float64(count))
}

func (s *Server) RecordAPIError(code string) {
	s.metrics.APIErrors.WithLabelValues(code).Inc()
}

func (s *Server) RecordSearchTime(duration time.Duration) {
	s.metrics.SearchTime.Observe(duration.Seconds())
}

func (s *Server) SetLibrarySize(size int) {
	s.metrics.LibrarySize.Set(float64(size))
}
