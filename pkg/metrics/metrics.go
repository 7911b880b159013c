// Package metrics exposes Prometheus collectors for the processing
// pipeline and serves them on a dedicated listener.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mailroom",
		Name:      "sessions_started_total",
		Help:      "Processing sessions created by uploads.",
	})

	SessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailroom",
		Name:      "sessions_finished_total",
		Help:      "Processing sessions that reached a terminal phase.",
	}, []string{"outcome"})

	StatementsClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailroom",
		Name:      "statements_classified_total",
		Help:      "Statements classified, labeled by match kind.",
	}, []string{"match_kind"})

	QuestionsAnswered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailroom",
		Name:      "questions_answered_total",
		Help:      "Operator disambiguation commands processed.",
	}, []string{"command"})

	ProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mailroom",
		Name:      "processing_duration_seconds",
		Help:      "Wall time from upload to questions-ready or completion.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	SessionsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mailroom",
		Name:      "sessions_live",
		Help:      "Sessions currently held in the store.",
	})
)

// Serve runs the metrics endpoint until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
