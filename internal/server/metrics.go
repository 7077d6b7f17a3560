package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	rendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "birthday_wisher",
		Subsystem: "render",
		Name:      "requests_total",
		Help:      "Render requests by result",
	}, []string{"result"})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "birthday_wisher",
		Subsystem: "render",
		Name:      "duration_seconds",
		Help:      "Wall time of complete renders",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "birthday_wisher",
		Subsystem: "ffmpeg",
		Name:      "stage_duration_seconds",
		Help:      "Wall time of each ffmpeg stage",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"stage"})

	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "birthday_wisher",
		Subsystem: "ffmpeg",
		Name:      "stage_failures_total",
		Help:      "Failed ffmpeg stages",
	}, []string{"stage"})

	renderInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "birthday_wisher",
		Subsystem: "render",
		Name:      "in_flight",
		Help:      "Renders currently running or waiting for the render lock",
	})
)

// StageMetrics records ffmpeg stage timings. It is passed to the renderer.
type StageMetrics struct{}

func (StageMetrics) ObserveStage(stage string, elapsed time.Duration, err error) {
	stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		stageFailures.WithLabelValues(stage).Inc()
	}
}

func observeRender(result string, elapsed time.Duration) {
	rendersTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		renderDuration.Observe(elapsed.Seconds())
	}
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
