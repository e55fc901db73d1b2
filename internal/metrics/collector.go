// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records generation-layer metrics.
type Collector struct {
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generationCost     *prometheus.CounterVec

	submissionsTotal *prometheus.CounterVec
	pollAttempts     *prometheus.CounterVec
	pollFailures     *prometheus.CounterVec

	uploadsTotal   *prometheus.CounterVec
	localFallbacks *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered in the default
// prometheus registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of generation requests",
		},
		[]string{"provider", "model", "capability", "status"},
	)

	c.generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "End-to-end generation duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 900, 1800},
		},
		[]string{"provider", "model", "capability"},
	)

	c.generationCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_cost_total",
			Help:      "Total generation cost in USD (actual, not retail)",
		},
		[]string{"provider", "model"},
	)

	c.submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of job submissions",
		},
		[]string{"provider", "capability", "status"},
	)

	c.pollAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_attempts_total",
			Help:      "Total number of status-check attempts",
		},
		[]string{"provider"},
	)

	c.pollFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_transport_failures_total",
			Help:      "Total number of transport-level status-check failures",
		},
		[]string{"provider"},
	)

	c.uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of artifact re-hosting uploads",
		},
		[]string{"uploader", "status"},
	)

	c.localFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "local_fallbacks_total",
			Help:      "Total number of artifacts stored locally after upload failure",
		},
		[]string{"uploader"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordGeneration records one finished generation.
func (c *Collector) RecordGeneration(provider, model, capability, status string, duration time.Duration, cost float64) {
	c.generationsTotal.WithLabelValues(provider, model, capability, status).Inc()
	c.generationDuration.WithLabelValues(provider, model, capability).Observe(duration.Seconds())
	if cost > 0 {
		c.generationCost.WithLabelValues(provider, model).Add(cost)
	}
}

// RecordSubmission records one job submission.
func (c *Collector) RecordSubmission(provider, capability, status string) {
	c.submissionsTotal.WithLabelValues(provider, capability, status).Inc()
}

// RecordPollAttempt records one status check.
func (c *Collector) RecordPollAttempt(provider string, transportFailure bool) {
	c.pollAttempts.WithLabelValues(provider).Inc()
	if transportFailure {
		c.pollFailures.WithLabelValues(provider).Inc()
	}
}

// RecordUpload records one re-hosting upload.
func (c *Collector) RecordUpload(uploader, status string) {
	c.uploadsTotal.WithLabelValues(uploader, status).Inc()
}

// RecordLocalFallback records an artifact kept locally after its upload
// failed.
func (c *Collector) RecordLocalFallback(uploader string) {
	c.localFallbacks.WithLabelValues(uploader).Inc()
}
