// Package metrics exposes Prometheus collectors for the prediction flow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry           *prometheus.Registry
	predictions        *prometheus.CounterVec
	predictionDuration *prometheus.HistogramVec
	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodcal_predictions_total",
				Help: "Predictions by backend and outcome.",
			}, []string{"backend", "outcome"},
		),
		predictionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "foodcal_prediction_duration_seconds",
				Help:    "Time spent in the predictor.",
				Buckets: prometheus.DefBuckets,
			}, []string{"backend"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			}, []string{"path", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"path"},
		),
	}

	m.registry.MustRegister(
		m.predictions,
		m.predictionDuration,
		m.requests,
		m.requestDuration,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ObservePrediction(backend, outcome string, elapsed time.Duration) {
	m.predictions.WithLabelValues(backend, outcome).Inc()
	m.predictionDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRequest(path, method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
