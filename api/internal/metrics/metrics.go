package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "paste_ocr"

// Metrics groups the collectors shared by the HTTP handler, executor and limiter.
type Metrics struct {
	Requests          *prometheus.CounterVec
	RecognitionTime   prometheus.Histogram
	Outcomes          *prometheus.CounterVec
	Abandoned         prometheus.Gauge
	RateLimitRejected *prometheus.CounterVec
	StoreBackend      *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP responses by route and status code.",
		}, []string{"route", "code"}),
		RecognitionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recognition_duration_seconds",
			Help:      "Time the caller waited on a recognition call.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_outcomes_total",
			Help:      "Recognition outcomes by kind.",
		}, []string{"outcome"}),
		Abandoned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recognition_abandoned_inflight",
			Help:      "Recognition calls past their deadline that are still running.",
		}),
		RateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_rejected_total",
			Help:      "Requests rejected by the admission controller.",
		}, []string{"route", "rule"}),
		StoreBackend: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ratelimit_store_info",
			Help:      "Active quota store backend (1 for the selected one).",
		}, []string{"backend"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.RecognitionTime, m.Outcomes, m.Abandoned, m.RateLimitRejected, m.StoreBackend)
	}
	return m
}
