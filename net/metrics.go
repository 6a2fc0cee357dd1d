package net

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	exchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acmeshell_http_exchanges_total",
		Help: "Total HTTP exchanges with the ACME server by method and response status.",
	}, []string{"method", "status"})

	exchangeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "acmeshell_http_exchange_duration_seconds",
		Help:    "Time until response headers were received from the ACME server.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// MetricsHandler returns an http.Handler serving the Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
