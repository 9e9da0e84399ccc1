package rest

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RequestMetrics tracks pipeline metrics
var RequestMetrics = struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RateLimitsTotal *prometheus.CounterVec
	InvalidRequests prometheus.Gauge
}{
	RequestsTotal: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toast_rest_requests_total",
			Help: "Total number of requests sent to the api, split by route and status",
		},
		[]string{"route", "status"},
	),
	RequestDuration: promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toast_rest_request_duration_seconds",
			Help:    "Time taken by api requests, split by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	),
	RateLimitsTotal: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toast_rest_rate_limits_total",
			Help: "Total number of rate limit waits, split by route and scope",
		},
		[]string{"route", "global"},
	),
	InvalidRequests: promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "toast_rest_invalid_requests",
			Help: "Invalid requests counted in the current window",
		},
	),
}

func recordResponse(data ResponseData) {
	RequestMetrics.RequestsTotal.WithLabelValues(data.Route, strconv.Itoa(data.Status)).Inc()
	RequestMetrics.RequestDuration.WithLabelValues(data.Route).Observe(data.Duration.Seconds())
}

func recordRateLimit(data RateLimitData) {
	RequestMetrics.RateLimitsTotal.WithLabelValues(data.Route, strconv.FormatBool(data.Global)).Inc()
}
