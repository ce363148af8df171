package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_decisions_total",
		Help: "Risk decisions handled, by action.",
	}, []string{"action"})

	RiskAPIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_risk_api_requests_total",
		Help: "Requests sent to the risk API, by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	RiskAPIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fraud_risk_api_duration_seconds",
		Help:    "Risk API request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	OrderStatusReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_order_status_reports_total",
		Help: "Order lifecycle transitions reported to the risk API.",
	}, []string{"status"})

	EventFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_event_failures_total",
		Help: "Events whose processing failed and was sent to diagnostics.",
	}, []string{"event"})
)
