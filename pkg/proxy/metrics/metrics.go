package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	LatencyMetric = prometheus.NewSummary(
		prometheus.SummaryOpts{
			Name: "gateway_request_duration",
			Help: "A summary of the http request latency for proxied requests, in seconds",
		},
	)
	StatusMetric = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_request_status_total",
			Help: "The HTTP requests partitioned by status code",
		},
		[]string{"code", "method"},
	)
	IdentityResolutionMetric = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_identity_resolutions_total",
			Help: "Identity resolutions partitioned by outcome (resolved, anonymous, duplicate, error)",
		},
		[]string{"outcome"},
	)
	AuthzDecisionMetric = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_authz_decisions_total",
			Help: "Authorization decisions partitioned by decision",
		},
		[]string{"decision"},
	)
	UpstreamErrorMetric = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_upstream_errors_total",
			Help: "Errors reaching upstream services partitioned by target host",
		},
		[]string{"target"},
	)
)
