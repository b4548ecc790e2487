package telemetry

import "github.com/prometheus/client_golang/prometheus"

// HTTPRequestDuration records HTTP handler latency, labeled by method,
// route pattern, and status code.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "prose_pod",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route", "status"},
)

// NetworkChecksTotal counts completed network checks by kind and outcome.
var NetworkChecksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "prose_pod",
		Subsystem: "network_checks",
		Name:      "total",
		Help:      "Total number of network checks run, by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

// NetworkCheckDuration records how long individual checks take.
var NetworkCheckDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "prose_pod",
		Subsystem: "network_checks",
		Name:      "duration_seconds",
		Help:      "Network check duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 20},
	},
	[]string{"kind"},
)

// InvitationsTotal counts invitation lifecycle transitions.
var InvitationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "prose_pod",
		Subsystem: "invitations",
		Name:      "total",
		Help:      "Total number of invitation lifecycle transitions, by action.",
	},
	[]string{"action"},
)

// MembersTotal tracks current member count as a gauge.
var MembersTotal = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "prose_pod",
		Subsystem: "members",
		Name:      "total",
		Help:      "Current number of members in the pod.",
	},
)

// XMPPServerCtlErrorsTotal counts failed calls to the XMPP server's admin
// REST interface, by operation.
var XMPPServerCtlErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "prose_pod",
		Subsystem: "xmpp",
		Name:      "server_ctl_errors_total",
		Help:      "Total number of failed XMPP server control-plane calls, by operation.",
	},
	[]string{"operation"},
)

// All returns every pod-specific metric for registration against a
// *prometheus.Registry.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		NetworkChecksTotal,
		NetworkCheckDuration,
		InvitationsTotal,
		MembersTotal,
		XMPPServerCtlErrorsTotal,
	}
}
