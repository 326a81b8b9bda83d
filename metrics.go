package proxy

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DefaultMetrics = initMetrics()
)

const metricsNamespace = "edgeproxy"

type Metrics struct {
	Handler        http.Handler
	ObservedValues ObservedValues
}

type ObservedValues struct {
	RequestsTotal      *prometheus.CounterVec
	BypassedProbes     prometheus.Counter
	RejectedRequests   *prometheus.CounterVec
	InFlightRequests   prometheus.Gauge
	ConfiguredBindings prometheus.Gauge
}

func initMetrics() Metrics {
	m := Metrics{
		Handler: promhttp.Handler(),
		ObservedValues: ObservedValues{
			RequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{Namespace: metricsNamespace, Name: "requests_total", Help: "Requests handled, by virtual host and response code"},
				[]string{"host", "code"}),
			BypassedProbes: prometheus.NewCounter(
				prometheus.CounterOpts{Namespace: metricsNamespace, Name: "bypassed_probes_total", Help: "Health-check probes answered without contacting an upstream"}),
			RejectedRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{Namespace: metricsNamespace, Name: "rejected_requests_total", Help: "Requests rejected before forwarding, by reason"},
				[]string{"reason"}),
			InFlightRequests: prometheus.NewGauge(
				prometheus.GaugeOpts{Namespace: metricsNamespace, Name: "in_flight_requests", Help: "Requests currently being proxied to an upstream"}),
			ConfiguredBindings: prometheus.NewGauge(
				prometheus.GaugeOpts{Namespace: metricsNamespace, Name: "configured_bindings", Help: "Number of virtual host bindings in the active route table"}),
		},
	}

	prometheus.MustRegister(m.ObservedValues.RequestsTotal)
	prometheus.MustRegister(m.ObservedValues.BypassedProbes)
	prometheus.MustRegister(m.ObservedValues.RejectedRequests)
	prometheus.MustRegister(m.ObservedValues.InFlightRequests)
	prometheus.MustRegister(m.ObservedValues.ConfiguredBindings)

	return m
}

// Rejection reasons for the rejected_requests_total counter
const (
	rejectReasonNoRoute      = "no_route"
	rejectReasonBodyTooLarge = "body_too_large"
)

func observeRequest(host string, code int) {
	DefaultMetrics.ObservedValues.RequestsTotal.WithLabelValues(host, strconv.Itoa(code)).Inc()
}

func observeBypass() {
	DefaultMetrics.ObservedValues.BypassedProbes.Inc()
}

func observeRejection(reason string) {
	DefaultMetrics.ObservedValues.RejectedRequests.WithLabelValues(reason).Inc()
}

func observeBindings(table routeTable) {
	DefaultMetrics.ObservedValues.ConfiguredBindings.Set(float64(len(table)))
}
