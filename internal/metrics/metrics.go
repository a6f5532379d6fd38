// Package metrics holds the prometheus collectors of the settlement engine
// and the RPC server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "presale"

// Metrics owns a private registry so tests and embedded engines don't
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	settlements *prometheus.CounterVec
	failures    *prometheus.CounterVec
	raisedUSD   *prometheus.GaugeVec
	tokensSold  *prometheus.GaugeVec
	buyDuration prometheus.Histogram

	rpcRequests *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	wsClients   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.settlements = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sale",
		Name:      "settlements_total",
		Help:      "Settled purchases by round and payment asset.",
	}, []string{"round", "asset"})

	m.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sale",
		Name:      "failed_purchases_total",
		Help:      "Rejected purchases by reason.",
	}, []string{"reason"})

	m.raisedUSD = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sale",
		Name:      "raised_usd",
		Help:      "USD raised per round.",
	}, []string{"round"})

	m.tokensSold = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sale",
		Name:      "tokens_sold",
		Help:      "Whole tokens allocated per round, bonuses included.",
	}, []string{"round"})

	m.buyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sale",
		Name:      "buy_duration_seconds",
		Help:      "Time to settle or reject a purchase.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})

	m.rpcRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "JSON-RPC requests by method and outcome.",
	}, []string{"method", "status"})

	m.rpcDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "request_duration_seconds",
		Help:      "JSON-RPC request duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	m.wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "websocket_clients",
		Help:      "Connected websocket subscribers.",
	})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.settlements, m.failures, m.raisedUSD, m.tokensSold, m.buyDuration,
		m.rpcRequests, m.rpcDuration, m.wsClients,
	)
	return m
}

// Nop-safe helpers: every method accepts a nil receiver.

func (m *Metrics) Settled(round uint64, asset string, raisedUSD, tokensSold float64, took time.Duration) {
	if m == nil {
		return
	}
	r := strconv.FormatUint(round, 10)
	m.settlements.WithLabelValues(r, asset).Inc()
	m.raisedUSD.WithLabelValues(r).Set(raisedUSD)
	m.tokensSold.WithLabelValues(r).Set(tokensSold)
	m.buyDuration.Observe(took.Seconds())
}

func (m *Metrics) Rejected(reason string, took time.Duration) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(reason).Inc()
	m.buyDuration.Observe(took.Seconds())
}

func (m *Metrics) RPC(method, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, status).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(took.Seconds())
}

func (m *Metrics) WebsocketClients(delta float64) {
	if m == nil {
		return
	}
	m.wsClients.Add(delta)
}

// Registry exposes the collectors for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
