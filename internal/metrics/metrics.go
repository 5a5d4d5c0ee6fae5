// Package metrics exposes ledger and reconciliation counters for Prometheus.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wallet_ledger"

// Metrics holds every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry

	entriesTotal      *prometheus.CounterVec
	entryAmountTotal  *prometheus.CounterVec
	outcomesTotal     *prometheus.CounterVec
	lostRacesTotal    *prometheus.CounterVec
	gatewayCalls      *prometheus.CounterVec
	gatewayLatency    *prometheus.HistogramVec
	sweeperRunsTotal  *prometheus.CounterVec
	sweeperLastRun    prometheus.Gauge
	sweeperLastPicked prometheus.Gauge
	httpRequests      *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
}

// New registers all collectors on a private registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		entriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "entries_total",
				Help:      "Ledger entries appended, by entry type and source.",
			},
			[]string{"type", "source"},
		),
		entryAmountTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "amount_paise_total",
				Help:      "Sum of ledger entry amounts in paise, by entry type.",
			},
			[]string{"type"},
		),
		outcomesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconciliation",
				Name:      "outcomes_total",
				Help:      "Recharge reconciliation outcomes by channel.",
			},
			[]string{"channel", "outcome"},
		),
		lostRacesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconciliation",
				Name:      "lost_races_total",
				Help:      "Conditional status updates that matched no row because another worker finished first.",
			},
			[]string{"channel"},
		),
		gatewayCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Payment gateway calls by operation and result.",
			},
			[]string{"operation", "result"},
		),
		gatewayLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Payment gateway call latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		sweeperRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweeper",
				Name:      "runs_total",
				Help:      "Stale order sweeps by result.",
			},
			[]string{"result"},
		),
		sweeperLastRun: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sweeper",
				Name:      "last_run_unix",
				Help:      "Unix time of the most recent sweep.",
			},
		),
		sweeperLastPicked: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sweeper",
				Name:      "last_picked",
				Help:      "Stale orders picked up by the most recent sweep.",
			},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveEntry(entryType, source string, amount int64) {
	if m == nil {
		return
	}
	m.entriesTotal.WithLabelValues(entryType, source).Inc()
	m.entryAmountTotal.WithLabelValues(entryType).Add(float64(amount))
}

func (m *Metrics) ObserveOutcome(channel, outcome string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) ObserveLostRace(channel string) {
	if m == nil {
		return
	}
	m.lostRacesTotal.WithLabelValues(channel).Inc()
}

func (m *Metrics) ObserveGatewayCall(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.gatewayCalls.WithLabelValues(operation, result).Inc()
	m.gatewayLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveSweep(picked int, err error) {
	if m == nil {
		return
	}
	m.sweeperLastRun.Set(float64(time.Now().UTC().Unix()))
	m.sweeperLastPicked.Set(float64(picked))
	if err != nil {
		m.sweeperRunsTotal.WithLabelValues("error").Inc()
		return
	}
	m.sweeperRunsTotal.WithLabelValues("success").Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
