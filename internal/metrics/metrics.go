// Package metrics exposes Prometheus metrics for the agent. All methods are
// safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scout"

type Metrics struct {
	registry *prometheus.Registry

	// Agent
	Cycles        prometheus.Counter
	CycleErrors   prometheus.Counter
	CycleDuration prometheus.Histogram

	// Discovery and decisions
	TokensDiscovered prometheus.Counter
	Decisions        *prometheus.CounterVec
	Trades           *prometheus.CounterVec
	BuysBlocked      prometheus.Counter

	// Portfolio
	PortfolioValue prometheus.Gauge
	OpenPositions  prometheus.Gauge
	Drawdown       prometheus.Gauge

	// Chain
	ScanChunkFailures prometheus.Counter
	RPCLatency        *prometheus.HistogramVec
}

// New registers every metric on a private registry, along with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "cycles_total",
			Help:      "Total number of agent cycles run",
		}),
		CycleErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "cycle_errors_total",
			Help:      "Total number of agent cycles that failed or panicked",
		}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "cycle_duration_seconds",
			Help:      "Agent cycle duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		TokensDiscovered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "tokens_discovered_total",
			Help:      "Total number of new tokens discovered",
		}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "decisions_total",
			Help:      "Investment decisions by action",
		}, []string{"action"}),
		Trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_total",
			Help:      "Executed trades by action and result",
		}, []string{"action", "result"}),
		BuysBlocked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "buys_blocked_total",
			Help:      "Buys refused by the pre-trade check",
		}),

		PortfolioValue: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "total_value",
			Help:      "Total portfolio value in the base asset",
		}),
		OpenPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "open_positions",
			Help:      "Number of open holdings",
		}),
		Drawdown: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "drawdown_percent",
			Help:      "Drawdown from the starting balance in percent",
		}),

		ScanChunkFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "scan_chunk_failures_total",
			Help:      "Event scan chunks that failed and were skipped",
		}),
		RPCLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_latency_seconds",
			Help:      "RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) CycleDone(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.Cycles.Inc()
	m.CycleDuration.Observe(d.Seconds())
	if err != nil {
		m.CycleErrors.Inc()
	}
}

func (m *Metrics) Discovered(n int) {
	if m == nil {
		return
	}
	m.TokensDiscovered.Add(float64(n))
}

func (m *Metrics) Decision(action string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(action).Inc()
}

func (m *Metrics) Trade(action string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.Trades.WithLabelValues(action, result).Inc()
}

func (m *Metrics) BuyBlocked() {
	if m == nil {
		return
	}
	m.BuysBlocked.Inc()
}

func (m *Metrics) Portfolio(total float64, positions int, drawdown float64) {
	if m == nil {
		return
	}
	m.PortfolioValue.Set(total)
	m.OpenPositions.Set(float64(positions))
	m.Drawdown.Set(drawdown)
}

// ChunkFailed matches the gateway's chunk error callback.
func (m *Metrics) ChunkFailed(_, _ uint64, _ error) {
	if m == nil {
		return
	}
	m.ScanChunkFailures.Inc()
}

// ObserveRPC matches the client's latency observer.
func (m *Metrics) ObserveRPC(method string, d time.Duration) {
	if m == nil {
		return
	}
	m.RPCLatency.WithLabelValues(method).Observe(d.Seconds())
}
