package executor

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for ledger operations.
type Metrics struct {
	Operations  *prometheus.CounterVec
	Latency     *prometheus.HistogramVec
	Events      *prometheus.CounterVec
	TotalSupply prometheus.Gauge
}

// NewMetrics registers the executor collectors on reg. Passing a fresh
// registry per instance lets several ledger instances share a process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mintgate_operations_total",
			Help: "Ledger operations by name and outcome (ok or error code)",
		}, []string{"op", "outcome"}),
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mintgate_operation_duration_seconds",
			Help:    "Ledger operation latency including the transaction commit",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op"}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mintgate_events_total",
			Help: "Committed ledger events by name",
		}, []string{"event"}),
		TotalSupply: f.NewGauge(prometheus.GaugeOpts{
			Name: "mintgate_total_supply",
			Help: "Total supply after the last committed operation, in local units (float approximation)",
		}),
	}
}

func (m *Metrics) observe(op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.Latency.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) incEvent(name string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(name).Inc()
}

func (m *Metrics) setSupply(supply *uint256.Int) {
	if m == nil || supply == nil {
		return
	}
	f, _ := new(big.Float).SetInt(supply.ToBig()).Float64()
	m.TotalSupply.Set(f)
}
