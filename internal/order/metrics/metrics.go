package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the order module.
// Tracks order creation, terminal outcomes, and registry call latency.
type Metrics struct {
	OrdersCreated    *prometheus.CounterVec
	OrdersCompleted  *prometheus.CounterVec
	OrdersFailed     *prometheus.CounterVec
	UnknownState     prometheus.Counter
	RegistryDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance with all order module metrics registered.
func New() *Metrics {
	return &Metrics{
		OrdersCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_orders_created_total",
			Help: "Total number of orders created, by kind",
		}, []string{"kind"}),
		OrdersCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_orders_completed_total",
			Help: "Total number of orders reaching COMPLETED, by kind",
		}, []string{"kind"}),
		OrdersFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_orders_failed_total",
			Help: "Total number of orders reaching FAILED, by kind",
		}, []string{"kind"}),
		UnknownState: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_orders_unknown_state_total",
			Help: "Orders observed in an unrecognized state and surfaced as processing",
		}),
		RegistryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registrar_registry_call_duration_seconds",
			Help:    "Duration of registry RPC calls made while processing orders",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),
	}
}

func (m *Metrics) ObserveCreated(kind string)   { m.OrdersCreated.WithLabelValues(kind).Inc() }
func (m *Metrics) ObserveCompleted(kind string) { m.OrdersCompleted.WithLabelValues(kind).Inc() }
func (m *Metrics) ObserveFailed(kind string)    { m.OrdersFailed.WithLabelValues(kind).Inc() }
func (m *Metrics) ObserveUnknownState()         { m.UnknownState.Inc() }

func (m *Metrics) ObserveRegistryCall(method string, seconds float64) {
	m.RegistryDuration.WithLabelValues(method).Observe(seconds)
}
