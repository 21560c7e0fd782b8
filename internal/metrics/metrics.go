// Package metrics exposes simulator counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the simulator's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ordersSubmitted *prometheus.CounterVec
	ordersRejected  *prometheus.CounterVec
	ordersFilled    *prometheus.CounterVec
	ordersCancelled prometheus.Counter
	ticks           prometheus.Counter
	pendingOrders   prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ordersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "papertrade",
			Name:      "orders_submitted_total",
			Help:      "Orders accepted into the pending set.",
		}, []string{"direction", "kind"}),
		ordersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "papertrade",
			Name:      "orders_rejected_total",
			Help:      "Order submissions rejected at admission.",
		}, []string{"reason"}),
		ordersFilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "papertrade",
			Name:      "orders_filled_total",
			Help:      "Orders executed by the tick scheduler.",
		}, []string{"direction", "kind"}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrade",
			Name:      "orders_cancelled_total",
			Help:      "Pending orders cancelled by clients.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrade",
			Name:      "ticks_total",
			Help:      "Simulated clock advances.",
		}),
		pendingOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "papertrade",
			Name:      "pending_orders",
			Help:      "Orders currently waiting for a fill.",
		}),
	}
	m.registry.MustRegister(
		m.ordersSubmitted,
		m.ordersRejected,
		m.ordersFilled,
		m.ordersCancelled,
		m.ticks,
		m.pendingOrders,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OrderSubmitted(direction, kind string) {
	if m == nil {
		return
	}
	m.ordersSubmitted.WithLabelValues(direction, kind).Inc()
	m.pendingOrders.Inc()
}

func (m *Metrics) OrderRejected(reason string) {
	if m == nil {
		return
	}
	m.ordersRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) OrderFilled(direction, kind string) {
	if m == nil {
		return
	}
	m.ordersFilled.WithLabelValues(direction, kind).Inc()
	m.pendingOrders.Dec()
}

func (m *Metrics) OrderCancelled() {
	if m == nil {
		return
	}
	m.ordersCancelled.Inc()
	m.pendingOrders.Dec()
}

func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

// SetPending overwrites the pending-orders gauge, used after a restore.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pendingOrders.Set(float64(n))
}
