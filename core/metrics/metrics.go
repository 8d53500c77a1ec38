// Package metrics exposes Prometheus collectors for the bot and the ops
// HTTP server that serves them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "shopbot"

// Metrics owns a private registry so tests and multiple instances never
// collide on the global one.
type Metrics struct {
	reg *prometheus.Registry

	updates        *prometheus.CounterVec
	updateDuration *prometheus.HistogramVec
	actions        *prometheus.CounterVec
	checkouts      *prometheus.HistogramVec
	deliveries     *prometheus.CounterVec
	deliveryTime   prometheus.Histogram
}

// New registers every collector, plus Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Telegram updates handled, by kind and status.",
		}, []string{"kind", "status"}),
		updateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_duration_seconds",
			Help:      "Time spent handling one Telegram update.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Storefront actions, by verb and outcome.",
		}, []string{"verb", "outcome"}),
		checkouts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Checkout attempts including operator fan-out, by outcome.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}, []string{"outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_deliveries_total",
			Help:      "Order notifications sent to operators, by status.",
		}, []string{"status"}),
		deliveryTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_delivery_duration_seconds",
			Help:      "Time to deliver one order notification.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.updates,
		m.updateDuration,
		m.actions,
		m.checkouts,
		m.deliveries,
		m.deliveryTime,
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// UpdateHandled records one Telegram update.
func (m *Metrics) UpdateHandled(kind, status string, elapsed time.Duration) {
	m.updates.WithLabelValues(kind, status).Inc()
	m.updateDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ActionHandled records one storefront action.
func (m *Metrics) ActionHandled(verb, outcome string) {
	m.actions.WithLabelValues(verb, outcome).Inc()
}

// CheckoutFinished records one checkout attempt.
func (m *Metrics) CheckoutFinished(outcome string, elapsed time.Duration) {
	m.checkouts.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// DeliveryFinished records one operator notification.
func (m *Metrics) DeliveryFinished(status string, elapsed time.Duration) {
	m.deliveries.WithLabelValues(status).Inc()
	m.deliveryTime.Observe(elapsed.Seconds())
}

// GaugeFunc registers a gauge sampled from fn at scrape time, e.g. the
// number of live sessions.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// CounterFunc registers a counter sampled from fn at scrape time.
func (m *Metrics) CounterFunc(name, help string, fn func() float64) {
	m.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}
