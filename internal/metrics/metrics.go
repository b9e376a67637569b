// Package metrics holds the Prometheus collectors of the storefront service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics is safe to use as a nil pointer; every recording method is then a
// no-op.
type Metrics struct {
	registry *prometheus.Registry

	ordersCreated     prometheus.Counter
	ordersCancelled   prometheus.Counter
	statusTransitions *prometheus.CounterVec
	stockRejections   prometheus.Counter
	stockReconcile    *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders successfully created.",
		}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled.",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Order status changes by target status.",
		}, []string{"status"}),
		stockRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_rejections_total",
			Help:      "Order creations rejected for insufficient stock.",
		}),
		stockReconcile: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_reconcile_failures_total",
			Help:      "Compensating stock writes that failed and need manual reconciliation.",
		}, []string{"operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ordersCreated,
		m.ordersCancelled,
		m.statusTransitions,
		m.stockRejections,
		m.stockReconcile,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) OrderCancelled() {
	if m == nil {
		return
	}
	m.ordersCancelled.Inc()
}

func (m *Metrics) StatusTransition(status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) StockRejected() {
	if m == nil {
		return
	}
	m.stockRejections.Inc()
}

// StockReconcileFailed counts a compensating stock write that failed.
// operation is "release" (create rollback) or "retake" (cancel rollback).
func (m *Metrics) StockReconcileFailed(operation string) {
	if m == nil {
		return
	}
	m.stockReconcile.WithLabelValues(operation).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}
