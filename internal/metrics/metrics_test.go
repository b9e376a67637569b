package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.OrderCreated()
	m.OrderCreated()
	m.OrderCancelled()
	m.StockRejected()
	m.StatusTransition("Shipped")
	m.ObserveHTTP("GET", "/api/orders/:id", "200", 0.01)
	m.StockReconcileFailed("retake")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersCancelled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stockRejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusTransitions.WithLabelValues("Shipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/orders/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stockReconcile.WithLabelValues("retake")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.stockReconcile.WithLabelValues("release")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.OrderCreated()
		m.OrderCancelled()
		m.StockRejected()
		m.StatusTransition("Confirmed")
		m.StockReconcileFailed("release")
		m.ObserveHTTP("GET", "/", "200", 0)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.OrderCreated()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "storefront_orders_created_total 1")
}
