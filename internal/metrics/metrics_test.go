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
	m.OrderSubmitted("buy", "market")
	m.OrderSubmitted("sell", "limit")
	m.OrderFilled("buy", "market")
	m.OrderCancelled()
	m.OrderRejected("insufficient_funds")
	m.Tick()
	m.Tick()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersSubmitted.WithLabelValues("buy", "market")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersFilled.WithLabelValues("buy", "market")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersRejected.WithLabelValues("insufficient_funds")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ticks))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.pendingOrders))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.OrderSubmitted("buy", "market")
	m.Tick()
	m.SetPending(3)
	assert.NotNil(t, m.Handler())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Tick()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "papertrade_ticks_total 1")
}
