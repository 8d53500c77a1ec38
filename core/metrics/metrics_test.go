package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	m := New()
	m.ActionHandled("add", "ok")
	m.ActionHandled("add", "ok")
	m.ActionHandled("unknown", "unknown")
	m.UpdateHandled("callback", "ok", 10*time.Millisecond)
	m.DeliveryFinished("fail", time.Second)
	m.CheckoutFinished("completed", 300*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.actions.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("unknown", "unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.updates.WithLabelValues("callback", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("fail")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.checkouts))
}

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	m := New()
	m.GaugeFunc("sessions", "Live sessions.", func() float64 { return 3 })
	m.ActionHandled("cart", "ok")

	var unhealthy atomic.Bool
	srv := httptest.NewServer(NewHandler(m, HealthCheck{
		Name: "redis",
		Check: func(context.Context) error {
			if !unhealthy.Load() {
				return nil
			}
			return errors.New("connection refused")
		},
	}))
	defer srv.Close()

	body := get(t, srv.URL+"/metrics", http.StatusOK)
	assert.Contains(t, body, `shopbot_actions_total{outcome="ok",verb="cart"} 1`)
	assert.Contains(t, body, "shopbot_sessions 3")

	assert.JSONEq(t, `{"redis":"ok"}`, get(t, srv.URL+"/healthz", http.StatusOK))
	unhealthy.Store(true)
	assert.JSONEq(t, `{"redis":"connection refused"}`, get(t, srv.URL+"/healthz", http.StatusServiceUnavailable))
}

func TestServeStopsWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, NewHandler(New())) }()

	get(t, "http://"+ln.Addr().String()+"/healthz", http.StatusOK)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func get(t *testing.T, url string, wantStatus int) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}
