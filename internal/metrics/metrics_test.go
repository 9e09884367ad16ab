package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	m := New()

	m.ConnectionOpened(true)
	m.ConnectionOpened(false)
	m.ConnectionClosed()
	m.MessagePersisted()
	m.MessagePersisted()
	m.MessageRejected(RejectEmpty)
	m.StoreFailure()
	m.BroadcastDropped()
	m.ObserveHTTP(http.MethodGet, "/messages", http.StatusOK, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsTotal.WithLabelValues("anonymous")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesPersisted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesRejected.WithLabelValues(RejectEmpty)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcastDrops))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/messages", "200")))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnectionOpened(false)
		m.ConnectionClosed()
		m.MessagePersisted()
		m.MessageRejected(RejectMalformed)
		m.StoreFailure()
		m.BroadcastDropped()
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.MessagePersisted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gophchat_messages_persisted_total 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
