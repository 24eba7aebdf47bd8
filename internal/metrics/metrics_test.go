package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRecorder_Snapshot(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncMutation("list", "add")
	m.IncMutation("list", "add")
	m.IncMutation("expense", "remove")
	m.IncNotificationPersisted()
	m.IncNotificationPersistFailed()
	m.IncBroadcastPublished("notification")
	m.IncBroadcastDropped("notification")
	m.IncSocketConnected()
	m.IncSocketConnected()
	m.IncSocketDisconnected()
	m.ObserveHTTPRequest(http.MethodGet, "/api/expenses", 200, time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.Mutations["list/add"])
	assert.Equal(t, uint64(1), snap.Mutations["expense/remove"])
	assert.Equal(t, uint64(1), snap.NotificationsPersisted)
	assert.Equal(t, uint64(1), snap.NotificationPersistFailed)
	assert.Equal(t, uint64(1), snap.BroadcastsPublished)
	assert.Equal(t, uint64(1), snap.BroadcastsDropped)
	assert.Equal(t, int64(1), snap.SocketConnections)
	assert.Equal(t, uint64(1), snap.HTTPRequests)

	// Snapshot maps are copies.
	snap.Mutations["list/add"] = 100
	assert.Equal(t, uint64(2), m.Snapshot().Mutations["list/add"])
}

func TestPrometheusRecorder(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.IncMutation("expense", "add")
	p.IncBroadcastPublished("notification")
	p.IncSocketConnected()

	assert.Equal(t, 1.0, testutil.ToFloat64(p.mutations.WithLabelValues("expense", "add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.socketConnections))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `expensync_mutations_total{action="add",entity="expense"} 1`))
	assert.True(t, strings.Contains(body, `expensync_broadcast_events_total{outcome="published",topic="notification"} 1`))
}

func TestNoopRecorder(t *testing.T) {
	t.Parallel()

	r := NewNoop()
	assert.NotPanics(t, func() {
		r.IncMutation("list", "update")
		r.IncSocketConnected()
		r.ObserveHTTPRequest(http.MethodPost, "/", 201, time.Second)
	})
}
