package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	HTTPRequests              uint64
	Mutations                 map[string]uint64 // keyed "entity/action"
	NotificationsPersisted    uint64
	NotificationPersistFailed uint64
	BroadcastsPublished       uint64
	BroadcastsDropped         uint64
	BroadcastsRelayed         uint64
	SocketConnections         int64
	RateLimited               uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	httpRequests              uint64
	notificationsPersisted    uint64
	notificationPersistFailed uint64
	broadcastsPublished       uint64
	broadcastsDropped         uint64
	broadcastsRelayed         uint64
	socketConnections         int64
	rateLimited               uint64

	mu        sync.Mutex
	mutations map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{mutations: make(map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	mutations := make(map[string]uint64, len(m.mutations))
	for k, v := range m.mutations {
		mutations[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		HTTPRequests:              atomic.LoadUint64(&m.httpRequests),
		Mutations:                 mutations,
		NotificationsPersisted:    atomic.LoadUint64(&m.notificationsPersisted),
		NotificationPersistFailed: atomic.LoadUint64(&m.notificationPersistFailed),
		BroadcastsPublished:       atomic.LoadUint64(&m.broadcastsPublished),
		BroadcastsDropped:         atomic.LoadUint64(&m.broadcastsDropped),
		BroadcastsRelayed:         atomic.LoadUint64(&m.broadcastsRelayed),
		SocketConnections:         atomic.LoadInt64(&m.socketConnections),
		RateLimited:               atomic.LoadUint64(&m.rateLimited),
	}
}

// ObserveHTTPRequest counts a served request.
func (m *InMemoryRecorder) ObserveHTTPRequest(string, string, int, time.Duration) {
	atomic.AddUint64(&m.httpRequests, 1)
}

// IncMutation counts a successful list or expense mutation.
func (m *InMemoryRecorder) IncMutation(entity, action string) {
	m.mu.Lock()
	m.mutations[entity+"/"+action]++
	m.mu.Unlock()
}

// IncNotificationPersisted increments the persisted notification counter.
func (m *InMemoryRecorder) IncNotificationPersisted() {
	atomic.AddUint64(&m.notificationsPersisted, 1)
}

// IncNotificationPersistFailed increments the failed persist counter.
func (m *InMemoryRecorder) IncNotificationPersistFailed() {
	atomic.AddUint64(&m.notificationPersistFailed, 1)
}

// IncBroadcastPublished increments the published event counter.
func (m *InMemoryRecorder) IncBroadcastPublished(string) {
	atomic.AddUint64(&m.broadcastsPublished, 1)
}

// IncBroadcastDropped increments the dropped delivery counter.
func (m *InMemoryRecorder) IncBroadcastDropped(string) {
	atomic.AddUint64(&m.broadcastsDropped, 1)
}

// IncBroadcastRelayed increments the counter of events received from other nodes.
func (m *InMemoryRecorder) IncBroadcastRelayed(string) {
	atomic.AddUint64(&m.broadcastsRelayed, 1)
}

// IncSocketConnected increments the live connection gauge.
func (m *InMemoryRecorder) IncSocketConnected() {
	atomic.AddInt64(&m.socketConnections, 1)
}

// IncSocketDisconnected decrements the live connection gauge.
func (m *InMemoryRecorder) IncSocketDisconnected() {
	atomic.AddInt64(&m.socketConnections, -1)
}

// IncRateLimited increments the rejected request counter.
func (m *InMemoryRecorder) IncRateLimited() {
	atomic.AddUint64(&m.rateLimited, 1)
}
