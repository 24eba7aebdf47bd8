// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
type Recorder interface {
	// HTTP metrics
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)

	// Mutation metrics. entity: "list" or "expense"; action: "add", "update", "remove".
	IncMutation(entity, action string)

	// Notification pipeline metrics
	IncNotificationPersisted()
	IncNotificationPersistFailed()

	// Broadcast metrics
	IncBroadcastPublished(topic string)
	IncBroadcastDropped(topic string)
	IncBroadcastRelayed(topic string)
	IncSocketConnected()
	IncSocketDisconnected()

	// Rate limiting
	IncRateLimited()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
