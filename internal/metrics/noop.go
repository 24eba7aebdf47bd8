package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveHTTPRequest(string, string, int, time.Duration) {}
func (n *NoopRecorder) IncMutation(string, string)                           {}
func (n *NoopRecorder) IncNotificationPersisted()                            {}
func (n *NoopRecorder) IncNotificationPersistFailed()                        {}
func (n *NoopRecorder) IncBroadcastPublished(string)                         {}
func (n *NoopRecorder) IncBroadcastDropped(string)                           {}
func (n *NoopRecorder) IncBroadcastRelayed(string)                           {}
func (n *NoopRecorder) IncSocketConnected()                                  {}
func (n *NoopRecorder) IncSocketDisconnected()                               {}
func (n *NoopRecorder) IncRateLimited()                                      {}
