package notify

import "time"

// WithClock replaces the time source.
func (e *Emitter) WithClock(now func() time.Time) *Emitter {
	e.now = now
	return e
}
