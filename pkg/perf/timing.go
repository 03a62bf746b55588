package perf

import "time"

// Timing is the pending slot of a measurement: the start timestamp of a
// start that has not been matched by an end yet.
type Timing struct {
	StartedAt   time.Time
	CompletedAt time.Time
}

// Pending reports whether a start is in flight.
func (t Timing) Pending() bool {
	return !t.StartedAt.IsZero() && t.CompletedAt.IsZero()
}

// Complete records completion time and returns the elapsed duration.
// A clock that went backwards yields zero, never a negative sample.
func (t *Timing) Complete(now time.Time) time.Duration {
	t.CompletedAt = now
	return t.Duration()
}

// Duration returns the elapsed time between start and completion
func (t Timing) Duration() time.Duration {
	if t.CompletedAt.IsZero() {
		return 0
	}
	d := t.CompletedAt.Sub(t.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}
