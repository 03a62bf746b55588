package perf

import "time"

// Cancel stops a scheduled function. Stop returns false if the function
// already ran or was already stopped.
type Cancel interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Cancel
}

// TimerScheduler schedules on the runtime timer heap.
type TimerScheduler struct{}

// AfterFunc implements Scheduler with time.AfterFunc.
func (TimerScheduler) AfterFunc(d time.Duration, f func()) Cancel {
	return time.AfterFunc(d, f)
}
