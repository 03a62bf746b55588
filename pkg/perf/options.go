package perf

import (
	"io"
	"time"

	"github.com/psantana5/perfmark/pkg/logging"
)

// Option configures a Registry
type Option func(r *Registry)

// WithClock replaces time.Now. The clock must never return the zero time.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithScheduler replaces the timer used for delayed reports
func WithScheduler(s Scheduler) Option {
	return func(r *Registry) {
		r.scheduler = s
	}
}

// WithOutput sets where reports are printed (default os.Stdout)
func WithOutput(w io.Writer) Option {
	return func(r *Registry) {
		r.out = w
	}
}

// WithLogger sets the logger used for misuse warnings
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithObserver adds an observer notified on every start and end.
// May be given more than once.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		r.observers = append(r.observers, o)
	}
}
