// Package perf records named timing measurements.
//
// A Registry maps a measurement name to the durations recorded for it. Each
// name is prepared with Init, then timed with paired Start/End calls. Init can
// schedule one-shot reports that print the recorded samples, or their mean,
// after a delay.
package perf

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/psantana5/perfmark/pkg/logging"
)

// Config selects the delayed reports scheduled by Init. Zero disables a report.
type Config struct {
	PrintListAfter time.Duration `json:"print_list_after,omitempty" yaml:"print_list_after,omitempty"`
	PrintAvgAfter  time.Duration `json:"print_avg_after,omitempty" yaml:"print_avg_after,omitempty"`
}

// Observer is notified after the registry state changed, outside the
// registry lock.
type Observer interface {
	MeasurementStarted(name string, at time.Time)
	MeasurementEnded(name string, startedAt, endedAt time.Time)
}

type timer struct {
	samples []time.Duration
	pending Timing
}

// Registry holds the samples of every initialized measurement.
// It is safe for concurrent use, but overlapping measurements of the same
// name are rejected.
type Registry struct {
	mu      sync.Mutex
	timers  map[string]*timer
	reports map[string][]*Report

	outMu sync.Mutex
	out   io.Writer

	now       func() time.Time
	scheduler Scheduler
	logger    *logging.Logger
	observers []Observer
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		timers:    make(map[string]*timer),
		reports:   make(map[string][]*Report),
		out:       os.Stdout,
		now:       time.Now,
		scheduler: TimerScheduler{},
		logger:    logging.NewLogger(logging.WARN, false),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Init resets name to an empty sample list and schedules the reports
// selected by cfg. Reports scheduled by an earlier Init of the same name
// stay scheduled and will print whatever name holds when they fire.
func (r *Registry) Init(name string, cfg Config) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	if old, ok := r.timers[name]; ok && len(old.samples) > 0 {
		r.logger.Debug("Measurement reinitialized, discarding samples", map[string]interface{}{
			"name":      name,
			"discarded": len(old.samples),
		})
	}
	r.timers[name] = &timer{}
	r.mu.Unlock()

	if cfg.PrintListAfter > 0 {
		r.schedule(name, ListReport, cfg.PrintListAfter)
	}
	if cfg.PrintAvgAfter > 0 {
		r.schedule(name, AvgReport, cfg.PrintAvgAfter)
	}
	return nil
}

func (r *Registry) schedule(name string, kind ReportKind, delay time.Duration) {
	rep := &Report{Kind: kind, Name: name, Delay: delay}

	r.mu.Lock()
	r.reports[name] = append(r.reports[name], rep)
	rep.cancel = r.scheduler.AfterFunc(delay, func() { r.fire(rep) })
	r.mu.Unlock()
}

// fire prints rep against the samples name holds right now.
func (r *Registry) fire(rep *Report) {
	if !rep.done.CompareAndSwap(false, true) {
		return
	}

	r.mu.Lock()
	var samples []float64
	if t, ok := r.timers[rep.Name]; ok {
		samples = millis(t.samples)
	}
	r.dropReport(rep)
	r.mu.Unlock()

	r.outMu.Lock()
	fmt.Fprintln(r.out, rep.Line(samples))
	r.outMu.Unlock()
}

// dropReport removes rep from the pending list. Caller holds r.mu.
func (r *Registry) dropReport(rep *Report) {
	list := r.reports[rep.Name]
	for i, p := range list {
		if p == rep {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.reports, rep.Name)
		return
	}
	r.reports[rep.Name] = list
}

// Start records the start timestamp of a new measurement of name.
func (r *Registry) Start(name string) error {
	r.mu.Lock()
	t, ok := r.timers[name]
	if !ok {
		r.mu.Unlock()
		return r.misuse(ErrNotInitialized, name)
	}
	if t.pending.Pending() {
		r.mu.Unlock()
		return r.misuse(ErrAlreadyStarted, name)
	}
	at := r.now()
	t.pending = Timing{StartedAt: at}
	r.mu.Unlock()

	for _, o := range r.observers {
		o.MeasurementStarted(name, at)
	}
	return nil
}

// End completes the pending measurement of name, appends the elapsed
// duration to its samples and returns it.
func (r *Registry) End(name string) (time.Duration, error) {
	r.mu.Lock()
	t, ok := r.timers[name]
	if !ok {
		r.mu.Unlock()
		return 0, r.misuse(ErrNotInitialized, name)
	}
	if !t.pending.Pending() {
		r.mu.Unlock()
		return 0, r.misuse(ErrNotStarted, name)
	}
	endedAt := r.now()
	elapsed := t.pending.Complete(endedAt)
	startedAt := t.pending.StartedAt
	t.samples = append(t.samples, elapsed)
	t.pending = Timing{}
	r.mu.Unlock()

	for _, o := range r.observers {
		o.MeasurementEnded(name, startedAt, endedAt)
	}
	return elapsed, nil
}

func (r *Registry) misuse(err error, name string) error {
	r.logger.Warn("Measurement misuse: "+err.Error(), map[string]interface{}{"name": name})
	return nameErr(err, name)
}

// Samples returns a copy of the completed samples of name.
func (r *Registry) Samples(name string) ([]time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.timers[name]
	if !ok {
		return nil, nameErr(ErrNotInitialized, name)
	}
	out := make([]time.Duration, len(t.samples))
	copy(out, t.samples)
	return out, nil
}

// SamplesMillis returns the completed samples of name in milliseconds.
func (r *Registry) SamplesMillis(name string) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.timers[name]
	if !ok {
		return nil, nameErr(ErrNotInitialized, name)
	}
	return millis(t.samples), nil
}

// Pending reports whether name has a start without a matching end.
func (r *Registry) Pending(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.timers[name]
	return ok && t.pending.Pending()
}

// Names returns every initialized name, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.timers))
	for n := range r.timers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot summarizes name.
func (r *Registry) Snapshot(name string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.timers[name]
	if !ok {
		return Snapshot{}, nameErr(ErrNotInitialized, name)
	}
	return newSnapshot(name, t), nil
}

// Snapshots summarizes every initialized name, sorted by name.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.timers))
	for n, t := range r.timers {
		out = append(out, newSnapshot(n, t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PendingReports returns how many reports of name have not fired yet.
func (r *Registry) PendingReports(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports[name])
}

// CancelReports cancels every pending report of name and returns how many
// were stopped before firing.
func (r *Registry) CancelReports(name string) int {
	r.mu.Lock()
	list := r.reports[name]
	delete(r.reports, name)
	r.mu.Unlock()

	stopped := 0
	for _, rep := range list {
		if rep.Cancel() {
			stopped++
		}
	}
	return stopped
}

// Close cancels every pending report. Samples stay readable.
func (r *Registry) Close() error {
	r.mu.Lock()
	names := make([]string, 0, len(r.reports))
	for n := range r.reports {
		names = append(names, n)
	}
	r.mu.Unlock()

	for _, n := range names {
		r.CancelReports(n)
	}
	return nil
}

func millis(samples []time.Duration) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = Millis(s)
	}
	return out
}
