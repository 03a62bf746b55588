package perf

import (
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// ReportKind selects what a scheduled report prints.
type ReportKind int

const (
	// ListReport prints every completed sample.
	ListReport ReportKind = iota
	// AvgReport prints the arithmetic mean of the completed samples.
	AvgReport
)

func (k ReportKind) String() string {
	switch k {
	case ListReport:
		return "list"
	case AvgReport:
		return "avg"
	default:
		return "unknown"
	}
}

// Report is a one-shot report scheduled by Init.
type Report struct {
	Kind  ReportKind
	Name  string
	Delay time.Duration

	cancel Cancel
	done   atomic.Bool
}

// Cancel stops the report. It returns false if the report already fired
// or was cancelled before.
func (r *Report) Cancel() bool {
	if r.cancel == nil || r.done.Load() {
		return false
	}
	if !r.cancel.Stop() {
		return false
	}
	r.done.Store(true)
	return true
}

// Fired reports whether the report has already printed or was cancelled.
func (r *Report) Fired() bool {
	return r.done.Load()
}

// Line renders the report for the given samples (milliseconds).
func (r *Report) Line(samples []float64) string {
	if r.Kind == AvgReport {
		return FormatAverage(r.Name, samples)
	}
	return FormatList(r.Name, samples)
}

// Millis converts d to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Mean returns the arithmetic mean of samples, NaN when there are none.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// FormatMean formats v with exactly four fractional digits and a comma as
// the decimal separator. NaN renders as "NaN".
func FormatMean(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', 4, 64), ".", ",", 1)
}

// FormatList renders "<name> [<ms> <ms> ...]".
func FormatList(name string, samples []float64) string {
	parts := make([]string, len(samples))
	for i, s := range samples {
		parts[i] = strconv.FormatFloat(s, 'f', -1, 64)
	}
	return name + " [" + strings.Join(parts, " ") + "]"
}

// FormatAverage renders "<name>: <mean>".
func FormatAverage(name string, samples []float64) string {
	return name + ": " + FormatMean(Mean(samples))
}
