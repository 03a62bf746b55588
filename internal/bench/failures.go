package bench

import (
	"errors"
	"os/exec"
	"sync"
	"time"

	"github.com/psantana5/perfmark/pkg/perf"
)

// Failure describes one failed iteration
type Failure struct {
	Iteration int     `json:"iteration" yaml:"iteration"`
	ExitCode  int     `json:"exit_code" yaml:"exit_code"`
	Error     string  `json:"error" yaml:"error"`
	ElapsedMs float64 `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// newFailure builds a Failure. ExitCode is -1 when the command did not exit
// on its own (not found, killed, cancelled).
func newFailure(iteration int, elapsed time.Duration, err error) Failure {
	f := Failure{
		Iteration: iteration,
		ExitCode:  -1,
		Error:     err.Error(),
		ElapsedMs: perf.Millis(elapsed),
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		f.ExitCode = exitErr.ExitCode()
	}
	return f
}

// FailureLog keeps the last N failures of a run
type FailureLog struct {
	mu      sync.RWMutex
	entries []Failure
	maxSize int
}

// NewFailureLog creates a log holding at most maxSize failures
func NewFailureLog(maxSize int) *FailureLog {
	return &FailureLog{
		entries: make([]Failure, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record appends f, dropping the oldest entry when full
func (l *FailureLog) Record(f Failure) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxSize <= 0 {
		return
	}
	if len(l.entries) >= l.maxSize {
		l.entries = l.entries[1:]
	}
	l.entries = append(l.entries, f)
}

// Recent returns up to n failures, newest first. n <= 0 returns all.
func (l *FailureLog) Recent(n int) []Failure {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Failure, n)
	for i := 0; i < n; i++ {
		out[i] = l.entries[len(l.entries)-1-i]
	}
	return out
}

// Len returns how many failures are held
func (l *FailureLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
