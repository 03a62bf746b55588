package perf

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/psantana5/perfmark/pkg/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// manualScheduler fires scheduled functions only when Advance passes
// their deadline.
type manualScheduler struct {
	mu      sync.Mutex
	elapsed time.Duration
	tasks   []*manualTask
}

type manualTask struct {
	s       *manualScheduler
	due     time.Duration
	f       func()
	stopped bool
	ran     bool
}

func (t *manualTask) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.ran {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Cancel {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{s: s, due: s.elapsed + d, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.elapsed += d
	var due []*manualTask
	for _, t := range s.tasks {
		if !t.stopped && !t.ran && t.due <= s.elapsed {
			t.ran = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].due < due[j].due })
	for _, t := range due {
		t.f()
	}
}

type harness struct {
	reg   *Registry
	clock *fakeClock
	sched *manualScheduler
	out   *bytes.Buffer
}

func newHarness(opts ...Option) *harness {
	h := &harness{
		clock: newFakeClock(),
		sched: &manualScheduler{},
		out:   &bytes.Buffer{},
	}
	base := []Option{
		WithClock(h.clock.Now),
		WithScheduler(h.sched),
		WithOutput(h.out),
		WithLogger(logging.Discard()),
	}
	h.reg = NewRegistry(append(base, opts...)...)
	return h
}

// measure runs one Start/End pair taking d on the fake clock.
func (h *harness) measure(name string, d time.Duration) error {
	if err := h.reg.Start(name); err != nil {
		return err
	}
	h.clock.Advance(d)
	_, err := h.reg.End(name)
	return err
}
