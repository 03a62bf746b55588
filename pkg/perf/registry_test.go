package perf

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/psantana5/perfmark/pkg/logging"
)

func TestPairedMeasurements(t *testing.T) {
	h := newHarness()
	if err := h.reg.Init("x", Config{}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for i := 1; i <= 5; i++ {
		if err := h.measure("x", time.Duration(i)*time.Millisecond); err != nil {
			t.Fatalf("measure %d: %v", i, err)
		}
	}

	samples, err := h.reg.SamplesMillis("x")
	if err != nil {
		t.Fatalf("SamplesMillis: %v", err)
	}
	want := []float64{1, 2, 3, 4, 5}
	if len(samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(samples), len(want))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, samples[i], want[i])
		}
	}
}

func TestEndImmediatelyAfterStartIsNonNegative(t *testing.T) {
	reg := NewRegistry(WithLogger(logging.Discard()))
	if err := reg.Init("now", Config{}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Start("now"); err != nil {
		t.Fatal(err)
	}
	d, err := reg.End("now")
	if err != nil {
		t.Fatal(err)
	}
	if d < 0 {
		t.Errorf("End() = %v, want >= 0", d)
	}
}

func TestSleepMeasurement(t *testing.T) {
	reg := NewRegistry(WithLogger(logging.Discard()))
	if err := reg.Init("x", Config{}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Start("x"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := reg.End("x"); err != nil {
		t.Fatal(err)
	}

	samples, _ := reg.Samples("x")
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	if samples[0] < 5*time.Millisecond {
		t.Errorf("sample = %v, want at least 5ms", samples[0])
	}
}

func TestBackwardsClockClampsToZero(t *testing.T) {
	h := newHarness()
	h.reg.Init("skew", Config{})
	h.reg.Start("skew")
	h.clock.Advance(-time.Second)
	d, err := h.reg.End("skew")
	if err != nil {
		t.Fatal(err)
	}
	if d != 0 {
		t.Errorf("End() = %v, want 0", d)
	}
}

func TestAverageExcludesPendingStart(t *testing.T) {
	h := newHarness()
	if err := h.reg.Init("y", Config{PrintAvgAfter: 100 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}

	for _, d := range []time.Duration{10, 20, 30} {
		if err := h.measure("y", d*time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}
	if err := h.reg.Start("y"); err != nil {
		t.Fatal(err)
	}

	h.sched.Advance(99 * time.Millisecond)
	if h.out.Len() != 0 {
		t.Fatalf("report fired early: %q", h.out.String())
	}
	h.sched.Advance(time.Millisecond)

	if got, want := h.out.String(), "y: 20,0000\n"; got != want {
		t.Errorf("report = %q, want %q", got, want)
	}
}

func TestListReport(t *testing.T) {
	h := newHarness()
	h.reg.Init("io", Config{PrintListAfter: time.Second})
	h.measure("io", 10*time.Millisecond)
	h.measure("io", 2500*time.Microsecond)

	h.sched.Advance(time.Second)

	if got, want := h.out.String(), "io [10 2.5]\n"; got != want {
		t.Errorf("report = %q, want %q", got, want)
	}
}

func TestEmptyReports(t *testing.T) {
	h := newHarness()
	h.reg.Init("idle", Config{PrintListAfter: time.Second, PrintAvgAfter: 2 * time.Second})

	h.sched.Advance(2 * time.Second)

	want := "idle []\nidle: NaN\n"
	if got := h.out.String(); got != want {
		t.Errorf("reports = %q, want %q", got, want)
	}
}

func TestReportsReadStateAtFireTime(t *testing.T) {
	h := newHarness()
	h.reg.Init("late", Config{PrintAvgAfter: time.Second})

	h.sched.Advance(500 * time.Millisecond)
	h.measure("late", 4*time.Millisecond)
	h.sched.Advance(500 * time.Millisecond)

	if got, want := h.out.String(), "late: 4,0000\n"; got != want {
		t.Errorf("report = %q, want %q", got, want)
	}
}

func TestReinitResetsSamplesAndKeepsOldReports(t *testing.T) {
	h := newHarness()
	h.reg.Init("r", Config{PrintListAfter: time.Second})
	h.measure("r", 7*time.Millisecond)
	h.measure("r", 8*time.Millisecond)

	if err := h.reg.Init("r", Config{}); err != nil {
		t.Fatal(err)
	}
	samples, _ := h.reg.Samples("r")
	if len(samples) != 0 {
		t.Fatalf("samples after reinit = %v, want empty", samples)
	}
	if n := h.reg.PendingReports("r"); n != 1 {
		t.Fatalf("PendingReports = %d, want 1", n)
	}

	h.measure("r", 3*time.Millisecond)
	h.sched.Advance(time.Second)

	if got, want := h.out.String(), "r [3]\n"; got != want {
		t.Errorf("report = %q, want %q", got, want)
	}
}

func TestReinitClearsPendingStart(t *testing.T) {
	h := newHarness()
	h.reg.Init("p", Config{})
	h.reg.Start("p")
	h.reg.Init("p", Config{})

	if h.reg.Pending("p") {
		t.Error("pending start survived reinit")
	}
	if err := h.reg.Start("p"); err != nil {
		t.Errorf("Start after reinit: %v", err)
	}
}

func TestMisuse(t *testing.T) {
	tests := []struct {
		name    string
		steps   func(r *Registry) error
		wantErr error
	}{
		{
			name:    "start before init",
			steps:   func(r *Registry) error { return r.Start("m") },
			wantErr: ErrNotInitialized,
		},
		{
			name: "end before init",
			steps: func(r *Registry) error {
				_, err := r.End("m")
				return err
			},
			wantErr: ErrNotInitialized,
		},
		{
			name: "double start",
			steps: func(r *Registry) error {
				r.Init("m", Config{})
				r.Start("m")
				return r.Start("m")
			},
			wantErr: ErrAlreadyStarted,
		},
		{
			name: "end without start",
			steps: func(r *Registry) error {
				r.Init("m", Config{})
				_, err := r.End("m")
				return err
			},
			wantErr: ErrNotStarted,
		},
		{
			name: "double end",
			steps: func(r *Registry) error {
				r.Init("m", Config{})
				r.Start("m")
				r.End("m")
				_, err := r.End("m")
				return err
			},
			wantErr: ErrNotStarted,
		},
		{
			name:    "empty name",
			steps:   func(r *Registry) error { return r.Init("", Config{}) },
			wantErr: ErrEmptyName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			err := tt.steps(h.reg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMisuseKeepsSamplesIntact(t *testing.T) {
	h := newHarness()
	h.reg.Init("m", Config{})
	h.measure("m", 5*time.Millisecond)

	if _, err := h.reg.End("m"); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("second End error = %v", err)
	}
	h.reg.Start("m")
	h.clock.Advance(time.Millisecond)
	if err := h.reg.Start("m"); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start error = %v", err)
	}
	h.clock.Advance(time.Millisecond)
	h.reg.End("m")

	samples, _ := h.reg.SamplesMillis("m")
	if len(samples) != 2 || samples[0] != 5 || samples[1] != 2 {
		t.Errorf("samples = %v, want [5 2]", samples)
	}
}

func TestMisuseIsLogged(t *testing.T) {
	var buf bytes.Buffer
	h := newHarness(WithLogger(logging.New(&buf, logging.WARN, false)))

	h.reg.Start("ghost")

	if !strings.Contains(buf.String(), "name=ghost") {
		t.Errorf("expected warning mentioning the name, got %q", buf.String())
	}
}

func TestCancelReports(t *testing.T) {
	h := newHarness()
	h.reg.Init("c", Config{PrintListAfter: time.Second, PrintAvgAfter: time.Second})

	if n := h.reg.CancelReports("c"); n != 2 {
		t.Errorf("CancelReports = %d, want 2", n)
	}
	h.sched.Advance(time.Minute)
	if h.out.Len() != 0 {
		t.Errorf("cancelled report printed %q", h.out.String())
	}
	if n := h.reg.CancelReports("c"); n != 0 {
		t.Errorf("second CancelReports = %d, want 0", n)
	}
}

func TestCloseCancelsEverything(t *testing.T) {
	h := newHarness()
	h.reg.Init("a", Config{PrintListAfter: time.Second})
	h.reg.Init("b", Config{PrintAvgAfter: time.Second})

	if err := h.reg.Close(); err != nil {
		t.Fatal(err)
	}
	h.sched.Advance(time.Minute)
	if h.out.Len() != 0 {
		t.Errorf("report printed after Close: %q", h.out.String())
	}
}

func TestReportFiresOnce(t *testing.T) {
	h := newHarness()
	h.reg.Init("once", Config{PrintAvgAfter: time.Second})

	h.sched.Advance(time.Second)
	h.sched.Advance(time.Second)

	if got := strings.Count(h.out.String(), "once:"); got != 1 {
		t.Errorf("report printed %d times, want 1", got)
	}
	if n := h.reg.PendingReports("once"); n != 0 {
		t.Errorf("PendingReports = %d, want 0", n)
	}
}

func TestSnapshot(t *testing.T) {
	h := newHarness()
	h.reg.Init("s", Config{})
	for _, d := range []time.Duration{4, 1, 7} {
		h.measure("s", d*time.Millisecond)
	}
	h.reg.Start("s")

	snap, err := h.reg.Snapshot("s")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Count != 3 || snap.TotalMs != 12 || snap.MeanMs != 4 {
		t.Errorf("count/total/mean = %d/%v/%v, want 3/12/4", snap.Count, snap.TotalMs, snap.MeanMs)
	}
	if snap.MinMs != 1 || snap.MaxMs != 7 || snap.LastMs != 7 {
		t.Errorf("min/max/last = %v/%v/%v, want 1/7/7", snap.MinMs, snap.MaxMs, snap.LastMs)
	}
	if !snap.Pending {
		t.Error("expected pending start")
	}
	if snap.Average() != "4,0000" {
		t.Errorf("Average() = %q", snap.Average())
	}

	if _, err := h.reg.Snapshot("missing"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Snapshot(missing) error = %v", err)
	}
}

func TestSnapshotsSorted(t *testing.T) {
	h := newHarness()
	for _, n := range []string{"zeta", "alpha", "mid"} {
		h.reg.Init(n, Config{})
	}
	snaps := h.reg.Snapshots()
	names := h.reg.Names()
	want := []string{"alpha", "mid", "zeta"}
	for i, n := range want {
		if snaps[i].Name != n || names[i] != n {
			t.Errorf("position %d: snapshot %q, name %q, want %q", i, snaps[i].Name, names[i], n)
		}
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) MeasurementStarted(name string, at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "start:"+name)
}

func (o *recordingObserver) MeasurementEnded(name string, startedAt, endedAt time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "end:"+name+":"+endedAt.Sub(startedAt).String())
}

func TestObserversNotified(t *testing.T) {
	obs := &recordingObserver{}
	h := newHarness(WithObserver(obs))
	h.reg.Init("o", Config{})
	h.measure("o", 3*time.Millisecond)
	h.reg.End("o")

	want := []string{"start:o", "end:o:3ms"}
	if strings.Join(obs.events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", obs.events, want)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTimerSchedulerFires(t *testing.T) {
	out := &syncBuffer{}
	reg := NewRegistry(WithOutput(out), WithLogger(logging.Discard()))
	reg.Init("real", Config{PrintListAfter: 10 * time.Millisecond})

	deadline := time.After(2 * time.Second)
	for out.String() == "" {
		select {
		case <-deadline:
			t.Fatal("report did not fire")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := out.String(); got != "real []\n" {
		t.Errorf("report = %q", got)
	}
}

func TestConcurrentNames(t *testing.T) {
	reg := NewRegistry(WithLogger(logging.Discard()))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		name := string(rune('a' + i))
		reg.Init(name, Config{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Start(name)
				reg.End(name)
			}
		}()
	}
	wg.Wait()

	for _, s := range reg.Snapshots() {
		if s.Count != 100 {
			t.Errorf("%s: count = %d, want 100", s.Name, s.Count)
		}
	}
}
