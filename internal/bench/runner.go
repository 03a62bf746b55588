package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/psantana5/perfmark/pkg/logging"
	"github.com/psantana5/perfmark/pkg/perf"
)

// ErrInvalidPlan is returned by Run for a plan that cannot be executed
var ErrInvalidPlan = errors.New("invalid bench plan")

// DefaultFailureHistory is how many failed iterations a Result keeps
const DefaultFailureHistory = 10

// Plan describes one benchmark: Command is run Iterations times, each run
// timed as one sample of the measurement Name.
type Plan struct {
	Name       string
	Command    []string
	Iterations int
	Warmup     int     // untimed runs before the first sample
	Rate       float64 // max iterations per second, 0 = unlimited
	KeepGoing  bool    // continue after a failed iteration
	Config     perf.Config
}

// Validate checks the plan
func (p Plan) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidPlan)
	case len(p.Command) == 0:
		return fmt.Errorf("%w: command is required", ErrInvalidPlan)
	case p.Iterations < 1:
		return fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalidPlan, p.Iterations)
	case p.Warmup < 0:
		return fmt.Errorf("%w: warmup must not be negative", ErrInvalidPlan)
	case p.Rate < 0:
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidPlan)
	}
	return nil
}

// Result of a finished (or aborted) run
type Result struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	Snapshot   perf.Snapshot `json:"snapshot" yaml:"snapshot"`
	Failures   int           `json:"failures" yaml:"failures"`
	Recent     []Failure     `json:"recent_failures,omitempty" yaml:"recent_failures,omitempty"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
}

// ExecFunc runs one iteration of a command
type ExecFunc func(ctx context.Context, argv []string) error

// Runner executes plans against a registry
type Runner struct {
	registry *perf.Registry
	logger   *logging.Logger
	exec     ExecFunc
	stdout   io.Writer
	stderr   io.Writer
	history  int
}

// RunnerOption configures a Runner
type RunnerOption func(r *Runner)

// WithExec replaces process execution, mostly for tests
func WithExec(fn ExecFunc) RunnerOption {
	return func(r *Runner) {
		r.exec = fn
	}
}

// WithCommandOutput forwards the command's stdout and stderr
// (default: discarded)
func WithCommandOutput(stdout, stderr io.Writer) RunnerOption {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithFailureHistory sets how many failed iterations a Result keeps
func WithFailureHistory(n int) RunnerOption {
	return func(r *Runner) {
		r.history = n
	}
}

// NewRunner creates a runner recording into registry
func NewRunner(registry *perf.Registry, logger *logging.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: registry,
		logger:   logger,
		stdout:   io.Discard,
		stderr:   io.Discard,
		history:  DefaultFailureHistory,
	}
	r.exec = r.runCommand
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) runCommand(ctx context.Context, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	return cmd.Run()
}

// Run executes the plan. Failed iterations are still timed. On error the
// returned Result holds whatever was recorded so far.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	log := r.logger.WithField("run_id", res.RunID).WithField("name", plan.Name)
	failures := NewFailureLog(r.history)
	finish := func() *Result { return r.finish(res, plan.Name, failures) }

	if err := r.registry.Init(plan.Name, plan.Config); err != nil {
		return nil, fmt.Errorf("failed to init measurement: %w", err)
	}

	for i := 0; i < plan.Warmup; i++ {
		if err := r.exec(ctx, plan.Command); err != nil {
			return finish(), fmt.Errorf("warmup %d failed: %w", i+1, err)
		}
	}
	log.Debug("Warmup done", map[string]interface{}{"warmup": plan.Warmup})

	var limiter *rate.Limiter
	if plan.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(plan.Rate), 1)
	}

	for i := 0; i < plan.Iterations; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return finish(), fmt.Errorf("run cancelled: %w", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return finish(), fmt.Errorf("run cancelled: %w", err)
		}

		if err := r.registry.Start(plan.Name); err != nil {
			return finish(), err
		}
		execErr := r.exec(ctx, plan.Command)
		elapsed, err := r.registry.End(plan.Name)
		if err != nil {
			return finish(), err
		}

		if execErr != nil {
			res.Failures++
			failures.Record(newFailure(i+1, elapsed, execErr))
			log.Warn("Iteration failed", map[string]interface{}{"iteration": i + 1, "error": execErr.Error()})
			if !plan.KeepGoing {
				return finish(), fmt.Errorf("iteration %d failed: %w", i+1, execErr)
			}
			continue
		}
		log.Debug("Iteration done", map[string]interface{}{"iteration": i + 1, "elapsed": elapsed.String()})
	}

	finish()
	log.Info("Run complete", map[string]interface{}{
		"samples":  res.Snapshot.Count,
		"failures": res.Failures,
	})
	return res, nil
}

func (r *Runner) finish(res *Result, name string, failures *FailureLog) *Result {
	res.FinishedAt = time.Now()
	res.Recent = failures.Recent(0)
	if snap, err := r.registry.Snapshot(name); err == nil {
		res.Snapshot = snap
	}
	return res
}
