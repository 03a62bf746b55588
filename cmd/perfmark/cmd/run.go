package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/perfmark/internal/bench"
	"github.com/psantana5/perfmark/internal/hostinfo"
	"github.com/psantana5/perfmark/internal/report"
	"github.com/psantana5/perfmark/pkg/logging"
	"github.com/psantana5/perfmark/pkg/metrics"
	"github.com/psantana5/perfmark/pkg/perf"
	"github.com/psantana5/perfmark/pkg/shutdown"
	"github.com/psantana5/perfmark/pkg/tracing"
)

// formatProm dumps the Prometheus registry instead of a report
const formatProm = "prom"

// reportGrace is added to the longest report delay when waiting at exit
const reportGrace = 5 * time.Second

var (
	runName        string
	iterations     int
	warmup         int
	runRate        float64
	keepGoing      bool
	printListAfter time.Duration
	printAvgAfter  time.Duration
	showOutput     bool
	otlpEndpoint   string
	showHost       bool
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Time a command over several iterations",
	Long: `Run executes the command repeatedly and records every iteration as one
sample of a named measurement. The summary is printed once all iterations
are done. --print-list-after and --print-avg-after additionally print the
raw samples or their average after the given delay, counted from the start
of the run; perfmark waits for those reports before it exits.

Example:
  perfmark run -n 20 -- ./build.sh
  perfmark run --name query --print-avg-after 2s -- psql -c 'select 1'
  perfmark run --rate 5 --keep-going --output json -- curl -sf localhost:8080/health`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runName, "name", "", "measurement name (default: base name of the command)")
	runCmd.Flags().IntVarP(&iterations, "iterations", "n", 10, "number of timed iterations")
	runCmd.Flags().IntVar(&warmup, "warmup", 0, "untimed iterations before the first sample")
	runCmd.Flags().Float64Var(&runRate, "rate", 0, "max iterations per second (0=unlimited)")
	runCmd.Flags().BoolVar(&keepGoing, "keep-going", false, "continue after a failed iteration")
	runCmd.Flags().DurationVar(&printListAfter, "print-list-after", 0, "print the samples after this delay (0=never)")
	runCmd.Flags().DurationVar(&printAvgAfter, "print-avg-after", 0, "print the average after this delay (0=never)")
	runCmd.Flags().BoolVar(&showOutput, "show-output", false, "forward the command's stdout and stderr")
	runCmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "export one span per iteration to this OTLP/HTTP collector (host:port)")
	runCmd.Flags().BoolVar(&showHost, "host-info", true, "include CPU and memory information in the report header")

	viper.BindPFlag("iterations", runCmd.Flags().Lookup("iterations"))
	viper.BindPFlag("warmup", runCmd.Flags().Lookup("warmup"))
	viper.BindPFlag("rate", runCmd.Flags().Lookup("rate"))
	viper.BindPFlag("print_list_after", runCmd.Flags().Lookup("print-list-after"))
	viper.BindPFlag("print_avg_after", runCmd.Flags().Lookup("print-avg-after"))
	viper.BindPFlag("otlp_endpoint", runCmd.Flags().Lookup("otlp-endpoint"))
	viper.BindPFlag("host_info", runCmd.Flags().Lookup("host-info"))
}

func runBench(cmd *cobra.Command, args []string) error {
	format := GetOutputFormat()
	switch format {
	case report.FormatTable, report.FormatJSON, report.FormatYAML, formatProm:
	default:
		return fmt.Errorf("%w: %q", report.ErrUnknownFormat, format)
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	name := runName
	if name == "" {
		name = filepath.Base(args[0])
	}
	plan := bench.Plan{
		Name:       name,
		Command:    args,
		Iterations: viper.GetInt("iterations"),
		Warmup:     viper.GetInt("warmup"),
		Rate:       viper.GetFloat64("rate"),
		KeepGoing:  keepGoing,
		Config: perf.Config{
			PrintListAfter: viper.GetDuration("print_list_after"),
			PrintAvgAfter:  viper.GetDuration("print_avg_after"),
		},
	}
	if err := plan.Validate(); err != nil {
		return err
	}

	endpoint := viper.GetString("otlp_endpoint")
	tp, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "perfmark",
		ServiceVersion: Version,
		Environment:    "cli",
		OTLPEndpoint:   endpoint,
		Insecure:       true,
		Enabled:        endpoint != "",
	}, logger)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector("perfmark")
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collector)

	registry := perf.NewRegistry(
		perf.WithLogger(logger),
		perf.WithOutput(cmd.OutOrStdout()),
		perf.WithObserver(collector),
		perf.WithObserver(tp.Observer()),
	)

	// Hooks run LIFO: reports are awaited first, the tracer is flushed last
	sm := shutdown.New(longestDelay(plan.Config)+reportGrace, logger)
	sm.Register("tracer", tp.Shutdown)
	sm.Register("registry", shutdown.CloseResource(registry, "registry"))
	sm.Register("reports", shutdown.WaitFor(func() bool {
		return registry.PendingReports(name) == 0
	}, 10*time.Millisecond, "delayed reports"))

	ctx, stop := signal.NotifyContext(runContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runnerOpts []bench.RunnerOption
	if showOutput {
		runnerOpts = append(runnerOpts, bench.WithCommandOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	}
	runner := bench.NewRunner(registry, logger, runnerOpts...)

	res, runErr := runner.Run(ctx, plan)
	if ctx.Err() != nil {
		// Interrupted: drop the delayed reports instead of waiting for them
		registry.Close()
	}
	shutdownErr := sm.Shutdown()

	if res != nil {
		if err := writeResult(cmd, format, res, promRegistry, logger); err != nil {
			return err
		}
	}
	return errors.Join(runErr, shutdownErr)
}

func writeResult(cmd *cobra.Command, format string, res *bench.Result, gatherer prometheus.Gatherer, logger *logging.Logger) error {
	out := cmd.OutOrStdout()
	if format == formatProm {
		return metrics.WriteText(out, gatherer)
	}

	doc := report.Document{
		Header: report.Header{
			RunID:    res.RunID,
			Failures: res.Failures,
		},
		Measurements: []perf.Snapshot{res.Snapshot},
		Failures:     res.Recent,
	}
	if viper.GetBool("host_info") {
		host, err := hostinfo.Detect()
		if err != nil {
			logger.Warn("Host detection incomplete", map[string]interface{}{"error": err.Error()})
		}
		if host != nil {
			doc.Header.Host = host.String()
		}
	}
	return report.Render(out, format, doc)
}

func longestDelay(cfg perf.Config) time.Duration {
	if cfg.PrintListAfter > cfg.PrintAvgAfter {
		return cfg.PrintListAfter
	}
	return cfg.PrintAvgAfter
}

// runContext returns the command context, or Background when runBench is
// called without going through Execute
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
