package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/perfmark/internal/bench"
	"github.com/psantana5/perfmark/pkg/perf"
)

// ErrUnknownFormat is returned for an output format Render does not know
var ErrUnknownFormat = errors.New("unknown output format")

// Formats accepted by Render
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Header carries context printed above the measurements
type Header struct {
	RunID    string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Host     string `json:"host,omitempty" yaml:"host,omitempty"`
	Failures int    `json:"failures" yaml:"failures"`
}

// Document is everything one report renders
type Document struct {
	Header       Header          `json:"header" yaml:"header"`
	Measurements []perf.Snapshot `json:"measurements" yaml:"measurements"`
	Failures     []bench.Failure `json:"recent_failures,omitempty" yaml:"recent_failures,omitempty"`
}

// Render writes doc to w in the given format
func Render(w io.Writer, format string, doc Document) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(doc)

	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(doc); err != nil {
			return err
		}
		return encoder.Close()

	case FormatTable, "":
		return renderTable(w, doc)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderTable(w io.Writer, doc Document) error {
	if doc.Header.RunID != "" {
		fmt.Fprintf(w, "Run:  %s\n", doc.Header.RunID)
	}
	if doc.Header.Host != "" {
		fmt.Fprintf(w, "Host: %s\n", doc.Header.Host)
	}
	if doc.Header.Failures > 0 {
		fmt.Fprintf(w, "Failed iterations: %s\n", humanize.Comma(int64(doc.Header.Failures)))
	}

	table := tablewriter.NewWriter(w)
	table.Header("Name", "Samples", "Avg (ms)", "Min (ms)", "Max (ms)", "Last (ms)", "Pending")
	for _, s := range doc.Measurements {
		table.Append(
			s.Name,
			humanize.Comma(int64(s.Count)),
			s.Average(),
			ms(s.MinMs, s.Count),
			ms(s.MaxMs, s.Count),
			ms(s.LastMs, s.Count),
			boolToYesNo(s.Pending),
		)
	}
	if err := table.Render(); err != nil {
		return err
	}
	if len(doc.Failures) == 0 {
		return nil
	}

	fmt.Fprintln(w, "\nRecent failures:")
	failures := tablewriter.NewWriter(w)
	failures.Header("Iteration", "Exit", "Elapsed (ms)", "Error")
	for _, f := range doc.Failures {
		failures.Append(
			strconv.Itoa(f.Iteration),
			strconv.Itoa(f.ExitCode),
			strconv.FormatFloat(f.ElapsedMs, 'f', 3, 64),
			f.Error,
		)
	}
	return failures.Render()
}

func ms(v float64, count int) string {
	if count == 0 {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func boolToYesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
