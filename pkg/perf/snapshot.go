package perf

// Snapshot is a read-only summary of one measurement. Durations are in
// milliseconds. Mean, Min, Max and Last are zero when Count is zero.
type Snapshot struct {
	Name      string    `json:"name" yaml:"name"`
	Count     int       `json:"count" yaml:"count"`
	TotalMs   float64   `json:"total_ms" yaml:"total_ms"`
	MeanMs    float64   `json:"mean_ms" yaml:"mean_ms"`
	MinMs     float64   `json:"min_ms" yaml:"min_ms"`
	MaxMs     float64   `json:"max_ms" yaml:"max_ms"`
	LastMs    float64   `json:"last_ms" yaml:"last_ms"`
	Pending   bool      `json:"pending" yaml:"pending"`
	SamplesMs []float64 `json:"samples_ms" yaml:"samples_ms"`
}

func newSnapshot(name string, t *timer) Snapshot {
	s := Snapshot{
		Name:      name,
		Count:     len(t.samples),
		Pending:   t.pending.Pending(),
		SamplesMs: millis(t.samples),
	}
	if s.Count == 0 {
		return s
	}

	s.MinMs = s.SamplesMs[0]
	s.MaxMs = s.SamplesMs[0]
	for _, v := range s.SamplesMs {
		s.TotalMs += v
		if v < s.MinMs {
			s.MinMs = v
		}
		if v > s.MaxMs {
			s.MaxMs = v
		}
	}
	s.MeanMs = s.TotalMs / float64(s.Count)
	s.LastMs = s.SamplesMs[s.Count-1]
	return s
}

// Average returns the mean formatted like the average report.
func (s Snapshot) Average() string {
	return FormatMean(Mean(s.SamplesMs))
}
