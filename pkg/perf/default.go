package perf

import "sync"

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry used by the package-level
// functions. It is created on first use and never closed.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// InitMeasurement calls Init on the default registry.
func InitMeasurement(name string, cfg Config) error {
	return Default().Init(name, cfg)
}

// StartMeasurement calls Start on the default registry.
func StartMeasurement(name string) error {
	return Default().Start(name)
}

// EndMeasurement calls End on the default registry.
func EndMeasurement(name string) error {
	_, err := Default().End(name)
	return err
}
