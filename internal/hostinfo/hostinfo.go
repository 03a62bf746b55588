package hostinfo

import (
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Host describes the machine a benchmark ran on
type Host struct {
	CPUModel     string `json:"cpu_model" yaml:"cpu_model"`
	CPUThreads   int    `json:"cpu_threads" yaml:"cpu_threads"`
	RAMBytes     uint64 `json:"ram_bytes" yaml:"ram_bytes"`
	OS           string `json:"os" yaml:"os"`
	Architecture string `json:"architecture" yaml:"architecture"`
}

// Detect reads CPU and memory information. Fields that cannot be read are
// left at their fallback values rather than failing the whole detection.
func Detect() (*Host, error) {
	h := &Host{
		CPUModel:     "Unknown",
		CPUThreads:   runtime.NumCPU(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}

	if infos, err := cpu.Info(); err == nil && len(infos) > 0 && infos[0].ModelName != "" {
		h.CPUModel = infos[0].ModelName
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		h.CPUThreads = n
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return h, fmt.Errorf("failed to read memory info: %w", err)
	}
	h.RAMBytes = vm.Total
	return h, nil
}

// String returns a one-line summary
func (h *Host) String() string {
	return fmt.Sprintf("%s (%d threads), %s RAM, %s/%s",
		h.CPUModel, h.CPUThreads, humanize.IBytes(h.RAMBytes), h.OS, h.Architecture)
}
