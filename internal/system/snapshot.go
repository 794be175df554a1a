package system

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot describes the host a pipeline run executed on. It is embedded
// in the run summary so slow captures can be correlated with the machine
// that produced them.
type Snapshot struct {
	OS            string  `json:"os"`
	Platform      string  `json:"platform"`
	CPUModel      string  `json:"cpu_model"`
	LogicalCores  int     `json:"logical_cores"`
	TotalMemoryMB uint64  `json:"total_memory_mb"`
	UsedMemoryPct float64 `json:"used_memory_pct"`
	GoVersion     string  `json:"go_version"`
}

// TakeSnapshot collects host information. Probe failures leave fields at
// their zero values rather than failing the run.
func TakeSnapshot() Snapshot {
	s := Snapshot{
		OS:        runtime.GOOS,
		GoVersion: runtime.Version(),
	}

	if info, err := host.Info(); err == nil {
		s.Platform = info.Platform + " " + info.PlatformVersion
	}

	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		s.CPUModel = infos[0].ModelName
	}
	if n, err := cpu.Counts(true); err == nil {
		s.LogicalCores = n
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.TotalMemoryMB = vm.Total / 1024 / 1024
		s.UsedMemoryPct = vm.UsedPercent
	}

	return s
}
