package agent

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"

	"github.com/eshanized/ERPCT/internal/models"
	"github.com/eshanized/ERPCT/pkg/debug"
)

// collectHardware probes the local machine for the registration report.
// Probe failures degrade to runtime defaults rather than blocking
// registration.
func collectHardware() models.WorkerHardware {
	hw := models.WorkerHardware{
		CPUCount: runtime.NumCPU(),
		Platform: runtime.GOOS,
	}

	if hostname, err := os.Hostname(); err == nil {
		hw.Hostname = hostname
	}

	if counts, err := cpu.Counts(true); err == nil {
		hw.CPUCount = counts
	} else {
		debug.Debug("CPU probe failed, using runtime count: %v", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		hw.MemoryTotal = vm.Total
	} else {
		debug.Debug("Memory probe failed: %v", err)
	}

	if info, err := host.Info(); err == nil {
		hw.Platform = info.Platform
		if hw.Platform == "" {
			hw.Platform = info.OS
		}
	} else {
		debug.Debug("Host probe failed: %v", err)
	}

	return hw
}
