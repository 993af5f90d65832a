package agent

import (
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/camgrid/shuttersync/pkg/models"
)

// collectSystemInfo gathers best-effort host detail for status reports.
// Collection failures return nil rather than failing the status call.
func collectSystemInfo() *models.SystemInfo {
	info, err := host.Info()
	if err != nil {
		return nil
	}

	sys := &models.SystemInfo{
		Hostname:      info.Hostname,
		Platform:      info.Platform,
		UptimeSeconds: info.Uptime,
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		sys.MemoryTotal = vm.Total
		sys.MemoryUsedPct = vm.UsedPercent
	}

	return sys
}
