// Package hoststats samples the local daemon's host resource usage for the
// GET /nodes/{name}/inspect surface, which attaches it only when {name} is
// the local node; GET /nodes lists registration rows without usage. Wired as a direct
// library call rather than a background collector: a node's usage is
// sampled fresh on every request, since the daemon runs one node per
// process and has no cross-node aggregation to cache.
package hoststats

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Usage is a point-in-time snapshot of host resource consumption.
type Usage struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemUsedBytes  uint64  `json:"mem_used_bytes"`
	MemTotalBytes uint64  `json:"mem_total_bytes"`
	DiskUsedBytes uint64  `json:"disk_used_bytes"`
	DiskTotalBytes uint64 `json:"disk_total_bytes"`
}

// Sample reads current CPU, memory, and disk (for statePath's filesystem)
// usage. A failure in any one metric degrades that field to its zero value
// rather than failing the whole sample, since node inspect should stay
// available even on a host missing one proc/sys interface.
func Sample(ctx context.Context, statePath string) Usage {
	var u Usage

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		u.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		u.MemUsedBytes = vm.Used
		u.MemTotalBytes = vm.Total
	}
	if statePath == "" {
		statePath = "/"
	}
	if du, err := disk.UsageWithContext(ctx, statePath); err == nil {
		u.DiskUsedBytes = du.Used
		u.DiskTotalBytes = du.Total
	}
	return u
}
