package verify

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

// HostInfo describes the machine a report was produced on. Simulation
// times vary a lot between hosts.
type HostInfo struct {
	Hostname string
	Platform string
	Kernel   string
	CPU      string
	Cores    int
	MemoryMB uint64
}

// CollectHostInfo reads the host facts. Facts that cannot be read are left
// empty.
func CollectHostInfo(ctx context.Context) *HostInfo {
	info := &HostInfo{}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform + " " + h.PlatformVersion
		info.Kernel = h.KernelVersion
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPU = cpus[0].ModelName
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.Cores = n
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryMB = vm.Total >> 20
	}

	return info
}

func (h *HostInfo) String() string {
	return fmt.Sprintf("host %s (%s, kernel %s), %s x%d, %d MB",
		h.Hostname, h.Platform, h.Kernel, h.CPU, h.Cores, h.MemoryMB)
}
