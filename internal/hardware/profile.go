// Package hardware detects the physical machine's mining-relevant
// capabilities: core counts, available memory, and a coarse suitability
// verdict the coordinator consults before starting workers.
package hardware

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"coinshaft/internal/logging"
)

const (
	// minPhysicalCoresForMining and minMemoryForMining back IsSuitableForMining.
	minPhysicalCoresForMining = 2
	minMemoryForMining        = 2 * 1024 * 1024 * 1024 // 2 GiB

	// fallbackPhysicalCores and fallbackMemory are used when the probe fails.
	fallbackPhysicalCores = 4
	fallbackLogicalCores  = 4
	fallbackMemory        = 8 * 1024 * 1024 * 1024 // 8 GiB
)

// Profile describes a host's mining-relevant hardware.
type Profile struct {
	PhysicalCores     int
	LogicalCores      int
	AvailableMemory   uint64
	HasSHAExtensions  bool
	HasAVX2           bool
	GPUAvailable      bool
	GPUComputeUnits   *int
	PerformanceTier   int // 1 (low) .. 5 (high)
}

// IsSuitableForMining reports whether the profile meets the minimum bar:
// at least 2 physical cores and 2 GiB of available memory.
func (p Profile) IsSuitableForMining() bool {
	return p.PhysicalCores >= minPhysicalCoresForMining && p.AvailableMemory >= minMemoryForMining
}

// Detect probes the host via gopsutil. Any probe failure is logged and
// substituted with the conservative fallback profile (4 logical cores, 8
// GiB) rather than propagated, since hardware detection is advisory: a
// coordinator can still be started with an explicit thread count.
func Detect() Profile {
	physical, err := cpu.Counts(false)
	if err != nil || physical <= 0 {
		logging.Warnf("hardware: physical core detection failed, using fallback: %v", err)
		physical = fallbackPhysicalCores
	}

	logical, err := cpu.Counts(true)
	if err != nil || logical <= 0 {
		logging.Warnf("hardware: logical core detection failed, using fallback: %v", err)
		logical = fallbackLogicalCores
	}

	var available uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		available = vm.Available
	} else {
		logging.Warnf("hardware: memory detection failed, using fallback: %v", err)
		available = fallbackMemory
	}

	p := Profile{
		PhysicalCores:    physical,
		LogicalCores:     logical,
		AvailableMemory:  available,
		HasSHAExtensions: detectSHAExtensions(),
		HasAVX2:          detectAVX2(),
		GPUAvailable:     false,
	}
	p.PerformanceTier = p.computeTier()
	return p
}

// detectSHAExtensions and detectAVX2 report CPU feature flags. gopsutil
// does not expose per-feature flags uniformly across platforms, so these
// are decided by architecture alone: SHA extensions report true on amd64
// and arm64, AVX2 reports true on amd64 only.
func detectSHAExtensions() bool {
	return runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
}

func detectAVX2() bool {
	return runtime.GOARCH == "amd64"
}

// computeTier buckets the profile into a 1-5 performance tier driven by
// physical core count, the dimension the coordinator's thread budget scales
// with most directly.
func (p Profile) computeTier() int {
	switch {
	case p.PhysicalCores >= 16:
		return 5
	case p.PhysicalCores >= 8:
		return 4
	case p.PhysicalCores >= 4:
		return 3
	case p.PhysicalCores >= 2:
		return 2
	default:
		return 1
	}
}
