// Package cpuspec identifies the host CPU and recommends a worker count
// for feature extraction. Hybrid parts run extraction best on performance
// cores only; scheduling DSP work onto efficiency cores drags the whole
// batch to their pace.
package cpuspec

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec describes the host CPU as far as extraction scheduling cares.
type CPUSpec struct {
	BrandName        string
	PerformanceCores int
}

// GetCPUSpec reads the CPU identity. PerformanceCores is zero when the
// part is not recognized as a hybrid design.
func GetCPUSpec() CPUSpec {
	brandName := cpuid.CPU.BrandName
	return CPUSpec{
		BrandName:        brandName,
		PerformanceCores: determinePerformanceCores(brandName),
	}
}

// GetOptimalThreadCount returns the recommended number of extraction
// workers, capped by what the scheduler actually exposes (relevant in VMs
// and containers with CPU quotas).
func (c CPUSpec) GetOptimalThreadCount() int {
	availableCPUs := runtime.NumCPU()

	if c.PerformanceCores > 0 {
		if c.PerformanceCores > availableCPUs {
			return availableCPUs
		}
		return c.PerformanceCores
	}

	if logical := cpuid.CPU.LogicalCores; logical > 0 && logical < availableCPUs {
		return logical
	}
	return availableCPUs
}

var (
	intelHybridRegex = regexp.MustCompile(`intel.*core.*i[3579]-1([2-4])\d{3}`)
	appleRegex       = regexp.MustCompile(`(?i)apple\s+(m[1-4])\s*(pro|max|ultra)?`)
)

// determinePerformanceCores estimates P-core counts for the hybrid families
// in common use. The mapping is deliberately coarse; an unknown part simply
// falls back to all logical cores.
func determinePerformanceCores(brandName string) int {
	brandName = strings.ToLower(brandName)

	// Intel 12th to 14th gen desktop and mobile hybrids. The i3 parts of
	// these generations carry no E-cores, so they need no special case.
	if m := intelHybridRegex.FindStringSubmatch(brandName); len(m) > 1 {
		switch {
		case strings.Contains(brandName, "i9"), strings.Contains(brandName, "i7"):
			return 8
		case strings.Contains(brandName, "i5"):
			return 6
		}
		return 0
	}

	// Apple Silicon: base parts ship 4 to 6 P-cores, Pro/Max 8 to 12,
	// Ultra doubles the Max.
	if m := appleRegex.FindStringSubmatch(brandName); len(m) > 1 {
		variant := strings.ToLower(strings.TrimSpace(m[2]))
		switch variant {
		case "ultra":
			return 16
		case "max", "pro":
			return 8
		default:
			return 4
		}
	}

	return 0
}
