package browser

import "runtime"

// Tab pool sizing.
const (
	MinParallel = 1
	MaxParallel = 8
	cpuDivisor  = 2
)

// ResolveParallel returns the number of concurrent tabs: an explicit value
// wins, otherwise half of GOMAXPROCS clamped to [MinParallel, MaxParallel].
func ResolveParallel(explicit int) int {
	if explicit > 0 {
		return explicit
	}
	n := runtime.GOMAXPROCS(0) / cpuDivisor
	return min(max(n, MinParallel), MaxParallel)
}
