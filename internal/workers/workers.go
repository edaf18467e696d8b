package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns a worker count for a task type. It respects container CPU
// limits via GOMAXPROCS.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//   - 1.5 for mixed tasks
//
// A positive integer in the envKey variable overrides the computed value.
// limit caps the result; 0 means no cap.
func Count(envKey string, multiplier float64, limit int) int {
	if envKey != "" {
		if override := os.Getenv(envKey); override != "" {
			if count, err := strconv.Atoi(override); err == nil && count > 0 {
				return capAt(count, limit)
			}
		}
	}

	available := runtime.GOMAXPROCS(0)
	n := int(float64(available) * multiplier)
	if n < 1 {
		n = 1
	}
	return capAt(n, limit)
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(envKey string, limit int) int {
	return Count(envKey, 1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(envKey string, limit int) int {
	return Count(envKey, 2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU).
func ForMixed(envKey string, limit int) int {
	return Count(envKey, 1.5, limit)
}
