package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"media-streamer/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The rest is left for FFmpeg processes and goroutine stacks.
const DefaultMemoryRatio = 0.80

// Limit describes how the heap limit was configured.
type Limit struct {
	Configured     bool
	Source         string // "GOMEMLIMIT", "MEMORY_LIMIT" or "none"
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv sets the runtime memory limit from MEMORY_LIMIT (bytes,
// usually from the Kubernetes Downward API) scaled by MEMORY_RATIO. An
// explicit GOMEMLIMIT wins. Call it before the first large allocation.
func ConfigureFromEnv() Limit {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		l := Limit{Source: "GOMEMLIMIT"}
		if cur := debug.SetMemoryLimit(-1); cur > 0 && cur < math.MaxInt64 {
			l.Configured = true
			l.GoMemLimit = cur
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return l
	}

	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		return Limit{Source: "none"}
	}
	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", raw)
		return Limit{Source: "none"}
	}

	ratio := parseRatio(os.Getenv("MEMORY_RATIO"))
	goLimit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(goLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
		FormatBytes(goLimit), ratio*100, FormatBytes(containerLimit))

	return Limit{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     goLimit,
		Ratio:          ratio,
	}
}

func parseRatio(raw string) float64 {
	if raw == "" {
		return DefaultMemoryRatio
	}
	r, err := strconv.ParseFloat(raw, 64)
	if err != nil || r <= 0 || r > 1 {
		logging.Warn("MEMORY_RATIO %q must be in (0, 1], using %.2f", raw, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return r
}

// FormatBytes renders b with a binary unit, e.g. "1.5 GiB".
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
