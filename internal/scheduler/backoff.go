package scheduler

import (
	"math"
	"time"

	"github.com/reelvault/mediaserver/internal/config"
)

// ComputeBackoff implements the retry/backoff policy of spec §4.3 exactly,
// in the stated order: exponential base, jitter, fast-retry acceleration,
// then heavy-library slowdown. jitterRand must be in [-1, 1]; callers pass
// rand.Float64()*2-1 in production and a fixed value in tests for
// deterministic assertions (spec §8 scenario 3 requires jitter_ratio=0
// reproducibility).
func ComputeBackoff(attempts int, libraryActiveJobs int, cfg config.Retry, jitterRand float64) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	base := float64(cfg.BackoffBaseMs) * math.Pow(2, float64(attempts-1))
	max := float64(cfg.BackoffMaxMs)
	delay := math.Min(max, base)

	jitterMin := float64(cfg.JitterMinMs)
	jittered := delay * (1 + jitterRand*cfg.JitterRatio)
	if jittered < delay-jitterMin {
		jittered = delay - jitterMin
	}
	if jittered > delay+jitterMin {
		jittered = delay + jitterMin
	}
	delay = jittered

	if attempts <= cfg.FastRetryAttempts && cfg.FastRetryFactor > 0 {
		delay /= cfg.FastRetryFactor
	}

	if libraryActiveJobs > cfg.HeavyLibraryAttemptThreshold {
		delay *= cfg.HeavyLibrarySlowdownFactor
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
