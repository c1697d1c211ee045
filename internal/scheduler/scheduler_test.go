package scheduler

import (
	"testing"
	"time"

	"github.com/reelvault/mediaserver/internal/config"
	"github.com/stretchr/testify/require"
)

func TestSelectLibrariesPicksSmallestRatio(t *testing.T) {
	candidates := []LibraryCandidate{
		{LibraryID: "busy", ActiveCount: 3, OldestScore: 10},
		{LibraryID: "idle", ActiveCount: 0, OldestScore: 20},
	}
	decision := SelectLibraries(candidates, Limits{GlobalCap: 100, LibraryCap: 4}, 3)
	require.Equal(t, []string{"idle", "busy"}, decision.Libraries)
}

func TestSelectLibrariesDropsSaturated(t *testing.T) {
	candidates := []LibraryCandidate{
		{LibraryID: "full", ActiveCount: 4, OldestScore: 1},
		{LibraryID: "open", ActiveCount: 1, OldestScore: 1},
	}
	decision := SelectLibraries(candidates, Limits{GlobalCap: 100, LibraryCap: 4}, 5)
	require.Equal(t, []string{"open"}, decision.Libraries)
}

func TestSelectLibrariesRejectsOnGlobalCap(t *testing.T) {
	candidates := []LibraryCandidate{{LibraryID: "a", ActiveCount: 0, OldestScore: 1}}
	decision := SelectLibraries(candidates, Limits{GlobalCap: 2, LibraryCap: 4}, 2)
	require.Empty(t, decision.Libraries)
}

func TestSelectLibrariesTieBreaksByOldestScore(t *testing.T) {
	candidates := []LibraryCandidate{
		{LibraryID: "newer", ActiveCount: 1, OldestScore: 200},
		{LibraryID: "older", ActiveCount: 1, OldestScore: 100},
	}
	decision := SelectLibraries(candidates, Limits{GlobalCap: 100, LibraryCap: 4}, 2)
	require.Equal(t, []string{"older", "newer"}, decision.Libraries)
}

func TestComputeBackoffScenario3(t *testing.T) {
	cfg := config.Retry{
		BackoffBaseMs:                100 * time.Millisecond,
		BackoffMaxMs:                 30 * time.Second,
		JitterRatio:                  0,
		JitterMinMs:                  0,
		FastRetryAttempts:            0,
		FastRetryFactor:              1,
		HeavyLibraryAttemptThreshold: 1000,
		HeavyLibrarySlowdownFactor:   1,
	}
	require.Equal(t, 100*time.Millisecond, ComputeBackoff(1, 0, cfg, 0))
	require.Equal(t, 200*time.Millisecond, ComputeBackoff(2, 0, cfg, 0))
	require.Equal(t, 400*time.Millisecond, ComputeBackoff(3, 0, cfg, 0))
}

func TestComputeBackoffFastRetryDivides(t *testing.T) {
	cfg := config.Retry{
		BackoffBaseMs:     100 * time.Millisecond,
		BackoffMaxMs:      30 * time.Second,
		FastRetryAttempts: 2,
		FastRetryFactor:   4,
	}
	require.Equal(t, 25*time.Millisecond, ComputeBackoff(1, 0, cfg, 0))
}

func TestComputeBackoffHeavyLibrarySlowsDown(t *testing.T) {
	cfg := config.Retry{
		BackoffBaseMs:                100 * time.Millisecond,
		BackoffMaxMs:                 30 * time.Second,
		FastRetryFactor:              1,
		HeavyLibraryAttemptThreshold: 5,
		HeavyLibrarySlowdownFactor:   2,
	}
	require.Equal(t, 200*time.Millisecond, ComputeBackoff(1, 10, cfg, 0))
}

func TestComputeBackoffCapsAtMax(t *testing.T) {
	cfg := config.Retry{
		BackoffBaseMs:   100 * time.Millisecond,
		BackoffMaxMs:    500 * time.Millisecond,
		FastRetryFactor: 1,
	}
	require.Equal(t, 500*time.Millisecond, ComputeBackoff(10, 0, cfg, 0))
}

func TestPartitionShardDeterministic(t *testing.T) {
	a := PartitionShard("/media/movies/foo.mkv", 4)
	b := PartitionShard("/media/movies/foo.mkv", 4)
	require.Equal(t, a, b)
	require.GreaterOrEqual(t, a, 0)
	require.Less(t, a, 4)
}

func TestEffectiveLibraryCapWidensUnderBulk(t *testing.T) {
	require.Equal(t, 2, EffectiveLibraryCap(2, 10, 50, 2))
	require.Equal(t, 4, EffectiveLibraryCap(2, 60, 50, 2))
}
