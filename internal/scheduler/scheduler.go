// Package scheduler implements the orchestrator's selection and backoff
// policy as pure functions over counts supplied by callers. It never touches
// Redis directly, mirroring the fairness logic in
// internal/advanced-rate-limiting/priority_fairness.go, which is structured
// the same way so it stays unit-testable without a running store.
package scheduler

import (
	"sort"

	"github.com/reelvault/mediaserver/internal/store"
)

// LibraryCandidate is one library with at least one ready job of the kind
// currently being dequeued, as assembled by the caller from store state.
type LibraryCandidate struct {
	LibraryID   string
	ActiveCount int
	// OldestScore is the minimum ready-set score (priority*1e13+created_at)
	// among this library's ready jobs of the kind; used as the fairness
	// tie-breaker so older work wins between equally-saturated libraries.
	OldestScore float64
}

// Limits bundles the concurrency caps the selection policy enforces.
type Limits struct {
	GlobalCap  int
	LibraryCap int
}

// Decision is the scheduler's verdict for one dequeue attempt.
type Decision struct {
	// Libraries is the fairness-ranked order in which the store should try
	// candidate libraries' ready sets. Empty means no library is eligible.
	Libraries []string
}

// SelectLibraries ranks ready libraries by smallest active/cap ratio,
// breaking ties by oldest eligible work, per spec's work-conserving
// round-robin fairness policy. Libraries already saturated at their
// per-library cap are dropped rather than merely ranked last, since a
// saturated library can never be dequeued from regardless of rank.
func SelectLibraries(candidates []LibraryCandidate, limits Limits, globalActive int) Decision {
	if limits.GlobalCap > 0 && globalActive >= limits.GlobalCap {
		return Decision{}
	}

	cap := limits.LibraryCap
	if cap <= 0 {
		cap = 1
	}

	eligible := make([]LibraryCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ActiveCount < cap {
			eligible = append(eligible, c)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		ri := float64(eligible[i].ActiveCount) / float64(cap)
		rj := float64(eligible[j].ActiveCount) / float64(cap)
		if ri != rj {
			return ri < rj
		}
		return eligible[i].OldestScore < eligible[j].OldestScore
	})

	ids := make([]string, len(eligible))
	for i, c := range eligible {
		ids[i] = c.LibraryID
	}
	return Decision{Libraries: ids}
}

// EffectiveLibraryCap returns the per-library cap for kind, widened by bulk
// mode when the library's active scan count has crossed the bulk threshold.
func EffectiveLibraryCap(baseCap int, librariesActiveScans int, bulkThreshold int, speedupFactor float64) int {
	if bulkThreshold > 0 && librariesActiveScans > bulkThreshold && speedupFactor > 0 {
		widened := float64(baseCap) * speedupFactor
		if widened > float64(baseCap) {
			return int(widened)
		}
	}
	return baseCap
}

// KindCap maps a job kind to its configured global concurrency cap.
func KindCap(kind store.JobKind, scans, analyses, metadata, index, imageFetch int) int {
	switch kind {
	case store.KindFolderScan:
		return scans
	case store.KindAnalyze:
		return analyses
	case store.KindMetadataEnrich:
		return metadata
	case store.KindIndex:
		return index
	case store.KindImageFetch:
		return imageFetch
	default:
		return 0
	}
}
