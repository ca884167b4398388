// Package feed holds the merge engine that reconciles freshly scraped
// entries with a comic's previously persisted feed, and the timestamp and
// image-recovery helpers the store relies on.
package feed

import (
	"sort"

	"github.com/stripfeed/stripfeed/internal/core"
)

// DefaultMaxEntries caps a persisted feed when the caller does not say otherwise.
const DefaultMaxEntries = 100

// Merge reconciles a comic's existing entries with a newly scraped batch and
// returns the feed's new canonical state: deduplicated by identity with new
// data winning, sorted by publication time newest first (ties keep their
// relative input order), and capped to max entries.
//
// Merge is pure. Merging the same batch twice yields the same output as
// merging it once, and an empty incoming batch returns the existing entries
// unchanged beyond ordering.
func Merge(existing, incoming []core.Entry, max int) []core.Entry {
	if max <= 0 {
		max = DefaultMaxEntries
	}

	merged := make([]core.Entry, 0, len(existing)+len(incoming))
	slot := make(map[string]int, len(existing)+len(incoming))

	insert := func(e core.Entry) {
		e.Published = e.Published.UTC()
		id := e.Identity()
		if i, ok := slot[id]; ok {
			// Last write wins: new batches overwrite persisted entries and
			// later duplicates within one batch overwrite earlier ones.
			merged[i] = e
			return
		}
		slot[id] = len(merged)
		merged = append(merged, e)
	}

	for _, e := range existing {
		insert(e)
	}
	for _, e := range incoming {
		insert(e)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Published.After(merged[j].Published)
	})

	if len(merged) > max {
		merged = merged[:max]
	}
	return merged
}
