package feed

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/stripfeed/stripfeed/internal/core"
)

func day(offset int) time.Time {
	base := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func entryFor(offset int) core.Entry {
	return core.Entry{
		StableID:  fmt.Sprintf("strip-%d", offset),
		Title:     fmt.Sprintf("Strip for day %d", offset),
		URL:       fmt.Sprintf("https://example.net/strips/%d", offset),
		Images:    []core.Image{{URL: fmt.Sprintf("https://cdn.example.net/%d.gif", offset)}},
		Published: day(offset),
	}
}

func TestMergeEmptyStore(t *testing.T) {
	incoming := []core.Entry{entryFor(-2), entryFor(0), entryFor(-4), entryFor(-1), entryFor(-3)}

	merged := Merge(nil, incoming, 100)

	if len(merged) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(merged))
	}
	for i := range merged {
		if want := day(-i); !merged[i].Published.Equal(want) {
			t.Errorf("position %d: published %v, want %v", i, merged[i].Published, want)
		}
	}
}

func TestMergeOrderingInvariant(t *testing.T) {
	existing := []core.Entry{entryFor(-10), entryFor(-5)}
	incoming := []core.Entry{entryFor(-7), entryFor(0), entryFor(-20)}

	merged := Merge(existing, incoming, 100)

	for i := 0; i+1 < len(merged); i++ {
		if merged[i].Published.Before(merged[i+1].Published) {
			t.Fatalf("entries out of order at %d: %v before %v", i, merged[i].Published, merged[i+1].Published)
		}
	}
}

func TestMergeCapDropsOldest(t *testing.T) {
	existing := make([]core.Entry, 0, 100)
	for offset := -120; offset <= -21; offset++ {
		existing = append(existing, entryFor(offset))
	}
	incoming := []core.Entry{entryFor(-2), entryFor(-1), entryFor(0)}

	merged := Merge(existing, incoming, 100)

	if len(merged) != 100 {
		t.Fatalf("expected exactly 100 entries, got %d", len(merged))
	}
	// The new batch sits at the head, newest first.
	for i, offset := range []int{0, -1, -2} {
		if merged[i].StableID != fmt.Sprintf("strip-%d", offset) {
			t.Errorf("position %d: got %s, want strip-%d", i, merged[i].StableID, offset)
		}
	}
	// The three oldest pre-existing entries were dropped to make room.
	oldest := merged[len(merged)-1]
	if !oldest.Published.Equal(day(-117)) {
		t.Errorf("oldest survivor is %v, want %v", oldest.Published, day(-117))
	}
}

func TestMergeDedupNewWins(t *testing.T) {
	existing := make([]core.Entry, 0, 100)
	for offset := -99; offset <= 0; offset++ {
		existing = append(existing, entryFor(offset))
	}

	corrected := entryFor(-50)
	corrected.Description = "corrected caption"

	merged := Merge(existing, []core.Entry{corrected}, 100)

	if len(merged) != 100 {
		t.Fatalf("entry count changed: got %d, want 100", len(merged))
	}
	found := false
	for _, e := range merged {
		if e.StableID == corrected.StableID {
			found = true
			if e.Description != "corrected caption" {
				t.Errorf("description not updated: %q", e.Description)
			}
		}
	}
	if !found {
		t.Fatal("corrected entry missing from output")
	}
}

func TestMergeDuplicateWithinBatchLastWins(t *testing.T) {
	first := entryFor(0)
	first.Description = "first pass"
	second := entryFor(0)
	second.Description = "second pass"

	merged := Merge(nil, []core.Entry{first, second}, 100)

	if len(merged) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(merged))
	}
	if merged[0].Description != "second pass" {
		t.Errorf("expected last duplicate to win, got %q", merged[0].Description)
	}
}

func TestMergeIdentityFallsBackToURL(t *testing.T) {
	existing := []core.Entry{{URL: "https://example.net/s/1", Title: "old", Published: day(-1)}}
	incoming := []core.Entry{{URL: "https://example.net/s/1", Title: "new", Published: day(-1)}}

	merged := Merge(existing, incoming, 100)

	if len(merged) != 1 {
		t.Fatalf("expected url-keyed dedup to one entry, got %d", len(merged))
	}
	if merged[0].Title != "new" {
		t.Errorf("expected incoming entry to win, got %q", merged[0].Title)
	}
}

func TestMergeIdempotent(t *testing.T) {
	existing := []core.Entry{entryFor(-9), entryFor(-4), entryFor(-6)}
	batch := []core.Entry{entryFor(-1), entryFor(0), entryFor(-4)}

	once := Merge(existing, batch, 100)
	twice := Merge(once, batch, 100)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestMergeEmptyBatchKeepsExisting(t *testing.T) {
	existing := []core.Entry{entryFor(0), entryFor(-1), entryFor(-2)}

	merged := Merge(existing, nil, 100)

	if len(merged) != len(existing) {
		t.Fatalf("expected %d entries, got %d", len(existing), len(merged))
	}
	for i := range existing {
		if merged[i].StableID != existing[i].StableID {
			t.Errorf("position %d: got %s, want %s", i, merged[i].StableID, existing[i].StableID)
		}
	}
}

func TestMergeStableOnEqualTimestamps(t *testing.T) {
	a := core.Entry{StableID: "a", Published: day(0)}
	b := core.Entry{StableID: "b", Published: day(0)}
	c := core.Entry{StableID: "c", Published: day(0)}

	merged := Merge([]core.Entry{a, b}, []core.Entry{c}, 100)

	got := []string{merged[0].StableID, merged[1].StableID, merged[2].StableID}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tie order not stable: got %v, want %v", got, want)
	}
}

func TestMergePreservesPanelOrder(t *testing.T) {
	multi := core.Entry{
		StableID:  "multi",
		Published: day(0),
		Images: []core.Image{
			{URL: "https://cdn.example.net/p1.png"},
			{URL: "https://cdn.example.net/p2.png"},
			{URL: "https://cdn.example.net/p3.png"},
		},
	}

	merged := Merge(nil, []core.Entry{multi}, 100)

	if len(merged) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(merged))
	}
	for i, img := range merged[0].Images {
		if want := fmt.Sprintf("https://cdn.example.net/p%d.png", i+1); img.URL != want {
			t.Errorf("panel %d: got %s, want %s", i, img.URL, want)
		}
	}
}
