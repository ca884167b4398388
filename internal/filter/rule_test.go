package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stripfeed/stripfeed/internal/config"
	"github.com/stripfeed/stripfeed/internal/core"
)

func testEntries() []core.Entry {
	return []core.Entry{
		{Title: "Classic rerun from 1987", URL: "https://example.net/1", Published: time.Now().UTC()},
		{Title: "Fresh strip", URL: "https://example.net/2", Published: time.Now().UTC(),
			Images: []core.Image{{URL: "https://cdn.example.net/2.png"}}},
	}
}

func TestApplyDropsMatchingEntries(t *testing.T) {
	rules, err := Compile([]config.FilterRule{
		{Name: "skip-reruns", Rule: `title.value contains "Classic"`, Action: "drop"},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	kept := Apply(context.Background(), rules, testEntries())

	if len(kept) != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", len(kept))
	}
	if kept[0].Title != "Fresh strip" {
		t.Errorf("wrong entry survived: %q", kept[0].Title)
	}
}

func TestApplyImageCountRule(t *testing.T) {
	rules, err := Compile([]config.FilterRule{
		{Name: "require-image", Rule: `images.count == 0`, Action: "drop"},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	kept := Apply(context.Background(), rules, testEntries())

	if len(kept) != 1 || len(kept[0].Images) == 0 {
		t.Fatalf("expected only the entry with images, got %+v", kept)
	}
}

func TestApplyNoRulesKeepsEverything(t *testing.T) {
	entries := testEntries()
	kept := Apply(context.Background(), nil, entries)
	if len(kept) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(kept))
	}
}

func TestApplyFailsOpenOnRuleError(t *testing.T) {
	// References a key missing from the env, which errors at run time.
	rules, err := Compile([]config.FilterRule{
		{Name: "broken", Rule: `nosuchfield == "x"`, Action: "drop"},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	kept := Apply(context.Background(), rules, testEntries())

	if len(kept) != 2 {
		t.Fatalf("broken rule must keep entries, got %d", len(kept))
	}
}

func TestCompileRejectsInvalidExpression(t *testing.T) {
	if _, err := Compile([]config.FilterRule{{Name: "bad", Rule: `title.value contains`}}); err == nil {
		t.Fatal("expected compile error for invalid expression")
	}
}
