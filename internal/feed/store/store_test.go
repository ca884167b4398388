package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stripfeed/stripfeed/internal/config"
	"github.com/stripfeed/stripfeed/internal/core"
)

var testComic = config.Comic{
	ID:      "testcomic",
	Title:   "Test Comic",
	Source:  "test",
	SiteURL: "https://example.net/testcomic",
}

func testEntries() []core.Entry {
	base := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	return []core.Entry{
		{
			StableID:  "strip-2",
			Title:     "Newest",
			URL:       "https://example.net/testcomic/2",
			Images:    []core.Image{{URL: "https://cdn.example.net/2.png", Alt: "second"}},
			Published: base,
		},
		{
			StableID:  "strip-1",
			Title:     "Older",
			URL:       "https://example.net/testcomic/1",
			Images:    []core.Image{{URL: "https://cdn.example.net/1.gif"}},
			Published: base.AddDate(0, 0, -1),
		},
	}
}

func TestWriteReadRoundtrip(t *testing.T) {
	s := New(t.TempDir(), Options{BaseURL: "https://comics.example.net", Author: "ops@example.net"})
	ctx := context.Background()

	if err := s.Write(ctx, testComic, testEntries()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := s.Read(ctx, testComic.ID)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	// Served order is newest first.
	if got[0].StableID != "strip-2" || got[1].StableID != "strip-1" {
		t.Errorf("unexpected order: %s, %s", got[0].StableID, got[1].StableID)
	}
	if !got[0].Published.Equal(testEntries()[0].Published) {
		t.Errorf("published time mangled: %v", got[0].Published)
	}
	if len(got[0].Images) != 1 || got[0].Images[0].URL != "https://cdn.example.net/2.png" {
		t.Errorf("image not recovered: %+v", got[0].Images)
	}
}

func TestReadMissingIsEmptyNotError(t *testing.T) {
	s := New(t.TempDir(), Options{})

	entries, err := s.Read(context.Background(), "nosuchcomic")
	if err != nil {
		t.Fatalf("missing store should not error, got %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty result, got %d entries", len(entries))
	}
}

func TestReadCorruptReportsSentinel(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, Options{})
	if err := os.WriteFile(filepath.Join(dir, "broken.xml"), []byte("<<< not xml"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := s.Read(context.Background(), "broken")
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("corrupt read should return empty entries, got %d", len(entries))
	}
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, Options{})

	if err := s.Write(context.Background(), testComic, testEntries()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("temporary files left behind: %v", matches)
	}
}

func TestWriteEmitsEnclosureForSingleImage(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, Options{})

	if err := s.Write(context.Background(), testComic, testEntries()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := os.ReadFile(s.Path(testComic.ID))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `url="https://cdn.example.net/2.png"`) {
		t.Error("expected enclosure for single-image entry")
	}
	if !strings.Contains(string(data), `type="image/png"`) {
		t.Error("expected image/png enclosure type")
	}
}

func TestWriteMultiPanelBodyEmbedsAllImages(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, Options{})

	entry := core.Entry{
		StableID:  "multi",
		Title:     "Multi panel",
		URL:       "https://example.net/testcomic/multi",
		Published: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		Images: []core.Image{
			{URL: "https://cdn.example.net/a.png"},
			{URL: "https://cdn.example.net/b.png"},
		},
	}
	if err := s.Write(context.Background(), testComic, []core.Entry{entry}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := s.Read(context.Background(), testComic.ID)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	// Panels come back from the body in order.
	if len(got[0].Images) != 2 || got[0].Images[0].URL != "https://cdn.example.net/a.png" {
		t.Fatalf("panel order not preserved: %+v", got[0].Images)
	}
}

func TestChannelDescriptionRendersAboutMarkdown(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, Options{})

	comic := testComic
	comic.About = "Daily strips by **A. Cartoonist**."
	if err := s.Write(context.Background(), comic, testEntries()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := os.ReadFile(s.Path(comic.ID))
	if err != nil {
		t.Fatal(err)
	}
	// The body is XML-escaped inside the channel description element.
	if !strings.Contains(string(data), "&lt;strong&gt;A. Cartoonist&lt;/strong&gt;") {
		t.Error("expected about markdown rendered into channel description")
	}
}
