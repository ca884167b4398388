// Package spool ingests entry batches dropped on disk by out-of-process
// scrapers. A batch is one JSON file under <dir>/<comicID>/ holding an array
// of scraped-entry records; producers write whole files and never rewrite
// them, so file names double as ingest-ledger keys.
package spool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stripfeed/stripfeed/internal/core"
	"github.com/stripfeed/stripfeed/internal/feed"
)

// record is the wire shape external scrapers produce. Timestamps arrive as
// strings in whatever form the source site exposed; normalization happens
// here, at the boundary.
type record struct {
	StableID    string       `json:"stable_id,omitempty"`
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Images      []core.Image `json:"images,omitempty"`
	Published   string       `json:"published"`
	Description string       `json:"description,omitempty"`
}

type Source struct {
	dir string
}

func New(dir string) *Source {
	return &Source{dir: dir}
}

// Collect reads every pending batch for a comic and returns the decoded
// entries plus the batch file names they came from, in name order. A
// malformed batch file is logged and skipped; it never fails the cycle.
// Batches already marked ingested are excluded via the skip set.
func (s *Source) Collect(ctx context.Context, comicID string, skip map[string]bool) ([]core.Entry, []string, error) {
	logger := core.LoggerFromContext(ctx)

	dir := filepath.Join(s.dir, comicID)
	names, err := listBatches(dir)
	if err != nil {
		return nil, nil, err
	}

	var entries []core.Entry
	var ingested []string
	for _, name := range names {
		if skip[name] {
			continue
		}
		batch, err := readBatch(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("skipping malformed spool batch", "comic", comicID, "batch", name, "error", err)
			continue
		}
		for _, rec := range batch {
			published, fallback := feed.Normalize(rec.Published)
			if fallback {
				logger.Warn("scraped entry has unusable publication time, substituting now",
					"comic", comicID, "batch", name, "raw", rec.Published)
			}
			entries = append(entries, core.Entry{
				StableID:    rec.StableID,
				Title:       rec.Title,
				URL:         rec.URL,
				Images:      rec.Images,
				Published:   published,
				Description: rec.Description,
			})
		}
		ingested = append(ingested, name)
	}
	return entries, ingested, nil
}

func listBatches(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list spool batches: %w", err)
	}
	var names []string
	for _, item := range items {
		if item.IsDir() || !strings.HasSuffix(item.Name(), ".json") {
			continue
		}
		names = append(names, item.Name())
	}
	sort.Strings(names)
	return names, nil
}

func readBatch(path string) ([]record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var batch []record
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return batch, nil
}
