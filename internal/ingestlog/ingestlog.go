// Package ingestlog remembers which spool batches have already been folded
// into a feed, so batches external scrapers have not yet cleaned up are not
// ingested twice.
package ingestlog

import "context"

// Ledger tracks ingested batch names per comic.
type Ledger interface {
	// Ingested returns the set of batch names already processed for a comic.
	Ingested(ctx context.Context, comicID string) (map[string]bool, error)
	// Mark records batches as processed for a comic.
	Mark(ctx context.Context, comicID string, batches []string) error
	Close() error
}
