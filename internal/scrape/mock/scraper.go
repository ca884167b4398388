package mock

import (
	"context"
	"time"

	"github.com/stripfeed/stripfeed/internal/core"
	"github.com/stripfeed/stripfeed/internal/scrape"
)

// Scraper returns scripted entries keyed by comic id and date (2006-01-02).
type Scraper struct {
	SourceName string
	Entries    map[string]map[string]core.Entry
	Err        error
	Calls      int
}

func (s *Scraper) Name() string {
	if s.SourceName == "" {
		return "mock"
	}
	return s.SourceName
}

func (s *Scraper) Scrape(ctx context.Context, comicID string, date time.Time) (*core.Entry, error) {
	_ = ctx
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	byDate, ok := s.Entries[comicID]
	if !ok {
		return nil, scrape.ErrNoStrip
	}
	entry, ok := byDate[date.UTC().Format("2006-01-02")]
	if !ok {
		return nil, scrape.ErrNoStrip
	}
	return &entry, nil
}
