// Package scrape defines the contract between the update driver and the
// scraper capabilities that produce entries. How an entry is produced (HTTP,
// browser automation, an out-of-process spool) is invisible behind it.
package scrape

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/stripfeed/stripfeed/internal/core"
)

// ErrNoStrip signals that a source legitimately has no strip for the
// requested date. It is an expected outcome, not a failure.
var ErrNoStrip = errors.New("scrape: no strip for date")

// Scraper produces one entry for a comic on a given date.
type Scraper interface {
	Name() string
	Scrape(ctx context.Context, comicID string, date time.Time) (*core.Entry, error)
}

// Registry maps a comic's declared source name to its scraper. It is owned by
// the caller and passed down explicitly; there is no process-global registry.
type Registry struct {
	scrapers map[string]Scraper
}

func NewRegistry(scrapers ...Scraper) *Registry {
	r := &Registry{scrapers: map[string]Scraper{}}
	for _, s := range scrapers {
		r.Register(s)
	}
	return r
}

func (r *Registry) Register(s Scraper) {
	if s == nil {
		return
	}
	r.scrapers[strings.ToLower(s.Name())] = s
}

func (r *Registry) Get(name string) (Scraper, bool) {
	s, ok := r.scrapers[strings.ToLower(name)]
	return s, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scrapers))
	for name := range r.scrapers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
