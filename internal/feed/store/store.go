// Package store persists one RSS 2.0 document per comic. It is the only
// package aware of the on-disk format; the merge engine only ever sees the
// entry model.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/mmcdole/gofeed"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/stripfeed/stripfeed/internal/config"
	"github.com/stripfeed/stripfeed/internal/core"
	"github.com/stripfeed/stripfeed/internal/feed"
)

// ErrCorrupt marks a store unit that exists but cannot be parsed. Callers are
// expected to log it and proceed with an empty existing set; unreadable old
// data must never block new data from being saved.
var ErrCorrupt = errors.New("feed store: corrupt document")

// Options carry the feed-level fields emitted once per document.
type Options struct {
	BaseURL string
	Author  string
}

type Store struct {
	dir      string
	opts     Options
	parser   *gofeed.Parser
	markdown goldmark.Markdown
}

func New(dir string, opts Options) *Store {
	return &Store{
		dir:      dir,
		opts:     opts,
		parser:   gofeed.NewParser(),
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Path returns the document location for a comic.
func (s *Store) Path(comicID string) string {
	return filepath.Join(s.dir, comicID+".xml")
}

// FeedURL returns the public URL a comic's document is served under.
func (s *Store) FeedURL(comicID string) string {
	base := strings.TrimRight(s.opts.BaseURL, "/")
	if base == "" {
		return "/feeds/" + comicID + ".xml"
	}
	return base + "/feeds/" + comicID + ".xml"
}

// Read loads a comic's persisted entries. A missing document is an empty
// result, not an error. A document that exists but cannot be read or parsed
// reports ErrCorrupt alongside an empty result.
func (s *Store) Read(ctx context.Context, comicID string) ([]core.Entry, error) {
	logger := core.LoggerFromContext(ctx)

	data, err := os.ReadFile(s.Path(comicID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	doc, err := s.parser.ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	entries := make([]core.Entry, 0, len(doc.Items))
	for _, item := range doc.Items {
		var published time.Time
		var fallback bool
		if item.PublishedParsed != nil {
			published, fallback = feed.NormalizeTime(*item.PublishedParsed)
		} else {
			published, fallback = feed.Normalize(item.Published)
		}
		if fallback {
			logger.Warn("stored entry has unusable publication time, substituting now",
				"comic", comicID, "entry", item.Link, "raw", item.Published)
		}

		var images []core.Image
		for _, enc := range item.Enclosures {
			if enc != nil && enc.URL != "" {
				images = append(images, core.Image{URL: enc.URL})
			}
		}
		if len(images) == 0 {
			// Older store schemas carried panels only inside the body.
			images = feed.RecoverImages(item.Description)
		}

		entries = append(entries, core.Entry{
			StableID:    item.GUID,
			Title:       item.Title,
			URL:         item.Link,
			Images:      images,
			Published:   published,
			Description: item.Description,
		})
	}
	return entries, nil
}

// Write replaces a comic's document with the given entries. Entries must
// already be in newest-first order; the serializer appends items in the order
// given, so the served document keeps that order (the external contract).
// The replacement is atomic: the document is written to a temporary file in
// the same directory and renamed into place.
func (s *Store) Write(ctx context.Context, comic config.Comic, entries []core.Entry) error {
	_ = ctx
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create feed directory: %w", err)
	}

	doc := &feeds.Feed{
		Title:       comic.Title,
		Link:        &feeds.Link{Href: siteOrFeedURL(comic, s.FeedURL(comic.ID))},
		Description: s.channelDescription(comic),
		Created:     time.Now().UTC(),
	}
	if s.opts.Author != "" {
		doc.Author = &feeds.Author{Name: s.opts.Author}
	}

	for _, e := range entries {
		item := &feeds.Item{
			Title:       e.Title,
			Link:        &feeds.Link{Href: e.URL},
			Id:          e.Identity(),
			Description: entryBody(e),
			Created:     e.Published.UTC(),
		}
		if len(e.Images) == 1 {
			item.Enclosure = &feeds.Enclosure{
				Url:    e.Images[0].URL,
				Type:   imageMIME(e.Images[0].URL),
				Length: "0",
			}
		}
		doc.Items = append(doc.Items, item)
	}

	rss, err := doc.ToRss()
	if err != nil {
		return fmt.Errorf("serialize feed for %s: %w", comic.ID, err)
	}

	path := s.Path(comic.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(rss), 0o644); err != nil {
		return fmt.Errorf("write feed for %s: %w", comic.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace feed for %s: %w", comic.ID, err)
	}
	return nil
}

func (s *Store) channelDescription(comic config.Comic) string {
	about := strings.TrimSpace(comic.About)
	if about == "" {
		return comic.Title + " strips, republished as RSS."
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(about), &buf); err != nil {
		return about
	}
	return strings.TrimSpace(buf.String())
}

func siteOrFeedURL(comic config.Comic, feedURL string) string {
	if comic.SiteURL != "" {
		return comic.SiteURL
	}
	return feedURL
}

// entryBody builds the HTML body served for an entry. Bodies that already
// embed their panels are kept verbatim; otherwise one <img> per panel is
// appended after the description, preserving panel order.
func entryBody(e core.Entry) string {
	var b strings.Builder
	b.WriteString(e.Description)
	if strings.Contains(strings.ToLower(e.Description), "<img") {
		return b.String()
	}
	for _, img := range e.Images {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(`<p><img src="` + htmlEscape(img.URL) + `"`)
		if img.Alt != "" {
			b.WriteString(` alt="` + htmlEscape(img.Alt) + `"`)
		}
		if img.Title != "" {
			b.WriteString(` title="` + htmlEscape(img.Title) + `"`)
		}
		b.WriteString(`></p>`)
	}
	return b.String()
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

func imageMIME(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "image/jpeg"
	}
	if t := mime.TypeByExtension(filepath.Ext(u.Path)); strings.HasPrefix(t, "image/") {
		return t
	}
	return "image/jpeg"
}
