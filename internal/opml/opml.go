// Package opml builds an OPML 2.0 subscription bundle so a feed reader can
// subscribe to every published comic in one import.
package opml

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/stripfeed/stripfeed/internal/config"
)

type Document struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

type Head struct {
	Title       string `xml:"title"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type Body struct {
	Outlines []Outline `xml:"outline"`
}

type Outline struct {
	Type    string `xml:"type,attr"`
	Text    string `xml:"text,attr"`
	Title   string `xml:"title,attr"`
	XMLURL  string `xml:"xmlUrl,attr"`
	HTMLURL string `xml:"htmlUrl,attr,omitempty"`
}

// FeedURLFunc resolves a comic id to the URL its feed document is served at.
type FeedURLFunc func(comicID string) string

// Build assembles a document for the given comics. An empty ids slice selects
// every comic; an id that matches no configured comic is an error.
func Build(comics []config.Comic, ids []string, feedURL FeedURLFunc, now time.Time) (*Document, error) {
	selected := comics
	if len(ids) > 0 {
		byID := make(map[string]config.Comic, len(comics))
		for _, comic := range comics {
			byID[comic.ID] = comic
		}
		selected = make([]config.Comic, 0, len(ids))
		for _, id := range ids {
			comic, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("unknown comic %q", id)
			}
			selected = append(selected, comic)
		}
	}

	doc := &Document{
		Version: "2.0",
		Head: Head{
			Title:       "Comic feeds",
			DateCreated: now.UTC().Format(time.RFC1123Z),
		},
	}
	for _, comic := range selected {
		doc.Body.Outlines = append(doc.Body.Outlines, Outline{
			Type:    "rss",
			Text:    comic.Title,
			Title:   comic.Title,
			XMLURL:  feedURL(comic.ID),
			HTMLURL: comic.SiteURL,
		})
	}
	return doc, nil
}

// Marshal renders the document with the XML declaration readers expect.
func Marshal(doc *Document) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal opml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
