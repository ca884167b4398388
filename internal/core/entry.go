package core

import "time"

// Image is a single strip panel. Order within an Entry is panel order and is
// preserved through every transformation.
type Image struct {
	URL   string `json:"url" yaml:"url"`
	Alt   string `json:"alt,omitempty" yaml:"alt,omitempty"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// Entry is one published strip, as scraped from a source or as read back from
// a persisted feed document. Published is always UTC.
type Entry struct {
	StableID    string    `json:"stable_id,omitempty" yaml:"stable_id,omitempty"`
	Title       string    `json:"title" yaml:"title"`
	URL         string    `json:"url" yaml:"url"`
	Images      []Image   `json:"images,omitempty" yaml:"images,omitempty"`
	Published   time.Time `json:"published" yaml:"published"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// Identity returns the key entries are deduplicated on: the explicit stable ID
// when present, then the canonical URL, then a value synthesized from the URL
// and publication time.
func (e Entry) Identity() string {
	if e.StableID != "" {
		return e.StableID
	}
	if e.URL != "" {
		return e.URL
	}
	return e.URL + "#" + e.Published.UTC().Format(time.RFC3339)
}
