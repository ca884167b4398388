package config

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Document represents the top-level structure of a stripfeed.yaml file.
type Document struct {
	Feed   FeedConfig    `yaml:"feed"`
	Update UpdateConfig  `yaml:"update,omitempty"`
	Notify *NotifyConfig `yaml:"notify,omitempty"`
	Comics []Comic       `yaml:"comics"`
}

// FeedConfig controls the persisted feed documents.
type FeedConfig struct {
	// Directory holds one RSS document per comic.
	Directory string `yaml:"directory"`
	// BaseURL is the public URL the feeds are served under, used for
	// OPML xmlUrl attributes and the comics listing.
	BaseURL string `yaml:"base_url,omitempty"`
	Author  string `yaml:"author,omitempty"`
	// MaxEntries caps each feed. Zero means the default of 100.
	MaxEntries int `yaml:"max_entries,omitempty"`
}

// Comic declares one tracked strip. Source names the scraper capability that
// produces entries for it.
type Comic struct {
	ID      string `yaml:"id"`
	Title   string `yaml:"title"`
	Source  string `yaml:"source"`
	SiteURL string `yaml:"site_url,omitempty"`
	// About is markdown, rendered into the feed's channel description.
	About string       `yaml:"about,omitempty"`
	Rules []FilterRule `yaml:"rules,omitempty"`
}

// FilterRule drops scraped entries matching an expression before they reach
// the merge engine.
type FilterRule struct {
	Name   string `yaml:"name"`
	Rule   string `yaml:"rule"`
	Action string `yaml:"action,omitempty"` // only "drop" is supported
}

// UpdateConfig controls the update driver.
type UpdateConfig struct {
	// Workers bounds concurrent per-comic pipelines. Zero means 8.
	Workers int `yaml:"workers,omitempty"`
	// HistoryDays is how many days back each scraper is asked for. Zero means 1.
	HistoryDays int `yaml:"history_days,omitempty"`
	// SpoolDir is where external scraper processes drop entry batches.
	SpoolDir string `yaml:"spool_dir,omitempty"`
	// Schedule is a cron expression for watch mode.
	Schedule string `yaml:"schedule,omitempty"`
	Timezone string `yaml:"timezone,omitempty"`
	// IngestLogDSN is the sqlite path for the spool ingest ledger. Empty
	// disables the ledger.
	IngestLogDSN string `yaml:"ingest_log_dsn,omitempty"`
	// IngestLogTTL is how long processed batch names are remembered,
	// e.g. "30d". Empty means no expiry.
	IngestLogTTL string `yaml:"ingest_log_ttl,omitempty"`
}

// NotifyConfig enables a failure-report email after update runs.
type NotifyConfig struct {
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Subject string `yaml:"subject,omitempty"`
}

func (d *Document) Validate() error {
	if strings.TrimSpace(d.Feed.Directory) == "" {
		return fmt.Errorf("feed.directory is required")
	}
	if d.Feed.MaxEntries < 0 {
		return fmt.Errorf("feed.max_entries must be >= 0")
	}
	if len(d.Comics) == 0 {
		return fmt.Errorf("at least one comic is required")
	}
	seen := map[string]bool{}
	for i, comic := range d.Comics {
		if strings.TrimSpace(comic.ID) == "" {
			return fmt.Errorf("comics[%d]: id is required", i)
		}
		if strings.ContainsAny(comic.ID, "/\\") {
			return fmt.Errorf("comic %q: id must not contain path separators", comic.ID)
		}
		if seen[comic.ID] {
			return fmt.Errorf("comic %q: duplicate id", comic.ID)
		}
		seen[comic.ID] = true
		if strings.TrimSpace(comic.Title) == "" {
			return fmt.Errorf("comic %q: title is required", comic.ID)
		}
		for _, rule := range comic.Rules {
			if rule.Rule == "" {
				return fmt.Errorf("comic %q: rule %q has no expression", comic.ID, rule.Name)
			}
			if rule.Action != "" && rule.Action != "drop" {
				return fmt.Errorf("comic %q: rule %q: unsupported action %q", comic.ID, rule.Name, rule.Action)
			}
		}
	}
	if d.Update.IngestLogTTL != "" {
		if _, err := parseDurationExtended(d.Update.IngestLogTTL); err != nil {
			return fmt.Errorf("update.ingest_log_ttl: %w", err)
		}
	}
	if d.Notify != nil {
		if _, err := mail.ParseAddress(d.Notify.From); err != nil {
			return fmt.Errorf("notify.from: %w", err)
		}
		if _, err := mail.ParseAddressList(d.Notify.To); err != nil {
			return fmt.Errorf("notify.to: %w", err)
		}
	}
	return nil
}

// IngestTTL returns the parsed ingest ledger TTL, or zero when unset.
func (u UpdateConfig) IngestTTL() time.Duration {
	if u.IngestLogTTL == "" {
		return 0
	}
	ttl, err := parseDurationExtended(u.IngestLogTTL)
	if err != nil {
		return 0
	}
	return ttl
}

// Comic returns the declared comic with the given id.
func (d *Document) Comic(id string) (Comic, bool) {
	for _, comic := range d.Comics {
		if comic.ID == id {
			return comic, true
		}
	}
	return Comic{}, false
}
