// Package update drives the per-comic scrape-and-merge pipelines.
package update

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stripfeed/stripfeed/internal/config"
	"github.com/stripfeed/stripfeed/internal/core"
	"github.com/stripfeed/stripfeed/internal/feed"
	"github.com/stripfeed/stripfeed/internal/feed/store"
	"github.com/stripfeed/stripfeed/internal/filter"
	"github.com/stripfeed/stripfeed/internal/ingestlog"
	"github.com/stripfeed/stripfeed/internal/notify"
	"github.com/stripfeed/stripfeed/internal/retry"
	"github.com/stripfeed/stripfeed/internal/scrape"
	"github.com/stripfeed/stripfeed/internal/scrape/spool"
)

const defaultWorkers = 8

type Options struct {
	Store    *store.Store
	Registry *scrape.Registry
	Spool    *spool.Source
	Ledger   ingestlog.Ledger
	Notifier notify.Sender
	Notify   *config.NotifyConfig
	Comics   []config.Comic
	// Workers bounds concurrent comic pipelines. Zero means 8.
	Workers int
	// HistoryDays is how many days back scrapers are asked for. Zero means 1.
	HistoryDays int
	MaxEntries  int
}

// Summary is the outcome of one update run. Skipped comics (nothing scraped
// this cycle) count as succeeded; their persisted feeds are left untouched.
type Summary struct {
	Total        int
	Succeeded    int
	Failed       int
	Skipped      int
	Entries      int
	FailedComics []string
}

type Runner struct {
	logger *slog.Logger
	opts   Options
	rules  map[string][]filter.Rule
	locks  map[string]*sync.Mutex
	tracer trace.Tracer
}

func New(logger *slog.Logger, opts Options) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 1
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = feed.DefaultMaxEntries
	}

	rules := make(map[string][]filter.Rule, len(opts.Comics))
	locks := make(map[string]*sync.Mutex, len(opts.Comics))
	for _, comic := range opts.Comics {
		compiled, err := filter.Compile(comic.Rules)
		if err != nil {
			return nil, fmt.Errorf("comic %s: %w", comic.ID, err)
		}
		rules[comic.ID] = compiled
		locks[comic.ID] = &sync.Mutex{}
	}

	return &Runner{
		logger: logger,
		opts:   opts,
		rules:  rules,
		locks:  locks,
		tracer: otel.Tracer("github.com/stripfeed/stripfeed/internal/update"),
	}, nil
}

type comicResult struct {
	comicID string
	entries int
	skipped bool
	err     error
}

// RunOnce processes every configured comic once, in parallel over the worker
// pool. Per-comic failures are isolated and tallied; they never abort sibling
// pipelines.
func (r *Runner) RunOnce(ctx context.Context, target time.Time) (*Summary, error) {
	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	ctx = core.WithRunID(ctx, runID)
	ctx = core.WithLogger(ctx, r.logger.With("run_id", runID))

	ctx, span := r.tracer.Start(ctx, "update.run", trace.WithAttributes(
		attribute.Int("comics.total", len(r.opts.Comics)),
		attribute.String("target_date", target.UTC().Format("2006-01-02")),
	))
	defer span.End()

	jobs := make(chan config.Comic)
	results := make(chan comicResult)

	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for comic := range jobs {
				results <- r.safeProcess(ctx, comic, target)
			}
		}()
	}
	go func() {
		for _, comic := range r.opts.Comics {
			jobs <- comic
		}
		close(jobs)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	summary := &Summary{Total: len(r.opts.Comics)}
	for res := range results {
		if res.err != nil {
			summary.Failed++
			summary.FailedComics = append(summary.FailedComics, res.comicID)
			r.logger.Error("comic update failed", "run_id", runID, "comic", res.comicID, "error", res.err)
			continue
		}
		summary.Succeeded++
		summary.Entries += res.entries
		if res.skipped {
			summary.Skipped++
		}
	}

	span.SetAttributes(
		attribute.Int("comics.succeeded", summary.Succeeded),
		attribute.Int("comics.failed", summary.Failed),
	)
	if summary.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d comics failed", summary.Failed))
		r.sendFailureReport(ctx, summary)
	}

	r.logger.Info("update run finished",
		"run_id", runID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

// Watch runs RunOnce on a cron schedule until the context is cancelled.
func (r *Runner) Watch(ctx context.Context, schedule, timezone string) error {
	if schedule == "" {
		return fmt.Errorf("cron schedule is required")
	}
	location := time.UTC
	if timezone != "" {
		tz, err := time.LoadLocation(timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
		location = tz
	}

	c := cron.New(cron.WithLocation(location))
	_, err := c.AddFunc(schedule, func() {
		if _, err := r.RunOnce(ctx, time.Now().In(location)); err != nil {
			r.logger.Error("scheduled update run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	c.Start()
	r.logger.Info("watching", "schedule", schedule, "timezone", location.String())
	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	return nil
}

// safeProcess isolates one comic's pipeline: a panic in scraper code becomes
// that comic's failure, never the run's.
func (r *Runner) safeProcess(ctx context.Context, comic config.Comic, target time.Time) (res comicResult) {
	defer func() {
		if p := recover(); p != nil {
			res = comicResult{comicID: comic.ID, err: fmt.Errorf("panic in pipeline: %v", p)}
		}
	}()
	return r.processComic(ctx, comic, target)
}

func (r *Runner) processComic(ctx context.Context, comic config.Comic, target time.Time) comicResult {
	logger := core.LoggerFromContext(ctx).With("comic", comic.ID)
	ctx = core.WithComicID(ctx, comic.ID)
	ctx = core.WithLogger(ctx, logger)

	ctx, span := r.tracer.Start(ctx, "update.comic", trace.WithAttributes(
		attribute.String("comic.id", comic.ID),
		attribute.String("comic.source", comic.Source),
	))
	defer span.End()

	incoming, batches := r.collect(ctx, comic, target)
	incoming = filter.Apply(ctx, r.rules[comic.ID], incoming)

	// Nothing scraped this cycle: leave the persisted feed untouched. A
	// failed scrape must never truncate history.
	if len(incoming) == 0 {
		logger.Info("no new entries, skipping merge")
		return comicResult{comicID: comic.ID, skipped: true}
	}

	// One merge per comic at a time: load-modify-save must not interleave.
	lock := r.locks[comic.ID]
	lock.Lock()
	defer lock.Unlock()

	existing, err := r.opts.Store.Read(ctx, comic.ID)
	if err != nil {
		if !errors.Is(err, store.ErrCorrupt) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "store read failed")
			return comicResult{comicID: comic.ID, err: err}
		}
		// Unreadable old data must not block new data from being saved.
		logger.Warn("existing feed unreadable, merging against empty history", "error", err)
		existing = nil
	}

	merged := feed.Merge(existing, incoming, r.opts.MaxEntries)

	if err := r.opts.Store.Write(ctx, comic, merged); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store write failed")
		return comicResult{comicID: comic.ID, err: err}
	}

	// Mark spool batches only after the write landed; a marked-but-unwritten
	// batch would be lost forever.
	if r.opts.Ledger != nil && len(batches) > 0 {
		if err := r.opts.Ledger.Mark(ctx, comic.ID, batches); err != nil {
			logger.Warn("failed to record ingested batches", "error", err)
		}
	}

	logger.Info("feed updated", "new", len(incoming), "total", len(merged))
	span.SetAttributes(attribute.Int("entries.new", len(incoming)), attribute.Int("entries.total", len(merged)))
	return comicResult{comicID: comic.ID, entries: len(merged)}
}

// collect gathers this cycle's batch for a comic: per-date scraper calls over
// the history window, plus any pending spool batches. Scrape failures are
// logged and excluded; they never fail the pipeline.
func (r *Runner) collect(ctx context.Context, comic config.Comic, target time.Time) ([]core.Entry, []string) {
	logger := core.LoggerFromContext(ctx)
	var incoming []core.Entry

	if r.opts.Registry != nil {
		if scraper, ok := r.opts.Registry.Get(comic.Source); ok {
			for i := r.opts.HistoryDays - 1; i >= 0; i-- {
				date := target.UTC().AddDate(0, 0, -i)
				entry, err := scraper.Scrape(ctx, comic.ID, date)
				if errors.Is(err, scrape.ErrNoStrip) {
					continue
				}
				if err != nil {
					logger.Warn("scrape failed", "date", date.Format("2006-01-02"), "error", err)
					continue
				}
				if entry == nil {
					continue
				}
				e := *entry
				published, fallback := feed.NormalizeTime(e.Published)
				if fallback {
					logger.Warn("scraped entry missing publication time, substituting now", "url", e.URL)
				}
				e.Published = published
				incoming = append(incoming, e)
			}
		} else if comic.Source != "" && comic.Source != "spool" {
			logger.Warn("no scraper registered for source", "source", comic.Source)
		}
	}

	var ingested []string
	if r.opts.Spool != nil {
		skip := map[string]bool{}
		if r.opts.Ledger != nil {
			seen, err := r.opts.Ledger.Ingested(ctx, comic.ID)
			if err != nil {
				logger.Warn("ingest ledger unavailable, processing all batches", "error", err)
			} else {
				skip = seen
			}
		}
		entries, batches, err := r.opts.Spool.Collect(ctx, comic.ID, skip)
		if err != nil {
			logger.Warn("spool collection failed", "error", err)
		} else {
			incoming = append(incoming, entries...)
			ingested = batches
		}
	}

	return incoming, ingested
}

func (r *Runner) sendFailureReport(ctx context.Context, summary *Summary) {
	if r.opts.Notifier == nil || r.opts.Notify == nil {
		return
	}
	message := notify.FailureReport(
		r.opts.Notify.From,
		r.opts.Notify.To,
		r.opts.Notify.Subject,
		summary.Succeeded,
		summary.Total,
		summary.FailedComics,
	)
	err := retry.Do(ctx, retry.Config{Attempts: 3, BaseDelay: 500 * time.Millisecond}, func() error {
		return r.opts.Notifier.Send(ctx, message)
	})
	if err != nil {
		r.logger.Error("failed to send failure report", "error", err)
	}
}
