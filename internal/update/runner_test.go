package update

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stripfeed/stripfeed/internal/config"
	"github.com/stripfeed/stripfeed/internal/core"
	"github.com/stripfeed/stripfeed/internal/feed/store"
	"github.com/stripfeed/stripfeed/internal/ingestlog"
	notifymock "github.com/stripfeed/stripfeed/internal/notify/mock"
	"github.com/stripfeed/stripfeed/internal/scrape"
	scrapemock "github.com/stripfeed/stripfeed/internal/scrape/mock"
	"github.com/stripfeed/stripfeed/internal/scrape/spool"
)

var target = time.Date(2025, 6, 30, 6, 0, 0, 0, time.UTC)

func mockEntry(comicID, date string) core.Entry {
	published, _ := time.Parse("2006-01-02", date)
	return core.Entry{
		StableID:  comicID + "/" + date,
		Title:     comicID + " for " + date,
		URL:       "https://example.net/" + comicID + "/" + date,
		Images:    []core.Image{{URL: "https://cdn.example.net/" + comicID + "/" + date + ".gif"}},
		Published: published,
	}
}

func newMockScraper() *scrapemock.Scraper {
	return &scrapemock.Scraper{
		SourceName: "mock",
		Entries: map[string]map[string]core.Entry{
			"calvin": {
				"2025-06-29": mockEntry("calvin", "2025-06-29"),
				"2025-06-30": mockEntry("calvin", "2025-06-30"),
			},
			"farside": {
				"2025-06-30": mockEntry("farside", "2025-06-30"),
			},
		},
	}
}

func testComics() []config.Comic {
	return []config.Comic{
		{ID: "calvin", Title: "Calvin", Source: "mock"},
		{ID: "farside", Title: "Far Side", Source: "mock"},
	}
}

func newTestRunner(t *testing.T, dir string, opts Options) *Runner {
	t.Helper()
	if opts.Store == nil {
		opts.Store = store.New(dir, store.Options{})
	}
	if opts.Comics == nil {
		opts.Comics = testComics()
	}
	if opts.HistoryDays == 0 {
		opts.HistoryDays = 2
	}
	r, err := New(nil, opts)
	if err != nil {
		t.Fatalf("failed to build runner: %v", err)
	}
	return r
}

func TestRunOnceWritesFeeds(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(t, dir, Options{Registry: scrape.NewRegistry(newMockScraper())})

	summary, err := r.RunOnce(context.Background(), target)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Succeeded != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	s := store.New(dir, store.Options{})
	calvin, err := s.Read(context.Background(), "calvin")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(calvin) != 2 {
		t.Fatalf("expected 2 calvin entries, got %d", len(calvin))
	}
	if calvin[0].StableID != "calvin/2025-06-30" {
		t.Errorf("expected newest entry first, got %s", calvin[0].StableID)
	}
}

func TestRunOnceSkipsComicWithNothingScraped(t *testing.T) {
	dir := t.TempDir()
	s := store.New(dir, store.Options{})
	comic := config.Comic{ID: "quiet", Title: "Quiet", Source: "mock"}

	// Seed existing history, then run a cycle where the scraper has nothing.
	seed := []core.Entry{mockEntry("quiet", "2025-06-01")}
	if err := s.Write(context.Background(), comic, seed); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(s.Path("quiet"))
	if err != nil {
		t.Fatal(err)
	}

	r := newTestRunner(t, dir, Options{
		Registry: scrape.NewRegistry(&scrapemock.Scraper{SourceName: "mock"}),
		Comics:   []config.Comic{comic},
	})
	summary, err := r.RunOnce(context.Background(), target)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Succeeded != 1 || summary.Skipped != 1 {
		t.Fatalf("expected skipped success, got %+v", summary)
	}

	after, err := os.ReadFile(s.Path("quiet"))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("existing feed was rewritten on an empty cycle")
	}
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	// A directory squatting on one comic's document path makes its final
	// rename fail while the other comic proceeds.
	if err := os.MkdirAll(filepath.Join(dir, "calvin.xml"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := newTestRunner(t, dir, Options{Registry: scrape.NewRegistry(newMockScraper())})
	summary, err := r.RunOnce(context.Background(), target)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Failed != 1 || summary.Succeeded != 1 {
		t.Fatalf("expected one failure and one success, got %+v", summary)
	}
	if len(summary.FailedComics) != 1 || summary.FailedComics[0] != "calvin" {
		t.Errorf("unexpected failed comics: %v", summary.FailedComics)
	}

	s := store.New(dir, store.Options{})
	farside, err := s.Read(context.Background(), "farside")
	if err != nil || len(farside) != 1 {
		t.Fatalf("sibling comic should have been written: %v, %d entries", err, len(farside))
	}
}

func TestRunOnceIdempotentAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(t, dir, Options{Registry: scrape.NewRegistry(newMockScraper())})
	ctx := context.Background()

	if _, err := r.RunOnce(ctx, target); err != nil {
		t.Fatal(err)
	}
	if _, err := r.RunOnce(ctx, target); err != nil {
		t.Fatal(err)
	}

	s := store.New(dir, store.Options{})
	calvin, err := s.Read(ctx, "calvin")
	if err != nil {
		t.Fatal(err)
	}
	if len(calvin) != 2 {
		t.Fatalf("re-running the same cycle changed the entry count: %d", len(calvin))
	}
}

func TestRunOnceMergesSpoolBatchesThroughLedger(t *testing.T) {
	dir := t.TempDir()
	spoolDir := filepath.Join(dir, "spool")
	if err := os.MkdirAll(filepath.Join(spoolDir, "calvin"), 0o755); err != nil {
		t.Fatal(err)
	}
	batch := `[{"stable_id":"calvin/sp1","title":"Spooled","url":"https://example.net/calvin/sp1","published":"2025-06-28"}]`
	if err := os.WriteFile(filepath.Join(spoolDir, "calvin", "batch1.json"), []byte(batch), 0o644); err != nil {
		t.Fatal(err)
	}

	ledger, err := ingestlog.NewSQLite(filepath.Join(dir, "ingest.db"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()

	feedDir := filepath.Join(dir, "feeds")
	r := newTestRunner(t, feedDir, Options{
		Spool:  spool.New(spoolDir),
		Ledger: ledger,
		Comics: []config.Comic{{ID: "calvin", Title: "Calvin", Source: "spool"}},
	})
	ctx := context.Background()

	first, err := r.RunOnce(ctx, target)
	if err != nil {
		t.Fatal(err)
	}
	if first.Succeeded != 1 || first.Skipped != 0 {
		t.Fatalf("unexpected first summary: %+v", first)
	}

	// Second run: the batch is in the ledger, nothing new arrives, the
	// pipeline skips without touching the feed.
	second, err := r.RunOnce(ctx, target)
	if err != nil {
		t.Fatal(err)
	}
	if second.Skipped != 1 {
		t.Fatalf("expected ledger to skip the ingested batch: %+v", second)
	}
}

func TestRunOnceSendsFailureReport(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "calvin.xml"), 0o755); err != nil {
		t.Fatal(err)
	}

	sender := &notifymock.Sender{}
	r := newTestRunner(t, dir, Options{
		Registry: scrape.NewRegistry(newMockScraper()),
		Notifier: sender,
		Notify:   &config.NotifyConfig{From: "bot@example.net", To: "ops@example.net"},
	})
	if _, err := r.RunOnce(context.Background(), target); err != nil {
		t.Fatal(err)
	}

	if len(sender.Messages) != 1 {
		t.Fatalf("expected 1 failure report, got %d", len(sender.Messages))
	}
	if sender.Messages[0].To != "ops@example.net" {
		t.Errorf("unexpected recipient: %s", sender.Messages[0].To)
	}
}

func TestRunOnceToleratesScraperPanic(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(t, dir, Options{
		Registry: scrape.NewRegistry(&panickyScraper{}),
		Comics:   []config.Comic{{ID: "calvin", Title: "Calvin", Source: "mock"}},
	})

	summary, err := r.RunOnce(context.Background(), target)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("expected the panicking pipeline to count as failed: %+v", summary)
	}
}

type panickyScraper struct{}

func (p *panickyScraper) Name() string { return "mock" }

func (p *panickyScraper) Scrape(ctx context.Context, comicID string, date time.Time) (*core.Entry, error) {
	panic("markup changed again")
}

func TestNewRejectsBadFilterRule(t *testing.T) {
	_, err := New(nil, Options{
		Store: store.New(t.TempDir(), store.Options{}),
		Comics: []config.Comic{{
			ID: "calvin", Title: "Calvin",
			Rules: []config.FilterRule{{Name: "bad", Rule: "title.value contains"}},
		}},
	})
	if err == nil {
		t.Fatal("expected error for invalid rule expression")
	}
	if !strings.Contains(err.Error(), "calvin") {
		t.Errorf("error should name the comic: %v", err)
	}
}
