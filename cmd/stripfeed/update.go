package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stripfeed/stripfeed/internal/config"
	"github.com/stripfeed/stripfeed/internal/feed/store"
	"github.com/stripfeed/stripfeed/internal/ingestlog"
	"github.com/stripfeed/stripfeed/internal/notify/smtp"
	"github.com/stripfeed/stripfeed/internal/observability/otelx"
	"github.com/stripfeed/stripfeed/internal/scrape"
	"github.com/stripfeed/stripfeed/internal/scrape/spool"
	"github.com/stripfeed/stripfeed/internal/update"
)

func updateCmd(env config.EnvConfig) *cobra.Command {
	var (
		feedsFlag    string
		spoolFlag    string
		dateFlag     string
		daysFlag     int
		workersFlag  int
		scheduleFlag string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Collect scraped strips and rewrite the feed documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			doc, err := loadDocument(cmd, env)
			if err != nil {
				return err
			}
			if feedsFlag != "" {
				doc.Feed.Directory = feedsFlag
			}
			if spoolFlag != "" {
				doc.Update.SpoolDir = spoolFlag
			}
			if daysFlag > 0 {
				doc.Update.HistoryDays = daysFlag
			}
			if workersFlag > 0 {
				doc.Update.Workers = workersFlag
			}
			if scheduleFlag != "" {
				doc.Update.Schedule = scheduleFlag
			}

			target := time.Now().UTC()
			if dateFlag != "" {
				target, err = time.Parse("2006-01-02", dateFlag)
				if err != nil {
					return fmt.Errorf("invalid --date %q: %w", dateFlag, err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := otelx.Init(ctx, logger, env.OTel)
			if err != nil {
				return fmt.Errorf("failed to initialize tracing: %w", err)
			}
			if shutdown != nil {
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := shutdown(shutdownCtx); err != nil {
						logger.Warn("trace exporter shutdown failed", "error", err)
					}
				}()
			}

			opts := update.Options{
				Store: store.New(doc.Feed.Directory, store.Options{
					BaseURL: doc.Feed.BaseURL,
					Author:  doc.Feed.Author,
				}),
				Registry:    scrape.NewRegistry(),
				Comics:      doc.Comics,
				Workers:     doc.Update.Workers,
				HistoryDays: doc.Update.HistoryDays,
				MaxEntries:  doc.Feed.MaxEntries,
				Notify:      doc.Notify,
			}
			if doc.Update.SpoolDir != "" {
				opts.Spool = spool.New(doc.Update.SpoolDir)
			}
			if doc.Update.IngestLogDSN != "" {
				ledger, err := ingestlog.NewSQLite(doc.Update.IngestLogDSN, doc.Update.IngestTTL())
				if err != nil {
					return fmt.Errorf("failed to open ingest ledger: %w", err)
				}
				defer ledger.Close()
				opts.Ledger = ledger
			}
			if doc.Notify != nil && env.SMTP.Host != "" {
				sender, err := smtp.NewSender(env.SMTP)
				if err != nil {
					return fmt.Errorf("failed to configure mail sender: %w", err)
				}
				opts.Notifier = sender
			}

			runner, err := update.New(logger, opts)
			if err != nil {
				return err
			}

			if doc.Update.Schedule != "" {
				logger.Info("watching on schedule", "schedule", doc.Update.Schedule)
				return runner.Watch(ctx, doc.Update.Schedule, doc.Update.Timezone)
			}

			summary, err := runner.RunOnce(ctx, target)
			if err != nil {
				return err
			}
			printSummary(cmd, summary)
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d comics failed", summary.Failed, summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&feedsFlag, "feeds", "", "feed store directory (overrides config)")
	cmd.Flags().StringVar(&spoolFlag, "spool", "", "scraper spool directory (overrides config)")
	cmd.Flags().StringVar(&dateFlag, "date", "", "target date as YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&daysFlag, "days", 0, "history window in days (overrides config)")
	cmd.Flags().IntVar(&workersFlag, "workers", 0, "concurrent comic pipelines (default 8)")
	cmd.Flags().StringVar(&scheduleFlag, "schedule", "", "cron expression; keep running and update on schedule")
	return cmd
}

func printSummary(cmd *cobra.Command, summary *update.Summary) {
	cmd.Printf("%d/%d comics updated (%d entries", summary.Succeeded, summary.Total, summary.Entries)
	if summary.Skipped > 0 {
		cmd.Printf(", %d unchanged", summary.Skipped)
	}
	cmd.Println(")")
	if len(summary.FailedComics) > 0 {
		cmd.Printf("failed: %s\n", strings.Join(summary.FailedComics, ", "))
	}
}
