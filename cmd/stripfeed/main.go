package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/stripfeed/stripfeed/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:           "stripfeed",
		Short:         "stripfeed republishes comic strips as RSS feeds",
		Long:          "Collects newly scraped comic strips, merges them into per-comic RSS documents, and serves the results to feed readers.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	env := config.LoadEnv()
	root.PersistentFlags().String("config", env.ConfigPath, "path to the stripfeed YAML document")

	root.AddCommand(
		updateCmd(env),
		serveCmd(env),
		opmlCmd(env),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// loadDocument reads the config named by --config, then applies env and flag
// path overrides on top of the document.
func loadDocument(cmd *cobra.Command, env config.EnvConfig) (*config.Document, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	doc, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if env.FeedDir != "" {
		doc.Feed.Directory = env.FeedDir
	}
	if env.SpoolDir != "" {
		doc.Update.SpoolDir = env.SpoolDir
	}
	return doc, nil
}
