package main

import (
	"github.com/spf13/cobra"

	"github.com/stripfeed/stripfeed/internal/config"
	"github.com/stripfeed/stripfeed/internal/feed/store"
	"github.com/stripfeed/stripfeed/internal/server"
)

func serveCmd(env config.EnvConfig) *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the feed documents, comics listing, and OPML bundle over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			doc, err := loadDocument(cmd, env)
			if err != nil {
				return err
			}

			st := store.New(doc.Feed.Directory, store.Options{
				BaseURL: doc.Feed.BaseURL,
				Author:  doc.Feed.Author,
			})
			srv := server.New(logger, st, doc.Comics)

			addr := addrFlag
			if addr == "" {
				addr = env.ListenAddr
			}
			logger.Info("serving feeds", "addr", addr, "comics", len(doc.Comics))
			return srv.Start(addr)
		},
	}

	cmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (default $STRIPFEED_LISTEN_ADDR or :8080)")
	return cmd
}
