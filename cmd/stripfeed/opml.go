package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stripfeed/stripfeed/internal/config"
	"github.com/stripfeed/stripfeed/internal/feed/store"
	"github.com/stripfeed/stripfeed/internal/opml"
)

func opmlCmd(env config.EnvConfig) *cobra.Command {
	var outFlag string

	cmd := &cobra.Command{
		Use:   "opml [comic-id ...]",
		Short: "Write an OPML subscription bundle for the configured comics",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(cmd, env)
			if err != nil {
				return err
			}

			st := store.New(doc.Feed.Directory, store.Options{BaseURL: doc.Feed.BaseURL})
			bundle, err := opml.Build(doc.Comics, args, st.FeedURL, time.Now())
			if err != nil {
				return err
			}
			body, err := opml.Marshal(bundle)
			if err != nil {
				return err
			}

			if outFlag == "" || outFlag == "-" {
				cmd.Print(string(body))
				return nil
			}
			return os.WriteFile(outFlag, body, 0o644)
		},
	}

	cmd.Flags().StringVarP(&outFlag, "out", "o", "", "output file (default stdout)")
	return cmd
}
