package commands

import (
	"fmt"

	"stronglink/pkg/client"

	"github.com/spf13/cobra"
)

var queryOpts struct {
	lang  string
	start string
	count int
	wait  bool
	dir   string
}

var queryCmd = &cobra.Command{
	Use:   "query [query]",
	Short: "List URIs of files matching a query",
	Long: `Run a query against the repo and print matching URIs, one per line.
An empty query matches every file. With --wait the connection stays open
and new matches are printed as they arrive.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := currentRepo()
		if err != nil {
			return err
		}
		q := ""
		if len(args) > 0 {
			q = args[0]
		}

		ctx := cmd.Context()
		stream, err := repo.OpenQuery(ctx, q, client.QueryOptions{
			Lang:  queryOpts.lang,
			Start: queryOpts.start,
			Count: queryOpts.count,
			Wait:  queryOpts.wait,
			Dir:   client.Direction(queryOpts.dir),
		})
		if err != nil {
			return err
		}
		defer stream.Close()

		out := cmd.OutOrStdout()
		for rec, err := range stream.All() {
			if err != nil {
				return exitOnCancel(ctx, err)
			}
			fmt.Fprintln(out, rec.URI)
		}
		return nil
	},
}

func init() {
	f := queryCmd.Flags()
	f.StringVar(&queryOpts.lang, "lang", "", "query language")
	f.StringVar(&queryOpts.start, "start", "", "start after this URI")
	f.IntVarP(&queryOpts.count, "count", "n", client.DefaultCount, "maximum number of results (0 for server default)")
	f.BoolVarP(&queryOpts.wait, "wait", "w", false, "keep the connection open and print new matches")
	f.StringVar(&queryOpts.dir, "dir", "", "direction: a (ascending) or z (descending)")
	rootCmd.AddCommand(queryCmd)
}
