package commands

import (
	"context"
	"fmt"

	"stronglink/pkg/client"
	"stronglink/pkg/follow"
	"stronglink/pkg/urilist"

	"github.com/spf13/cobra"
)

var (
	watchBacklog int
	watchLang    string
)

var watchCmd = &cobra.Command{
	Use:   "watch [query]",
	Short: "Follow a query and print new matches until interrupted",
	Long: `Like "query --wait", but survives disconnects: the query is reopened
after the server closes the stream or the connection fails, and URIs that
were already printed are not printed again.`,
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

		cfg := SLN.Config.Pull
		f := follow.New(repo, q, follow.Options{
			Query:   client.QueryOptions{Lang: watchLang},
			Backlog: watchBacklog,
			Overlap: cfg.Overlap,
			Retry:   cfg.Retry,
			Logger:  SLN.Logger,
		})

		out := cmd.OutOrStdout()
		ctx := cmd.Context()
		err = f.Run(ctx, func(_ context.Context, rec urilist.Record) error {
			_, err := fmt.Fprintln(out, rec.URI)
			return err
		})
		return exitOnCancel(ctx, err)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchLang, "lang", "", "query language")
	watchCmd.Flags().IntVarP(&watchBacklog, "backlog", "n", follow.DefaultBacklog, "number of recent matches to print on connect")
	rootCmd.AddCommand(watchCmd)
}
