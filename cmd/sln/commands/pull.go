package commands

import (
	"fmt"

	"stronglink/pkg/pull"

	"github.com/spf13/cobra"
)

var pullOpts struct {
	once    bool
	workers int
}

var pullCmd = &cobra.Command{
	Use:   "pull [query]",
	Short: "Mirror files matching a query into the local store",
	Long: `Download every file matching the query that is not mirrored yet,
verify its hash and record it in the local catalog. Progress is saved, so
an interrupted pull resumes where it stopped. Without --once the pull keeps
following the query until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := currentRepo()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		mirror, cat, err := SLN.Mirror(ctx)
		if err != nil {
			return err
		}
		q := ""
		if len(args) > 0 {
			q = args[0]
		}

		cfg := SLN.Config.Pull
		workers := cfg.Workers
		if pullOpts.workers > 0 {
			workers = pullOpts.workers
		}
		p := pull.NewPuller(repo, mirror, cat, pull.Options{
			Workers: workers,
			Retry:   cfg.Retry,
			Overlap: cfg.Overlap,
			Once:    pullOpts.once,
			Logger:  SLN.Logger,
		})

		fmt.Fprintf(cmd.ErrOrStderr(), "📥 Pulling from %s...\n", repo)
		stats, err := p.Run(ctx, q)
		fmt.Fprintf(cmd.OutOrStdout(), "Summary: %d fetched, %d already mirrored, %d failed.\n",
			stats.Fetched, stats.Skipped, stats.Failed)
		return exitOnCancel(ctx, err)
	},
}

func init() {
	pullCmd.Flags().BoolVar(&pullOpts.once, "once", false, "pull current matches and exit")
	pullCmd.Flags().IntVarP(&pullOpts.workers, "workers", "j", 0, "concurrent downloads (default from config)")
	rootCmd.AddCommand(pullCmd)
}
