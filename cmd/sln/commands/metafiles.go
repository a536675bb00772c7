package commands

import (
	"fmt"

	"stronglink/pkg/client"

	"github.com/spf13/cobra"
)

var metafilesOpts struct {
	start string
	count int
	wait  bool
}

var metafilesCmd = &cobra.Command{
	Use:   "metafiles",
	Short: "List meta-files and the files they describe",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := currentRepo()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		stream, err := repo.OpenMetafiles(ctx, client.QueryOptions{
			Start: metafilesOpts.start,
			Count: metafilesOpts.count,
			Wait:  metafilesOpts.wait,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for rec, err := range stream.All() {
			if err != nil {
				return exitOnCancel(ctx, err)
			}
			fmt.Fprintf(out, "%s -> %s\n", rec.URI, rec.Target)
		}
		return nil
	},
}

func init() {
	f := metafilesCmd.Flags()
	f.StringVar(&metafilesOpts.start, "start", "", "start after this meta-file URI")
	f.IntVarP(&metafilesOpts.count, "count", "n", 0, "maximum number of results (0 for server default)")
	f.BoolVarP(&metafilesOpts.wait, "wait", "w", false, "keep the connection open and print new meta-files")
	rootCmd.AddCommand(metafilesCmd)
}
