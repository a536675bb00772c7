package commands

import (
	"stronglink/pkg/pull"

	"github.com/spf13/cobra"
)

var lsLimit int

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recently mirrored files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mirror, _, err := SLN.Mirror(ctx)
		if err != nil {
			return err
		}
		recs, err := mirror.Recent(ctx, lsLimit)
		if err != nil {
			return err
		}
		return pull.PrintFiles(cmd.OutOrStdout(), recs)
	},
}

func init() {
	lsCmd.Flags().IntVarP(&lsLimit, "limit", "n", 20, "number of files to list")
	rootCmd.AddCommand(lsCmd)
}
