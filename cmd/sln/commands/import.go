package commands

import (
	"fmt"
	"time"

	"stronglink/pkg/importer"

	"github.com/spf13/cobra"
)

var importWorkers int

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Submit every file under a directory",
	Long: `Walk the directory and submit each regular file, skipping paths matched
by .slnignore and the built-in ignore rules (.sln, .git, client.json, ...).
Files whose content the repo already has are not uploaded again.
A failed file is reported and the import continues.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := currentRepo()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		start := time.Now()
		im := importer.New(repo, importer.Options{Workers: importWorkers, Logger: SLN.Logger})
		stats, err := im.Import(cmd.Context(), args[0], func(r importer.Result) {
			if r.Err != nil {
				fmt.Fprintf(out, "❌ %s: %v\n", r.Path, r.Err)
				return
			}
			if r.Existing {
				fmt.Fprintf(out, "%s\t%s\t(exists)\n", r.URI, r.Path)
				return
			}
			fmt.Fprintf(out, "%s\t%s\n", r.URI, r.Path)
		})
		if err != nil {
			return exitOnCancel(cmd.Context(), err)
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "✅ Submitted %d files in %s (%d already present, %d ignored, %d failed)\n",
			stats.Submitted, time.Since(start).Round(time.Millisecond), stats.Existing, stats.Ignored, stats.Failed)
		if stats.Failed > 0 {
			return fmt.Errorf("%d files failed to import", stats.Failed)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().IntVarP(&importWorkers, "workers", "j", importer.DefaultWorkers, "concurrent submissions")
	rootCmd.AddCommand(importCmd)
}
