package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var metaCmd = &cobra.Command{
	Use:   "meta [hash-uri]",
	Short: "Show the merged metadata of a file",
	Long: `Fetch every meta-file that targets the file and print the merged
attributes as JSON. Each field maps to the set of values seen for it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := currentRepo()
		if err != nil {
			return err
		}
		attrs, err := repo.GetMeta(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(attrs)
	},
}

func init() {
	rootCmd.AddCommand(metaCmd)
}
