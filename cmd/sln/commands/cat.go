package commands

import (
	"fmt"
	"io"

	"stronglink/pkg/pull"

	"github.com/spf13/cobra"
)

var catInfo bool

var catCmd = &cobra.Command{
	Use:   "cat [hash-uri | entry-hash]",
	Short: "Show a mirrored file",
	Long: `Write the content of a locally mirrored file to stdout. The file can be
named by its hash URI or by a prefix of its local entry hash (see "sln ls").`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mirror, _, err := SLN.Mirror(ctx)
		if err != nil {
			return err
		}
		entry, err := mirror.Resolve(ctx, args[0])
		if err != nil {
			return fmt.Errorf("cannot resolve %q: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		if catInfo {
			if err := pull.PrintEntry(out, entry); err != nil {
				return err
			}
			if !entry.IsMeta() {
				attrs, err := mirror.Attributes(ctx, entry.URI)
				if err != nil {
					return err
				}
				for _, tag := range attrs.Values("tag") {
					fmt.Fprintf(out, "Tag:      %s\n", tag)
				}
			}
			return nil
		}

		rc, err := mirror.Open(ctx, entry)
		if err != nil {
			return fmt.Errorf("cat failed: %w", err)
		}
		defer rc.Close()
		_, err = io.Copy(out, rc)
		return err
	},
}

func init() {
	catCmd.Flags().BoolVarP(&catInfo, "info", "i", false, "print the mirror entry instead of the content")
	rootCmd.AddCommand(catCmd)
}
