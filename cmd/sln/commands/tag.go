package commands

import (
	"fmt"

	"stronglink/pkg/client"

	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:   "tag [query] [tag...]",
	Short: "Tag every file matching a query",
	Long: `Submit a meta-file {"tag": [...]} for each file matching the query.
Submissions are sent one at a time; the URI of each tagged file is printed.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := currentRepo()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		tags := make([]any, 0, len(args)-1)
		for _, t := range args[1:] {
			tags = append(tags, t)
		}
		meta := map[string]any{"tag": tags}

		stream, err := repo.OpenQuery(ctx, args[0], client.QueryOptions{})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		tagged := 0
		for rec, err := range stream.All() {
			if err != nil {
				return exitOnCancel(ctx, err)
			}
			if _, err := repo.SubmitMeta(ctx, rec.URI, meta); err != nil {
				return fmt.Errorf("tag %s: %w", rec.URI, err)
			}
			fmt.Fprintln(out, rec.URI)
			tagged++
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "🏷️  Tagged %d files\n", tagged)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tagCmd)
}
