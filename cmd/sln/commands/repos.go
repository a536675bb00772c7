package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List configured repos",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := SLN.Config
		out := cmd.OutOrStdout()
		names := cfg.RepoNames()
		if len(names) == 0 {
			fmt.Fprintln(out, "No repos configured.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, name := range names {
			rc := cfg.Repos[name]
			mark := " "
			if strings.EqualFold(name, cfg.Default) {
				mark = "*"
			}
			auth := ""
			if rc.Session != "" {
				auth = "(session)"
			}
			fmt.Fprintf(tw, "%s %s\t%s\t%s\n", mark, name, rc.URL, auth)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(reposCmd)
}
