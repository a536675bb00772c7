package commands

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"stronglink/pkg/client"

	"github.com/spf13/cobra"
)

var getOpts struct {
	accept string
	output string
}

var getCmd = &cobra.Command{
	Use:   "get [hash-uri]",
	Short: "Download a file from the repo",
	Long:  `Stream the file to stdout, or to the path given with -o.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := currentRepo()
		if err != nil {
			return err
		}

		resp, err := repo.FileRequest(cmd.Context(), args[0], client.FileOptions{Accept: getOpts.accept})
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &client.StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
		}

		if getOpts.output == "" {
			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			return err
		}

		f, err := os.Create(getOpts.output)
		if err != nil {
			return err
		}
		n, err := io.Copy(f, resp.Body)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("download failed: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✅ Saved %s (%d bytes, %s)\n", getOpts.output, n, resp.Header.Get("Content-Type"))
		return nil
	},
}

func init() {
	getCmd.Flags().StringVar(&getOpts.accept, "accept", client.DefaultAccept, "acceptable content types")
	getCmd.Flags().StringVarP(&getOpts.output, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(getCmd)
}
