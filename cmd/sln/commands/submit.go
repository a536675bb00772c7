package commands

import (
	"fmt"
	"io"
	"os"

	"stronglink/pkg/client"
	"stronglink/pkg/importer"

	"github.com/spf13/cobra"
)

var submitOpts struct {
	mimeType string
	uri      string
}

var submitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Upload a file to the repo",
	Long: `Stream a file (or stdin, with "-") to the repo and print its URI.
The content type is guessed from the file name and content unless --type
is given. With --uri the file is PUT to that address and the server checks
that the content matches it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := currentRepo()
		if err != nil {
			return err
		}

		var in io.Reader = cmd.InOrStdin()
		name := args[0]
		if name != "-" {
			f, err := os.Open(name)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		// 先读一段用来猜类型，再连同剩余部分一起上传
		head := make([]byte, 512)
		n, err := io.ReadFull(in, head)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return err
		}
		head = head[:n]
		mimeType := submitOpts.mimeType
		if mimeType == "" {
			mimeType = importer.DetectType(name, head)
		}

		w, err := repo.OpenSubmission(cmd.Context(), mimeType, client.SubmitOptions{URI: submitOpts.uri})
		if err != nil {
			return err
		}
		if _, err := w.Write(head); err != nil {
			w.Abort(err)
			return err
		}
		if _, err := io.Copy(w, in); err != nil {
			w.Abort(err)
			return err
		}
		sub, err := w.Commit()
		if err != nil {
			return fmt.Errorf("submit failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), sub.Location)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVarP(&submitOpts.mimeType, "type", "t", "", "content type (guessed when empty)")
	submitCmd.Flags().StringVar(&submitOpts.uri, "uri", "", "expected hash URI of the content")
	rootCmd.AddCommand(submitCmd)
}
