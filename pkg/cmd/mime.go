package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yeisme/s3meta/pkg/internal/mimetypes"
)

var mimeCmd = &cobra.Command{
	Use:     "mime KEY...",
	Short:   "print the Content-Type and Content-Encoding guessed for object keys",
	Example: "  s3meta mime images/logo.png dist/app.js.gz",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

		for _, key := range args {
			typ, enc := mimetypes.Guess(key)

			encoding := "None"
			if enc != nil {
				encoding = *enc
			}

			fmt.Fprintf(w, "%s\t%s\t%s\n", key, typ, encoding)
		}

		return w.Flush()
	},
}

// registerMimeCommands 注册类型推断命令.
func registerMimeCommands() {
	rootCmd.AddCommand(mimeCmd)
}
