package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/s3meta/pkg/configs"
	"github.com/yeisme/s3meta/pkg/internal/storage"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "list all registered storage backends",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		current := configs.GetConfig().S3.Backend

		fmt.Fprintln(cmd.OutOrStdout(), "Registered storage backends:")

		for _, name := range storage.GetRegisteredBackends() {
			mark := " "
			if name == current {
				mark = "*"
			}

			fmt.Fprintf(cmd.OutOrStdout(), " %s %s\n", mark, name)
		}
	},
}

// registerBackendsCommands 注册存储后端相关命令.
func registerBackendsCommands() {
	rootCmd.AddCommand(backendsCmd)
}
