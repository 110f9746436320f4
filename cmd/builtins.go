package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/marlinsh/marlin/builtins"
)

// builtinsCmd lists the stock builtin commands.
var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the stock builtin commands.",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := builtins.Names()
		sort.Strings(names)

		for _, v := range names {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
