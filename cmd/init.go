package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/marlinsh/marlin/core/config"
)

// initCmd writes the stock profile into the current directory.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the stock profile to the current directory.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return config.Init(afero.NewOsFs(), ".")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
