package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marlinsh/marlin/core"
)

// interactive starts the read-eval-print loop on the command's
// streams.
func interactive(cmd *cobra.Command) error {
	cmd.SilenceUsage = true

	profile, err := loadProfile()
	if err != nil {
		return err
	}

	sh := core.NewShell(
		core.WithProfile(profile),
		core.WithStdio(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
	)

	code, err := sh.RunInteractive()
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// replCmd is an explicit alias for the default interactive mode.
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive shell.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		return interactive(cmd)
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
