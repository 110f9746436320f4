package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marlinsh/marlin/core"
)

var runSource string

// runCmd evaluates a script file, or inline source with -c, and exits
// with the script's status.
var runCmd = &cobra.Command{
	Use:   "run [FILE]",
	Short: "Run a script file.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		profile, err := loadProfile()
		if err != nil {
			return err
		}

		sh := core.NewShell(
			core.WithProfile(profile),
			core.WithStdio(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
		)

		var code int
		switch {
		case runSource != "":
			code, err = sh.ExecuteString("-c", runSource)
		case len(args) == 1:
			code, err = sh.ExecuteFile(args[0])
		default:
			return cmd.Usage()
		}
		if err != nil {
			return err
		}
		if code != 0 {
			os.Exit(code)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runSource, "command", "c", "", "run this source instead of a file")
	rootCmd.AddCommand(runCmd)
}
