package cmd

import (
	"errors"
	"io/fs"
	"log"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/marlinsh/marlin/core/config"
)

var cfgPath string

// loadProfile reads the profile named by --config, falling back to the
// stock profile when none exists.
func loadProfile() (*config.Profile, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}

	profile, err := config.Load(afero.NewOsFs(), cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load profile: did you run init?")
	}
	return profile, err
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "marlin",
	Short: "An embeddable pipe-oriented shell",
	Long:  `Marlin is a small scripting shell built to be embedded, with pipelines, functions and host-defined builtins.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand starts the interactive shell.
		return interactive(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "profile path (empty for the stock profile)")
}
