package builtins

import (
	"fmt"
	"sort"

	"github.com/marlinsh/marlin/core/eval"
)

// Env prints the exported variables as the spawn environment would see
// them.
func Env(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "env",
		Short: "Print the spawn environment.",
	}

	return cmd.Run(ctx, args, func([]string) eval.Status {
		env := ctx.Scope().Environ()
		sort.Strings(env)
		for _, def := range env {
			fmt.Fprintln(ctx.Stdout, def)
		}
		return eval.OK()
	})
}

func init() {
	register("env", "print the spawn environment", Env)
}
