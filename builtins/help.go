package builtins

import (
	"fmt"

	"github.com/marlinsh/marlin/core/eval"
)

// Help lists registered builtins, or prints the help line for each
// named one.
func Help(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "help [NAME] ...",
		Short: "List builtin commands.",
	}

	return cmd.Run(ctx, args, func(args []string) eval.Status {
		reg := ctx.Registry()

		if len(args) == 0 {
			args = reg.Names()
		}

		status := eval.OK()
		for _, name := range args {
			help, ok := reg.Help(name)
			if !ok {
				fmt.Fprintf(ctx.Stderr, "help: %s: not a builtin\n", name)
				status = eval.Failure()
				continue
			}
			fmt.Fprintf(ctx.Stdout, "%-10s %s\n", name, help)
		}
		return status
	})
}

func init() {
	register("help", "list builtin commands", Help)
}
