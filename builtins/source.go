package builtins

import (
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/marlinsh/marlin/core/eval"
)

// Source evaluates a script file in the current shell state, so its
// variable assignments and function definitions persist. Registered as
// both "source" and ".".
func Source(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "source FILE",
		Short: "Evaluate a file in the current shell.",
	}

	return cmd.Run(ctx, args, func(args []string) eval.Status {
		if len(args) != 1 {
			return ctx.Errorf("expected exactly one file")
		}

		path := args[0]
		if !filepath.IsAbs(path) {
			path = filepath.Join(ctx.Getwd(), path)
		}

		src, err := afero.ReadFile(ctx.Fs(), path)
		if err != nil {
			return ctx.Errorf("%v", err)
		}

		return ctx.EvalString(args[0], string(src))
	})
}

func init() {
	register("source", "evaluate a file in the current shell", Source)
	register(".", "evaluate a file in the current shell", Source)
}
