package builtins

import (
	"fmt"
	"sort"
	"strings"

	"github.com/marlinsh/marlin/core/eval"
	"github.com/marlinsh/marlin/core/variables"
)

// splitAssign splits a NAME=value operand; ok is false for a bare
// NAME.
func splitAssign(arg string) (name, value string, ok bool) {
	if i := strings.IndexByte(arg, '='); i >= 0 {
		return arg[:i], arg[i+1:], true
	}
	return arg, "", false
}

// Export marks variables for the environment of spawned processes,
// optionally assigning in the same step.
func Export(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "export [-n] [NAME[=VALUE]] ...",
		Short: "Mark variables for the spawn environment.",
	}

	opt := cmd.Flags()
	remove := opt.Bool('n', "remove the export mark instead")

	return cmd.Run(ctx, args, func(args []string) eval.Status {
		scope := ctx.Scope()

		if len(args) == 0 {
			// List exported variables, sorted for stable output.
			env := scope.Environ()
			sort.Strings(env)
			for _, e := range env {
				fmt.Fprintf(ctx.Stdout, "export %s\n", e)
			}
			return eval.OK()
		}

		for _, arg := range args {
			name, value, hasValue := splitAssign(arg)
			if name == "" {
				return ctx.Errorf("%q: not a valid name", arg)
			}
			if hasValue {
				scope.Set(name, variables.Scalar(value))
			}
			if *remove {
				scope.Unexport(name)
			} else {
				scope.Export(name)
			}
		}
		return eval.OK()
	})
}

// Unset removes variable bindings.
func Unset(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "unset NAME ...",
		Short: "Remove variable bindings.",
	}

	return cmd.Run(ctx, args, func(args []string) eval.Status {
		scope := ctx.Scope()
		for _, name := range args {
			scope.Unset(name)
			scope.Unexport(name)
		}
		return eval.OK()
	})
}

// Local creates bindings in the innermost scope frame, shadowing any
// outer variable of the same name.
func Local(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "local NAME[=VALUE] ...",
		Short: "Declare function-local variables.",
	}

	return cmd.Run(ctx, args, func(args []string) eval.Status {
		scope := ctx.Scope()
		if scope.Depth() == 1 {
			return ctx.Errorf("can only be used in a function")
		}
		for _, arg := range args {
			name, value, _ := splitAssign(arg)
			if name == "" {
				return ctx.Errorf("%q: not a valid name", arg)
			}
			scope.SetLocal(name, variables.Scalar(value))
		}
		return eval.OK()
	})
}

func init() {
	register("export", "mark variables for the spawn environment", Export)
	register("unset", "remove variable bindings", Unset)
	register("local", "declare function-local variables", Local)
}
