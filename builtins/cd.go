package builtins

import (
	"fmt"
	"path/filepath"

	"github.com/marlinsh/marlin/core/eval"
	"github.com/marlinsh/marlin/core/variables"
)

// Cd changes the shell's working directory. With no operand it moves
// to $HOME; "-" swaps back to $OLDPWD and prints it.
func Cd(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "cd [DIR]",
		Short: "Change the working directory.",
	}

	return cmd.Run(ctx, args, func(args []string) eval.Status {
		scope := ctx.Scope()

		var target string
		switch {
		case len(args) == 0:
			target = scope.Get("HOME")
			if target == "" {
				return ctx.Errorf("HOME not set")
			}
		case len(args) > 1:
			return ctx.Errorf("too many arguments")
		case args[0] == "-":
			target = scope.Get("OLDPWD")
			if target == "" {
				return ctx.Errorf("OLDPWD not set")
			}
			fmt.Fprintln(ctx.Stdout, target)
		default:
			target = args[0]
		}

		prev := ctx.Getwd()
		if !filepath.IsAbs(target) {
			target = filepath.Join(prev, target)
		}
		target = filepath.Clean(target)

		if err := ctx.Chdir(target); err != nil {
			return ctx.Errorf("%v", err)
		}

		scope.Set("OLDPWD", variables.Scalar(prev))
		scope.Set("PWD", variables.Scalar(target))
		return eval.OK()
	})
}

// Pwd prints the shell's working directory.
func Pwd(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "pwd",
		Short: "Print the working directory.",
	}

	return cmd.Run(ctx, args, func([]string) eval.Status {
		fmt.Fprintln(ctx.Stdout, ctx.Getwd())
		return eval.OK()
	})
}

func init() {
	register("cd", "change the working directory", Cd)
	register("pwd", "print the working directory", Pwd)
}
