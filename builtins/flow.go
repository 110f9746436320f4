package builtins

import (
	"strconv"

	"github.com/marlinsh/marlin/core/eval"
)

// level parses the optional count operand of break/continue.
func level(args []string) (int, bool) {
	if len(args) == 0 {
		return 1, true
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || len(args) > 1 {
		return 0, false
	}
	return n, true
}

// Break exits n enclosing loops.
func Break(ctx *eval.Context, args []string) eval.Status {
	n, ok := level(args)
	if !ok {
		return ctx.Errorf("usage: break [N]")
	}
	return eval.Breaks(n)
}

// Continue resumes the nth enclosing loop.
func Continue(ctx *eval.Context, args []string) eval.Status {
	n, ok := level(args)
	if !ok {
		return ctx.Errorf("usage: continue [N]")
	}
	return eval.Continues(n)
}

// code parses the optional status operand of exit/return, defaulting
// to the last command's status.
func code(ctx *eval.Context, args []string) (int, bool) {
	if len(args) == 0 {
		return ctx.LastStatus(), true
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || len(args) > 1 {
		return 0, false
	}
	return n & 0xff, true
}

// Exit unwinds the whole evaluation unit with a status.
func Exit(ctx *eval.Context, args []string) eval.Status {
	n, ok := code(ctx, args)
	if !ok {
		return ctx.Errorf("usage: exit [CODE]")
	}
	return eval.Status{Code: n, Ctrl: eval.CtrlExit}
}

// Return exits the enclosing function with a status.
func Return(ctx *eval.Context, args []string) eval.Status {
	n, ok := code(ctx, args)
	if !ok {
		return ctx.Errorf("usage: return [CODE]")
	}
	return eval.Returns(n)
}

func init() {
	register("break", "exit the enclosing loop", Break)
	register("continue", "resume the enclosing loop", Continue)
	register("exit", "exit the shell", Exit)
	register("return", "return from a function", Return)
}
