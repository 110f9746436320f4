package builtins

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/marlinsh/marlin/core/eval"
)

// Test evaluates a conditional expression. Registered as both "test"
// and "[". Operands may legitimately start with dashes, so this
// builtin does its own argument handling instead of SimpleCommand.
func Test(ctx *eval.Context, args []string) eval.Status {
	if ctx.Name == "[" {
		if len(args) == 0 || args[len(args)-1] != "]" {
			return ctx.Errorf("missing ']'")
		}
		args = args[:len(args)-1]
	}

	ok, err := evalCondition(ctx, args)
	if err != nil {
		return ctx.Errorf("%v", err)
	}
	if ok {
		return eval.OK()
	}
	return eval.Failure()
}

func evalCondition(ctx *eval.Context, args []string) (bool, error) {
	if len(args) > 0 && args[0] == "!" {
		ok, err := evalCondition(ctx, args[1:])
		return !ok, err
	}

	switch len(args) {
	case 0:
		return false, nil
	case 1:
		return args[0] != "", nil
	case 2:
		return evalUnary(ctx, args[0], args[1])
	case 3:
		return evalBinary(args[0], args[1], args[2])
	}
	return false, fmt.Errorf("too many arguments")
}

func evalUnary(ctx *eval.Context, op, arg string) (bool, error) {
	switch op {
	case "-z":
		return arg == "", nil
	case "-n":
		return arg != "", nil
	case "-e", "-f", "-d", "-s":
		if !filepath.IsAbs(arg) {
			arg = filepath.Join(ctx.Getwd(), arg)
		}
		info, err := ctx.Fs().Stat(arg)
		if err != nil {
			return false, nil
		}
		switch op {
		case "-f":
			return info.Mode().IsRegular(), nil
		case "-d":
			return info.IsDir(), nil
		case "-s":
			return info.Size() > 0, nil
		}
		return true, nil
	}
	return false, fmt.Errorf("%s: unknown operator", op)
}

func evalBinary(left, op, right string) (bool, error) {
	switch op {
	case "=", "==":
		return left == right, nil
	case "!=":
		return left != right, nil
	}

	a, err := strconv.ParseInt(left, 10, 64)
	if err != nil {
		return false, fmt.Errorf("%s: integer expression expected", left)
	}
	b, err := strconv.ParseInt(right, 10, 64)
	if err != nil {
		return false, fmt.Errorf("%s: integer expression expected", right)
	}

	switch op {
	case "-eq":
		return a == b, nil
	case "-ne":
		return a != b, nil
	case "-lt":
		return a < b, nil
	case "-le":
		return a <= b, nil
	case "-gt":
		return a > b, nil
	case "-ge":
		return a >= b, nil
	}
	return false, fmt.Errorf("%s: unknown operator", op)
}

func init() {
	register("test", "evaluate a conditional expression", Test)
	register("[", "evaluate a conditional expression", Test)
}
