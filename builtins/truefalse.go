package builtins

import "github.com/marlinsh/marlin/core/eval"

// True succeeds.
func True(*eval.Context, []string) eval.Status { return eval.OK() }

// False fails.
func False(*eval.Context, []string) eval.Status { return eval.Failure() }

func init() {
	register("true", "do nothing, successfully", True)
	register("false", "do nothing, unsuccessfully", False)
	register(":", "do nothing, successfully", True)
}
