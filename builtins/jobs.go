package builtins

import (
	"fmt"
	"strconv"

	"github.com/marlinsh/marlin/core/eval"
)

// Jobs lists unreaped background jobs.
func Jobs(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "jobs",
		Short: "List background jobs.",
	}

	return cmd.Run(ctx, args, func([]string) eval.Status {
		for _, j := range ctx.Jobs().Jobs() {
			state := "Done"
			if j.Running() {
				state = "Running"
			}
			fmt.Fprintf(ctx.Stdout, "[%d]  %-8s %s\n", j.ID, state, j.Label)
		}
		return eval.OK()
	})
}

// Wait reaps background jobs. With no operand it waits for all of
// them; otherwise each operand is a job id.
func Wait(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "wait [ID] ...",
		Short: "Wait for background jobs to finish.",
	}

	return cmd.Run(ctx, args, func(args []string) eval.Status {
		jobs := ctx.Jobs()

		if len(args) == 0 {
			return eval.Exit(jobs.WaitAll())
		}

		status := 0
		for _, arg := range args {
			id, err := strconv.Atoi(arg)
			if err != nil {
				return ctx.Errorf("%s: not a job id", arg)
			}
			status, err = jobs.Wait(id)
			if err != nil {
				return ctx.Errorf("%v", err)
			}
		}
		return eval.Exit(status)
	})
}

func init() {
	register("jobs", "list background jobs", Jobs)
	register("wait", "wait for background jobs to finish", Wait)
}
