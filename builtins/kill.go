package builtins

import (
	"os"
	"strconv"
	"syscall"

	"github.com/marlinsh/marlin/core/eval"
	"github.com/marlinsh/marlin/core/job"
)

var signalsByName = map[string]os.Signal{
	"HUP":  syscall.SIGHUP,
	"INT":  syscall.SIGINT,
	"KILL": syscall.SIGKILL,
	"TERM": syscall.SIGTERM,
	"USR1": syscall.SIGUSR1,
	"USR2": syscall.SIGUSR2,
}

func findJob(ctx *eval.Context, id int) *job.Job {
	for _, j := range ctx.Jobs().Jobs() {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// Kill sends a signal to background jobs by id.
func Kill(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "kill [-s SIGNAL] JOB ...",
		Short: "Send a signal to background jobs.",
	}

	sigName := cmd.Flags().StringLong("signal", 's', "TERM", "name of the signal to send")

	return cmd.Run(ctx, args, func(args []string) eval.Status {
		sig, ok := signalsByName[*sigName]
		if !ok {
			return ctx.Errorf("%s: unknown signal", *sigName)
		}
		if len(args) == 0 {
			return ctx.Errorf("missing job id")
		}

		status := eval.OK()
		for _, arg := range args {
			id, err := strconv.Atoi(arg)
			if err != nil {
				status = ctx.Errorf("%s: not a job id", arg)
				continue
			}
			j := findJob(ctx, id)
			if j == nil {
				status = ctx.Errorf("no such job %d", id)
				continue
			}
			j.Signal(sig)
		}
		return status
	})
}

func init() {
	register("kill", "send a signal to background jobs", Kill)
}
