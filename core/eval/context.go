package eval

import (
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/marlinsh/marlin/core/job"
	"github.com/marlinsh/marlin/core/parse"
	"github.com/marlinsh/marlin/core/variables"
)

// Context is the explicit handle a builtin receives instead of
// capturing shell state through closures. It is valid only for the
// duration of the call.
type Context struct {
	// Name is the command word the builtin was invoked as.
	Name string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	ev *Evaluator
}

// Scope is the shell's variable scope stack.
func (c *Context) Scope() *variables.Scope { return c.ev.Scope }

// Fs is the shell's filesystem.
func (c *Context) Fs() afero.Fs { return c.ev.Fs }

// Jobs is the shell's job controller.
func (c *Context) Jobs() *job.Controller { return c.ev.Jobs }

// Registry is the shell's builtin registry.
func (c *Context) Registry() *Registry { return c.ev.Registry }

// Host returns the opaque host-supplied state threaded through every
// builtin call.
func (c *Context) Host() interface{} { return c.ev.Host }

// Getwd returns the shell's working directory.
func (c *Context) Getwd() string { return c.ev.Dir }

// Chdir changes the shell's working directory after verifying the
// target exists.
func (c *Context) Chdir(dir string) error {
	info, err := c.ev.Fs.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", dir)
	}
	c.ev.Dir = dir
	return nil
}

// LastStatus is the status of the most recent command, as seen by $?.
func (c *Context) LastStatus() int { return c.ev.lastStatus }

// Args returns the positional arguments of the current function or
// script invocation.
func (c *Context) Args() []string {
	return append([]string(nil), c.ev.args...)
}

// EvalString parses and evaluates src with the shell's current state,
// writing through the builtin's streams. Used by source-style builtins.
func (c *Context) EvalString(name, src string) Status {
	script, err := parse.Parse(name, src)
	if err != nil {
		return c.Errorf("%v", err)
	}
	return c.ev.withStreams(c.Stdin, c.Stdout, c.Stderr, func() Status {
		return c.ev.evalNode(script.Root)
	})
}

// Errorf writes a diagnostic prefixed with the command name to stderr
// and returns the generic failure status.
func (c *Context) Errorf(format string, args ...interface{}) Status {
	fmt.Fprintf(c.Stderr, "%s: %s\n", c.Name, fmt.Sprintf(format, args...))
	return Failure()
}
