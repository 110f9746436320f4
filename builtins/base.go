// Package builtins holds the stock in-process commands and a helper
// for writing new ones. Install wires the whole set into a registry;
// hosts can install it and then override or extend freely.
package builtins

import (
	"fmt"
	"io"

	getopt "github.com/pborman/getopt/v2"

	"github.com/marlinsh/marlin/core/eval"
)

type spec struct {
	fn   eval.Builtin
	help string
}

var all = make(map[string]spec)

func register(name, help string, fn eval.Builtin) {
	all[name] = spec{fn: fn, help: help}
}

// Install registers every stock builtin on reg. Later registrations
// for the same name win, so call Install before host overrides.
func Install(reg *eval.Registry) {
	for name, s := range all {
		reg.Add(name, s.fn, s.help)
	}
}

// Names lists the stock builtin names.
func Names() []string {
	out := make([]string, 0, len(all))
	for name := range all {
		out = append(out, name)
	}
	return out
}

// SimpleCommand handles flag parsing and help output for a builtin.
type SimpleCommand struct {
	// Use holds a one line usage string.
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not. If this is
	// non-nil when Run() is called, the default help flag isn't added.
	ShowHelp *bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}
	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run parses flags and, on success, calls the callback with the
// remaining operands.
func (s *SimpleCommand) Run(ctx *eval.Context, args []string, callback func(args []string) eval.Status) eval.Status {
	opts := s.Flags()

	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	if err := opts.Getopt(append([]string{ctx.Name}, args...), nil); err != nil {
		fmt.Fprintf(ctx.Stderr, "error: %s\n\n", err)
		s.PrintHelp(ctx.Stderr)
		return eval.Failure()
	}

	if *s.ShowHelp {
		s.PrintHelp(ctx.Stdout)
		return eval.OK()
	}

	return callback(opts.Args())
}
