// Package core ties the engine together into an embeddable shell:
// one value owning the scope, builtin registry, job table and
// evaluator for a single logical user.
package core

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/marlinsh/marlin/builtins"
	"github.com/marlinsh/marlin/core/config"
	"github.com/marlinsh/marlin/core/eval"
	"github.com/marlinsh/marlin/core/job"
	"github.com/marlinsh/marlin/core/parse"
	"github.com/marlinsh/marlin/core/variables"
)

// ErrFunctionNotFound is returned by ExecuteFunction for names no
// evaluated script has defined.
var ErrFunctionNotFound = errors.New("function not defined")

// Shell is one interpreter instance. It is not safe for concurrent
// use; embed one shell per logical user or session.
type Shell struct {
	fs       afero.Fs
	profile  *config.Profile
	scope    *variables.Scope
	registry *eval.Registry
	jobs     *job.Controller
	ev       *eval.Evaluator

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

type shellOptions struct {
	fs      afero.Fs
	profile *config.Profile
	environ []string
	dir     string
	host    interface{}
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer

	// nil means "take the profile's value".
	strictVars *bool
	failFast   *bool
}

// Option tweaks shell construction.
type Option func(*shellOptions)

// WithFs runs the shell against fsys instead of the host filesystem.
// Redirections, globbing and file builtins all go through it; spawned
// processes do not.
func WithFs(fsys afero.Fs) Option {
	return func(o *shellOptions) { o.fs = fsys }
}

// WithProfile applies a loaded profile.
func WithProfile(p *config.Profile) Option {
	return func(o *shellOptions) { o.profile = p }
}

// WithEnviron seeds the root scope from "KEY=value" pairs instead of
// the process environment.
func WithEnviron(environ []string) Option {
	return func(o *shellOptions) { o.environ = environ }
}

// WithDir sets the initial working directory.
func WithDir(dir string) Option {
	return func(o *shellOptions) { o.dir = dir }
}

// WithHostState attaches opaque host state, retrievable from every
// builtin via its context.
func WithHostState(host interface{}) Option {
	return func(o *shellOptions) { o.host = host }
}

// WithStdio sets the shell's standard streams.
func WithStdio(in io.Reader, out, errw io.Writer) Option {
	return func(o *shellOptions) { o.stdin, o.stdout, o.stderr = in, out, errw }
}

// WithStrictVars makes unbound variable references fail the statement,
// overriding the profile.
func WithStrictVars(on bool) Option {
	return func(o *shellOptions) { o.strictVars = &on }
}

// WithFailFast aborts the whole run on the first expansion failure,
// overriding the profile.
func WithFailFast(on bool) Option {
	return func(o *shellOptions) { o.failFast = &on }
}

// NewShell builds a shell with the stock builtins installed. Hosts
// override or extend via RegisterBuiltin afterwards.
func NewShell(opts ...Option) *Shell {
	o := &shellOptions{
		fs:      afero.NewOsFs(),
		profile: config.Default(),
		environ: os.Environ(),
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.dir == "" {
		if wd, err := os.Getwd(); err == nil {
			o.dir = wd
		} else {
			o.dir = "/"
		}
	}

	scope := variables.NewScopeFromEnviron(o.environ)
	for name, value := range o.profile.Env {
		scope.Set(name, variables.Scalar(value))
		scope.Export(name)
	}
	scope.Set("PWD", variables.Scalar(o.dir))

	registry := eval.NewRegistry()
	builtins.Install(registry)

	jobs := job.NewController(o.fs)

	strictVars := o.profile.StrictVars
	if o.strictVars != nil {
		strictVars = *o.strictVars
	}
	failFast := o.profile.FailFast
	if o.failFast != nil {
		failFast = *o.failFast
	}

	ev := eval.New(eval.Params{
		Scope:      scope,
		Registry:   registry,
		Jobs:       jobs,
		Fs:         o.fs,
		Stdin:      o.stdin,
		Stdout:     o.stdout,
		Stderr:     o.stderr,
		Dir:        o.dir,
		Host:       o.host,
		StrictVars: strictVars,
		FailFast:   failFast,
		Name:       "marlin",
	})

	return &Shell{
		fs:       o.fs,
		profile:  o.profile,
		scope:    scope,
		registry: registry,
		jobs:     jobs,
		ev:       ev,
		stdin:    o.stdin,
		stdout:   o.stdout,
		stderr:   o.stderr,
	}
}

// RegisterBuiltin adds or replaces a builtin command.
func (s *Shell) RegisterBuiltin(name, help string, fn eval.Builtin) {
	s.registry.Add(name, fn, help)
}

// Scope exposes the variable scope, e.g. to seed state before a run.
func (s *Shell) Scope() *variables.Scope { return s.scope }

// Jobs exposes the background job table.
func (s *Shell) Jobs() *job.Controller { return s.jobs }

// LastStatus is the status of the most recent command.
func (s *Shell) LastStatus() int { return s.ev.LastStatus() }

// ExecuteString parses and evaluates one unit of source. Syntax errors
// come back as a Go error before anything runs; runtime failures are
// ordinary statuses.
func (s *Shell) ExecuteString(name, src string) (int, error) {
	script, err := parse.Parse(name, src)
	if err != nil {
		return 0, err
	}
	return s.ev.Run(script).Code, nil
}

// ExecuteFile reads and evaluates a script file. Functions it defines
// stay callable afterwards via ExecuteFunction.
func (s *Shell) ExecuteFile(path string) (int, error) {
	src, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return 0, fmt.Errorf("reading script: %w", err)
	}

	s.ev.SetProgram(path, nil)
	return s.ExecuteString(path, string(src))
}

// ExecuteFunction invokes a previously defined function with args
// bound as its positional parameters.
func (s *Shell) ExecuteFunction(name string, args []string) (int, error) {
	st, ok := s.ev.Call(name, args)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	return st.Code, nil
}
