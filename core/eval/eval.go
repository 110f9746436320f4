// Package eval walks the AST, maintains execution context and
// dispatches commands to the builtin registry or the job controller.
package eval

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/marlinsh/marlin/core/ast"
	"github.com/marlinsh/marlin/core/expand"
	"github.com/marlinsh/marlin/core/job"
	"github.com/marlinsh/marlin/core/parse"
	"github.com/marlinsh/marlin/core/variables"
)

// Params configures a new evaluator. All fields are owned by exactly
// one shell instance afterwards.
type Params struct {
	Scope    *variables.Scope
	Registry *Registry
	Jobs     *job.Controller
	Fs       afero.Fs
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Dir      string
	Host     interface{}

	StrictVars bool
	FailFast   bool

	Name string // $0 for top-level evaluation
	Args []string
}

// Evaluator interprets parsed scripts. One evaluator runs one script
// (or function invocation) to completion at a time; it never spawns
// additional evaluator threads of its own.
type Evaluator struct {
	Scope    *variables.Scope
	Registry *Registry
	Jobs     *job.Controller
	Fs       afero.Fs
	Dir      string
	Host     interface{}

	StrictVars bool
	FailFast   bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	funcs      map[string]ast.Node
	lastStatus int
	name       string
	args       []string

	// status of the most recent command substitution in the statement
	// currently being expanded
	captured    int
	hasCaptured bool
}

// New builds an evaluator from params.
func New(p Params) *Evaluator {
	return &Evaluator{
		Scope:      p.Scope,
		Registry:   p.Registry,
		Jobs:       p.Jobs,
		Fs:         p.Fs,
		Dir:        p.Dir,
		Host:       p.Host,
		StrictVars: p.StrictVars,
		FailFast:   p.FailFast,
		stdin:      p.Stdin,
		stdout:     p.Stdout,
		stderr:     p.Stderr,
		funcs:      make(map[string]ast.Node),
		name:       p.Name,
		args:       p.Args,
	}
}

// Run evaluates a whole parsed unit. Control signals never escape this
// call: stray break/continue/return are reported and neutralized, exit
// and fatal signals collapse into their exit code.
func (ev *Evaluator) Run(script *ast.Script) Status {
	return ev.Finish(ev.Eval(script))
}

// Eval evaluates a parsed unit and returns the raw status, control
// signal included. Most callers want Run; interactive loops use this
// to see an exit signal before Finish collapses it.
func (ev *Evaluator) Eval(script *ast.Script) Status {
	return ev.evalNode(script.Root)
}

// Function reports whether name is defined in the function table.
func (ev *Evaluator) Function(name string) bool {
	_, ok := ev.funcs[name]
	return ok
}

// Call invokes a defined function with positional args bound. The
// second result is false when the function does not exist; no side
// effects occur in that case.
func (ev *Evaluator) Call(name string, args []string) (Status, bool) {
	body, ok := ev.funcs[name]
	if !ok {
		return Status{}, false
	}
	return ev.Finish(ev.invokeFunction(name, body, args)), true
}

// LastStatus returns the status of the most recent command, as seen by
// $?.
func (ev *Evaluator) LastStatus() int { return ev.lastStatus }

// SetProgram rebinds $0 and the positional parameters for the next
// evaluation.
func (ev *Evaluator) SetProgram(name string, args []string) {
	ev.name, ev.args = name, args
}

// Finish applies the top-level guarantees to a raw status: control
// signals never escape, exit and fatal collapse into their code.
func (ev *Evaluator) Finish(st Status) Status {
	switch st.Ctrl {
	case CtrlNone:
		return st
	case CtrlExit:
		return Status{Code: st.Code}
	case CtrlFatal:
		fmt.Fprintf(ev.stderr, "marlin: %v\n", st.Err)
		if st.Code == 0 {
			st.Code = 1
		}
		return Status{Code: st.Code}
	case CtrlReturn:
		fmt.Fprintln(ev.stderr, "marlin: return: can only be used in a function")
		return Status{Code: 1}
	default: // break/continue
		fmt.Fprintf(ev.stderr, "marlin: %s: only meaningful in a loop\n", st.Ctrl)
		return Status{Code: 0}
	}
}

func (ev *Evaluator) evalNode(n ast.Node) Status {
	if n == nil {
		return OK()
	}
	switch n := n.(type) {
	case *ast.Simple:
		st := ev.evalSimple(n)
		ev.noteStatus(st)
		return st
	case *ast.Pipeline:
		st := ev.evalPipeline(n)
		ev.noteStatus(st)
		return st
	case *ast.List:
		return ev.evalList(n)
	case *ast.If:
		return ev.evalIf(n)
	case *ast.While:
		return ev.evalWhile(n)
	case *ast.For:
		return ev.evalFor(n)
	case *ast.Case:
		return ev.evalCase(n)
	case *ast.FuncDef:
		ev.funcs[n.Name] = n.Body
		return OK()
	case *ast.Group:
		return ev.evalNode(n.List)
	}
	return Fatal(fmt.Errorf("unhandled node %T", n))
}

func (ev *Evaluator) noteStatus(st Status) {
	if st.Ctrl == CtrlNone {
		ev.lastStatus = st.Code
	}
}

func (ev *Evaluator) evalList(n *ast.List) Status {
	left := ev.evalNode(n.Left)
	if left.Signal() {
		// Control signals short-circuit sequential siblings and
		// propagate upward immediately.
		return left
	}
	switch n.Op {
	case ast.And:
		if left.Code != 0 {
			return left
		}
	case ast.Or:
		if left.Code == 0 {
			return left
		}
	}
	return ev.evalNode(n.Right)
}

func (ev *Evaluator) evalIf(n *ast.If) Status {
	cond := ev.evalNode(n.Cond)
	if cond.Signal() {
		return cond
	}
	if cond.Code == 0 {
		return ev.evalNode(n.Then)
	}
	if n.Else != nil {
		return ev.evalNode(n.Else)
	}
	return OK()
}

const (
	loopNext = iota
	loopBreak
	loopPropagate
)

// loopSignal folds a body status into the loop protocol, decrementing
// break/continue counts so nested loops unwind by the requested number
// of levels.
func loopSignal(st Status) (Status, int) {
	switch st.Ctrl {
	case CtrlBreak:
		if st.Level > 1 {
			st.Level--
			return st, loopPropagate
		}
		return OK(), loopBreak
	case CtrlContinue:
		if st.Level > 1 {
			st.Level--
			return st, loopPropagate
		}
		return OK(), loopNext
	case CtrlNone:
		return st, loopNext
	default:
		return st, loopPropagate
	}
}

func (ev *Evaluator) evalWhile(n *ast.While) Status {
	status := OK()
	for {
		cond := ev.evalNode(n.Cond)
		if cond.Signal() {
			return cond
		}
		if cond.Code != 0 {
			return status
		}

		body := ev.evalNode(n.Body)
		folded, action := loopSignal(body)
		switch action {
		case loopBreak:
			return folded
		case loopPropagate:
			return folded
		}
		if body.Ctrl == CtrlNone {
			status = body
		}
	}
}

func (ev *Evaluator) evalFor(n *ast.For) Status {
	var words []string
	if n.Words == nil {
		words = append(words, ev.args...)
	} else {
		var err error
		words, err = ev.expander().ExpandWords(n.Words)
		if err != nil {
			return ev.expansionFailure(err)
		}
	}

	status := OK()
	for _, w := range words {
		ev.Scope.Set(n.Name, variables.Scalar(w))

		body := ev.evalNode(n.Body)
		folded, action := loopSignal(body)
		switch action {
		case loopBreak:
			return folded
		case loopPropagate:
			return folded
		}
		if body.Ctrl == CtrlNone {
			status = body
		}
	}
	return status
}

func (ev *Evaluator) evalCase(n *ast.Case) Status {
	ex := ev.expander()
	word, err := ex.ExpandString(n.Word)
	if err != nil {
		return ev.expansionFailure(err)
	}
	for _, item := range n.Items {
		for _, p := range item.Patterns {
			pat, err := ex.ExpandPattern(p)
			if err != nil {
				return ev.expansionFailure(err)
			}
			matched, merr := path.Match(pat, word)
			if merr != nil {
				matched = pat == word
			}
			if matched {
				return ev.evalNode(item.Body)
			}
		}
	}
	return OK()
}

func (ev *Evaluator) evalSimple(n *ast.Simple) Status {
	ex := ev.expander()
	ev.hasCaptured = false

	for _, a := range n.Assigns {
		v, err := ex.ExpandValue(a)
		if err != nil {
			return ev.expansionFailure(err)
		}
		ev.Scope.Set(a.Name, v)
	}

	argv, err := ex.ExpandWords(n.Words)
	if err != nil {
		return ev.expansionFailure(err)
	}
	if len(argv) == 0 {
		// Assignment-only statement, or words that expanded away. The
		// status is that of the last command substitution, if any.
		if ev.hasCaptured {
			return Exit(ev.captured)
		}
		return OK()
	}

	redirs, err := ev.expandRedirs(ex, n.Redirs)
	if err != nil {
		return ev.expansionFailure(err)
	}

	name := argv[0]
	if body, ok := ev.funcs[name]; ok {
		return ev.runWithRedirs(redirs, func() Status {
			return ev.invokeFunction(name, body, argv[1:])
		})
	}
	if fn, ok := ev.Registry.Lookup(name); ok {
		return ev.runBuiltin(name, fn, argv[1:], redirs)
	}

	// External dispatch is always a one-stage pipeline.
	stage := job.Stage{
		Kind:   job.External,
		Name:   name,
		Argv:   argv,
		Env:    ev.Scope.Environ(),
		Dir:    ev.Dir,
		Redirs: redirs,
	}
	code, err := ev.Jobs.Run([]job.Stage{stage}, false, ev.stdio())
	if err != nil {
		return ev.spawnFailure(err)
	}
	return Exit(code)
}

// runBuiltin dispatches a builtin on the evaluator thread so state
// mutations are visible the moment the call returns.
func (ev *Evaluator) runBuiltin(name string, fn Builtin, args []string, redirs []job.Redir) Status {
	stdio, closers, err := job.ApplyRedirs(ev.Fs, redirs, ev.stdio())
	if err != nil {
		fmt.Fprintf(ev.stderr, "marlin: %s: %v\n", name, err)
		return Failure()
	}
	defer closeAll(closers)

	ctx := &Context{Name: name, Stdin: stdio.In, Stdout: stdio.Out, Stderr: stdio.Err, ev: ev}
	return fn(ctx, args)
}

func (ev *Evaluator) runWithRedirs(redirs []job.Redir, fn func() Status) Status {
	stdio, closers, err := job.ApplyRedirs(ev.Fs, redirs, ev.stdio())
	if err != nil {
		fmt.Fprintf(ev.stderr, "marlin: %v\n", err)
		return Failure()
	}
	defer closeAll(closers)
	return ev.withStreams(stdio.In, stdio.Out, stdio.Err, fn)
}

func (ev *Evaluator) evalPipeline(n *ast.Pipeline) Status {
	ex := ev.expander()
	var stages []job.Stage

	for _, s := range n.Stages {
		for _, a := range s.Assigns {
			v, err := ex.ExpandValue(a)
			if err != nil {
				return ev.expansionFailure(err)
			}
			ev.Scope.Set(a.Name, v)
		}

		argv, err := ex.ExpandWords(s.Words)
		if err != nil {
			return ev.expansionFailure(err)
		}
		redirs, err := ev.expandRedirs(ex, s.Redirs)
		if err != nil {
			return ev.expansionFailure(err)
		}
		if len(argv) == 0 {
			// Keep the pipe wiring intact for an empty stage.
			stages = append(stages, job.Stage{
				Kind:   job.Builtin,
				Name:   "",
				Run:    func(io.Reader, io.Writer, io.Writer) int { return 0 },
				Redirs: redirs,
			})
			continue
		}

		stages = append(stages, ev.buildStage(argv, redirs))
	}

	code, err := ev.Jobs.Run(stages, n.Background, ev.stdio())
	if err != nil {
		return ev.spawnFailure(err)
	}
	return Exit(code)
}

// buildStage resolves a stage name once, per the {function, builtin,
// spawn-external} precedence, into a tagged stage spec.
func (ev *Evaluator) buildStage(argv []string, redirs []job.Redir) job.Stage {
	name := argv[0]

	if body, ok := ev.funcs[name]; ok {
		args := argv[1:]
		return job.Stage{
			Kind: job.Builtin,
			Name: name,
			Run: func(in io.Reader, out, errw io.Writer) int {
				// Pipeline stages run concurrently; a stream-local clone
				// keeps the shared evaluator's streams untouched.
				sub := *ev
				sub.stdin, sub.stdout, sub.stderr = in, out, errw
				return sub.invokeFunction(name, body, args).Code
			},
			Redirs: redirs,
		}
	}

	if fn, ok := ev.Registry.Lookup(name); ok {
		args := argv[1:]
		return job.Stage{
			Kind: job.Builtin,
			Name: name,
			Run: func(in io.Reader, out, errw io.Writer) int {
				ctx := &Context{Name: name, Stdin: in, Stdout: out, Stderr: errw, ev: ev}
				return fn(ctx, args).Code
			},
			Redirs: redirs,
		}
	}

	return job.Stage{
		Kind:   job.External,
		Name:   name,
		Argv:   argv,
		Env:    ev.Scope.Environ(),
		Dir:    ev.Dir,
		Redirs: redirs,
	}
}

// invokeFunction pushes a scope frame, binds the positional args and
// evaluates the stored body. A return signal is converted to a plain
// status here and never propagates past the call.
func (ev *Evaluator) invokeFunction(name string, body ast.Node, args []string) Status {
	ev.Scope.Push()
	defer ev.Scope.Pop()
	ev.Scope.SetLocal("args", variables.Array(args))

	prevName, prevArgs := ev.name, ev.args
	ev.name, ev.args = name, args
	defer func() { ev.name, ev.args = prevName, prevArgs }()

	st := ev.evalNode(body)
	if st.Ctrl == CtrlReturn {
		return Status{Code: st.Code}
	}
	return st
}

func (ev *Evaluator) expander() *expand.Expander {
	return &expand.Expander{
		Scope:      ev.Scope,
		Fs:         ev.Fs,
		Dir:        ev.Dir,
		Strict:     ev.StrictVars,
		Capture:    ev.capture,
		LastStatus: ev.lastStatus,
		Name:       ev.name,
		Args:       ev.args,
	}
}

// capture parses and evaluates a command substitution, returning its
// collected standard output.
func (ev *Evaluator) capture(src string) (string, error) {
	script, err := parse.Parse("substitution", src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	st := ev.withStreams(ev.stdin, &buf, ev.stderr, func() Status {
		return ev.evalNode(script.Root)
	})
	if st.Ctrl == CtrlFatal {
		return "", st.Err
	}
	ev.lastStatus = st.Code
	ev.captured, ev.hasCaptured = st.Code, true
	return buf.String(), nil
}

func (ev *Evaluator) withStreams(in io.Reader, out, errw io.Writer, fn func() Status) Status {
	prevIn, prevOut, prevErr := ev.stdin, ev.stdout, ev.stderr
	ev.stdin, ev.stdout, ev.stderr = in, out, errw
	defer func() {
		ev.stdin, ev.stdout, ev.stderr = prevIn, prevOut, prevErr
	}()
	return fn()
}

func (ev *Evaluator) stdio() job.Stdio {
	return job.Stdio{In: ev.stdin, Out: ev.stdout, Err: ev.stderr}
}

func (ev *Evaluator) expandRedirs(ex *expand.Expander, redirs []ast.Redirect) ([]job.Redir, error) {
	var out []job.Redir
	for _, r := range redirs {
		switch r.Kind {
		case ast.RedirHeredoc:
			text, err := ex.ExpandHeredoc(r)
			if err != nil {
				return nil, err
			}
			out = append(out, job.Redir{Op: job.RedirHere, Text: text})
		case ast.RedirHereString:
			s, err := ex.ExpandString(r.Target)
			if err != nil {
				return nil, err
			}
			out = append(out, job.Redir{Op: job.RedirHere, Text: s + "\n"})
		default:
			target, err := ex.ExpandString(r.Target)
			if err != nil {
				return nil, err
			}
			if ev.Dir != "" && !filepath.IsAbs(target) {
				target = filepath.Join(ev.Dir, target)
			}
			out = append(out, job.Redir{Op: redirOp(r.Kind), Path: target})
		}
	}
	return out, nil
}

func redirOp(k ast.RedirKind) job.RedirOp {
	switch k {
	case ast.RedirIn:
		return job.RedirStdin
	case ast.RedirOut:
		return job.RedirStdout
	case ast.RedirAppend:
		return job.RedirStdoutAppend
	case ast.RedirErrOut:
		return job.RedirStderr
	case ast.RedirErrAppend:
		return job.RedirStderrAppend
	}
	return job.RedirStdin
}

// expansionFailure reports an expansion error. Under the default
// policy the enclosing statement fails but sequential siblings still
// run; fail-fast escalates to a script-fatal signal.
func (ev *Evaluator) expansionFailure(err error) Status {
	if ev.FailFast {
		return Fatal(err)
	}
	fmt.Fprintf(ev.stderr, "marlin: %v\n", err)
	return Failure()
}

// spawnFailure maps a spawn error to 126/127 per convention.
func (ev *Evaluator) spawnFailure(err error) Status {
	var se *job.SpawnError
	if !errors.As(err, &se) {
		fmt.Fprintf(ev.stderr, "marlin: %v\n", err)
		return Failure()
	}
	if job.IsNotFound(err) {
		fmt.Fprintf(ev.stderr, "marlin: %s: command not found\n", se.Name)
		return Exit(CodeNotFound)
	}
	if errors.Is(err, fs.ErrPermission) {
		fmt.Fprintf(ev.stderr, "marlin: %s: permission denied\n", se.Name)
		return Exit(CodeNotExecutable)
	}
	fmt.Fprintf(ev.stderr, "marlin: %s: %v\n", se.Name, se.Err)
	return Exit(CodeNotExecutable)
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
