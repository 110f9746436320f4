package job

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/spf13/afero"
)

// StageKind distinguishes external processes from in-process builtin
// callbacks running as pipeline stages.
type StageKind int

const (
	External StageKind = iota
	Builtin
)

// RedirOp identifies which descriptor a redirection replaces and how.
type RedirOp int

const (
	RedirStdin RedirOp = iota // < file
	RedirStdout
	RedirStdoutAppend
	RedirStderr
	RedirStderrAppend
	RedirHere // heredoc or here-string payload fed to stdin
)

// Redir is one fully expanded redirection.
type Redir struct {
	Op   RedirOp
	Path string // file target
	Text string // RedirHere payload
}

// BuiltinFunc runs an in-process stage against explicit streams.
type BuiltinFunc func(stdin io.Reader, stdout, stderr io.Writer) int

// Stage is one fully expanded pipeline member.
type Stage struct {
	Kind StageKind

	// External stages.
	Name string // command word, for errors and job labels
	Argv []string
	Env  []string
	Dir  string

	// Builtin stages.
	Run BuiltinFunc

	Redirs []Redir
}

// SpawnError reports a stage that could not be started.
type SpawnError struct {
	Stage int
	Name  string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("stage %d (%s): %v", e.Stage, e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Stdio is the inherited standard streams of a pipeline.
type Stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type proc struct {
	cmd    *exec.Cmd
	run    func() int // builtin stage body, wired to its streams
	result chan int

	// Parent-side descriptors: afterStart close right after spawning,
	// afterWait close once the stage has finished. Builtin stages own
	// their afterWait set and close it themselves.
	afterStart []io.Closer
	afterWait  []io.Closer
}

// Run executes a pipeline. For n stages it allocates n-1 OS pipes,
// spawns all stages before waiting on any, and aggregates the status
// of the last stage (128+signal for signaled exits). Background runs
// register a Job and return success immediately; the caller reaps via
// Wait/WaitAll.
func (c *Controller) Run(stages []Stage, background bool, stdio Stdio) (int, error) {
	if len(stages) == 0 {
		return 0, nil
	}

	j := &Job{Background: background, done: make(chan struct{})}
	var labels []string
	for _, st := range stages {
		labels = append(labels, st.Name)
	}
	j.Label = strings.Join(labels, " | ")

	// Construct every stage and its stream wiring up front.
	var prevRead *os.File
	for i := range stages {
		st := &stages[i]
		p := &proc{}

		var stdin io.Reader = stdio.In
		stdinPipe := prevRead
		prevRead = nil
		if stdinPipe != nil {
			stdin = stdinPipe
		}

		var stdout io.Writer = stdio.Out
		var outPipe *os.File
		if i < len(stages)-1 {
			r, w, err := os.Pipe()
			if err != nil {
				closeUnstarted(j)
				closePipe(stdinPipe)
				return 0, &SpawnError{Stage: i, Name: st.Name, Err: err}
			}
			stdout = w
			outPipe = w
			prevRead = r
		}
		stderr := stdio.Err

		// Redirections override the pipe wiring for the descriptors
		// they name.
		var err error
		stdin, stdout, stderr, err = c.applyRedirs(p, st.Redirs, stdin, stdout, stderr)
		if err != nil {
			closeUnstarted(j)
			closePipe(stdinPipe)
			closePipe(outPipe)
			closePipe(prevRead)
			closeAll(p.afterWait)
			return 0, &SpawnError{Stage: i, Name: st.Name, Err: err}
		}

		switch st.Kind {
		case Builtin:
			// The stage's goroutine owns its pipe ends.
			if stdinPipe != nil {
				p.afterWait = append(p.afterWait, stdinPipe)
			}
			if outPipe != nil {
				p.afterWait = append(p.afterWait, outPipe)
			}
			run := st.Run
			in, out, errw := stdin, stdout, stderr
			p.result = make(chan int, 1)
			p.run = func() int { return run(in, out, errw) }

		default:
			path, lerr := lookPath(st)
			if lerr != nil {
				closeUnstarted(j)
				closePipe(stdinPipe)
				closePipe(outPipe)
				closePipe(prevRead)
				closeAll(p.afterWait)
				return 0, &SpawnError{Stage: i, Name: st.Name, Err: lerr}
			}
			p.cmd = &exec.Cmd{
				Path:   path,
				Args:   st.Argv,
				Env:    st.Env,
				Dir:    st.Dir,
				Stdin:  stdin,
				Stdout: stdout,
				Stderr: stderr,
			}
			if stdinPipe != nil {
				p.afterStart = append(p.afterStart, stdinPipe)
			}
			if outPipe != nil {
				p.afterStart = append(p.afterStart, outPipe)
			}
		}

		j.procs = append(j.procs, p)
	}

	// Spawn everything before the first wait so full pipe buffers
	// cannot deadlock the pipeline.
	for i, p := range j.procs {
		if p.cmd != nil {
			if err := p.cmd.Start(); err != nil {
				closeAll(p.afterStart)
				closeAll(p.afterWait)
				abortStarted(j, i)
				return 0, &SpawnError{Stage: i, Name: stages[i].Name, Err: err}
			}
			closeAll(p.afterStart)
			continue
		}
		run := p.run
		result := p.result
		closers := p.afterWait
		p.afterWait = nil
		go func() {
			code := run()
			closeAll(closers)
			result <- code
		}()
	}

	if background {
		c.register(j)
		go func() {
			j.status = waitAllStages(j)
			close(j.done)
		}()
		return 0, nil
	}

	c.setForeground(j)
	status := waitAllStages(j)
	c.setForeground(nil)
	close(j.done)
	return status, nil
}

func waitAllStages(j *Job) int {
	status := 0
	for _, p := range j.procs {
		if p.cmd != nil {
			status = exitStatus(p.cmd.Wait())
		} else {
			status = <-p.result
		}
		closeAll(p.afterWait)
	}
	return status
}

// closeUnstarted releases the descriptors of stages constructed but
// never spawned, after a wiring failure.
func closeUnstarted(j *Job) {
	for _, p := range j.procs {
		closeAll(p.afterStart)
		closeAll(p.afterWait)
	}
}

// abortStarted tears down stages 0..started-1 after a spawn failure:
// closing their descriptors ends them, and each is reaped off the
// evaluator thread so no zombies remain. Stages past the failure were
// never spawned and only need their descriptors released.
func abortStarted(j *Job, started int) {
	for i, p := range j.procs {
		if i >= started {
			closeAll(p.afterStart)
			closeAll(p.afterWait)
			continue
		}
		closeAll(p.afterStart)
		if p.cmd != nil {
			cmd := p.cmd
			closers := p.afterWait
			go func() {
				_ = cmd.Process.Kill()
				_ = cmd.Wait()
				closeAll(closers)
			}()
		} else {
			result := p.result
			go func() { <-result }()
		}
	}
}

func closeAll(closers []io.Closer) {
	for _, cl := range closers {
		_ = cl.Close()
	}
}

func closePipe(f *os.File) {
	if f != nil {
		f.Close()
	}
}

func (c *Controller) applyRedirs(p *proc, redirs []Redir, stdin io.Reader, stdout, stderr io.Writer) (io.Reader, io.Writer, io.Writer, error) {
	s, closers, err := ApplyRedirs(c.fs, redirs, Stdio{In: stdin, Out: stdout, Err: stderr})
	if err != nil {
		return nil, nil, nil, err
	}
	p.afterWait = append(p.afterWait, closers...)
	return s.In, s.Out, s.Err, nil
}

// ApplyRedirs resolves redirections over a base stdio. The returned
// closers must be closed once the command using the streams is done;
// on error every descriptor opened so far has already been closed.
func ApplyRedirs(fsys afero.Fs, redirs []Redir, stdio Stdio) (Stdio, []io.Closer, error) {
	var closers []io.Closer
	fail := func(err error) (Stdio, []io.Closer, error) {
		for _, cl := range closers {
			_ = cl.Close()
		}
		return Stdio{}, nil, err
	}
	for _, r := range redirs {
		switch r.Op {
		case RedirStdin:
			f, err := fsys.Open(r.Path)
			if err != nil {
				return fail(err)
			}
			closers = append(closers, f)
			stdio.In = f
		case RedirHere:
			stdio.In = strings.NewReader(r.Text)
		case RedirStdout, RedirStdoutAppend:
			f, err := openTarget(fsys, r.Path, r.Op == RedirStdoutAppend)
			if err != nil {
				return fail(err)
			}
			closers = append(closers, f)
			stdio.Out = f
		case RedirStderr, RedirStderrAppend:
			f, err := openTarget(fsys, r.Path, r.Op == RedirStderrAppend)
			if err != nil {
				return fail(err)
			}
			closers = append(closers, f)
			stdio.Err = f
		}
	}
	return stdio, closers, nil
}

func openTarget(fsys afero.Fs, path string, appendTo bool) (io.WriteCloser, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if appendTo {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	return fsys.OpenFile(path, flags, 0644)
}

func lookPath(st *Stage) (string, error) {
	name := st.Argv[0]
	if strings.ContainsRune(name, '/') {
		return name, nil
	}
	return exec.LookPath(name)
}

// exitStatus maps a Wait error to the shell status convention: exit
// code as-is, 128+signal for signaled exits.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return ee.ExitCode()
	}
	return 1
}

// IsNotFound reports whether a spawn failure was a missing command, as
// opposed to a found-but-not-executable one.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
