package job

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stdio() (Stdio, *bytes.Buffer, *bytes.Buffer) {
	var out, errw bytes.Buffer
	return Stdio{In: strings.NewReader(""), Out: &out, Err: &errw}, &out, &errw
}

// emit writes text to stdout.
func emit(text string) Stage {
	return Stage{Kind: Builtin, Name: "emit", Run: func(_ io.Reader, out, _ io.Writer) int {
		io.WriteString(out, text)
		return 0
	}}
}

// upper copies stdin to stdout uppercased.
func upper() Stage {
	return Stage{Kind: Builtin, Name: "upper", Run: func(in io.Reader, out, _ io.Writer) int {
		data, err := io.ReadAll(in)
		if err != nil {
			return 1
		}
		io.WriteString(out, strings.ToUpper(string(data)))
		return 0
	}}
}

func exitWith(code int) Stage {
	return Stage{Kind: Builtin, Name: "exit", Run: func(io.Reader, io.Writer, io.Writer) int {
		return code
	}}
}

func TestRunEmpty(t *testing.T) {
	c := NewController(afero.NewMemMapFs())
	code, err := c.Run(nil, false, Stdio{})
	require.Nil(t, err)
	assert.Equal(t, 0, code)
}

func TestPipelineDataFlow(t *testing.T) {
	c := NewController(afero.NewMemMapFs())
	io_, out, _ := stdio()

	code, err := c.Run([]Stage{emit("hello\n"), upper(), upper()}, false, io_)
	require.Nil(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "HELLO\n", out.String())
}

func TestStatusIsLastStage(t *testing.T) {
	c := NewController(afero.NewMemMapFs())
	io_, _, _ := stdio()

	code, err := c.Run([]Stage{exitWith(1), exitWith(0), exitWith(4)}, false, io_)
	require.Nil(t, err)
	assert.Equal(t, 4, code)

	code, err = c.Run([]Stage{exitWith(3), exitWith(0)}, false, io_)
	require.Nil(t, err)
	assert.Equal(t, 0, code)
}

func TestRedirections(t *testing.T) {
	fsys := afero.NewMemMapFs()
	c := NewController(fsys)
	io_, out, _ := stdio()

	// Heredoc feeds stdin, stdout goes to a file instead of the pipe
	// endpoint.
	stage := upper()
	stage.Redirs = []Redir{
		{Op: RedirHere, Text: "quiet\n"},
		{Op: RedirStdout, Path: "/out.txt"},
	}

	code, err := c.Run([]Stage{stage}, false, io_)
	require.Nil(t, err)
	assert.Equal(t, 0, code)
	assert.Empty(t, out.String())

	data, err := afero.ReadFile(fsys, "/out.txt")
	require.Nil(t, err)
	assert.Equal(t, "QUIET\n", string(data))
}

func TestRedirAppend(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.Nil(t, afero.WriteFile(fsys, "/log", []byte("first\n"), 0644))
	c := NewController(fsys)
	io_, _, _ := stdio()

	stage := emit("second\n")
	stage.Redirs = []Redir{{Op: RedirStdoutAppend, Path: "/log"}}

	_, err := c.Run([]Stage{stage}, false, io_)
	require.Nil(t, err)

	data, err := afero.ReadFile(fsys, "/log")
	require.Nil(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestRedirStdinFromFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.Nil(t, afero.WriteFile(fsys, "/in.txt", []byte("data\n"), 0644))
	c := NewController(fsys)
	io_, out, _ := stdio()

	stage := upper()
	stage.Redirs = []Redir{{Op: RedirStdin, Path: "/in.txt"}}

	_, err := c.Run([]Stage{stage}, false, io_)
	require.Nil(t, err)
	assert.Equal(t, "DATA\n", out.String())
}

func TestRedirMissingInput(t *testing.T) {
	c := NewController(afero.NewMemMapFs())
	io_, _, _ := stdio()

	stage := upper()
	stage.Redirs = []Redir{{Op: RedirStdin, Path: "/nope"}}

	_, err := c.Run([]Stage{stage}, false, io_)
	require.NotNil(t, err)

	var serr *SpawnError
	assert.ErrorAs(t, err, &serr)
}

func TestSpawnNotFound(t *testing.T) {
	c := NewController(afero.NewMemMapFs())
	io_, _, _ := stdio()

	stage := Stage{Kind: External, Name: "no-such-cmd-a8f2", Argv: []string{"no-such-cmd-a8f2"}}
	_, err := c.Run([]Stage{stage}, false, io_)
	require.NotNil(t, err)

	var serr *SpawnError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "no-such-cmd-a8f2", serr.Name)
	assert.True(t, IsNotFound(err))
}

func TestBackgroundJob(t *testing.T) {
	c := NewController(afero.NewMemMapFs())
	io_, _, _ := stdio()

	release := make(chan struct{})
	stage := Stage{Kind: Builtin, Name: "sleepish", Run: func(io.Reader, io.Writer, io.Writer) int {
		<-release
		return 7
	}}

	code, err := c.Run([]Stage{stage}, true, io_)
	require.Nil(t, err)
	assert.Equal(t, 0, code, "background run returns immediately")

	// Exactly one job is recorded and it is still running.
	jobs := c.Jobs()
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Running())
	assert.True(t, jobs[0].Background)
	assert.Equal(t, "sleepish", jobs[0].Label)

	close(release)
	status, err := c.Wait(jobs[0].ID)
	require.Nil(t, err)
	assert.Equal(t, 7, status)
	assert.Equal(t, 0, c.Count())
}

func TestWaitNoSuchJob(t *testing.T) {
	c := NewController(afero.NewMemMapFs())

	status, err := c.Wait(42)
	assert.NotNil(t, err)
	assert.Equal(t, 127, status)
}

func TestWaitAll(t *testing.T) {
	c := NewController(afero.NewMemMapFs())
	io_, _, _ := stdio()

	for i, code := range []int{1, 2, 3} {
		st := exitWith(code)
		_, err := c.Run([]Stage{st}, true, io_)
		require.Nil(t, err, "job %d", i)
	}

	// Reaps in id order; the result is the last job's status.
	assert.Equal(t, 3, c.WaitAll())
	assert.Equal(t, 0, c.Count())
}

func TestJobFinishes(t *testing.T) {
	c := NewController(afero.NewMemMapFs())
	io_, _, _ := stdio()

	_, err := c.Run([]Stage{exitWith(0)}, true, io_)
	require.Nil(t, err)

	jobs := c.Jobs()
	require.Len(t, jobs, 1)

	assert.Eventually(t, func() bool { return !jobs[0].Running() },
		time.Second, 5*time.Millisecond)
}

func TestApplyRedirsClosers(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.Nil(t, afero.WriteFile(fsys, "/in", []byte("x"), 0644))

	base, _, _ := stdio()
	s, closers, err := ApplyRedirs(fsys, []Redir{
		{Op: RedirStdin, Path: "/in"},
		{Op: RedirStdout, Path: "/out"},
	}, base)
	require.Nil(t, err)
	assert.Len(t, closers, 2)
	assert.NotEqual(t, base.In, s.In)
	assert.NotEqual(t, base.Out, s.Out)

	for _, cl := range closers {
		assert.Nil(t, cl.Close())
	}
}
