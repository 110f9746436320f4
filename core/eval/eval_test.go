package eval

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlinsh/marlin/core/job"
	"github.com/marlinsh/marlin/core/parse"
	"github.com/marlinsh/marlin/core/variables"
)

type harness struct {
	ev   *Evaluator
	fs   afero.Fs
	out  *bytes.Buffer
	errs *bytes.Buffer
}

func newHarness() *harness {
	h := &harness{
		fs:   afero.NewMemMapFs(),
		out:  &bytes.Buffer{},
		errs: &bytes.Buffer{},
	}

	reg := NewRegistry()
	reg.Add("echo", func(ctx *Context, args []string) Status {
		io.WriteString(ctx.Stdout, strings.Join(args, " ")+"\n")
		return OK()
	}, "")
	reg.Add("fail", func(*Context, []string) Status { return Failure() }, "")
	reg.Add("status", func(ctx *Context, args []string) Status {
		n, _ := strconv.Atoi(args[0])
		return Exit(n)
	}, "")
	reg.Add("upper", func(ctx *Context, args []string) Status {
		data, err := io.ReadAll(ctx.Stdin)
		if err != nil {
			return Failure()
		}
		io.WriteString(ctx.Stdout, strings.ToUpper(string(data)))
		return OK()
	}, "")
	reg.Add("exit", func(ctx *Context, args []string) Status {
		code := 0
		if len(args) > 0 {
			code, _ = strconv.Atoi(args[0])
		}
		return Status{Code: code, Ctrl: CtrlExit}
	}, "")
	reg.Add("break", func(ctx *Context, args []string) Status {
		n := 1
		if len(args) > 0 {
			n, _ = strconv.Atoi(args[0])
		}
		return Breaks(n)
	}, "")
	reg.Add("continue", func(*Context, []string) Status { return Continues(1) }, "")
	reg.Add("return", func(ctx *Context, args []string) Status {
		n := 0
		if len(args) > 0 {
			n, _ = strconv.Atoi(args[0])
		}
		return Returns(n)
	}, "")

	h.ev = New(Params{
		Scope:    variables.NewScope(),
		Registry: reg,
		Jobs:     job.NewController(h.fs),
		Fs:       h.fs,
		Stdin:    strings.NewReader(""),
		Stdout:   h.out,
		Stderr:   h.errs,
		Dir:      "/",
		Name:     "test",
	})
	return h
}

func (h *harness) run(t *testing.T, src string) Status {
	t.Helper()
	script, err := parse.Parse("test", src)
	require.Nil(t, err)
	return h.ev.Run(script)
}

func TestEcho(t *testing.T) {
	h := newHarness()
	st := h.run(t, "echo hello world")

	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "hello world\n", h.out.String())
}

func TestLastStatus(t *testing.T) {
	h := newHarness()
	h.run(t, "fail; echo $?; echo $?")

	assert.Equal(t, "1\n0\n", h.out.String())
}

func TestShortCircuit(t *testing.T) {
	cases := map[string]struct {
		src  string
		want string
	}{
		"and stops on failure":    {"fail && echo no; echo yes", "yes\n"},
		"and runs on success":     {"echo a && echo b", "a\nb\n"},
		"or skips on success":     {"echo a || echo no", "a\n"},
		"or runs on failure":      {"fail || echo rescue", "rescue\n"},
		"sequence ignores status": {"fail; echo always", "always\n"},
		"chained":                 {"fail && echo no || echo yes", "yes\n"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			h := newHarness()
			h.run(t, tc.src)
			assert.Equal(t, tc.want, h.out.String())
		})
	}
}

func TestAssignments(t *testing.T) {
	h := newHarness()
	st := h.run(t, "x=5; echo $x")

	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "5\n", h.out.String())
}

func TestAssignmentPrefixPersists(t *testing.T) {
	// Assignment prefixes apply to the scope, not just the command.
	h := newHarness()
	h.run(t, "x=1 echo ignored; echo $x")

	assert.Equal(t, "ignored\n1\n", h.out.String())
}

func TestArrays(t *testing.T) {
	h := newHarness()
	h.run(t, "xs=(a b c); echo $xs; echo ${#xs}")

	assert.Equal(t, "a b c\n3\n", h.out.String())
}

func TestIfElse(t *testing.T) {
	h := newHarness()
	h.run(t, "if fail; then echo then; else echo else; fi")
	assert.Equal(t, "else\n", h.out.String())

	h2 := newHarness()
	h2.run(t, "if echo cond; then echo then; fi")
	assert.Equal(t, "cond\nthen\n", h2.out.String())
}

func TestWhileLoop(t *testing.T) {
	h := newHarness()
	h.ev.Registry.Add("lt", func(_ *Context, args []string) Status {
		a, _ := strconv.Atoi(args[0])
		b, _ := strconv.Atoi(args[1])
		if a < b {
			return OK()
		}
		return Failure()
	}, "")

	st := h.run(t, `i=0
while lt $i 3; do
  echo $i
  i=$((i + 1))
done`)

	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "0\n1\n2\n", h.out.String())
}

func TestForLoop(t *testing.T) {
	h := newHarness()
	st := h.run(t, "for x in a b c; do echo $x; done")

	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "a\nb\nc\n", h.out.String())
}

func TestForOverPositionals(t *testing.T) {
	h := newHarness()
	h.ev.SetProgram("test", []string{"p1", "p2"})
	h.run(t, "for a; do echo $a; done")

	assert.Equal(t, "p1\np2\n", h.out.String())
}

func TestBreakAndContinue(t *testing.T) {
	h := newHarness()
	h.run(t, "for x in a b c; do echo $x; break; done")
	assert.Equal(t, "a\n", h.out.String())

	h2 := newHarness()
	h2.run(t, "for x in a b c; do continue; echo $x; done")
	assert.Equal(t, "", h2.out.String())
}

func TestBreakTwoLevels(t *testing.T) {
	h := newHarness()
	h.run(t, `for outer in 1 2; do
  for inner in a b; do
    echo $outer$inner
    break 2
  done
  echo unreachable
done`)

	assert.Equal(t, "1a\n", h.out.String())
}

func TestStrayBreakAtTopLevel(t *testing.T) {
	h := newHarness()
	st := h.run(t, "break")

	assert.Equal(t, 0, st.Code)
	assert.Equal(t, CtrlNone, st.Ctrl, "control must not leak to the host")
	assert.Contains(t, h.errs.String(), "break")
}

func TestCase(t *testing.T) {
	cases := map[string]struct {
		src  string
		want string
	}{
		"literal":       {"case abc in abc) echo hit;; esac", "hit\n"},
		"glob":          {"case abc in a*) echo glob;; esac", "glob\n"},
		"first wins":    {"case abc in a*) echo one;; abc) echo two;; esac", "one\n"},
		"alternates":    {"case b in a|b) echo either;; esac", "either\n"},
		"no match":      {"case zzz in a*) echo no;; esac", ""},
		"expanded word": {"x=abc; case $x in abc) echo var;; esac", "var\n"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			h := newHarness()
			st := h.run(t, tc.src)
			assert.Equal(t, 0, st.Code)
			assert.Equal(t, tc.want, h.out.String())
		})
	}
}

func TestFunctions(t *testing.T) {
	h := newHarness()
	st := h.run(t, `greet() { echo hi $1; }
greet there`)

	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "hi there\n", h.out.String())
}

func TestFunctionReturn(t *testing.T) {
	h := newHarness()
	st := h.run(t, `f() { return 4; echo unreachable; }
f`)

	assert.Equal(t, 4, st.Code)
	assert.Equal(t, "", h.out.String())
}

func TestFunctionMutatesOuter(t *testing.T) {
	h := newHarness()
	h.run(t, `x=old
bump() { x=new; }
bump
echo $x`)

	assert.Equal(t, "new\n", h.out.String())
}

func TestFunctionArgsArray(t *testing.T) {
	h := newHarness()
	h.run(t, `count() { echo $#; echo $@; }
count a b c`)

	assert.Equal(t, "3\na b c\n", h.out.String())
}

func TestCallFunction(t *testing.T) {
	h := newHarness()
	h.run(t, "hook() { echo called $1; }")

	st, ok := h.ev.Call("hook", []string{"now"})
	require.True(t, ok)
	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "called now\n", h.out.String())

	_, ok = h.ev.Call("missing", nil)
	assert.False(t, ok)
}

func TestCommandSubstitution(t *testing.T) {
	h := newHarness()
	h.run(t, `x=$(echo inner)
echo [$x]`)

	assert.Equal(t, "[inner]\n", h.out.String())
}

func TestCommandSubstitutionStatus(t *testing.T) {
	h := newHarness()
	h.run(t, "x=$(fail); echo $?")

	// $? reflects the substitution's exit status.
	assert.Equal(t, "1\n", h.out.String())
}

func TestPipeline(t *testing.T) {
	h := newHarness()
	st := h.run(t, "echo hello | upper")

	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "HELLO\n", h.out.String())
}

func TestPipelineStatusIsLast(t *testing.T) {
	h := newHarness()
	st := h.run(t, "fail | echo ok")
	assert.Equal(t, 0, st.Code)

	h2 := newHarness()
	st = h2.run(t, "echo ok | status 3")
	assert.Equal(t, 3, st.Code)
}

func TestFunctionInPipeline(t *testing.T) {
	h := newHarness()
	h.run(t, `shout() { upper; }
echo psst | shout`)

	assert.Equal(t, "PSST\n", h.out.String())
}

func TestBackgroundJob(t *testing.T) {
	h := newHarness()
	release := make(chan struct{})
	h.ev.Registry.Add("block", func(*Context, []string) Status {
		<-release
		return Exit(9)
	}, "")

	st := h.run(t, "block &")
	assert.Equal(t, 0, st.Code, "background returns immediately")
	assert.Equal(t, 1, h.ev.Jobs.Count())

	close(release)
	assert.Equal(t, 9, h.ev.Jobs.WaitAll())
}

func TestBackgroundMidList(t *testing.T) {
	h := newHarness()
	release := make(chan struct{})
	h.ev.Registry.Add("block", func(*Context, []string) Status {
		<-release
		return Exit(6)
	}, "")

	// & both backgrounds and separates, so the echo still runs.
	st := h.run(t, "block & echo fg")
	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "fg\n", h.out.String())
	assert.Equal(t, 1, h.ev.Jobs.Count())

	close(release)
	assert.Equal(t, 6, h.ev.Jobs.WaitAll())
}

func TestBackgroundAndOr(t *testing.T) {
	h := newHarness()
	release := make(chan struct{})
	h.ev.Registry.Add("block", func(*Context, []string) Status {
		<-release
		return Exit(2)
	}, "")

	// Only the rightmost pipeline of the list goes to the background.
	st := h.run(t, "echo first && block &")
	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "first\n", h.out.String())
	assert.Equal(t, 1, h.ev.Jobs.Count())

	close(release)
	assert.Equal(t, 2, h.ev.Jobs.WaitAll())
}

func TestExitUnwinds(t *testing.T) {
	h := newHarness()
	st := h.run(t, "echo before; exit 3; echo after")

	assert.Equal(t, 3, st.Code)
	assert.Equal(t, CtrlNone, st.Ctrl)
	assert.Equal(t, "before\n", h.out.String())
}

func TestExitUnwindsLoops(t *testing.T) {
	h := newHarness()
	st := h.run(t, "for x in a b; do exit 5; done; echo after")

	assert.Equal(t, 5, st.Code)
	assert.Equal(t, "", h.out.String())
}

func TestCommandNotFound(t *testing.T) {
	h := newHarness()
	st := h.run(t, "definitely-not-here-xyz")

	assert.Equal(t, CodeNotFound, st.Code)
	assert.Contains(t, h.errs.String(), "command not found")
}

func TestUnboundDefaultPolicy(t *testing.T) {
	h := newHarness()
	st := h.run(t, "echo [$missing]")

	// Default policy: unset expands empty.
	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "[]\n", h.out.String())
}

func TestUnboundStrict(t *testing.T) {
	h := newHarness()
	h.ev.StrictVars = true
	st := h.run(t, "echo $missing; echo after")

	// The failing statement is skipped but the unit continues.
	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "after\n", h.out.String())
	assert.Contains(t, h.errs.String(), "unbound variable")
}

func TestUnboundStrictFailFast(t *testing.T) {
	h := newHarness()
	h.ev.StrictVars = true
	h.ev.FailFast = true
	st := h.run(t, "echo $missing; echo after")

	assert.Equal(t, 1, st.Code)
	assert.Equal(t, "", h.out.String())
	assert.Contains(t, h.errs.String(), "unbound variable")
}

func TestRedirections(t *testing.T) {
	h := newHarness()
	st := h.run(t, "echo saved > /f.txt; upper < /f.txt")

	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "SAVED\n", h.out.String())

	data, err := afero.ReadFile(h.fs, "/f.txt")
	require.Nil(t, err)
	assert.Equal(t, "saved\n", string(data))
}

func TestHeredoc(t *testing.T) {
	h := newHarness()
	h.run(t, "name=world\nupper <<EOF\nhello $name\nEOF\n")

	assert.Equal(t, "HELLO WORLD\n", h.out.String())
}

func TestQuotedHeredocSuppressesExpansion(t *testing.T) {
	h := newHarness()
	h.run(t, "upper <<'EOF'\n$name\nEOF\n")

	assert.Equal(t, "$NAME\n", h.out.String())
}

func TestGroup(t *testing.T) {
	h := newHarness()
	st := h.run(t, "{ echo a; echo b; }")

	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "a\nb\n", h.out.String())
}
