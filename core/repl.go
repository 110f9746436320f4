package core

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"

	"github.com/marlinsh/marlin/core/eval"
	"github.com/marlinsh/marlin/core/parse"
)

var errColor = color.New(color.FgRed)

// RunInteractive runs a read-eval-print loop over the shell's streams
// until EOF or an exit builtin. The returned code is the shell's final
// status.
func (s *Shell) RunInteractive() (int, error) {
	cfg := &readline.Config{
		Prompt:       s.prompt(),
		HistoryLimit: s.profile.HistorySize,
		Stdin:        readline.NewCancelableStdin(io.NopCloser(s.stdin)),
		Stdout:       s.stdout,
		Stderr:       s.stderr,
	}
	if s.profile.HistoryFile != "" {
		if home := s.scope.Get("HOME"); home != "" {
			cfg.HistoryFile = filepath.Join(home, s.profile.HistoryFile)
		}
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return 0, err
	}
	defer rl.Close()

	s.ev.SetProgram("marlin", nil)

	var pending string
	for {
		if pending == "" {
			rl.SetPrompt(s.prompt())
		} else {
			rl.SetPrompt("> ")
		}

		line, err := rl.Readline()
		switch {
		case err == io.EOF:
			return s.ev.LastStatus(), nil
		case err == readline.ErrInterrupt:
			pending = ""
			continue
		case err != nil:
			return 0, err
		}

		src := line
		if pending != "" {
			src = pending + "\n" + line
		}
		if strings.TrimSpace(src) == "" {
			continue
		}

		script, perr := parse.Parse("interactive", src)
		if perr != nil {
			if incomplete(perr) {
				// Keep reading until the construct closes.
				pending = src
				continue
			}
			pending = ""
			errColor.Fprintf(s.stderr, "marlin: %v\n", perr)
			continue
		}
		pending = ""

		st := s.ev.Eval(script)
		if st.Ctrl == eval.CtrlExit {
			return st.Code, nil
		}
		s.ev.Finish(st)
	}
}

// incomplete reports whether a parse failed only because the input
// ended inside an open construct.
func incomplete(err error) bool {
	serr, ok := err.(*parse.SyntaxError)
	return ok && serr.Found == "end of input"
}

// prompt renders the profile's prompt template; $PS1 overrides it.
// \u, \h and \w expand to user, host and working directory.
func (s *Shell) prompt() string {
	prompt := s.scope.Get("PS1")
	if prompt == "" {
		prompt = s.profile.Prompt
	}

	user := s.scope.Get("USER")
	if user == "" {
		user = "marlin"
	}
	host := s.scope.Get("HOSTNAME")
	if host == "" {
		host, _ = os.Hostname()
	}

	wd := s.ev.Dir
	if home := s.scope.Get("HOME"); home != "" && strings.HasPrefix(wd, home) {
		wd = "~" + strings.TrimPrefix(wd, home)
	}

	prompt = strings.ReplaceAll(prompt, `\u`, user)
	prompt = strings.ReplaceAll(prompt, `\h`, host)
	prompt = strings.ReplaceAll(prompt, `\w`, wd)
	return prompt
}
