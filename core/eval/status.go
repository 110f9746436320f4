package eval

import "fmt"

// Control is the directed control-flow part of a Status. Control
// signals are not errors: each is consumed by the nearest matching
// construct and must never leak past the top-level evaluation call.
type Control int

const (
	CtrlNone     Control = iota
	CtrlBreak            // break [n]
	CtrlContinue         // continue [n]
	CtrlReturn           // return [code]
	CtrlExit             // exit [code], unwinds the whole unit
	CtrlFatal            // script-fatal error, unwinds the whole unit
)

func (c Control) String() string {
	switch c {
	case CtrlBreak:
		return "break"
	case CtrlContinue:
		return "continue"
	case CtrlReturn:
		return "return"
	case CtrlExit:
		return "exit"
	case CtrlFatal:
		return "fatal"
	}
	return "none"
}

// Status is the outcome of one evaluation step: a numeric exit code
// (0 = success) or a control signal travelling up the evaluation call
// stack.
type Status struct {
	Code  int
	Ctrl  Control
	Level int   // remaining loop levels for break/continue
	Err   error // detail for CtrlFatal
}

// OK is the all-clear status.
func OK() Status { return Status{} }

// Exit wraps a plain exit code.
func Exit(code int) Status { return Status{Code: code} }

// Failure is the generic single-command failure.
func Failure() Status { return Status{Code: 1} }

// Fatal aborts the whole evaluation unit.
func Fatal(err error) Status {
	return Status{Code: 1, Ctrl: CtrlFatal, Err: err}
}

// Breaks signals break out of n loop levels.
func Breaks(n int) Status {
	return Status{Ctrl: CtrlBreak, Level: n}
}

// Continues signals continue at the nth enclosing loop.
func Continues(n int) Status {
	return Status{Ctrl: CtrlContinue, Level: n}
}

// Returns signals return from the enclosing function with code.
func Returns(code int) Status {
	return Status{Code: code, Ctrl: CtrlReturn}
}

// Success reports a plain zero status.
func (s Status) Success() bool {
	return s.Code == 0 && s.Ctrl == CtrlNone
}

// Signal reports whether the status carries any control signal.
func (s Status) Signal() bool {
	return s.Ctrl != CtrlNone
}

func (s Status) String() string {
	if s.Ctrl == CtrlNone {
		return fmt.Sprintf("status %d", s.Code)
	}
	return fmt.Sprintf("status %d (%s)", s.Code, s.Ctrl)
}

// Status codes surfaced to the host beyond ordinary exits.
const (
	CodeNotExecutable = 126
	CodeNotFound      = 127
)
