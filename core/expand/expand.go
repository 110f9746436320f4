// Package expand turns unexpanded word fragments into final argument
// strings: variable substitution, command substitution, arithmetic,
// brace expansion, word splitting and globbing. Quote context comes
// from the lexer's fragments and is never re-derived from text.
package expand

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/marlinsh/marlin/core/ast"
	"github.com/marlinsh/marlin/core/lex"
	"github.com/marlinsh/marlin/core/variables"
)

// UnboundVariableError is returned under strict policy when an unset
// variable is expanded.
type UnboundVariableError struct {
	Name string
	Pos  lex.Pos
}

func (e *UnboundVariableError) Error() string {
	return fmt.Sprintf("%s: unbound variable %q", e.Pos, e.Name)
}

// ArithmeticError reports a failed $((...)) evaluation.
type ArithmeticError struct {
	Pos lex.Pos
	Msg string
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("%s: arithmetic error: %s", e.Pos, e.Msg)
}

// CommandSubstitutionError reports a failed $(...) capture.
type CommandSubstitutionError struct {
	Pos lex.Pos
	Err error
}

func (e *CommandSubstitutionError) Error() string {
	return fmt.Sprintf("%s: command substitution: %v", e.Pos, e.Err)
}

func (e *CommandSubstitutionError) Unwrap() error { return e.Err }

// GlobError reports a filesystem failure during pathname expansion.
// Malformed patterns are not errors; they stay literal like unmatched
// ones.
type GlobError struct {
	Pattern string
	Err     error
}

func (e *GlobError) Error() string {
	return fmt.Sprintf("bad pattern %q: %v", e.Pattern, e.Err)
}

func (e *GlobError) Unwrap() error { return e.Err }

// CaptureFunc evaluates a nested script and returns its captured
// standard output.
type CaptureFunc func(src string) (string, error)

// Expander carries the state one expansion needs. The evaluator builds
// one per shell instance and updates the mutable fields as evaluation
// proceeds.
type Expander struct {
	Scope *variables.Scope
	Fs    afero.Fs
	Dir   string // working directory for relative globs

	// Strict makes expansion of unset variables an error instead of an
	// empty string.
	Strict bool

	// Capture runs command substitutions. When nil, $(...) fails.
	Capture CaptureFunc

	// LastStatus backs $?.
	LastStatus int
	// Name backs $0; Args back $1..$n, $#, $@ and the args array view.
	Name string
	Args []string
}

// ExpandWords expands a word list into the final argument vector.
func (e *Expander) ExpandWords(words []ast.Word) ([]string, error) {
	var out []string
	for _, w := range words {
		fields, err := e.ExpandWord(w)
		if err != nil {
			return nil, err
		}
		out = append(out, fields...)
	}
	return out, nil
}

// ExpandWord expands one word into zero or more argument strings.
func (e *Expander) ExpandWord(w ast.Word) ([]string, error) {
	acc := &accum{}
	for _, frag := range w.Frags {
		if err := e.expandFragment(w.Pos, frag, acc); err != nil {
			return nil, err
		}
	}
	acc.breakField()

	var out []string
	for _, f := range acc.fields {
		if !f.unquoted {
			out = append(out, f.text)
			continue
		}
		for _, braced := range expandBraces(f.text) {
			if !f.glob || !hasGlobMeta(braced) {
				out = append(out, braced)
				continue
			}
			matches, err := e.glob(braced)
			if err != nil {
				return nil, err
			}
			out = append(out, matches...)
		}
	}
	return out, nil
}

// ExpandString expands a word to a single string: no word splitting, no
// globbing, arrays joined on spaces. Used for redirection targets,
// case words and scalar assignment values.
func (e *Expander) ExpandString(w ast.Word) (string, error) {
	var sb strings.Builder
	for _, frag := range w.Frags {
		if frag.Quote == lex.QuoteSingle {
			sb.WriteString(frag.Text)
			continue
		}
		expanded, err := e.expandText(w.Pos, frag.Text)
		if err != nil {
			return "", err
		}
		sb.WriteString(expanded)
	}
	return sb.String(), nil
}

// ExpandPattern expands a word for pattern matching: like ExpandString
// but glob metacharacters survive for the matcher.
func (e *Expander) ExpandPattern(w ast.Word) (string, error) {
	return e.ExpandString(w)
}

// ExpandHeredoc expands a heredoc body; quoted delimiters suppress all
// expansion.
func (e *Expander) ExpandHeredoc(r ast.Redirect) (string, error) {
	body := ""
	if r.Body != nil {
		body = *r.Body
	}
	if r.Quoted {
		return body, nil
	}
	return e.expandText(r.Pos, body)
}

// ExpandValue expands an assignment's right-hand side into a Value.
func (e *Expander) ExpandValue(a ast.Assign) (variables.Value, error) {
	if a.IsArr {
		elems, err := e.ExpandWords(a.Array)
		if err != nil {
			return variables.Value{}, err
		}
		if elems == nil {
			elems = []string{}
		}
		return variables.Array(elems), nil
	}
	s, err := e.ExpandString(a.Value)
	if err != nil {
		return variables.Value{}, err
	}
	return variables.Scalar(s), nil
}

// expandText substitutes $-constructs in text without splitting,
// joining arrays on spaces.
func (e *Expander) expandText(pos lex.Pos, text string) (string, error) {
	var sb strings.Builder
	i := 0
	for i < len(text) {
		j := strings.IndexByte(text[i:], '$')
		if j < 0 {
			sb.WriteString(text[i:])
			break
		}
		sb.WriteString(text[i : i+j])
		i += j
		fields, _, n, err := e.expandDollar(pos, text[i:])
		if err != nil {
			return "", err
		}
		if n == 0 {
			sb.WriteByte('$')
			i++
			continue
		}
		sb.WriteString(strings.Join(fields, " "))
		i += n
	}
	return sb.String(), nil
}

// field accumulation

type field struct {
	text     string
	unquoted bool // whole field built from unquoted pieces
	glob     bool // contains glob-eligible unquoted text
}

type accum struct {
	cur      strings.Builder
	started  bool
	glob     bool
	anyQuote bool
	fields   []field
}

func (a *accum) add(text string, quoted bool) {
	a.cur.WriteString(text)
	a.started = true
	if quoted {
		a.anyQuote = true
	} else if hasGlobMeta(text) || strings.ContainsAny(text, "{}") {
		a.glob = true
	}
}

// mark notes that a fragment produced an (possibly empty) quoted field,
// so "" still becomes an argument.
func (a *accum) mark(quoted bool) {
	a.started = true
	if quoted {
		a.anyQuote = true
	}
}

func (a *accum) breakField() {
	if !a.started {
		return
	}
	a.fields = append(a.fields, field{
		text:     a.cur.String(),
		unquoted: !a.anyQuote,
		glob:     a.glob,
	})
	a.cur.Reset()
	a.started = false
	a.glob = false
	a.anyQuote = false
}

func (e *Expander) expandFragment(pos lex.Pos, frag lex.Fragment, acc *accum) error {
	switch frag.Quote {
	case lex.QuoteSingle:
		acc.add(frag.Text, true)
		acc.mark(true)
		return nil
	case lex.QuoteDouble:
		acc.mark(true)
		return e.walkDollar(pos, frag.Text, true, acc)
	default:
		return e.walkDollar(pos, frag.Text, false, acc)
	}
}

// walkDollar scans fragment text, copying literal runs and substituting
// $-constructs per the fragment's quote context.
func (e *Expander) walkDollar(pos lex.Pos, text string, quoted bool, acc *accum) error {
	i := 0
	for i < len(text) {
		j := strings.IndexByte(text[i:], '$')
		if j < 0 {
			acc.add(text[i:], quoted)
			return nil
		}
		if j > 0 {
			acc.add(text[i:i+j], quoted)
			i += j
		}

		fields, splice, n, err := e.expandDollar(pos, text[i:])
		if err != nil {
			return err
		}
		if n == 0 {
			acc.add("$", quoted)
			i++
			continue
		}
		i += n

		switch {
		case quoted && splice:
			// "$@" keeps each positional argument a separate field.
			e.spliceFields(fields, true, acc)
		case quoted:
			acc.add(strings.Join(fields, " "), true)
		case splice:
			e.spliceFields(fields, false, acc)
		default:
			// Scalar result in unquoted context: word-split it.
			e.spliceSplit(fields[0], acc)
		}
	}
	return nil
}

// spliceFields appends expansion fields; the first merges with the
// accumulating word, the rest start fresh fields.
func (e *Expander) spliceFields(fields []string, quoted bool, acc *accum) {
	for i, f := range fields {
		if i > 0 {
			acc.breakField()
		}
		acc.add(f, quoted)
	}
}

// spliceSplit word-splits a scalar expansion result on whitespace.
// Leading and trailing whitespace end or begin fields without adding
// empty ones, matching conventional shell behavior.
func (e *Expander) spliceSplit(s string, acc *accum) {
	if s == "" {
		return
	}
	lead := strings.IndexFunc(s, notSpace) != 0
	trail := strings.LastIndexFunc(s, notSpace) != len(s)-1
	pieces := strings.Fields(s)
	if lead && len(pieces) > 0 {
		acc.breakField()
	}
	for i, p := range pieces {
		if i > 0 {
			acc.breakField()
		}
		acc.add(p, false)
	}
	if trail {
		acc.breakField()
	}
}

func notSpace(r rune) bool {
	return r != ' ' && r != '\t' && r != '\n' && r != '\r'
}

// expandDollar expands the $-construct at the start of text, which must
// begin with '$'. It returns the result fields, whether they splice as
// separate arguments, and how many input bytes were consumed; n == 0
// means the '$' was literal.
func (e *Expander) expandDollar(pos lex.Pos, text string) (fields []string, splice bool, n int, err error) {
	if len(text) < 2 {
		return nil, false, 0, nil
	}

	switch c := text[1]; {
	case c == '(' && strings.HasPrefix(text, "$(("):
		end := matchArith(text)
		if end < 0 {
			return nil, false, 0, &ArithmeticError{Pos: pos, Msg: "unterminated expression"}
		}
		v, aerr := e.evalArith(pos, text[3:end-2])
		if aerr != nil {
			return nil, false, 0, aerr
		}
		return []string{strconv.FormatInt(v, 10)}, false, end, nil

	case c == '(':
		end := matchParens(text, 1)
		if end < 0 {
			return nil, false, 0, &CommandSubstitutionError{Pos: pos, Err: fmt.Errorf("unterminated substitution")}
		}
		if e.Capture == nil {
			return nil, false, 0, &CommandSubstitutionError{Pos: pos, Err: fmt.Errorf("substitution not supported here")}
		}
		out, cerr := e.Capture(text[2 : end-1])
		if cerr != nil {
			return nil, false, 0, &CommandSubstitutionError{Pos: pos, Err: cerr}
		}
		// Exactly one trailing newline is stripped.
		out = strings.TrimSuffix(out, "\n")
		return []string{out}, false, end, nil

	case c == '{':
		end := strings.IndexByte(text, '}')
		if end < 0 {
			return nil, false, 0, nil
		}
		inner := text[2:end]
		if name := strings.TrimPrefix(inner, "#"); name != inner {
			if !isName(name) {
				return nil, false, 0, &UnboundVariableError{Name: inner, Pos: pos}
			}
			v, ok := e.Scope.Lookup(name)
			if !ok {
				if e.Strict {
					return nil, false, 0, &UnboundVariableError{Name: name, Pos: pos}
				}
				return []string{"0"}, false, end + 1, nil
			}
			return []string{strconv.Itoa(v.Len())}, false, end + 1, nil
		}
		fields, splice, err = e.lookupParam(pos, inner)
		return fields, splice, end + 1, err

	default:
		if isSpecialByte(c) {
			fields, splice, err = e.lookupParam(pos, string(c))
			return fields, splice, 2, err
		}
		j := 1
		for j < len(text) && isNameByte(text[j]) {
			j++
		}
		if j == 1 {
			return nil, false, 0, nil
		}
		fields, splice, err = e.lookupParam(pos, text[1:j])
		return fields, splice, j, err
	}
}

// lookupParam resolves a variable or special parameter name.
func (e *Expander) lookupParam(pos lex.Pos, name string) ([]string, bool, error) {
	switch name {
	case "?":
		return []string{strconv.Itoa(e.LastStatus)}, false, nil
	case "#":
		return []string{strconv.Itoa(len(e.Args))}, false, nil
	case "@", "*":
		return append([]string(nil), e.Args...), true, nil
	case "$":
		return []string{strconv.Itoa(os.Getpid())}, false, nil
	case "0":
		return []string{e.Name}, false, nil
	}
	if len(name) == 1 && name[0] >= '1' && name[0] <= '9' {
		i := int(name[0] - '1')
		if i < len(e.Args) {
			return []string{e.Args[i]}, false, nil
		}
		if e.Strict {
			return nil, false, &UnboundVariableError{Name: name, Pos: pos}
		}
		return []string{""}, false, nil
	}
	if !isName(name) {
		return nil, false, &UnboundVariableError{Name: name, Pos: pos}
	}

	v, ok := e.Scope.Lookup(name)
	if !ok {
		if e.Strict {
			return nil, false, &UnboundVariableError{Name: name, Pos: pos}
		}
		return []string{""}, false, nil
	}
	if v.IsArray() {
		return v.Fields(), true, nil
	}
	return []string{v.String()}, false, nil
}

// matchParens returns the index just past the parenthesized group that
// opens at text[open], or -1. Quoted parentheses do not count.
func matchParens(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		case '\\':
			i++
		case '\'':
			for i++; i < len(text) && text[i] != '\''; i++ {
			}
		case '"':
			for i++; i < len(text) && text[i] != '"'; i++ {
				if text[i] == '\\' {
					i++
				}
			}
		}
	}
	return -1
}

// matchArith returns the index just past the "))" closing a "$((".
func matchArith(text string) int {
	depth := 0
	for i := 1; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
			if depth == 1 && i+1 < len(text) && text[i+1] == ')' {
				return i + 2
			}
		}
	}
	return -1
}

func (e *Expander) glob(pattern string) ([]string, error) {
	fs := e.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	lookup := pattern
	base := ""
	if e.Dir != "" && !filepath.IsAbs(pattern) {
		base = e.Dir
		lookup = filepath.Join(e.Dir, pattern)
	}

	matches, err := afero.Glob(fs, lookup)
	if errors.Is(err, filepath.ErrBadPattern) {
		// A word like "[" is a fine argument; treat it literally.
		return []string{pattern}, nil
	}
	if err != nil {
		return nil, &GlobError{Pattern: pattern, Err: err}
	}
	if len(matches) == 0 {
		// No match keeps the literal pattern.
		return []string{pattern}, nil
	}
	if base != "" {
		for i, m := range matches {
			if rel, rerr := filepath.Rel(base, m); rerr == nil {
				matches[i] = rel
			}
		}
	}
	sort.Strings(matches)
	return matches, nil
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

func isSpecialByte(c byte) bool {
	switch c {
	case '?', '#', '@', '*', '$':
		return true
	}
	return false
}

func isNameByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			if i == 0 {
				return false
			}
			continue
		}
		if !isNameByte(c) {
			return false
		}
	}
	return true
}
