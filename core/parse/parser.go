// Package parse builds an AST from script text. Parsing is eager: the
// whole unit is parsed before any evaluation, so a syntax error anywhere
// prevents the unit from running at all.
package parse

import (
	"fmt"
	"strings"

	"github.com/marlinsh/marlin/core/ast"
	"github.com/marlinsh/marlin/core/lex"
)

// SyntaxError reports malformed input with the position, what the
// parser wanted and what it found instead.
type SyntaxError struct {
	Name     string
	Pos      lex.Pos
	Expected string
	Found    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%s: syntax error: expected %s, found %s", e.Name, e.Pos, e.Expected, e.Found)
}

// Parse parses one whole unit of input. name labels error messages,
// typically the script's file name.
func Parse(name, src string) (*ast.Script, error) {
	p := &parser{name: name, lx: lex.New(src)}
	if err := p.next(); err != nil {
		return nil, err
	}
	root, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != lex.EOF {
		return nil, p.errExpected("end of input")
	}
	return &ast.Script{Name: name, Root: root}, nil
}

type parser struct {
	name string
	lx   *lex.Lexer
	tok  lex.Token
	la   *lex.Token
}

func (p *parser) next() error {
	if p.la != nil {
		p.tok, p.la = *p.la, nil
		return nil
	}
	tok, err := p.lx.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) peek() (lex.Token, error) {
	if p.la == nil {
		tok, err := p.lx.Next()
		if err != nil {
			return lex.Token{}, err
		}
		p.la = &tok
	}
	return *p.la, nil
}

func describe(tok lex.Token) string {
	switch tok.Kind {
	case lex.EOF:
		return "end of input"
	case lex.Word:
		return fmt.Sprintf("%q", tok.Text)
	case lex.Newline:
		return "newline"
	default:
		return tok.Kind.String()
	}
}

func (p *parser) errExpected(expected string) error {
	return &SyntaxError{Name: p.name, Pos: p.tok.Pos, Expected: expected, Found: describe(p.tok)}
}

// bare returns the token's text when it is an unquoted single-fragment
// word, which is the only form keywords are recognized in.
func bare(tok lex.Token) string {
	if tok.Kind != lex.Word || len(tok.Frags) != 1 || tok.Frags[0].Quote != lex.QuoteNone {
		return ""
	}
	return tok.Frags[0].Text
}

func (p *parser) atKeyword(words ...string) bool {
	b := bare(p.tok)
	if b == "" {
		return false
	}
	for _, w := range words {
		if b == w {
			return true
		}
	}
	return false
}

func (p *parser) expectKeyword(word string) error {
	if !p.atKeyword(word) {
		return p.errExpected(fmt.Sprintf("%q", word))
	}
	return p.next()
}

func (p *parser) skipSeparators() error {
	for p.tok.Kind == lex.Newline || p.tok.Kind == lex.Semi {
		if err := p.next(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) skipNewlines() error {
	for p.tok.Kind == lex.Newline {
		if err := p.next(); err != nil {
			return err
		}
	}
	return nil
}

// parseList parses a statement list until EOF, a closing token or one
// of the stop keywords. The terminator is left unconsumed.
func (p *parser) parseList(stops ...string) (ast.Node, error) {
	var root ast.Node
	for {
		if err := p.skipSeparators(); err != nil {
			return nil, err
		}
		if p.atListEnd(stops) {
			return root, nil
		}

		stmt, err := p.parseAndOr()
		if err != nil {
			return nil, err
		}

		// & backgrounds the pipeline just parsed and separates it from
		// the next statement, exactly like ";".
		backgrounded := false
		if p.tok.Kind == lex.Amp {
			stmt, err = background(stmt)
			if err != nil {
				return nil, p.errExpected("pipeline before \"&\"")
			}
			if err := p.next(); err != nil {
				return nil, err
			}
			backgrounded = true
		}

		if root == nil {
			root = stmt
		} else {
			root = &ast.List{Pos: nodePos(root), Op: ast.Seq, Left: root, Right: stmt}
		}

		if backgrounded {
			continue
		}

		switch p.tok.Kind {
		case lex.Semi, lex.Newline:
			// Separator handled at the top of the loop.
		case lex.EOF, lex.RParen, lex.DSemi:
			return root, nil
		default:
			if p.atListEnd(stops) {
				return root, nil
			}
			return nil, p.errExpected("\";\", \"&\" or newline")
		}
	}
}

func (p *parser) atListEnd(stops []string) bool {
	switch p.tok.Kind {
	case lex.EOF, lex.RParen, lex.DSemi:
		return true
	}
	return p.atKeyword(stops...)
}

// background marks a statement to run in the background. For an and-or
// list the flag lands on the rightmost pipeline.
func background(n ast.Node) (ast.Node, error) {
	switch n := n.(type) {
	case *ast.Pipeline:
		return &ast.Pipeline{Pos: n.Pos, Stages: n.Stages, Background: true}, nil
	case *ast.Simple:
		return &ast.Pipeline{Pos: n.Pos, Stages: []*ast.Simple{n}, Background: true}, nil
	case *ast.List:
		if n.Op == ast.And || n.Op == ast.Or {
			right, err := background(n.Right)
			if err != nil {
				return nil, err
			}
			return &ast.List{Pos: n.Pos, Op: n.Op, Left: n.Left, Right: right}, nil
		}
	}
	return nil, fmt.Errorf("not a pipeline")
}

func nodePos(n ast.Node) lex.Pos {
	switch n := n.(type) {
	case *ast.Simple:
		return n.Pos
	case *ast.Pipeline:
		return n.Pos
	case *ast.List:
		return n.Pos
	case *ast.If:
		return n.Pos
	case *ast.While:
		return n.Pos
	case *ast.For:
		return n.Pos
	case *ast.Case:
		return n.Pos
	case *ast.FuncDef:
		return n.Pos
	case *ast.Group:
		return n.Pos
	}
	return lex.Pos{}
}

func (p *parser) parseAndOr() (ast.Node, error) {
	left, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == lex.AndIf || p.tok.Kind == lex.OrIf {
		op := ast.And
		if p.tok.Kind == lex.OrIf {
			op = ast.Or
		}
		pos := p.tok.Pos
		if err := p.next(); err != nil {
			return nil, err
		}
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		right, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		left = &ast.List{Pos: pos, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parsePipeline() (ast.Node, error) {
	first, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != lex.Pipe {
		return first, nil
	}

	head, ok := first.(*ast.Simple)
	if !ok {
		return nil, p.errExpected("simple command before \"|\"")
	}
	stages := []*ast.Simple{head}
	for p.tok.Kind == lex.Pipe {
		if err := p.next(); err != nil {
			return nil, err
		}
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		cmd, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		stage, ok := cmd.(*ast.Simple)
		if !ok {
			return nil, p.errExpected("simple command after \"|\"")
		}
		stages = append(stages, stage)
	}
	return &ast.Pipeline{Pos: head.Pos, Stages: stages}, nil
}

func (p *parser) parseCommand() (ast.Node, error) {
	switch bare(p.tok) {
	case "if":
		return p.parseIf()
	case "while":
		return p.parseWhile()
	case "for":
		return p.parseFor()
	case "case":
		return p.parseCase()
	case "{":
		return p.parseGroup()
	}

	// name() compound is a function definition.
	if name := bare(p.tok); name != "" && isName(name) {
		la, err := p.peek()
		if err != nil {
			return nil, err
		}
		if la.Kind == lex.LParen {
			return p.parseFuncDef(name)
		}
	}

	return p.parseSimple()
}

func (p *parser) parseIf() (ast.Node, error) {
	pos := p.tok.Pos
	if err := p.next(); err != nil {
		return nil, err
	}
	cond, err := p.parseCondList("then")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	then, err := p.parseCondList("elif", "else", "fi")
	if err != nil {
		return nil, err
	}

	node := &ast.If{Pos: pos, Cond: cond, Then: then}
	switch {
	case p.atKeyword("elif"):
		// elif re-enters parseIf, which also consumes the closing "fi".
		elif, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		node.Else = elif
		return node, nil
	case p.atKeyword("else"):
		if err := p.next(); err != nil {
			return nil, err
		}
		elseBody, err := p.parseCondList("fi")
		if err != nil {
			return nil, err
		}
		node.Else = elseBody
	}
	if err := p.expectKeyword("fi"); err != nil {
		return nil, err
	}
	return node, nil
}

// parseCondList parses a list that must not be empty, as in the
// condition or branch of a compound statement.
func (p *parser) parseCondList(stops ...string) (ast.Node, error) {
	list, err := p.parseList(stops...)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, p.errExpected("command")
	}
	return list, nil
}

func (p *parser) parseWhile() (ast.Node, error) {
	pos := p.tok.Pos
	if err := p.next(); err != nil {
		return nil, err
	}
	cond, err := p.parseCondList("do")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, err := p.parseCondList("done")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	return &ast.While{Pos: pos, Cond: cond, Body: body}, nil
}

func (p *parser) parseFor() (ast.Node, error) {
	pos := p.tok.Pos
	if err := p.next(); err != nil {
		return nil, err
	}
	name := bare(p.tok)
	if name == "" || !isName(name) {
		return nil, p.errExpected("variable name")
	}
	if err := p.next(); err != nil {
		return nil, err
	}

	var words []ast.Word
	if p.atKeyword("in") {
		if err := p.next(); err != nil {
			return nil, err
		}
		for p.tok.Kind == lex.Word {
			words = append(words, ast.Word{Pos: p.tok.Pos, Frags: p.tok.Frags})
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.skipSeparators(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, err := p.parseCondList("done")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	return &ast.For{Pos: pos, Name: name, Words: words, Body: body}, nil
}

func (p *parser) parseCase() (ast.Node, error) {
	pos := p.tok.Pos
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.Kind != lex.Word {
		return nil, p.errExpected("word")
	}
	word := ast.Word{Pos: p.tok.Pos, Frags: p.tok.Frags}
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}

	var items []ast.CaseItem
	for {
		if err := p.skipSeparators(); err != nil {
			return nil, err
		}
		if p.atKeyword("esac") {
			break
		}
		if p.tok.Kind == lex.LParen {
			if err := p.next(); err != nil {
				return nil, err
			}
		}

		var patterns []ast.Word
		for {
			if p.tok.Kind != lex.Word {
				return nil, p.errExpected("pattern")
			}
			patterns = append(patterns, ast.Word{Pos: p.tok.Pos, Frags: p.tok.Frags})
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.tok.Kind != lex.Pipe {
				break
			}
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		if p.tok.Kind != lex.RParen {
			return nil, p.errExpected("\")\"")
		}
		if err := p.next(); err != nil {
			return nil, err
		}

		body, err := p.parseList("esac")
		if err != nil {
			return nil, err
		}
		items = append(items, ast.CaseItem{Patterns: patterns, Body: body})

		if p.tok.Kind == lex.DSemi {
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.skipSeparators(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("esac"); err != nil {
		return nil, err
	}
	return &ast.Case{Pos: pos, Word: word, Items: items}, nil
}

func (p *parser) parseGroup() (ast.Node, error) {
	pos := p.tok.Pos
	if err := p.next(); err != nil {
		return nil, err
	}
	list, err := p.parseCondList("}")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("}"); err != nil {
		return nil, err
	}
	return &ast.Group{Pos: pos, List: list}, nil
}

func (p *parser) parseFuncDef(name string) (ast.Node, error) {
	pos := p.tok.Pos
	if err := p.next(); err != nil { // name
		return nil, err
	}
	if err := p.next(); err != nil { // (
		return nil, err
	}
	if p.tok.Kind != lex.RParen {
		return nil, p.errExpected("\")\"")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	body, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDef{Pos: pos, Name: name, Body: body}, nil
}

func (p *parser) parseSimple() (ast.Node, error) {
	pos := p.tok.Pos
	cmd := &ast.Simple{Pos: pos}
	seenWord := false

	for {
		switch p.tok.Kind {
		case lex.Word:
			if !seenWord {
				assign, isAssign, err := p.tryAssignment()
				if err != nil {
					return nil, err
				}
				if isAssign {
					cmd.Assigns = append(cmd.Assigns, assign)
					continue
				}
			}
			seenWord = true
			cmd.Words = append(cmd.Words, ast.Word{Pos: p.tok.Pos, Frags: p.tok.Frags})
			if err := p.next(); err != nil {
				return nil, err
			}

		case lex.RedirIn, lex.RedirOut, lex.RedirAppend, lex.RedirErr, lex.RedirErrAppend, lex.HereString:
			kind := redirKind(p.tok.Kind)
			rpos := p.tok.Pos
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.tok.Kind != lex.Word {
				return nil, p.errExpected("redirection target")
			}
			cmd.Redirs = append(cmd.Redirs, ast.Redirect{
				Kind:   kind,
				Pos:    rpos,
				Target: ast.Word{Pos: p.tok.Pos, Frags: p.tok.Frags},
			})
			if err := p.next(); err != nil {
				return nil, err
			}

		case lex.Heredoc:
			cmd.Redirs = append(cmd.Redirs, ast.Redirect{
				Kind:   ast.RedirHeredoc,
				Pos:    p.tok.Pos,
				Target: ast.Word{Pos: p.tok.Pos, Frags: []lex.Fragment{{Text: p.tok.Text, Quote: lex.QuoteSingle}}},
				Body:   p.tok.Body,
				Quoted: p.tok.Quoted,
			})
			if err := p.next(); err != nil {
				return nil, err
			}

		default:
			if len(cmd.Words) == 0 && len(cmd.Assigns) == 0 && len(cmd.Redirs) == 0 {
				return nil, p.errExpected("command")
			}
			return cmd, nil
		}
	}
}

// tryAssignment recognizes NAME=value and NAME=(a b c) prefixes. It
// consumes the tokens only when the word really is an assignment.
func (p *parser) tryAssignment() (ast.Assign, bool, error) {
	tok := p.tok
	if len(tok.Frags) == 0 || tok.Frags[0].Quote != lex.QuoteNone {
		return ast.Assign{}, false, nil
	}
	head := tok.Frags[0].Text
	eq := strings.IndexByte(head, '=')
	if eq <= 0 || !isName(head[:eq]) {
		return ast.Assign{}, false, nil
	}
	name := head[:eq]

	// Array literal: the word is exactly "name=" and a "(" follows.
	if eq == len(head)-1 && len(tok.Frags) == 1 {
		la, err := p.peek()
		if err != nil {
			return ast.Assign{}, false, err
		}
		if la.Kind == lex.LParen {
			if err := p.next(); err != nil { // name=
				return ast.Assign{}, false, err
			}
			if err := p.next(); err != nil { // (
				return ast.Assign{}, false, err
			}
			var elems []ast.Word
			for p.tok.Kind == lex.Word {
				elems = append(elems, ast.Word{Pos: p.tok.Pos, Frags: p.tok.Frags})
				if err := p.next(); err != nil {
					return ast.Assign{}, false, err
				}
			}
			if p.tok.Kind != lex.RParen {
				return ast.Assign{}, false, p.errExpected("\")\"")
			}
			if err := p.next(); err != nil {
				return ast.Assign{}, false, err
			}
			return ast.Assign{Name: name, Pos: tok.Pos, Array: elems, IsArr: true}, true, nil
		}
	}

	// Scalar: everything after the first "=" is the value.
	var value []lex.Fragment
	if rest := head[eq+1:]; rest != "" {
		value = append(value, lex.Fragment{Text: rest, Quote: lex.QuoteNone})
	}
	value = append(value, tok.Frags[1:]...)
	if err := p.next(); err != nil {
		return ast.Assign{}, false, err
	}
	return ast.Assign{Name: name, Pos: tok.Pos, Value: ast.Word{Pos: tok.Pos, Frags: value}}, true, nil
}

func redirKind(k lex.Kind) ast.RedirKind {
	switch k {
	case lex.RedirIn:
		return ast.RedirIn
	case lex.RedirOut:
		return ast.RedirOut
	case lex.RedirAppend:
		return ast.RedirAppend
	case lex.RedirErr:
		return ast.RedirErrOut
	case lex.RedirErrAppend:
		return ast.RedirErrAppend
	case lex.HereString:
		return ast.RedirHereString
	}
	return ast.RedirIn
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
