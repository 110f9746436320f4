package expand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marlinsh/marlin/core/lex"
)

// evalArith evaluates the restricted infix grammar inside $((...)):
// 64-bit integers, + - * / %, parentheses, unary minus and the
// comparison operators (which yield 1 or 0). Variables appear bare or
// with a $ prefix and resolve through the scope; unset or non-numeric
// variables evaluate to 0.
func (e *Expander) evalArith(pos lex.Pos, src string) (int64, error) {
	p := &arithParser{src: src, pos: pos, scope: e}
	v, err := p.parseComparison()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if !p.eof() {
		return 0, &ArithmeticError{Pos: pos, Msg: fmt.Sprintf("unexpected %q", p.rest())}
	}
	return v, nil
}

type arithParser struct {
	src   string
	off   int
	pos   lex.Pos
	scope *Expander
}

func (p *arithParser) eof() bool { return p.off >= len(p.src) }

func (p *arithParser) rest() string {
	return strings.TrimSpace(p.src[p.off:])
}

func (p *arithParser) skipSpace() {
	for !p.eof() && (p.src[p.off] == ' ' || p.src[p.off] == '\t' || p.src[p.off] == '\n') {
		p.off++
	}
}

func (p *arithParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.off]
}

func (p *arithParser) accept(op string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.off:], op) {
		p.off += len(op)
		return true
	}
	return false
}

func (p *arithParser) errf(format string, args ...interface{}) error {
	return &ArithmeticError{Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *arithParser) parseComparison() (int64, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return 0, err
	}
	for {
		var apply func(a, b int64) bool
		switch {
		case p.accept("=="):
			apply = func(a, b int64) bool { return a == b }
		case p.accept("!="):
			apply = func(a, b int64) bool { return a != b }
		case p.accept("<="):
			apply = func(a, b int64) bool { return a <= b }
		case p.accept(">="):
			apply = func(a, b int64) bool { return a >= b }
		case p.accept("<"):
			apply = func(a, b int64) bool { return a < b }
		case p.accept(">"):
			apply = func(a, b int64) bool { return a > b }
		default:
			return left, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return 0, err
		}
		if apply(left, right) {
			left = 1
		} else {
			left = 0
		}
	}
}

func (p *arithParser) parseAdditive() (int64, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.accept("+"):
			right, err := p.parseMultiplicative()
			if err != nil {
				return 0, err
			}
			left += right
		case p.accept("-"):
			right, err := p.parseMultiplicative()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *arithParser) parseMultiplicative() (int64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.accept("*"):
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case p.accept("/"):
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, p.errf("division by zero")
			}
			left /= right
		case p.accept("%"):
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, p.errf("division by zero")
			}
			left %= right
		default:
			return left, nil
		}
	}
}

func (p *arithParser) parseUnary() (int64, error) {
	if p.accept("-") {
		v, err := p.parseUnary()
		return -v, err
	}
	if p.accept("+") {
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *arithParser) parsePrimary() (int64, error) {
	p.skipSpace()
	if p.eof() {
		return 0, p.errf("unexpected end of expression")
	}

	if p.accept("(") {
		v, err := p.parseComparison()
		if err != nil {
			return 0, err
		}
		if !p.accept(")") {
			return 0, p.errf("missing closing parenthesis")
		}
		return v, nil
	}

	c := p.peek()
	switch {
	case c >= '0' && c <= '9':
		start := p.off
		for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
			p.off++
		}
		v, err := strconv.ParseInt(p.src[start:p.off], 10, 64)
		if err != nil {
			return 0, p.errf("bad number %q", p.src[start:p.off])
		}
		return v, nil

	case c == '$' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		if c == '$' {
			p.off++
		}
		start := p.off
		for !p.eof() && isNameByte(p.peek()) {
			p.off++
		}
		if start == p.off {
			return 0, p.errf("unexpected %q", p.rest())
		}
		name := p.src[start:p.off]
		v, ok := p.scope.Scope.Lookup(name)
		if !ok {
			if p.scope.Strict {
				return 0, &UnboundVariableError{Name: name, Pos: p.pos}
			}
			return 0, nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		if err != nil {
			return 0, nil
		}
		return n, nil
	}
	return 0, p.errf("unexpected %q", p.rest())
}
