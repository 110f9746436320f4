// Package lex turns script text into a lazy stream of tokens.
package lex

import (
	"fmt"
	"strings"
)

// Error is a lexical error carrying the position where the offending
// construct opened.
type Error struct {
	Pos Pos
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// metachars terminate an unquoted word.
const metachars = " \t\n|&;<>()"

type pendingHeredoc struct {
	delim string
	pos   Pos
	body  *string
}

// Lexer scans one unit of source text. It is stateless beyond its scan
// position and the queue of heredoc bodies awaiting collection.
type Lexer struct {
	src     string
	off     int
	line    int
	col     int
	pending []pendingHeredoc
}

// New returns a lexer positioned at the start of src.
func New(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

// Tokens scans all of src eagerly.
func Tokens(src string) ([]Token, error) {
	l := New(src)
	var out []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == EOF {
			return out, nil
		}
	}
}

func (l *Lexer) pos() Pos {
	return Pos{Line: l.line, Col: l.col, Offset: l.off}
}

func (l *Lexer) eof() bool {
	return l.off >= len(l.src)
}

func (l *Lexer) peek() byte {
	if l.eof() {
		return 0
	}
	return l.src[l.off]
}

func (l *Lexer) peekAt(n int) byte {
	if l.off+n >= len(l.src) {
		return 0
	}
	return l.src[l.off+n]
}

func (l *Lexer) advance() byte {
	c := l.src[l.off]
	l.off++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

// Next returns the next token. After EOF it keeps returning EOF.
func (l *Lexer) Next() (Token, error) {
	l.skipBlanksAndComments()

	pos := l.pos()
	if l.eof() {
		if len(l.pending) > 0 {
			p := l.pending[0]
			return Token{}, &Error{Pos: p.pos, Msg: fmt.Sprintf("unterminated heredoc %q", p.delim)}
		}
		return Token{Kind: EOF, Pos: pos}, nil
	}

	switch c := l.peek(); c {
	case '\n':
		l.advance()
		if err := l.collectHeredocs(); err != nil {
			return Token{}, err
		}
		return Token{Kind: Newline, Text: "\n", Pos: pos}, nil
	case ';':
		l.advance()
		if l.peek() == ';' {
			l.advance()
			return Token{Kind: DSemi, Text: ";;", Pos: pos}, nil
		}
		return Token{Kind: Semi, Text: ";", Pos: pos}, nil
	case '&':
		l.advance()
		if l.peek() == '&' {
			l.advance()
			return Token{Kind: AndIf, Text: "&&", Pos: pos}, nil
		}
		return Token{Kind: Amp, Text: "&", Pos: pos}, nil
	case '|':
		l.advance()
		if l.peek() == '|' {
			l.advance()
			return Token{Kind: OrIf, Text: "||", Pos: pos}, nil
		}
		return Token{Kind: Pipe, Text: "|", Pos: pos}, nil
	case '(':
		l.advance()
		return Token{Kind: LParen, Text: "(", Pos: pos}, nil
	case ')':
		l.advance()
		return Token{Kind: RParen, Text: ")", Pos: pos}, nil
	case '>':
		l.advance()
		if l.peek() == '>' {
			l.advance()
			return Token{Kind: RedirAppend, Text: ">>", Pos: pos}, nil
		}
		return Token{Kind: RedirOut, Text: ">", Pos: pos}, nil
	case '<':
		l.advance()
		if l.peek() == '<' {
			l.advance()
			if l.peek() == '<' {
				l.advance()
				return Token{Kind: HereString, Text: "<<<", Pos: pos}, nil
			}
			return l.heredocToken(pos)
		}
		return Token{Kind: RedirIn, Text: "<", Pos: pos}, nil
	case '2':
		// A bare "2>" introduces a stderr redirection; "2" followed by
		// anything else is an ordinary word.
		if l.peekAt(1) == '>' {
			l.advance()
			l.advance()
			if l.peek() == '>' {
				l.advance()
				return Token{Kind: RedirErrAppend, Text: "2>>", Pos: pos}, nil
			}
			return Token{Kind: RedirErr, Text: "2>", Pos: pos}, nil
		}
		return l.scanWord()
	default:
		return l.scanWord()
	}
}

func (l *Lexer) skipBlanksAndComments() {
	for !l.eof() {
		switch c := l.peek(); {
		case c == ' ' || c == '\t' || c == '\r':
			l.advance()
		case c == '\\' && l.peekAt(1) == '\n':
			// Line continuation.
			l.advance()
			l.advance()
		case c == '#':
			for !l.eof() && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

// heredocToken lexes the delimiter after "<<" and registers a pending
// body to be captured after the next newline.
func (l *Lexer) heredocToken(pos Pos) (Token, error) {
	l.skipBlanksAndComments()
	if l.eof() || strings.IndexByte(metachars, l.peek()) >= 0 {
		return Token{}, &Error{Pos: pos, Msg: "missing heredoc delimiter"}
	}
	word, err := l.scanWord()
	if err != nil {
		return Token{}, err
	}

	var delim strings.Builder
	quoted := false
	for _, frag := range word.Frags {
		delim.WriteString(frag.Text)
		if frag.Quote != QuoteNone {
			quoted = true
		}
	}

	body := new(string)
	l.pending = append(l.pending, pendingHeredoc{delim: delim.String(), pos: pos, body: body})
	return Token{Kind: Heredoc, Text: delim.String(), Pos: pos, Body: body, Quoted: quoted}, nil
}

// collectHeredocs consumes the bodies of all pending heredocs, in the
// order their operators appeared, right after a newline was lexed.
func (l *Lexer) collectHeredocs() error {
	for _, p := range l.pending {
		var body strings.Builder
		for {
			if l.eof() {
				return &Error{Pos: p.pos, Msg: fmt.Sprintf("unterminated heredoc %q", p.delim)}
			}
			line := l.readLine()
			if strings.TrimSuffix(line, "\n") == p.delim {
				break
			}
			body.WriteString(line)
		}
		*p.body = body.String()
	}
	l.pending = nil
	return nil
}

func (l *Lexer) readLine() string {
	start := l.off
	for !l.eof() {
		if l.advance() == '\n' {
			break
		}
	}
	return l.src[start:l.off]
}

// scanWord lexes a word as a sequence of quoting fragments. Escaped
// characters become single-quoted fragments so later stages treat them
// as literal text.
func (l *Lexer) scanWord() (Token, error) {
	pos := l.pos()
	var frags []Fragment
	var buf strings.Builder
	sawQuotes := false

	flush := func() {
		if buf.Len() > 0 {
			frags = append(frags, Fragment{Text: buf.String(), Quote: QuoteNone})
			buf.Reset()
		}
	}

	for !l.eof() {
		c := l.peek()
		if strings.IndexByte(metachars, c) >= 0 {
			break
		}
		switch c {
		case '\'':
			flush()
			open := l.pos()
			l.advance()
			text, ok := l.scanSingle()
			if !ok {
				return Token{}, &Error{Pos: open, Msg: "unterminated single quote"}
			}
			frags = append(frags, Fragment{Text: text, Quote: QuoteSingle})
			sawQuotes = true
		case '"':
			flush()
			open := l.pos()
			l.advance()
			dq, err := l.scanDouble(open)
			if err != nil {
				return Token{}, err
			}
			frags = append(frags, dq...)
			sawQuotes = true
		case '\\':
			if l.peekAt(1) == '\n' {
				l.advance()
				l.advance()
				continue
			}
			l.advance()
			if l.eof() {
				buf.WriteByte('\\')
				continue
			}
			flush()
			frags = append(frags, Fragment{Text: string(l.advance()), Quote: QuoteSingle})
		case '$':
			open := l.pos()
			raw, err := l.scanDollar(open)
			if err != nil {
				return Token{}, err
			}
			buf.WriteString(raw)
		default:
			buf.WriteByte(l.advance())
		}
	}
	flush()

	if len(frags) == 0 && sawQuotes {
		// "" or '' produce a single empty argument.
		frags = append(frags, Fragment{Text: "", Quote: QuoteSingle})
	}

	var raw strings.Builder
	for _, f := range frags {
		raw.WriteString(f.Text)
	}
	return Token{Kind: Word, Text: raw.String(), Pos: pos, Frags: frags}, nil
}

func (l *Lexer) scanSingle() (string, bool) {
	var buf strings.Builder
	for !l.eof() {
		c := l.advance()
		if c == '\'' {
			return buf.String(), true
		}
		buf.WriteByte(c)
	}
	return "", false
}

// scanDouble lexes the inside of a double-quoted string. Escapes for
// $, ` " and \ come out as single-quoted fragments; everything else
// stays in one double-quoted fragment with $-syntax left raw for the
// expander.
func (l *Lexer) scanDouble(open Pos) ([]Fragment, error) {
	var frags []Fragment
	var buf strings.Builder
	empty := true

	flush := func() {
		if buf.Len() > 0 {
			frags = append(frags, Fragment{Text: buf.String(), Quote: QuoteDouble})
			buf.Reset()
		}
	}

	for {
		if l.eof() {
			return nil, &Error{Pos: open, Msg: "unterminated double quote"}
		}
		switch c := l.peek(); c {
		case '"':
			l.advance()
			flush()
			if len(frags) == 0 && empty {
				frags = append(frags, Fragment{Text: "", Quote: QuoteDouble})
			}
			return frags, nil
		case '\\':
			switch l.peekAt(1) {
			case '$', '"', '\\', '`':
				l.advance()
				flush()
				frags = append(frags, Fragment{Text: string(l.advance()), Quote: QuoteSingle})
				empty = false
			case '\n':
				l.advance()
				l.advance()
			default:
				buf.WriteByte(l.advance())
				empty = false
			}
		case '$':
			raw, err := l.scanDollar(l.pos())
			if err != nil {
				return nil, err
			}
			buf.WriteString(raw)
			empty = false
		default:
			buf.WriteByte(l.advance())
			empty = false
		}
	}
}

// scanDollar copies a $-construct verbatim, validating only that the
// brackets balance. The expander interprets the contents.
func (l *Lexer) scanDollar(open Pos) (string, error) {
	start := l.off
	l.advance() // $
	switch l.peek() {
	case '(':
		l.advance()
		arith := false
		if l.peek() == '(' {
			l.advance()
			arith = true
		}
		depth := 1
		for depth > 0 {
			if l.eof() {
				msg := "unterminated command substitution"
				if arith {
					msg = "unterminated arithmetic expansion"
				}
				return "", &Error{Pos: open, Msg: msg}
			}
			switch l.advance() {
			case '(':
				depth++
			case ')':
				depth--
			case '\'':
				if _, ok := l.scanSingle(); !ok {
					return "", &Error{Pos: open, Msg: "unterminated single quote"}
				}
			case '"':
				if !l.skipDoubleRaw() {
					return "", &Error{Pos: open, Msg: "unterminated double quote"}
				}
			}
		}
		if arith {
			if l.eof() || l.peek() != ')' {
				return "", &Error{Pos: open, Msg: "unterminated arithmetic expansion"}
			}
			l.advance()
		}
	case '{':
		l.advance()
		for {
			if l.eof() {
				return "", &Error{Pos: open, Msg: "unterminated ${"}
			}
			if l.advance() == '}' {
				break
			}
		}
	default:
		// $name and special parameters; taken as-is up to the first
		// character that cannot be part of a name.
		if isSpecialParam(l.peek()) {
			l.advance()
			break
		}
		for !l.eof() && isNameByte(l.peek()) {
			l.advance()
		}
	}
	return l.src[start:l.off], nil
}

// skipDoubleRaw skips a double-quoted region without interpreting it.
func (l *Lexer) skipDoubleRaw() bool {
	for !l.eof() {
		switch l.advance() {
		case '\\':
			if !l.eof() {
				l.advance()
			}
		case '"':
			return true
		}
	}
	return false
}

func isSpecialParam(c byte) bool {
	switch c {
	case '?', '#', '@', '*', '$':
		return true
	}
	return c >= '0' && c <= '9'
}

func isNameByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
