package lex

import "fmt"

// Kind classifies a token.
type Kind int

const (
	EOF Kind = iota
	Word
	Newline
	Semi           // ;
	DSemi          // ;;
	Amp            // &
	AndIf          // &&
	OrIf           // ||
	Pipe           // |
	LParen         // (
	RParen         // )
	RedirIn        // <
	RedirOut       // >
	RedirAppend    // >>
	RedirErr       // 2>
	RedirErrAppend // 2>>
	Heredoc        // << DELIM
	HereString     // <<<
)

var kindNames = map[Kind]string{
	EOF:            "end of input",
	Word:           "word",
	Newline:        "newline",
	Semi:           `";"`,
	DSemi:          `";;"`,
	Amp:            `"&"`,
	AndIf:          `"&&"`,
	OrIf:           `"||"`,
	Pipe:           `"|"`,
	LParen:         `"("`,
	RParen:         `")"`,
	RedirIn:        `"<"`,
	RedirOut:       `">"`,
	RedirAppend:    `">>"`,
	RedirErr:       `"2>"`,
	RedirErrAppend: `"2>>"`,
	Heredoc:        `"<<"`,
	HereString:     `"<<<"`,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Pos is a position within the source text.
type Pos struct {
	Line   int // 1-based
	Col    int // 1-based, in bytes
	Offset int // 0-based byte offset
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Quote records the quoting context a word fragment was written in.
// The expander uses it to decide which expansions, word splitting and
// globbing apply to the fragment.
type Quote int

const (
	// QuoteNone fragments expand fully and their results split and glob.
	QuoteNone Quote = iota
	// QuoteSingle fragments are literal text.
	QuoteSingle
	// QuoteDouble fragments expand variables and substitutions but never
	// split or glob.
	QuoteDouble
)

// Fragment is one quoting run within a word. A word like a"b"'c' has
// three fragments that concatenate into a single argument.
type Fragment struct {
	Text  string
	Quote Quote
}

// Token is one lexical token. Tokens are immutable once produced, with
// one exception: a Heredoc token's Body is filled in when the lexer
// reaches the line after the one containing the operator.
type Token struct {
	Kind  Kind
	Text  string // raw text; the delimiter for Heredoc tokens
	Pos   Pos
	Frags []Fragment // Word tokens only

	Body   *string // Heredoc tokens only
	Quoted bool    // Heredoc delimiter was quoted; suppresses body expansion
}
