// Package ast defines the node types produced by the parser. Nodes are
// built once per unit of input and never mutate afterwards; function
// bodies are retained across evaluations.
package ast

import (
	"strings"

	"github.com/marlinsh/marlin/core/lex"
)

// Node is one statement-level AST node.
type Node interface {
	node()
}

// Word is an unexpanded word: an ordered run of quoting fragments.
type Word struct {
	Pos   lex.Pos
	Frags []lex.Fragment
}

// Lit returns the word's text with quotes removed but expansions left
// raw. Used for keywords, names and case patterns.
func (w Word) Lit() string {
	var sb strings.Builder
	for _, f := range w.Frags {
		sb.WriteString(f.Text)
	}
	return sb.String()
}

// RedirKind identifies one redirection operator.
type RedirKind int

const (
	RedirIn         RedirKind = iota // < file
	RedirOut                         // > file
	RedirAppend                      // >> file
	RedirErrOut                      // 2> file
	RedirErrAppend                   // 2>> file
	RedirHeredoc                     // << DELIM
	RedirHereString                  // <<< word
)

var redirNames = map[RedirKind]string{
	RedirIn:         "<",
	RedirOut:        ">",
	RedirAppend:     ">>",
	RedirErrOut:     "2>",
	RedirErrAppend:  "2>>",
	RedirHeredoc:    "<<",
	RedirHereString: "<<<",
}

func (k RedirKind) String() string { return redirNames[k] }

// Redirect is one redirection attached to a simple command.
type Redirect struct {
	Kind   RedirKind
	Pos    lex.Pos
	Target Word    // filename or here-string word; delimiter for heredocs
	Body   *string // heredoc body, owned by the lexer, filled before parse returns
	Quoted bool    // heredoc delimiter was quoted
}

// Assign is one NAME=value or NAME=(a b c) prefix on a simple command.
type Assign struct {
	Name  string
	Pos   lex.Pos
	Value Word   // scalar form
	Array []Word // array literal form
	IsArr bool
}

// Simple is a simple command: assignment prefixes, unexpanded words and
// redirections. A Simple with no words is a bare assignment statement.
type Simple struct {
	Pos     lex.Pos
	Assigns []Assign
	Words   []Word
	Redirs  []Redirect
}

// Pipeline is a non-empty ordered run of simple commands whose standard
// streams are chained. Background pipelines return to the caller
// immediately after starting.
type Pipeline struct {
	Pos        lex.Pos
	Stages     []*Simple
	Background bool
}

// ListOp is the operator joining two halves of a List.
type ListOp int

const (
	Seq ListOp = iota // ;
	And               // &&
	Or                // ||
)

func (op ListOp) String() string {
	switch op {
	case And:
		return "&&"
	case Or:
		return "||"
	}
	return ";"
}

// List joins two statements with ; && or ||. && and || short-circuit on
// the left side's status at evaluation time.
type List struct {
	Pos         lex.Pos
	Op          ListOp
	Left, Right Node
}

// If is an if/elif/else chain; Else holds the next If for elif arms and
// may be nil.
type If struct {
	Pos  lex.Pos
	Cond Node
	Then Node
	Else Node
}

// While loops while Cond evaluates to success.
type While struct {
	Pos  lex.Pos
	Cond Node
	Body Node
}

// For iterates a variable over expanded words.
type For struct {
	Pos   lex.Pos
	Name  string
	Words []Word
	Body  Node
}

// CaseItem is one pattern arm of a Case.
type CaseItem struct {
	Patterns []Word
	Body     Node // may be nil
}

// Case matches a word against glob patterns, first match wins.
type Case struct {
	Pos   lex.Pos
	Word  Word
	Items []CaseItem
}

// FuncDef registers a function body without executing it.
type FuncDef struct {
	Pos  lex.Pos
	Name string
	Body Node
}

// Group is a { list; } block.
type Group struct {
	Pos  lex.Pos
	List Node
}

// Script is one fully parsed unit of input.
type Script struct {
	Name string // file name or synthetic label, for error messages
	Root Node   // may be nil for an empty script
}

func (*Simple) node()   {}
func (*Pipeline) node() {}
func (*List) node()     {}
func (*If) node()       {}
func (*While) node()    {}
func (*For) node()      {}
func (*Case) node()     {}
func (*FuncDef) node()  {}
func (*Group) node()    {}
