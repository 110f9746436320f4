package ast

import (
	"fmt"
	"strings"

	"github.com/marlinsh/marlin/core/lex"
)

// Dump renders a parsed script as a deterministic indented tree. Two
// scripts with equivalent ASTs dump identically, which makes the output
// suitable for golden-file tests.
func Dump(s *Script) string {
	var sb strings.Builder
	if s.Root == nil {
		sb.WriteString("(empty)\n")
		return sb.String()
	}
	dumpNode(&sb, s.Root, 0)
	return sb.String()
}

func indent(sb *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		sb.WriteString("  ")
	}
}

func dumpWord(w Word) string {
	parts := make([]string, 0, len(w.Frags))
	for _, f := range w.Frags {
		tag := "n"
		switch f.Quote {
		case lex.QuoteSingle:
			tag = "s"
		case lex.QuoteDouble:
			tag = "d"
		}
		parts = append(parts, fmt.Sprintf("%s%q", tag, f.Text))
	}
	return strings.Join(parts, "+")
}

func dumpNode(sb *strings.Builder, n Node, depth int) {
	indent(sb, depth)
	switch n := n.(type) {
	case *Simple:
		sb.WriteString("simple\n")
		for _, a := range n.Assigns {
			indent(sb, depth+1)
			if a.IsArr {
				vals := make([]string, 0, len(a.Array))
				for _, w := range a.Array {
					vals = append(vals, dumpWord(w))
				}
				fmt.Fprintf(sb, "assign %s = (%s)\n", a.Name, strings.Join(vals, " "))
			} else {
				fmt.Fprintf(sb, "assign %s = %s\n", a.Name, dumpWord(a.Value))
			}
		}
		for _, w := range n.Words {
			indent(sb, depth+1)
			fmt.Fprintf(sb, "word %s\n", dumpWord(w))
		}
		for _, r := range n.Redirs {
			indent(sb, depth+1)
			if r.Kind == RedirHeredoc {
				fmt.Fprintf(sb, "redir << %q\n", r.Target.Lit())
				continue
			}
			fmt.Fprintf(sb, "redir %s %s\n", r.Kind, dumpWord(r.Target))
		}
	case *Pipeline:
		sb.WriteString("pipeline")
		if n.Background {
			sb.WriteString(" &")
		}
		sb.WriteString("\n")
		for _, st := range n.Stages {
			dumpNode(sb, st, depth+1)
		}
	case *List:
		fmt.Fprintf(sb, "list %s\n", n.Op)
		dumpNode(sb, n.Left, depth+1)
		dumpNode(sb, n.Right, depth+1)
	case *If:
		sb.WriteString("if\n")
		dumpNode(sb, n.Cond, depth+1)
		indent(sb, depth)
		sb.WriteString("then\n")
		dumpNode(sb, n.Then, depth+1)
		if n.Else != nil {
			indent(sb, depth)
			sb.WriteString("else\n")
			dumpNode(sb, n.Else, depth+1)
		}
	case *While:
		sb.WriteString("while\n")
		dumpNode(sb, n.Cond, depth+1)
		indent(sb, depth)
		sb.WriteString("do\n")
		dumpNode(sb, n.Body, depth+1)
	case *For:
		fmt.Fprintf(sb, "for %s in", n.Name)
		for _, w := range n.Words {
			fmt.Fprintf(sb, " %s", dumpWord(w))
		}
		sb.WriteString("\n")
		dumpNode(sb, n.Body, depth+1)
	case *Case:
		fmt.Fprintf(sb, "case %s\n", dumpWord(n.Word))
		for _, item := range n.Items {
			indent(sb, depth+1)
			pats := make([]string, 0, len(item.Patterns))
			for _, p := range item.Patterns {
				pats = append(pats, dumpWord(p))
			}
			fmt.Fprintf(sb, "arm %s\n", strings.Join(pats, "|"))
			if item.Body != nil {
				dumpNode(sb, item.Body, depth+2)
			}
		}
	case *FuncDef:
		fmt.Fprintf(sb, "func %s\n", n.Name)
		dumpNode(sb, n.Body, depth+1)
	case *Group:
		sb.WriteString("group\n")
		dumpNode(sb, n.List, depth+1)
	}
}
