package expand

import (
	"strconv"
	"strings"
)

// expandBraces rewrites {a,b} alternation and {1..5} integer ranges,
// nesting included. Text without a well-formed brace group is returned
// unchanged as a single element.
func expandBraces(s string) []string {
	from := 0
	for {
		open := strings.IndexByte(s[from:], '{')
		if open < 0 {
			return []string{s}
		}
		open += from
		close := matchBrace(s, open)
		if close < 0 {
			return []string{s}
		}
		inner := s[open+1 : close]

		if alts := splitAlternatives(inner); len(alts) > 1 {
			var out []string
			for _, alt := range alts {
				out = append(out, expandBraces(s[:open]+alt+s[close+1:])...)
			}
			return out
		}
		if elems, ok := expandRange(inner); ok {
			var out []string
			for _, e := range elems {
				out = append(out, expandBraces(s[:open]+e+s[close+1:])...)
			}
			return out
		}

		// Not a group, keep looking past this brace.
		from = open + 1
	}
}

func matchBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitAlternatives splits on top-level commas only.
func splitAlternatives(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// expandRange handles {N..M} over integers, in either direction.
func expandRange(s string) ([]string, bool) {
	parts := strings.SplitN(s, "..", 2)
	if len(parts) != 2 {
		return nil, false
	}
	lo, err1 := strconv.Atoi(parts[0])
	hi, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return nil, false
	}

	var out []string
	if lo <= hi {
		for i := lo; i <= hi; i++ {
			out = append(out, strconv.Itoa(i))
		}
	} else {
		for i := lo; i >= hi; i-- {
			out = append(out, strconv.Itoa(i))
		}
	}
	return out, true
}
