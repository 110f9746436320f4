// Package variables holds shell values and the lexical scope stack.
package variables

import (
	"fmt"
	"strings"
)

// Value is a scalar string or an ordered array of strings. These are
// the only runtime types; equality and truthiness are string based.
type Value struct {
	scalar string
	array  []string
	isArr  bool
}

// Scalar wraps a plain string value.
func Scalar(s string) Value {
	return Value{scalar: s}
}

// Array wraps an ordered list of strings.
func Array(elems []string) Value {
	return Value{array: elems, isArr: true}
}

// IsArray reports whether the value is an array.
func (v Value) IsArray() bool { return v.isArr }

// String renders the value as one string; arrays join on spaces.
func (v Value) String() string {
	if v.isArr {
		return strings.Join(v.array, " ")
	}
	return v.scalar
}

// Fields returns the value as argument fields: arrays splice as their
// elements, scalars are a single field.
func (v Value) Fields() []string {
	if v.isArr {
		out := make([]string, len(v.array))
		copy(out, v.array)
		return out
	}
	return []string{v.scalar}
}

// Len is the element count for arrays and the byte length for scalars.
func (v Value) Len() int {
	if v.isArr {
		return len(v.array)
	}
	return len(v.scalar)
}

type frame struct {
	vars map[string]Value
}

func newFrame() *frame {
	return &frame{vars: make(map[string]Value)}
}

// Scope is the variable-binding stack. The root frame always exists;
// inner frames are pushed on function and block entry and popped on
// exit. A scope belongs to exactly one shell instance and must not be
// mutated from two concurrent evaluations.
type Scope struct {
	frames   []*frame
	exported map[string]bool
}

// NewScope returns a scope with only the root frame.
func NewScope() *Scope {
	return &Scope{
		frames:   []*frame{newFrame()},
		exported: make(map[string]bool),
	}
}

// NewScopeFromEnviron seeds the root frame from "KEY=value" pairs, all
// marked exported so they flow to spawned processes.
func NewScopeFromEnviron(environ []string) *Scope {
	s := NewScope()
	for _, e := range environ {
		split := strings.SplitN(e, "=", 2)
		key, value := split[0], ""
		if len(split) > 1 {
			value = split[1]
		}
		s.Set(key, Scalar(value))
		s.Export(key)
	}
	return s
}

// Push adds an inner frame.
func (s *Scope) Push() {
	s.frames = append(s.frames, newFrame())
}

// Pop removes the innermost frame. Popping the root frame is an
// invariant violation.
func (s *Scope) Pop() {
	if len(s.frames) == 1 {
		panic("variables: pop of root scope")
	}
	s.frames = s.frames[:len(s.frames)-1]
}

// Depth reports the number of frames, 1 for a fresh scope.
func (s *Scope) Depth() int { return len(s.frames) }

// Lookup walks frames from innermost to outermost.
func (s *Scope) Lookup(name string) (Value, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].vars[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// Get returns the value's string form, empty when unset.
func (s *Scope) Get(name string) string {
	v, _ := s.Lookup(name)
	return v.String()
}

// Set writes to the innermost frame that already defines name, else
// creates the binding in the innermost frame. This means an unqualified
// assignment inside a function mutates an existing outer variable; use
// SetLocal for a fresh binding.
func (s *Scope) Set(name string, v Value) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i].vars[name]; ok {
			s.frames[i].vars[name] = v
			return
		}
	}
	s.frames[len(s.frames)-1].vars[name] = v
}

// SetLocal creates or replaces the binding in the innermost frame.
func (s *Scope) SetLocal(name string, v Value) {
	s.frames[len(s.frames)-1].vars[name] = v
}

// Unset removes the innermost binding of name, if any.
func (s *Scope) Unset(name string) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i].vars[name]; ok {
			delete(s.frames[i].vars, name)
			return
		}
	}
}

// Export marks a name so its value is copied into the environment of
// every spawned process.
func (s *Scope) Export(name string) {
	s.exported[name] = true
}

// Unexport clears the export mark.
func (s *Scope) Unexport(name string) {
	delete(s.exported, name)
}

// IsExported reports the export mark.
func (s *Scope) IsExported(name string) bool {
	return s.exported[name]
}

// Environ builds the "KEY=value" list of exported variables, the copy
// handed to spawned processes.
func (s *Scope) Environ() []string {
	var env []string
	for name := range s.exported {
		if v, ok := s.Lookup(name); ok {
			env = append(env, fmt.Sprintf("%s=%s", name, v))
		}
	}
	return env
}
