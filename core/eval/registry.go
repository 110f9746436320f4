package eval

import "sort"

// Builtin is an in-process command callback. args holds exactly the
// arguments after the command word, never the command word itself. The
// context gives explicit access to the shell-owned state the callback
// may read or mutate.
type Builtin func(ctx *Context, args []string) Status

type registryEntry struct {
	fn   Builtin
	help string
}

// Registry maps command names to builtin callbacks. The last
// registration for a name wins; there is no ordering guarantee beyond
// lookup by name.
type Registry struct {
	entries map[string]registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// Add registers or replaces a builtin.
func (r *Registry) Add(name string, fn Builtin, help string) {
	r.entries[name] = registryEntry{fn: fn, help: help}
}

// Lookup resolves a name to its callback.
func (r *Registry) Lookup(name string) (Builtin, bool) {
	e, ok := r.entries[name]
	return e.fn, ok
}

// Help returns the registered one-line help text.
func (r *Registry) Help(name string) (string, bool) {
	e, ok := r.entries[name]
	return e.help, ok
}

// Names lists registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
