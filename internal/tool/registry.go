// Package tool provides the tool registry and the executor that runs tool
// calls and prepares their outputs for resubmission into a run.
package tool

import (
	"context"
	"sort"
)

// Func is an executable tool. Arguments arrive as the JSON-decoded keyword
// map from the tool call; results must be JSON-serializable.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Registry maps tool names to callables.
type Registry struct {
	tools map[string]Func
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Func)}
}

// Register adds a tool under the given name, replacing any previous entry.
func (r *Registry) Register(name string, fn Func) {
	r.tools[name] = fn
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Func, bool) {
	fn, ok := r.tools[name]
	return fn, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
