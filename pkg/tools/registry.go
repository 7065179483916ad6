package tools

import (
	"github.com/kadirpekel/mamba/pkg/llms"
)

// Registry is an immutable, insertion-ordered set of tools. It is built
// once at startup and shared read-only across requests; per-request
// subsets are derived from it.
type Registry struct {
	tools map[string]Tool
	names []string
}

// NewRegistry builds a registry from the given tools. A repeated name
// keeps the first registration.
func NewRegistry(toolList ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(toolList))}
	for _, t := range toolList {
		if _, exists := r.tools[t.Name()]; exists {
			continue
		}
		r.tools[t.Name()] = t
		r.names = append(r.names, t.Name())
	}
	return r
}

// NewDisplayRegistry builds the default registry holding the four display
// tools.
func NewDisplayRegistry() (*Registry, error) {
	displayTools, err := NewDisplayTools()
	if err != nil {
		return nil, err
	}
	return NewRegistry(displayTools...), nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.names)
}

// Definitions returns the upstream declarations for every tool, in
// registration order.
func (r *Registry) Definitions() []llms.ToolDefinition {
	defs := make([]llms.ToolDefinition, 0, len(r.names))
	for _, name := range r.names {
		t := r.tools[name]
		defs = append(defs, llms.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return defs
}

// Subset returns a registry restricted to the requested names, preserving
// request order. Unknown names are ignored; an empty request yields an
// empty registry, which disables tools.
func (r *Registry) Subset(names []string) *Registry {
	sub := &Registry{tools: make(map[string]Tool, len(names))}
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			continue
		}
		if _, dup := sub.tools[name]; dup {
			continue
		}
		sub.tools[name] = t
		sub.names = append(sub.names, name)
	}
	return sub
}
