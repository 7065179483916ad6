package agent

import (
	"fmt"

	"github.com/kadirpekel/mamba/pkg/tools"
)

// Built-in agent names, in registration order.
const (
	AgentMain       = "main"
	AgentResearch   = "research"
	AgentCodeReview = "code_review"
)

// Descriptor describes a named pre-built agent: its prompt, tool set, an
// optional model override, and whether it streams. Descriptors are built at
// startup and never mutated.
type Descriptor struct {
	Name         string
	DisplayName  string
	Model        string // empty inherits the request's model
	SystemPrompt string
	Tools        *tools.Registry
	Streaming    bool
}

// Registry is the process-wide, insertion-ordered set of agent descriptors.
// Registered once at startup, read-only thereafter.
type Registry struct {
	descriptors map[string]*Descriptor
	names       []string
}

// NewRegistry builds a registry from the given descriptors. A repeated name
// keeps the first registration.
func NewRegistry(descriptors ...*Descriptor) *Registry {
	r := &Registry{descriptors: make(map[string]*Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, exists := r.descriptors[d.Name]; exists {
			continue
		}
		r.descriptors[d.Name] = d
		r.names = append(r.names, d.Name)
	}
	return r
}

// Get returns the named descriptor.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// Names returns the agent names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	return len(r.names)
}

// NewDefaultRegistry builds the three built-in agents: a general-purpose
// main agent carrying the display tools, a research agent, and a code
// review agent.
func NewDefaultRegistry() (*Registry, error) {
	display, err := tools.NewDisplayTools()
	if err != nil {
		return nil, fmt.Errorf("failed to build display tools: %w", err)
	}

	contextTool, err := newContextTool()
	if err != nil {
		return nil, err
	}
	searchTool, err := newSearchNotesTool()
	if err != nil {
		return nil, err
	}
	complexityTool, err := newComplexityTool()
	if err != nil {
		return nil, err
	}

	return NewRegistry(
		&Descriptor{
			Name:         AgentMain,
			DisplayName:  "Assistant",
			SystemPrompt: mainSystemPrompt,
			Tools:        tools.NewRegistry(append(display, contextTool)...),
			Streaming:    true,
		},
		&Descriptor{
			Name:         AgentResearch,
			DisplayName:  "Research Assistant",
			SystemPrompt: researchSystemPrompt,
			Tools:        tools.NewRegistry(searchTool),
			Streaming:    true,
		},
		&Descriptor{
			Name:         AgentCodeReview,
			DisplayName:  "Code Reviewer",
			SystemPrompt: codeReviewSystemPrompt,
			Tools:        tools.NewRegistry(complexityTool),
			Streaming:    true,
		},
	), nil
}
