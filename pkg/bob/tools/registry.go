// Package tools provides the agent's callable tool registry and its
// built-in tools: clock, calculator, text formatting, text search, and
// note saving.
package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/opsbuddy/bob/pkg/bob/llm"
)

// Func executes a tool against decoded JSON arguments and returns the
// result text shown to the model.
type Func func(args map[string]any) (string, error)

// Tool is one callable tool.
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON Schema for the tool's arguments.
	Parameters json.RawMessage
	Run        Func
}

// Registry maps tool names to tools.
// Safe for concurrent use; registration typically happens once at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a name twice replaces the earlier
// tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Execute runs the named tool against raw JSON arguments.
// The result text is returned even for tool-reported problems (tools
// describe their own failures to the model); an error is returned only
// when the tool is unknown or the arguments cannot be decoded.
func (r *Registry) Execute(name string, arguments json.RawMessage) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	args := map[string]any{}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("decode arguments for %s: %w", name, err)
		}
	}

	return t.Run(args)
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptions returns a name-to-description catalog for introspection.
func (r *Registry) Descriptions() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.tools))
	for name, t := range r.tools {
		out[name] = t.Description
	}
	return out
}

// Catalog returns the tools as model-facing definitions, sorted by name.
func (r *Registry) Catalog() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]llm.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, llm.Tool{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
