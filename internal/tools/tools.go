// Package tools defines the shared [Tool] type and the [Registry] that the
// response pipeline consults when the language model issues tool calls.
//
// Built-in tools live in sub-packages (fares); tools served by external MCP
// servers are imported into the same registry by the mcpbridge sub-package.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/farevoice/farevoice/pkg/provider/llm"
)

// ErrToolNotFound is returned by Registry.Lookup when no tool is registered
// under the requested name.
var ErrToolNotFound = errors.New("tools: tool not found")

// Tool pairs an LLM-facing schema with the handler invoked when the model
// calls it.
type Tool struct {
	// Definition is the tool's LLM-facing schema including its name,
	// description, and JSON Schema parameter specification.
	Definition llm.ToolDefinition

	// Handler executes the tool with JSON-encoded args and returns a
	// JSON-encoded result string on success, or a descriptive error.
	// Implementations must be safe for concurrent use.
	Handler func(ctx context.Context, args string) (string, error)
}

// Registry holds the tools available to the model during a turn.
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry returns an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool under its definition name. Registering a name twice is
// an error; tool names are the model's only handle on behaviour.
func (r *Registry) Register(t Tool) error {
	if t.Definition.Name == "" {
		return errors.New("tools: tool name must not be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tools: tool %q has no handler", t.Definition.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Definition.Name]; exists {
		return fmt.Errorf("tools: tool %q already registered", t.Definition.Name)
	}
	r.tools[t.Definition.Name] = t
	r.order = append(r.order, t.Definition.Name)
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return t, nil
}

// Definitions returns the schemas of all registered tools in registration
// order, ready to attach to a completion request.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}
