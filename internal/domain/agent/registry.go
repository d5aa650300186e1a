package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrToolNotFound     = errors.New("agent: tool not found")
	ErrDuplicateTool    = errors.New("agent: tool already registered")
	ErrInvalidTool      = errors.New("agent: invalid tool definition")
	ErrToolForbidden    = errors.New("agent: tool mutates data and mutations are disabled")
	ErrInvalidArguments = errors.New("agent: invalid tool arguments")
)

var toolName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Invocation is the input of a tool handler
type Invocation struct {
	TenantID uuid.UUID
	Args     map[string]any
}

// Handler executes a tool and returns a JSON-serialisable result
type Handler func(ctx context.Context, in Invocation) (any, error)

// Tool is a function the model may call
type Tool struct {
	Name        string
	Description string
	Schema      *Schema
	// Mutates marks tools that write data; they are hidden in read-only chats
	Mutates     bool
	Execute     Handler
}

// Spec returns the provider-facing description of the tool
func (t Tool) Spec() ToolSpec {
	return ToolSpec{Name: t.Name, Description: t.Description, Schema: t.Schema}
}

// Registry holds the tools available to the chat loop
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool
func (r *Registry) Register(t Tool) error {
	if !toolName.MatchString(t.Name) || t.Execute == nil || t.Description == "" {
		return fmt.Errorf("%w: %q", ErrInvalidTool, t.Name)
	}
	if t.Schema == nil {
		t.Schema = Object(nil)
	}
	if t.Schema.Type != "object" {
		return fmt.Errorf("%w: %q input schema must be an object", ErrInvalidTool, t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get returns a tool by name
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return t, nil
}

// All returns the tools sorted by name. Mutating tools are left out unless allowMutations.
func (r *Registry) All(allowMutations bool) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		if t.Mutates && !allowMutations {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Specs returns the provider-facing descriptions of All(allowMutations)
func (r *Registry) Specs(allowMutations bool) []ToolSpec {
	tools := r.All(allowMutations)
	out := make([]ToolSpec, len(tools))
	for i, t := range tools {
		out[i] = t.Spec()
	}
	return out
}

// Execute decodes and validates the call arguments and runs the tool.
// The returned value is the raw handler result.
func (r *Registry) Execute(ctx context.Context, tenantID uuid.UUID, call ToolCall, allowMutations bool) (any, error) {
	t, err := r.Get(call.Name)
	if err != nil {
		return nil, err
	}
	if t.Mutates && !allowMutations {
		return nil, fmt.Errorf("%w: %q", ErrToolForbidden, t.Name)
	}

	args := map[string]any{}
	if len(call.Arguments) > 0 && string(call.Arguments) != "null" {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
	}
	if err := t.Schema.Validate(args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return t.Execute(ctx, Invocation{TenantID: tenantID, Args: args})
}
