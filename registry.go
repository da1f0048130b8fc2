package mcp

import (
	"context"
	"sync"
)

// registeredTool is a tool bound to its dispatch-time metadata: the schema
// used both for wire exposure and argument validation, and the handler.
type registeredTool struct {
	Name         string
	Description  string
	Schema       map[string]interface{}
	OutputSchema map[string]interface{}
	Handler      ToolHandler
}

// registeredPrompt is a prompt bound to its renderer.
type registeredPrompt struct {
	Name        string
	Description string
	Arguments   []MCPPromptArgument
	Render      PromptRenderer
}

// Registry holds the immutable-after-startup set of tools and prompts a
// Dispatcher routes calls to. It is populated once during wiring (C9) by
// importing the tool pack, then only read from for the lifetime of the
// process.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*registeredTool
	toolSeq []string
	prompts map[string]*registeredPrompt
	promptSeq []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]*registeredTool),
		prompts: make(map[string]*registeredPrompt),
	}
}

// RegisterTool adds a tool to the registry. Registering the same name twice
// replaces it in place without disturbing its position in the insertion
// order, since tools are expected to be registered once at startup.
func (r *Registry) RegisterTool(tool *ToolBuilder, handler ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.name]; !exists {
		r.toolSeq = append(r.toolSeq, tool.name)
	}
	r.tools[tool.name] = &registeredTool{
		Name:         tool.name,
		Description:  tool.Description(),
		Schema:       tool.buildSchema(),
		OutputSchema: tool.buildOutputSchema(),
		Handler:      handler,
	}
}

// RegisterPrompt adds a prompt to the registry.
func (r *Registry) RegisterPrompt(prompt *PromptBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mcpPrompt := prompt.ToMCPPrompt()
	if _, exists := r.prompts[prompt.name]; !exists {
		r.promptSeq = append(r.promptSeq, prompt.name)
	}
	r.prompts[prompt.name] = &registeredPrompt{
		Name:        prompt.name,
		Description: mcpPrompt.Description,
		Arguments:   mcpPrompt.Arguments,
		Render:      prompt.render,
	}
}

// ListTools returns tool metadata in insertion order's
// "stable ordering (insertion order)" requirement. The returned slice is a
// copy, safe to mutate.
func (r *Registry) ListTools() []MCPTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]MCPTool, 0, len(r.toolSeq))
	for _, name := range r.toolSeq {
		t := r.tools[name]
		tool := MCPTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Schema,
		}
		if t.OutputSchema != nil {
			tool.OutputSchema = t.OutputSchema
		}
		out = append(out, tool)
	}
	return out
}

// ListPrompts returns prompt metadata in insertion order.
func (r *Registry) ListPrompts() []MCPPrompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]MCPPrompt, 0, len(r.promptSeq))
	for _, name := range r.promptSeq {
		p := r.prompts[name]
		out = append(out, MCPPrompt{
			Name:        p.Name,
			Description: p.Description,
			Arguments:   p.Arguments,
		})
	}
	return out
}

// lookupTool returns the registered tool by name, and whether it exists.
func (r *Registry) lookupTool(name string) (*registeredTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// lookupPrompt returns the registered prompt by name, and whether it exists.
func (r *Registry) lookupPrompt(name string) (*registeredPrompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prompts[name]
	return p, ok
}

// CallTool invokes a registered tool directly, bypassing JSON-RPC framing.
// The dispatcher runs handlers itself and does not call it; it serves
// in-process callers, such as tests, that want to call a tool without
// going through a transport.
func (r *Registry) CallTool(ctx context.Context, name string, args map[string]interface{}) (*ToolResponse, error) {
	tool, ok := r.lookupTool(name)
	if !ok {
		return nil, ErrUnknownTool
	}
	return tool.Handler(ctx, NewToolRequest(args))
}

// RenderPrompt invokes a registered prompt's renderer directly.
func (r *Registry) RenderPrompt(ctx context.Context, name string, args map[string]string) (*PromptGetResult, error) {
	prompt, ok := r.lookupPrompt(name)
	if !ok {
		return nil, ErrUnknownPrompt
	}
	return prompt.Render(ctx, args)
}
