package mcp

import "context"

// PromptArg declares one named argument a prompt accepts.
type PromptArg struct {
	Name        string
	Description string
	Required    bool
}

// PromptRenderer renders a prompt's argument map into role-tagged messages.
type PromptRenderer func(ctx context.Context, args map[string]string) (*PromptGetResult, error)

// PromptBuilder provides the same fluent, declarative shape as ToolBuilder
// (see tool_builder.go) for the prompt half of the registry.
type PromptBuilder struct {
	name        string
	description string
	args        []PromptArg
	render      PromptRenderer
}

// NewPrompt declares a prompt with a name, description and renderer.
func NewPrompt(name, description string, render PromptRenderer, args ...PromptArg) *PromptBuilder {
	return &PromptBuilder{name: name, description: description, args: args, render: render}
}

func (p *PromptBuilder) Name() string { return p.name }

func (p *PromptBuilder) ToMCPPrompt() MCPPrompt {
	out := MCPPrompt{Name: p.name, Description: p.description}
	for _, a := range p.args {
		out.Arguments = append(out.Arguments, MCPPromptArgument{
			Name:        a.Name,
			Description: a.Description,
			Required:    a.Required,
		})
	}
	return out
}
