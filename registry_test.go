package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryListToolsPreservesInsertionOrder(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterTool(NewTool("b", "tool b"), noopToolHandler)
	reg.RegisterTool(NewTool("a", "tool a"), noopToolHandler)
	reg.RegisterTool(NewTool("c", "tool c"), noopToolHandler)

	tools := reg.ListTools()
	require.Len(t, tools, 3)
	require.Equal(t, []string{"b", "a", "c"}, []string{tools[0].Name, tools[1].Name, tools[2].Name})
}

func TestRegistryRegisterToolReplacesInPlace(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterTool(NewTool("a", "first"), noopToolHandler)
	reg.RegisterTool(NewTool("b", "second"), noopToolHandler)
	reg.RegisterTool(NewTool("a", "first, replaced"), noopToolHandler)

	tools := reg.ListTools()
	require.Len(t, tools, 2)
	require.Equal(t, "a", tools[0].Name)
	require.Equal(t, "first, replaced", tools[0].Description)
}

func TestRegistryCallToolUnknownReturnsError(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.CallTool(context.Background(), "nope", nil)
	require.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistryCallToolInvokesHandler(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterTool(NewTool("echo", "echoes"), func(ctx context.Context, req *ToolRequest) (*ToolResponse, error) {
		return NewToolResponseText("called"), nil
	})

	resp, err := reg.CallTool(context.Background(), "echo", nil)
	require.NoError(t, err)
	require.Equal(t, "called", resp.Content[0].Text)
}

func TestRegistryRenderPromptUnknownReturnsError(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.RenderPrompt(context.Background(), "nope", nil)
	require.ErrorIs(t, err, ErrUnknownPrompt)
}

func noopToolHandler(ctx context.Context, req *ToolRequest) (*ToolResponse, error) {
	return NewToolResponseText("ok"), nil
}
