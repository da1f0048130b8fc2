// Package toolmetadata translates a declarative description of a tool's
// parameters into the fluent mcp.ToolBuilder DSL, so a tool pack can
// describe its surface as plain data instead of hand-written builder calls.
package toolmetadata

import (
	"github.com/longevitycoach/strunz-mcp"
)

// ToolParameter defines a single parameter for an MCP tool.
type ToolParameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// ToolMetadata defines metadata for an MCP tool.
type ToolMetadata struct {
	Description string
	Parameters  []ToolParameter
}

// BuildMCPTool creates an mcp.ToolBuilder from ToolMetadata.
func BuildMCPTool(toolName string, meta *ToolMetadata) *mcp.ToolBuilder {
	var params []mcp.Parameter
	for _, param := range meta.Parameters {
		params = append(params, convertParameter(param))
	}
	return mcp.NewTool(toolName, meta.Description, params...)
}

func convertParameter(param ToolParameter) mcp.Parameter {
	var opts []mcp.Option
	if param.Required {
		opts = append(opts, mcp.Required())
	}

	switch param.Type {
	case "string":
		return mcp.String(param.Name, param.Description, opts...)
	case "int", "integer", "float", "number":
		return mcp.Number(param.Name, param.Description, opts...)
	case "bool", "boolean":
		return mcp.Boolean(param.Name, param.Description, opts...)
	case "array:string":
		return mcp.StringArray(param.Name, param.Description, opts...)
	case "array:number", "array:int", "array:integer", "array:float":
		return mcp.NumberArray(param.Name, param.Description, opts...)
	default:
		return mcp.String(param.Name, param.Description, opts...)
	}
}
