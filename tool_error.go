package mcp

import "fmt"

// ToolError represents a tool-level failure. Returned from a ToolHandler, it
// is surfaced to the caller as ToolResult{IsError:true}, except that the
// codes ErrorCodeUnauthorized and ErrorCodeRateLimited become a JSON-RPC
// envelope error — see RPCError in errors.go for the envelope-level
// counterpart and the error-code constants shared by both.
//
// Example usage in a tool handler:
//
//	func myHandler(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
//	    name, err := req.String("name")
//	    if err != nil {
//	        return nil, mcp.NewToolErrorInvalidParams("name parameter is required")
//	    }
//	    // ... process request
//	}
type ToolError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error %d: %s", e.Code, e.Message)
}

// NewToolErrorInvalidParams creates an error for invalid or missing parameters.
// Use this when a required parameter is missing, has the wrong type, or fails validation.
// This returns ErrorCodeInvalidParams (-32602).
func NewToolErrorInvalidParams(message string) error {
	return &ToolError{
		Code:    ErrorCodeInvalidParams,
		Message: message,
	}
}

// NewToolErrorInternal creates an error for internal server errors.
// Use this for unexpected failures like database errors, network issues, etc.
// This returns ErrorCodeInternalError (-32603).
func NewToolErrorInternal(message string) error {
	return &ToolError{
		Code:    ErrorCodeInternalError,
		Message: message,
	}
}

// NewToolError creates a custom MCP error with a specific code.
// Use codes in the range -32000 to -32099 for application-specific errors.
// The data parameter can include additional error details and will be serialized to JSON.
//
// Example:
//
//	return nil, mcp.NewToolError(mcp.ErrorCodeRateLimited, "rate limit exceeded", map[string]interface{}{
//	    "retry_after": 60,
//	    "limit": 100,
//	})
func NewToolError(code int, message string, data interface{}) error {
	return &ToolError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}
