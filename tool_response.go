package mcp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ToolResponse is what a ToolHandler returns on success. The dispatcher
// copies it into the wire-level ToolResult (types.go) with IsError false;
// Content carries human-readable/display content, StructuredContent carries
// the machine-readable payload tools like search_knowledge return alongside
// it.
type ToolResponse struct {
	Content           []ToolContent `json:"content"`
	StructuredContent interface{}   `json:"structuredContent,omitempty"`
}

// NewToolResponseMulti concatenates the Content of several responses into
// one, keeping the last non-nil StructuredContent. Handlers that assemble a
// result from several sub-calls use this instead of building the slice by
// hand.
func NewToolResponseMulti(responses ...*ToolResponse) *ToolResponse {
	var allContent []ToolContent
	var structuredContent interface{}

	for _, resp := range responses {
		if resp.Content != nil {
			allContent = append(allContent, resp.Content...)
		}
		if resp.StructuredContent != nil {
			structuredContent = resp.StructuredContent
		}
	}

	return &ToolResponse{
		Content:           allContent,
		StructuredContent: structuredContent,
	}
}

// NewToolResponseText wraps plain text as the sole content block.
func NewToolResponseText(text string) *ToolResponse {
	return &ToolResponse{Content: []ToolContent{{Type: "text", Text: text}}}
}

// NewToolResponseJSON marshals data and wraps it as a text content block.
// Prefer NewToolResponseStructured when the caller also wants the typed
// value available as structuredContent.
func NewToolResponseJSON(data interface{}) *ToolResponse {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return &ToolResponse{Content: []ToolContent{{Type: "text", Text: fmt.Sprintf("Error marshaling data: %v", err)}}}
	}
	return NewToolResponseText(string(jsonData))
}

func NewToolResponseImage(data []byte, mimeType string) *ToolResponse {
	return &ToolResponse{Content: []ToolContent{{Type: "image", Data: base64.StdEncoding.EncodeToString(data), MimeType: mimeType}}}
}

func NewToolResponseAudio(data []byte, mimeType string) *ToolResponse {
	return &ToolResponse{Content: []ToolContent{{Type: "audio", Data: base64.StdEncoding.EncodeToString(data), MimeType: mimeType}}}
}

func NewToolResponseResource(uri, text, mimeType string) *ToolResponse {
	return &ToolResponse{Content: []ToolContent{{Type: "resource", Resource: &ResourceContent{URI: uri, Text: text, MimeType: mimeType}}}}
}

func NewToolResponseResourceLink(uri, text string) *ToolResponse {
	return &ToolResponse{Content: []ToolContent{{Type: "resource_link", Resource: &ResourceContent{URI: uri, Text: text}}}}
}

// NewToolResponseStructured carries only a structured payload, with no
// display text. search_knowledge and the other knowledge-base tools use
// this for their hit lists and summaries; the client renders
// StructuredContent directly rather than parsing a text block.
func NewToolResponseStructured(data interface{}) *ToolResponse {
	return &ToolResponse{
		StructuredContent: data,
	}
}
