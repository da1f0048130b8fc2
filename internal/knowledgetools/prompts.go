package knowledgetools

import (
	"context"
	"fmt"

	"github.com/longevitycoach/strunz-mcp"
)

func buildSummarizeSourcePrompt() *mcp.PromptBuilder {
	return mcp.NewPrompt(
		"summarize_source",
		"Draft a prompt asking the model to summarize everything indexed under one source collection.",
		summarizeSourceRender,
		mcp.PromptArg{Name: "source", Description: "Source collection identifier", Required: true},
	)
}

func summarizeSourceRender(ctx context.Context, args map[string]string) (*mcp.PromptGetResult, error) {
	source, ok := args["source"]
	if !ok || source == "" {
		return nil, fmt.Errorf("source argument is required")
	}
	text := fmt.Sprintf(
		"Use the get_source tool to fetch every passage from %q, then write a concise summary of its main claims.",
		source,
	)
	return &mcp.PromptGetResult{
		Messages: []mcp.PromptMessage{
			{Role: "user", Content: mcp.ToolContent{Type: "text", Text: text}},
		},
	}, nil
}

func buildResearchQuestionPrompt() *mcp.PromptBuilder {
	return mcp.NewPrompt(
		"research_question",
		"Draft a prompt asking the model to answer a question by searching the knowledge corpus and citing sources.",
		researchQuestionRender,
		mcp.PromptArg{Name: "question", Description: "The question to research", Required: true},
	)
}

func researchQuestionRender(ctx context.Context, args map[string]string) (*mcp.PromptGetResult, error) {
	question, ok := args["question"]
	if !ok || question == "" {
		return nil, fmt.Errorf("question argument is required")
	}
	text := fmt.Sprintf(
		"Use the search_knowledge tool to find passages relevant to: %q. Answer the question using only what you find, citing the source and title of each passage you rely on.",
		question,
	)
	return &mcp.PromptGetResult{
		Messages: []mcp.PromptMessage{
			{Role: "user", Content: mcp.ToolContent{Type: "text", Text: text}},
		},
	}, nil
}
