// Package knowledgetools implements the domain tool pack: the callable
// surface a client sees after initialize — ping, search_knowledge,
// get_source, and list_sources — backed by the index.KnowledgeIndex
// singleton. Business logic inside each tool is intentionally thin; the
// corpus itself, the chunker, and the embedding model are out of scope
// (see index.KnowledgeIndex's doc comment).
package knowledgetools

import (
	"context"
	"fmt"
	"sort"

	"github.com/longevitycoach/strunz-mcp"
	"github.com/longevitycoach/strunz-mcp/index"
	"github.com/longevitycoach/strunz-mcp/toolmetadata"
	"github.com/longevitycoach/strunz-mcp/toon"
)

// Register declares every tool and prompt in the pack against reg, wiring
// each handler to idx. Called once from cmd/server during startup, after
// the index and registry are constructed but before the dispatcher starts
// serving requests.
func Register(reg *mcp.Registry, idx index.KnowledgeIndex) {
	reg.RegisterTool(buildPingTool(), pingHandler)
	reg.RegisterTool(buildSearchKnowledgeTool(), searchKnowledgeHandler(idx))
	reg.RegisterTool(buildGetSourceTool(), getSourceHandler(idx))
	reg.RegisterTool(buildListSourcesTool(), listSourcesHandler(idx))

	reg.RegisterPrompt(buildSummarizeSourcePrompt())
	reg.RegisterPrompt(buildResearchQuestionPrompt())
}

func buildPingTool() *mcp.ToolBuilder {
	return toolmetadata.BuildMCPTool("ping", &toolmetadata.ToolMetadata{
		Description: "Check that the server and its knowledge index are reachable.",
	})
}

func pingHandler(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	return mcp.NewToolResponseText("pong"), nil
}

func buildSearchKnowledgeTool() *mcp.ToolBuilder {
	return toolmetadata.BuildMCPTool("search_knowledge", &toolmetadata.ToolMetadata{
		Description: "Search the knowledge corpus (books, newsletters, forum posts) for passages relevant to a query.",
		Parameters: []toolmetadata.ToolParameter{
			{Name: "query", Type: "string", Description: "Natural-language search query", Required: true},
			{Name: "k", Type: "int", Description: "Number of results to return, 1-50 (default 10)"},
			{Name: "source", Type: "array:string", Description: "Restrict results to these source collections"},
			{Name: "date_from", Type: "string", Description: "Only include documents dated on or after this date (YYYY-MM-DD)"},
			{Name: "date_to", Type: "string", Description: "Only include documents dated on or before this date (YYYY-MM-DD)"},
			{Name: "format", Type: "string", Description: "\"toon\" adds a TOON rendering of the results as a text content block; structuredContent is always JSON (default \"json\")"},
		},
	})
}

const (
	defaultSearchK = 10
	maxSearchK     = 50
)

// searchKnowledgeResult is the structured payload search_knowledge returns.
// Warning is only set when a caller-supplied k above maxSearchK had to be
// clamped down; omitted otherwise so a well-formed request's response shape
// is unchanged.
type searchKnowledgeResult struct {
	Hits    []index.Hit `json:"hits"`
	Warning string      `json:"warning,omitempty"`
}

func searchKnowledgeHandler(idx index.KnowledgeIndex) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
		query, err := req.String("query")
		if err != nil {
			return nil, mcp.NewToolErrorInvalidParams("query parameter is required")
		}

		k := req.IntOr("k", defaultSearchK)
		if k <= 0 {
			return nil, mcp.NewToolErrorInvalidParams(fmt.Sprintf("k must be a positive integer, got %d", k))
		}

		var warning string
		if k > maxSearchK {
			warning = fmt.Sprintf("k=%d exceeds the maximum of %d; clamped to %d", k, maxSearchK, maxSearchK)
			k = maxSearchK
		}

		filters := index.Filters{
			Source:   req.StringSliceOr("source", nil),
			DateFrom: req.StringOr("date_from", ""),
			DateTo:   req.StringOr("date_to", ""),
		}

		hits, err := idx.Search(query, k, filters)
		if err != nil {
			if _, ok := err.(*index.ErrIndexUnavailable); ok {
				return nil, mcp.NewToolError(mcp.ErrorCodeIndexUnavailable, "knowledge index is not ready", nil)
			}
			return nil, mcp.NewToolErrorInternal(err.Error())
		}

		result := searchKnowledgeResult{Hits: hits, Warning: warning}

		format := req.StringOr("format", "json")
		if format == "toon" {
			encoded, err := toon.Encode(result)
			if err != nil {
				return nil, mcp.NewToolErrorInternal("failed to encode results as toon: " + err.Error())
			}
			return &mcp.ToolResponse{
				Content:           []mcp.ToolContent{{Type: "text", Text: encoded}},
				StructuredContent: result,
			}, nil
		}

		return mcp.NewToolResponseStructured(result), nil
	}
}

func buildGetSourceTool() *mcp.ToolBuilder {
	return toolmetadata.BuildMCPTool("get_source", &toolmetadata.ToolMetadata{
		Description: "Fetch up to 50 indexed passages belonging to a single source collection, ordered by title.",
		Parameters: []toolmetadata.ToolParameter{
			{Name: "source", Type: "string", Description: "Source collection identifier, as returned by list_sources", Required: true},
		},
	})
}

func getSourceHandler(idx index.KnowledgeIndex) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
		source, err := req.String("source")
		if err != nil {
			return nil, mcp.NewToolErrorInvalidParams("source parameter is required")
		}

		hits, err := idx.Search("", maxSearchK, index.Filters{Source: []string{source}})
		if err != nil {
			if _, ok := err.(*index.ErrIndexUnavailable); ok {
				return nil, mcp.NewToolError(mcp.ErrorCodeIndexUnavailable, "knowledge index is not ready", nil)
			}
			return nil, mcp.NewToolErrorInternal(err.Error())
		}
		if len(hits) == 0 {
			return nil, mcp.NewToolError(mcp.ErrorCodeInvalidParams, fmt.Sprintf("no documents found for source %q", source), nil)
		}

		return mcp.NewToolResponseStructured(hits), nil
	}
}

func buildListSourcesTool() *mcp.ToolBuilder {
	return toolmetadata.BuildMCPTool("list_sources", &toolmetadata.ToolMetadata{
		Description: "List the distinct source collections currently indexed, with a document count for each.",
	})
}

type sourceSummary struct {
	Source        string `json:"source"`
	DocumentCount int    `json:"document_count"`
}

func listSourcesHandler(idx index.KnowledgeIndex) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
		status := idx.Status()
		if !status.Ready {
			return nil, mcp.NewToolError(mcp.ErrorCodeIndexUnavailable, "knowledge index is not ready", nil)
		}

		hits, err := idx.Search("", status.DocumentCount, index.Filters{})
		if err != nil {
			return nil, mcp.NewToolErrorInternal(err.Error())
		}

		counts := make(map[string]int)
		for _, h := range hits {
			counts[h.Metadata.Source]++
		}

		summaries := make([]sourceSummary, 0, len(counts))
		for source, count := range counts {
			summaries = append(summaries, sourceSummary{Source: source, DocumentCount: count})
		}
		sort.Slice(summaries, func(i, j int) bool { return summaries[i].Source < summaries[j].Source })

		return mcp.NewToolResponseStructured(summaries), nil
	}
}
