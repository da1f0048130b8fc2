package knowledgetools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/longevitycoach/strunz-mcp"
	"github.com/longevitycoach/strunz-mcp/index"
	"github.com/stretchr/testify/require"
)

type stubIndex struct {
	hits   []index.Hit
	status index.Status
	err    error
}

func (s *stubIndex) Search(query string, k int, filters index.Filters) ([]index.Hit, error) {
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.hits) {
		return s.hits[:k], nil
	}
	return s.hits, nil
}

func (s *stubIndex) Status() index.Status { return s.status }
func (s *stubIndex) Preload()             {}

func TestPingHandlerReturnsPong(t *testing.T) {
	resp, err := pingHandler(context.Background(), mcp.NewToolRequest(nil))
	require.NoError(t, err)
	require.Equal(t, "pong", resp.Content[0].Text)
}

func TestSearchKnowledgeRequiresQuery(t *testing.T) {
	handler := searchKnowledgeHandler(&stubIndex{})
	_, err := handler(context.Background(), mcp.NewToolRequest(map[string]interface{}{}))
	require.Error(t, err)
}

func TestSearchKnowledgeReturnsStructuredHits(t *testing.T) {
	idx := &stubIndex{
		status: index.Status{Ready: true, DocumentCount: 1},
		hits: []index.Hit{
			{Text: "magnesium is essential", Score: 0.9, Metadata: index.Metadata{Source: "book:a", Title: "Magnesium"}},
		},
	}
	handler := searchKnowledgeHandler(idx)
	resp, err := handler(context.Background(), mcp.NewToolRequest(map[string]interface{}{"query": "magnesium"}))
	require.NoError(t, err)

	result, ok := resp.StructuredContent.(searchKnowledgeResult)
	require.True(t, ok)
	require.Len(t, result.Hits, 1)
	require.Equal(t, "Magnesium", result.Hits[0].Metadata.Title)
	require.Empty(t, result.Warning)
}

func TestSearchKnowledgeRejectsNonPositiveK(t *testing.T) {
	handler := searchKnowledgeHandler(&stubIndex{})

	for _, k := range []int{0, -1, -50} {
		_, err := handler(context.Background(), mcp.NewToolRequest(map[string]interface{}{
			"query": "magnesium",
			"k":     k,
		}))
		require.Error(t, err)

		toolErr, ok := err.(*mcp.ToolError)
		require.True(t, ok)
		require.Equal(t, mcp.ErrorCodeInvalidParams, toolErr.Code)
	}
}

func TestSearchKnowledgeClampsKAboveMaxWithWarning(t *testing.T) {
	idx := &stubIndex{
		hits: []index.Hit{
			{Text: "vitamin d", Score: 0.8, Metadata: index.Metadata{Source: "book:a", Title: "Vitamin D"}},
		},
	}
	handler := searchKnowledgeHandler(idx)
	resp, err := handler(context.Background(), mcp.NewToolRequest(map[string]interface{}{
		"query": "vitamin",
		"k":     500,
	}))
	require.NoError(t, err)

	result, ok := resp.StructuredContent.(searchKnowledgeResult)
	require.True(t, ok)
	require.NotEmpty(t, result.Warning)
	require.Contains(t, result.Warning, "clamped")
}

func TestSearchKnowledgeUnavailableMapsToIndexUnavailable(t *testing.T) {
	idx := &stubIndex{err: &index.ErrIndexUnavailable{Reason: "no corpus"}}
	handler := searchKnowledgeHandler(idx)
	_, err := handler(context.Background(), mcp.NewToolRequest(map[string]interface{}{"query": "anything"}))
	require.Error(t, err)

	toolErr, ok := err.(*mcp.ToolError)
	require.True(t, ok)
	require.Equal(t, mcp.ErrorCodeIndexUnavailable, toolErr.Code)
}

func TestSearchKnowledgeToonFormat(t *testing.T) {
	idx := &stubIndex{
		hits: []index.Hit{
			{Text: "vitamin d", Score: 0.8, Metadata: index.Metadata{Source: "book:a", Title: "Vitamin D"}},
		},
	}
	handler := searchKnowledgeHandler(idx)
	resp, err := handler(context.Background(), mcp.NewToolRequest(map[string]interface{}{"query": "vitamin", "format": "toon"}))
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	require.Equal(t, "text", resp.Content[0].Type)
	require.NotEmpty(t, resp.Content[0].Text)
}

func TestListSourcesSummarizesCounts(t *testing.T) {
	idx := &stubIndex{
		status: index.Status{Ready: true, DocumentCount: 3},
		hits: []index.Hit{
			{Metadata: index.Metadata{Source: "book:a"}},
			{Metadata: index.Metadata{Source: "book:a"}},
			{Metadata: index.Metadata{Source: "newsletter:2024"}},
		},
	}
	handler := listSourcesHandler(idx)
	resp, err := handler(context.Background(), mcp.NewToolRequest(nil))
	require.NoError(t, err)

	raw, err := json.Marshal(resp.StructuredContent)
	require.NoError(t, err)
	var summaries []sourceSummary
	require.NoError(t, json.Unmarshal(raw, &summaries))
	require.Len(t, summaries, 2)
}
