package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, dir string, docs []Document) {
	t.Helper()
	raw, err := json.Marshal(docs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpus.json"), raw, 0o644))
}

func TestLinearIndexSearchRanksByScore(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, []Document{
		{ID: "1", Title: "Vitamin D Deficiency", Text: "Vitamin D is essential for bone health.", Source: "book:forever-young"},
		{ID: "2", Title: "Magnesium Basics", Text: "Magnesium supports muscle and nerve function.", Source: "book:forever-young"},
		{ID: "3", Title: "Unrelated Topic", Text: "This passage has nothing to do with the query.", Source: "newsletter:2024-01"},
	})

	idx := &linearIndex{corpusDir: dir}
	hits, err := idx.Search("vitamin d", 10, Filters{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, "Vitamin D Deficiency", hits[0].Metadata.Title)
}

func TestLinearIndexSearchRespectsK(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, []Document{
		{ID: "1", Title: "Magnesium One", Text: "magnesium magnesium magnesium", Source: "book:a"},
		{ID: "2", Title: "Magnesium Two", Text: "magnesium magnesium", Source: "book:a"},
		{ID: "3", Title: "Magnesium Three", Text: "magnesium", Source: "book:a"},
	})

	idx := &linearIndex{corpusDir: dir}
	hits, err := idx.Search("magnesium", 2, Filters{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
}

func TestLinearIndexSearchFiltersBySource(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, []Document{
		{ID: "1", Title: "Zinc in Books", Text: "zinc deficiency discussion", Source: "book:forever-young"},
		{ID: "2", Title: "Zinc in Newsletter", Text: "zinc deficiency discussion", Source: "newsletter:2024-01"},
	})

	idx := &linearIndex{corpusDir: dir}
	hits, err := idx.Search("zinc", 10, Filters{Source: []string{"newsletter:2024-01"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "newsletter:2024-01", hits[0].Metadata.Source)
}

func TestLinearIndexUnavailableWithoutCorpus(t *testing.T) {
	idx := &linearIndex{corpusDir: t.TempDir()}
	_, err := idx.Search("anything", 5, Filters{})
	require.Error(t, err)

	var unavailable *ErrIndexUnavailable
	require.ErrorAs(t, err, &unavailable)

	status := idx.Status()
	require.False(t, status.Ready)
	require.Equal(t, 0, status.DocumentCount)
}

func TestLinearIndexPreloadThenSearchShareLoad(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, []Document{
		{ID: "1", Title: "Omega 3", Text: "fish oil and omega 3 fatty acids", Source: "book:a"},
	})

	idx := &linearIndex{corpusDir: dir}
	idx.Preload()
	require.True(t, idx.Status().Ready)

	hits, err := idx.Search("omega", 5, Filters{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestGetReturnsSameSingleton(t *testing.T) {
	a := Get(t.TempDir())
	b := Get(t.TempDir())
	require.Same(t, a, b)
}
