// Package index provides the KnowledgeIndex singleton: a lazily and
// idempotently constructed handle over the knowledge corpus, shared by
// every request after the first caller pays the load cost.
package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Document is one chunk of the corpus: a book passage, newsletter
// paragraph, or forum post, as produced by the (external) chunker.
type Document struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Title string `json:"title"`
	// Source names the originating collection, e.g. "book:forever-young"
	// or "newsletter:2024-03". Filters match against this field.
	Source string `json:"source"`
	Date   string `json:"date,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Metadata is the per-hit provenance returned alongside a search score.
type Metadata struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	Date   string `json:"date,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Hit is one scored search result.
type Hit struct {
	Text     string   `json:"text"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Filters narrows a search to a subset of the corpus.
type Filters struct {
	Source   []string
	DateFrom string
	DateTo   string
}

// Status reports index readiness without blocking on construction.
type Status struct {
	Ready         bool
	DocumentCount int
	Dimensions    int
	LoadedAt      time.Time
}

// ErrIndexUnavailable is returned by Search when the backing corpus files
// are absent; Preload records the same failure in Status and returns
// nothing. The process must still
// serve health, OAuth, and non-search tools in this state.
type ErrIndexUnavailable struct {
	Reason string
}

func (e *ErrIndexUnavailable) Error() string {
	return "knowledge index unavailable: " + e.Reason
}

// KnowledgeIndex is the interface tools depend on. It is safe for
// concurrent use by many callers once constructed.
type KnowledgeIndex interface {
	Search(query string, k int, filters Filters) ([]Hit, error)
	Status() Status
	Preload()
}

// linearIndex is a keyword/field scan over a JSON document corpus, standing
// in for the embedding-backed index the corpus author builds out of band.
// It loads once (sync.Once, mirroring pool.GetPool's lazy singleton) and is
// read-only thereafter, so the read path needs only a RWMutex for the rare
// case a future reload is added.
type linearIndex struct {
	corpusDir string

	once     sync.Once
	mu       sync.RWMutex
	docs     []Document
	ready    bool
	loadedAt time.Time
	loadErr  error
}

var (
	singleton     KnowledgeIndex
	singletonOnce sync.Once
)

// Get returns the process-wide KnowledgeIndex, constructing it on first
// call. corpusDir is only consulted on that first call; later calls with a
// different value are ignored, matching the "single writer" invariant.
func Get(corpusDir string) KnowledgeIndex {
	singletonOnce.Do(func() {
		singleton = &linearIndex{corpusDir: corpusDir}
	})
	return singleton
}

// load performs the one-shot corpus read. It is called lazily by Search and
// eagerly (in the background) by Preload, whichever happens first; sync.Once
// guarantees only one of those actually reads the filesystem.
func (idx *linearIndex) load() {
	idx.once.Do(func() {
		docs, err := loadCorpus(idx.corpusDir)

		idx.mu.Lock()
		defer idx.mu.Unlock()
		if err != nil {
			idx.loadErr = err
			idx.ready = false
			return
		}
		idx.docs = docs
		idx.ready = true
		idx.loadedAt = time.Now()
	})
}

// loadCorpus reads every *.json file directly under dir, each holding a
// JSON array of Document. Missing dir is reported as ErrIndexUnavailable,
// not a generic I/O error, since an absent corpus is an expected
// deployment state the process must degrade gracefully from.
func loadCorpus(dir string) ([]Document, error) {
	if dir == "" {
		return nil, &ErrIndexUnavailable{Reason: "no corpus directory configured"}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ErrIndexUnavailable{Reason: err.Error()}
	}

	var docs []Document
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, &ErrIndexUnavailable{Reason: err.Error()}
		}
		var fileDocs []Document
		if err := json.Unmarshal(raw, &fileDocs); err != nil {
			return nil, &ErrIndexUnavailable{Reason: "malformed corpus file " + e.Name() + ": " + err.Error()}
		}
		docs = append(docs, fileDocs...)
	}
	if len(docs) == 0 {
		return nil, &ErrIndexUnavailable{Reason: "corpus directory contains no documents"}
	}
	return docs, nil
}

// Preload triggers construction in the background so the first real query
// is fast. Failures log-and-degrade at the call site (see cmd/server); they
// never abort startup.
func (idx *linearIndex) Preload() {
	idx.load()
}

func (idx *linearIndex) Status() Status {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Status{
		Ready:         idx.ready,
		DocumentCount: len(idx.docs),
		Dimensions:    0, // no embedding model backs this implementation
		LoadedAt:      idx.loadedAt,
	}
}

// Search scores every document against query and returns the top k hits
// passing filters, highest score first. k is not clamped here:
// search_knowledge's handler clamps its caller-supplied k to at most 50
// before calling, and list_sources passes the document count.
func (idx *linearIndex) Search(query string, k int, filters Filters) ([]Hit, error) {
	idx.load()

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if !idx.ready {
		if idx.loadErr != nil {
			return nil, idx.loadErr
		}
		return nil, &ErrIndexUnavailable{Reason: "index not loaded"}
	}

	queryLower := strings.ToLower(strings.TrimSpace(query))

	var hits []Hit
	for _, doc := range idx.docs {
		if !matchesFilters(doc, filters) {
			continue
		}
		score := calculateScore(queryLower, doc.Title, doc.Text)
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{
			Text:  doc.Text,
			Score: score,
			Metadata: Metadata{
				Source: doc.Source,
				Title:  doc.Title,
				Date:   doc.Date,
				URL:    doc.URL,
			},
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Metadata.Title < hits[j].Metadata.Title
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func matchesFilters(doc Document, f Filters) bool {
	if len(f.Source) > 0 {
		match := false
		for _, s := range f.Source {
			if s == doc.Source {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	if f.DateFrom != "" && doc.Date != "" && doc.Date < f.DateFrom {
		return false
	}
	if f.DateTo != "" && doc.Date != "" && doc.Date > f.DateTo {
		return false
	}
	return true
}
