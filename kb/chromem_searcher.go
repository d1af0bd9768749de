package kb

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/philippgille/chromem-go"
)

// Document is a passage to index into the embedded store.
type Document struct {
	ID      string
	Title   string
	URL     string
	Content string
}

// ChromemSearcher keeps the corpus in process. It suits local development
// and tests; documents are embedded with the same Embedder used for queries.
type ChromemSearcher struct {
	collection *chromem.Collection
}

// NewChromemSearcher opens (or creates) collection in an in-memory database,
// or a persistent one when path is set.
func NewChromemSearcher(path, collection string, embedder Embedder) (*ChromemSearcher, error) {
	db := chromem.NewDB()
	if path != "" {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db at %s: %w", path, err)
		}
	}

	col, err := db.GetOrCreateCollection(collection, nil, normalized(embedder))
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", collection, err)
	}
	return &ChromemSearcher{collection: col}, nil
}

func (s *ChromemSearcher) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	chromemDocs := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		chromemDocs = append(chromemDocs, chromem.Document{
			ID:      d.ID,
			Content: d.Content,
			Metadata: map[string]string{
				PayloadTitle: d.Title,
				PayloadURL:   d.URL,
			},
		})
	}

	if err := s.collection.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (s *ChromemSearcher) Count() int {
	return s.collection.Count()
}

func (s *ChromemSearcher) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	// chromem rejects a result count larger than the collection.
	n := min(limit, s.collection.Count())
	if n <= 0 {
		return []Hit{}, nil
	}

	results, err := s.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ID:      r.ID,
			Title:   r.Metadata[PayloadTitle],
			URL:     r.Metadata[PayloadURL],
			Snippet: snippet(r.Content),
			Score:   float64(r.Similarity),
		})
	}
	return hits, nil
}

// normalized scales embeddings to unit length; chromem scores by dot product.
func normalized(embedder Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vec, err := embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}

		var sum float64
		for _, v := range vec {
			sum += float64(v) * float64(v)
		}
		if sum == 0 {
			return vec, nil
		}
		norm := float32(math.Sqrt(sum))
		out := make([]float32, len(vec))
		for i, v := range vec {
			out[i] = v / norm
		}
		return out, nil
	}
}
