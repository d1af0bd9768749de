// Package kb is the read side of the knowledge base: similarity search over
// an externally indexed corpus. Indexing and embedding pipelines live
// elsewhere; this package only embeds the query.
package kb

import (
	"context"
	"errors"
)

// Hit is one knowledge base passage returned by a similarity search. Score is
// the backend's similarity, higher is better.
type Hit struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var ErrEmptyEmbedding = errors.New("embedder returned an empty vector")

func embedQuery(ctx context.Context, embedder Embedder, query string) ([]float32, error) {
	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vec, nil
}
