package kb

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Payload keys expected on indexed points.
const (
	PayloadTitle   = "title"
	PayloadURL     = "url"
	PayloadContent = "content"
)

type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

type QdrantSearcher struct {
	client     *qdrant.Client
	embedder   Embedder
	collection string
}

func NewQdrantSearcher(cfg QdrantConfig, embedder Embedder) (*QdrantSearcher, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334 // gRPC port
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &QdrantSearcher{client: client, embedder: embedder, collection: cfg.Collection}, nil
}

func (s *QdrantSearcher) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	vec, err := embedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}

	res, err := s.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vec,
		Limit:          uint64(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	return hitsFromQdrant(res.GetResult()), nil
}

func (s *QdrantSearcher) Close() error {
	return s.client.Close()
}

func hitsFromQdrant(points []*qdrant.ScoredPoint) []Hit {
	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		hits = append(hits, Hit{
			ID:      pointID(p.GetId()),
			Title:   payload[PayloadTitle].GetStringValue(),
			URL:     payload[PayloadURL].GetStringValue(),
			Snippet: snippet(payload[PayloadContent].GetStringValue()),
			Score:   float64(p.GetScore()),
		})
	}
	return hits
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.GetPointIdOptions().(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	}
	return ""
}
