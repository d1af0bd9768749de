package kb

import (
	"context"
	"fmt"
	"strings"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-api-boot/odm"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

const (
	VectorIndexName = "chunkEmbeddingIndex"
	VectorPath      = "embedding"

	maxSnippetRunes = 600
)

// ChunkModel is a passage of an indexed document.
type ChunkModel struct {
	ChunkID     string   `json:"chunkId" bson:"_id"`
	Title       string   `json:"title" bson:"title"`
	SectionPath string   `json:"sectionPath" bson:"sectionPath"`
	SourceURI   string   `json:"sourceUri" bson:"sourceUri"`
	Tags        []string `json:"tags" bson:"tags"`
	Sentences   []string `json:"sentences" bson:"sentences"`
}

func (m ChunkModel) Id() string { return m.ChunkID }

func (m ChunkModel) CollectionName() string { return "chunks" }

// ChunkAnnModel holds the embedding of a chunk, keyed by the same id. Atlas
// vector search runs over this collection.
type ChunkAnnModel struct {
	ChunkID   string      `json:"chunkId" bson:"_id"`
	Embedding bson.Vector `json:"-" bson:"embedding"`
}

func (m ChunkAnnModel) Id() string { return m.ChunkID }

func (m ChunkAnnModel) CollectionName() string { return "chunk_ann_index" }

// MongoSearcher runs Atlas vector search over the chunk embeddings and joins
// the matching chunk text.
type MongoSearcher struct {
	vectors       odm.OdmCollectionInterface[ChunkAnnModel]
	chunks        odm.OdmCollectionInterface[ChunkModel]
	embedder      Embedder
	numCandidates int
}

func NewMongoSearcher(vectors odm.OdmCollectionInterface[ChunkAnnModel], chunks odm.OdmCollectionInterface[ChunkModel], embedder Embedder) *MongoSearcher {
	return &MongoSearcher{
		vectors:       vectors,
		chunks:        chunks,
		embedder:      embedder,
		numCandidates: 100,
	}
}

func (s *MongoSearcher) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	vec, err := embedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}

	annHits, err := async.Await(s.vectors.VectorSearch(ctx, vec, odm.VectorSearchParams{
		IndexName:     VectorIndexName,
		Path:          VectorPath,
		K:             limit,
		NumCandidates: max(s.numCandidates, limit*10),
	}))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(annHits) == 0 {
		return []Hit{}, nil
	}

	ids := make([]string, 0, len(annHits))
	for _, h := range annHits {
		ids = append(ids, h.Doc.Id())
	}

	chunks, err := async.Await(s.chunks.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, nil, 0, 0))
	if err != nil {
		return nil, fmt.Errorf("fetch chunks: %w", err)
	}

	chunkByID := make(map[string]ChunkModel, len(chunks))
	for _, c := range chunks {
		chunkByID[c.ChunkID] = c
	}

	// Keep the vector ranking.
	hits := make([]Hit, 0, len(annHits))
	for _, h := range annHits {
		c, ok := chunkByID[h.Doc.Id()]
		if !ok {
			logger.Info("chunk id missing after lookup", zap.String("id", h.Doc.Id()))
			continue
		}
		hits = append(hits, Hit{
			ID:      c.ChunkID,
			Title:   chunkTitle(c),
			URL:     c.SourceURI,
			Snippet: snippet(strings.Join(c.Sentences, " ")),
			Score:   h.Score,
		})
	}
	return hits, nil
}

func chunkTitle(c ChunkModel) string {
	title := strings.TrimSpace(c.Title)
	if section := strings.TrimSpace(c.SectionPath); section != "" && section != title {
		if title == "" {
			return section
		}
		return title + " - " + section
	}
	return title
}

// snippet collapses whitespace and caps the passage length.
func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxSnippetRunes {
		return text
	}
	return strings.TrimSpace(string(runes[:maxSnippetRunes])) + "..."
}
