// Package tools holds the concrete tools the agent can call.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/ds"
	"github.com/SaiNageswarS/kb-agent/agentboot"
	"github.com/SaiNageswarS/kb-agent/kb"
	"github.com/mitchellh/mapstructure"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

const (
	KnowledgeBaseToolName = "search_knowledge_base"

	NoKnowledgeBaseResults = "No relevant results found in the knowledge base."

	maxResultLimit = 10
)

type KnowledgeBaseOptions struct {
	DefaultLimit       int
	RelevanceThreshold float64
}

type knowledgeBaseArgs struct {
	Query string `mapstructure:"query"`
	Limit int    `mapstructure:"limit"`
}

func NewKnowledgeBaseTool(searcher kb.Searcher, opts KnowledgeBaseOptions) agentboot.MCPTool {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 3
	}

	return agentboot.NewMCPToolBuilder(KnowledgeBaseToolName,
		"Search the curated knowledge base for passages relevant to a query. "+
			"Use this first for questions about topics the knowledge base covers.").
		StringParam("query", "Search query describing the information needed", true).
		IntParam("limit", fmt.Sprintf("Maximum number of results (1-%d, default %d)", maxResultLimit, opts.DefaultLimit), false).
		WithHandler(func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
			var args knowledgeBaseArgs
			if err := decodeArgs(params, &args); err != nil {
				return "", err
			}
			args.Query = strings.TrimSpace(args.Query)
			if args.Query == "" {
				return "", fmt.Errorf("invalid arguments for tool %s: query must not be empty", KnowledgeBaseToolName)
			}
			limit := clampLimit(args.Limit, opts.DefaultLimit)

			hits, err := searcher.Search(ctx, args.Query, limit)
			if err != nil {
				logger.Error("Knowledge base search failed", zap.String("query", args.Query), zap.Error(err))
				return "", fmt.Errorf("knowledge base search failed: %w", err)
			}

			relevant := topRelevant(hits, opts.RelevanceThreshold, limit)
			logger.Info("Knowledge base search",
				zap.String("query", args.Query),
				zap.Int("hits", len(hits)),
				zap.Int("relevant", len(relevant)))

			if len(relevant) == 0 {
				return NoKnowledgeBaseResults, nil
			}
			return FormatKnowledgeBaseResults(args.Query, relevant), nil
		}).
		Build()
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		limit = def
	}
	return max(1, min(limit, maxResultLimit))
}

// topRelevant drops hits below threshold and keeps the best limit, highest
// score first.
func topRelevant(hits []kb.Hit, threshold float64, limit int) []kb.Hit {
	type ranked struct {
		idx   int
		score float64
	}

	h := ds.NewMinHeap(func(a, b ranked) bool { return a.score < b.score })
	for i, hit := range hits {
		if hit.Score < threshold {
			continue
		}
		h.Push(ranked{i, hit.Score})
		if h.Len() > limit {
			h.Pop()
		}
	}

	sorted := h.ToSortedSlice()
	out := make([]kb.Hit, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		out = append(out, hits[sorted[i].idx])
	}
	return out
}

func decodeArgs(params api.ToolCallFunctionArguments, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(map[string]any(params)); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}
