package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/kb-agent/agentboot"
	"github.com/SaiNageswarS/kb-agent/websearch"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

const (
	WebSearchToolName = "search_web"

	WebSearchUnavailable = "Web search is unavailable: no API key configured."
	NoWebResults         = "No web results found."

	webResultCount = 5
)

type WebSearcher interface {
	Configured() bool
	Search(ctx context.Context, query string, count int) ([]websearch.Result, error)
}

type webSearchArgs struct {
	Query string `mapstructure:"query"`
}

func NewWebSearchTool(client WebSearcher) agentboot.MCPTool {
	return agentboot.NewMCPToolBuilder(WebSearchToolName,
		"Search the public web. Use this for recent events or when the knowledge base has no relevant results.").
		StringParam("query", "Web search query", true).
		WithHandler(func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
			if client == nil || !client.Configured() {
				return WebSearchUnavailable, nil
			}

			var args webSearchArgs
			if err := decodeArgs(params, &args); err != nil {
				return "", err
			}
			args.Query = strings.TrimSpace(args.Query)
			if args.Query == "" {
				return "", fmt.Errorf("invalid arguments for tool %s: query must not be empty", WebSearchToolName)
			}

			results, err := client.Search(ctx, args.Query, webResultCount)
			if errors.Is(err, websearch.ErrNotConfigured) {
				return WebSearchUnavailable, nil
			}
			if err != nil {
				logger.Error("Web search failed", zap.String("query", args.Query), zap.Error(err))
				return "", fmt.Errorf("web search failed: %w", err)
			}
			if len(results) == 0 {
				return NoWebResults, nil
			}

			logger.Info("Web search", zap.String("query", args.Query), zap.Int("results", len(results)))
			return FormatWebResults(args.Query, results), nil
		}).
		Build()
}
