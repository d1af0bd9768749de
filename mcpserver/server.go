// Package mcpserver exposes the agent's tools, and the agent itself, to MCP
// clients.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/kb-agent/agentboot"
	"github.com/SaiNageswarS/kb-agent/memory"
	"github.com/SaiNageswarS/kb-agent/services"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

const AskToolName = "ask"

// Asker answers a question within a session.
type Asker interface {
	Query(ctx context.Context, sessionID, text string, profile services.PromptProfile) (*services.AgentResponse, error)
}

func NewServer(name, version string, tools []agentboot.MCPTool, asker Asker) *server.MCPServer {
	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	for _, t := range tools {
		s.AddTool(toMCPTool(t), ToolHandler(t))
	}

	if asker != nil {
		askTool := mcp.NewTool(
			AskToolName,
			mcp.WithDescription("Answers a question using the knowledge base and web search, with numbered sources."),
			mcp.WithString("question",
				mcp.Description("The question to answer"),
				mcp.Required(),
			),
			mcp.WithString("session_id",
				mcp.Description("Session to continue; omit to start a new one"),
			),
		)
		s.AddTool(askTool, AskHandler(asker))
	}

	return s
}

func toMCPTool(t agentboot.MCPTool) mcp.Tool {
	params := t.Function.Parameters
	opts := []mcp.ToolOption{mcp.WithDescription(t.Function.Description)}

	names := make([]string, 0, len(params.Properties))
	for name := range params.Properties {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		prop := params.Properties[name]
		propOpts := []mcp.PropertyOption{mcp.Description(prop.Description)}
		if slices.Contains(params.Required, name) {
			propOpts = append(propOpts, mcp.Required())
		}

		switch {
		case slices.Contains(prop.Type, "integer"), slices.Contains(prop.Type, "number"):
			opts = append(opts, mcp.WithNumber(name, propOpts...))
		case slices.Contains(prop.Type, "boolean"):
			opts = append(opts, mcp.WithBoolean(name, propOpts...))
		case slices.Contains(prop.Type, "array"):
			opts = append(opts, mcp.WithArray(name, append(propOpts, mcp.Items(prop.Items))...))
		default:
			opts = append(opts, mcp.WithString(name, propOpts...))
		}
	}

	return mcp.NewTool(t.Function.Name, opts...)
}

// ToolHandler runs an agent tool for an MCP client. Failures are reported as
// tool errors, never as protocol errors.
func ToolHandler(t agentboot.MCPTool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := api.ToolCallFunctionArguments(req.GetArguments())
		if args == nil {
			args = api.ToolCallFunctionArguments{}
		}

		if err := agentboot.ValidateArguments(t.Tool, args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments for tool %s: %v", t.Function.Name, err)), nil
		}

		out, err := t.Handler(ctx, args)
		if err != nil {
			logger.Error("MCP tool call failed", zap.String("tool", t.Function.Name), zap.Error(err))
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

func AskHandler(asker Asker) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, _ := req.GetArguments()["question"].(string)
		sessionID, _ := req.GetArguments()["session_id"].(string)

		resp, err := asker.Query(ctx, sessionID, question, services.DefaultProfile())
		if err != nil {
			return mcp.NewToolResultError(askErrorMessage(sessionID, err)), nil
		}
		return mcp.NewToolResultText(renderAnswer(resp)), nil
	}
}

// askErrorMessage keeps provider and storage detail out of what the client sees.
func askErrorMessage(sessionID string, err error) string {
	switch {
	case errors.Is(err, services.ErrEmptyQuery), errors.Is(err, services.ErrInvalidProfile):
		return err.Error()
	case errors.Is(err, memory.ErrSessionNotFound):
		return "session not found"
	default:
		logger.Error("MCP ask failed", zap.String("sessionId", sessionID), zap.Error(err))
		return services.GenericErrorMessage
	}
}

func renderAnswer(resp *services.AgentResponse) string {
	var b strings.Builder
	b.WriteString(resp.Answer)
	if len(resp.Sources) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, s := range resp.Sources {
			fmt.Fprintf(&b, "[%d] %s - %s\n", s.Number, s.Title, s.URL)
		}
	}
	fmt.Fprintf(&b, "\nsession_id: %s", resp.SessionID)
	return b.String()
}
