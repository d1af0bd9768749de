package agentboot

import (
	"context"
	"time"

	"github.com/SaiNageswarS/kb-agent/llm"
	"github.com/ollama/ollama/api"
)

// ForcedStopAnswer is returned when the turn limit is reached before the model
// produced any text of its own.
const ForcedStopAnswer = "I couldn't complete the research for this question within the allowed number of steps. Please try rephrasing or narrowing the question."

// AgentConfig holds configuration for the agent
type AgentConfig struct {
	Model       llm.LLMClient
	Tools       []MCPTool
	MaxTokens   int
	MaxTurns    int
	Temperature float64

	// Per call bounds. Zero disables the bound.
	ModelTimeout time.Duration
	ToolTimeout  time.Duration
}

// Agent represents the main agent system
type Agent struct {
	config AgentConfig
}

// MCPTool wraps an api.Tool and provides a handler for execution.
// Handler output is fed back to the model verbatim; a returned error is
// rendered as "Error: <err>" instead.
type MCPTool struct {
	api.Tool
	Handler func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error)
}

// ToolResult is the outcome of one tool call. Content is always text, failures
// included.
type ToolResult struct {
	ToolName string
	CallID   string
	Content  string
	IsError  bool
}

func (a *Agent) Tools() []MCPTool {
	return a.config.Tools
}

func (a *Agent) MaxTurns() int {
	return a.config.MaxTurns
}
