package agentboot

import (
	"fmt"
	"time"

	"github.com/SaiNageswarS/kb-agent/llm"
	"github.com/ollama/ollama/api"
)

func getCurrentTimeMs() int64 {
	return time.Now().UnixMilli()
}

// findMCPToolByName finds an MCPTool by its function name
func findMCPToolByName(tools []MCPTool, name string) *MCPTool {
	for i := range tools {
		if tools[i].Function.Name == name {
			return &tools[i]
		}
	}
	return nil
}

// toAPITools converts MCPTools to api.Tools for native tool calling
func toAPITools(tools []MCPTool) []api.Tool {
	apiTools := make([]api.Tool, len(tools))
	for i, tool := range tools {
		apiTools[i] = tool.Tool
	}
	return apiTools
}

// withCallIDs fills in ids for providers that don't issue them so tool
// results can always be matched to their request.
func withCallIDs(turn int, calls []llm.ToolCall) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	for i, call := range calls {
		if call.ID == "" {
			call.ID = fmt.Sprintf("call_%d_%d", turn, i)
		}
		out[i] = call
	}
	return out
}

func toolMessage(result ToolResult) llm.Message {
	return llm.Message{
		Role:       llm.RoleTool,
		Content:    result.Content,
		ToolCallID: result.CallID,
		ToolName:   result.ToolName,
		IsError:    result.IsError,
	}
}
