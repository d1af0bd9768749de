package agentboot

import (
	"context"
	"strings"
	"testing"

	"github.com/SaiNageswarS/kb-agent/llm"
	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
)

func TestRunToolSuccessReportsProgress(t *testing.T) {
	tool := echoTool("search_web", func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
		return "[WEB SEARCH RESULTS] query: go", nil
	})
	agent := NewAgentBuilder().AddTool(tool).Build()
	reporter := &MockProgressReporter{}

	result := agent.RunTool(context.Background(), reporter, 1, queryCall("id-1", "search_web", "go"))

	assert.False(t, result.IsError)
	assert.Equal(t, "search_web", result.ToolName)
	assert.Equal(t, "id-1", result.CallID)
	assert.Equal(t, "[WEB SEARCH RESULTS] query: go", result.Content)

	events := reporter.GetEvents()
	if assert.Len(t, events, 2) {
		assert.Equal(t, StageToolExecutionStarting, events[0].Stage)
		assert.Contains(t, events[0].Message, "- **query**: go")
		assert.Equal(t, StageToolExecutionCompleted, events[1].Stage)
		assert.Equal(t, "search_web", events[1].ToolName)
	}
}

func TestRunToolRejectsWrongArgumentType(t *testing.T) {
	called := false
	tool := NewMCPToolBuilder("search_knowledge_base", "kb").
		StringParam("query", "q", true).
		IntParam("limit", "n", false).
		WithHandler(func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
			called = true
			return "", nil
		}).
		Build()
	agent := NewAgentBuilder().AddTool(tool).Build()

	call := llm.ToolCall{ID: "x", Function: api.ToolCallFunction{
		Name:      "search_knowledge_base",
		Arguments: api.ToolCallFunctionArguments{"query": "q", "limit": "three"},
	}}
	result := agent.RunTool(context.Background(), &NoOpProgressReporter{}, 1, call)

	assert.False(t, called)
	assert.True(t, result.IsError)
	assert.True(t, strings.HasPrefix(result.Content, "Error: invalid arguments for tool search_knowledge_base: "))
	assert.Contains(t, result.Content, "limit")
}

func TestRunToolWithoutHandler(t *testing.T) {
	tool := NewMCPToolBuilder("bare", "no handler").Build()
	agent := NewAgentBuilder().AddTool(tool).Build()

	result := agent.RunTool(context.Background(), &NoOpProgressReporter{}, 1, llm.ToolCall{
		Function: api.ToolCallFunction{Name: "bare", Arguments: api.ToolCallFunctionArguments{}},
	})
	assert.True(t, result.IsError)
	assert.Equal(t, "Error: tool bare has no handler", result.Content)
}

func TestRunToolCancelledContext(t *testing.T) {
	tool := echoTool("slow", func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	agent := NewAgentBuilder().AddTool(tool).Build()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := agent.RunTool(ctx, &NoOpProgressReporter{}, 1, queryCall("1", "slow", "x"))
	assert.True(t, result.IsError)
	assert.True(t, strings.HasPrefix(result.Content, "Error: "))
}

func TestFormatToolInputsToMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		toolName string
		params   api.ToolCallFunctionArguments
		expected []string
	}{
		{
			name:     "empty parameters",
			toolName: "search_web",
			params:   api.ToolCallFunctionArguments{},
			expected: []string{"Tool: `search\\_web` (no parameters)"},
		},
		{
			name:     "single string parameter",
			toolName: "search",
			params:   api.ToolCallFunctionArguments{"query": "machine learning"},
			expected: []string{"Tool: `search`", "Parameters:", "- **query**: machine learning"},
		},
		{
			name:     "numbers and escaping",
			toolName: "search_knowledge_base",
			params:   api.ToolCallFunctionArguments{"query": "a*b", "limit": 3},
			expected: []string{"Tool: `search\\_knowledge\\_base`", "- **limit**: 3", "- **query**: a\\*b"},
		},
		{
			name:     "string slice parameter",
			toolName: "filter",
			params:   api.ToolCallFunctionArguments{"categories": []any{"tech", "science"}},
			expected: []string{"- **categories**: tech, science"},
		},
		{
			name:     "angle brackets",
			toolName: "t<>",
			params:   api.ToolCallFunctionArguments{"input": "<b>"},
			expected: []string{"Tool: `t&lt;&gt;`", "- **input**: &lt;b&gt;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatToolInputsToMarkdown(tt.toolName, tt.params)
			for _, expected := range tt.expected {
				assert.Contains(t, result, expected)
			}
		})
	}
}

func TestFormatToolInputsToMarkdownDeterministic(t *testing.T) {
	params := api.ToolCallFunctionArguments{
		"z_param": "last",
		"a_param": "first",
		"m_param": "middle",
	}

	result1 := formatToolInputsToMarkdown("test", params)
	result2 := formatToolInputsToMarkdown("test", params)
	assert.Equal(t, result1, result2)

	aPos := strings.Index(result1, "- **a\\_param**:")
	mPos := strings.Index(result1, "- **m\\_param**:")
	zPos := strings.Index(result1, "- **z\\_param**:")
	assert.True(t, aPos < mPos && mPos < zPos, "Parameters should be sorted alphabetically")
}

func TestMdEscape(t *testing.T) {
	assert.Equal(t, "", mdEscape(""))
	assert.Equal(t, `a\\b`, mdEscape(`a\b`))
	assert.Equal(t, `\[link\]`, mdEscape("[link]"))
	assert.Equal(t, `\#1 \| x`, mdEscape("#1 | x"))
}
