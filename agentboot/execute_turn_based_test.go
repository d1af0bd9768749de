package agentboot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SaiNageswarS/kb-agent/llm"
	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockProgressReporter implements ProgressReporter for testing
type MockProgressReporter struct {
	mu     sync.Mutex
	events []*ProgressEvent
}

func (m *MockProgressReporter) Send(event *ProgressEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockProgressReporter) GetEvents() []*ProgressEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ProgressEvent(nil), m.events...)
}

func (m *MockProgressReporter) CountStage(stage Stage) int {
	n := 0
	for _, e := range m.GetEvents() {
		if e.Stage == stage {
			n++
		}
	}
	return n
}

// testLLMClient replays scripted turns: responses[i] and toolCallsPerTurn[i]
// are returned by the i-th call. Past the script, response/toolCalls are used.
type testLLMClient struct {
	model            string
	response         string
	toolCalls        []llm.ToolCall
	shouldError      bool
	errorMessage     string
	responses        []string
	toolCallsPerTurn [][]llm.ToolCall
	block            bool

	mu        sync.Mutex
	callCount int
	seen      [][]llm.Message
}

func (m *testLLMClient) GenerateInference(
	ctx context.Context,
	messages []llm.Message,
	callback func(chunk string) error,
	opts ...llm.LLMOption,
) error {
	return m.GenerateInferenceWithTools(ctx, messages, callback, nil, opts...)
}

func (m *testLLMClient) GenerateInferenceWithTools(
	ctx context.Context,
	messages []llm.Message,
	contentCallback func(chunk string) error,
	toolCallback func(toolCalls []llm.ToolCall) error,
	opts ...llm.LLMOption,
) error {
	m.mu.Lock()
	turn := m.callCount
	m.callCount++
	m.seen = append(m.seen, append([]llm.Message(nil), messages...))
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.shouldError {
		return errors.New(m.errorMessage)
	}

	response := m.response
	if turn < len(m.responses) {
		response = m.responses[turn]
	}
	toolCalls := m.toolCalls
	if turn < len(m.toolCallsPerTurn) {
		toolCalls = m.toolCallsPerTurn[turn]
	}

	if err := contentCallback(response); err != nil {
		return err
	}
	if len(toolCalls) > 0 && toolCallback != nil {
		return toolCallback(toolCalls)
	}
	return nil
}

func (m *testLLMClient) Capabilities() llm.Capability {
	return llm.NativeToolCalling
}

func (m *testLLMClient) GetModel() string {
	return m.model
}

func (m *testLLMClient) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func echoTool(name string, handler func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error)) MCPTool {
	return NewMCPToolBuilder(name, "test tool "+name).
		StringParam("query", "query text", true).
		WithHandler(handler).
		Build()
}

func queryCall(id, tool, query string) llm.ToolCall {
	return llm.ToolCall{
		ID: id,
		Function: api.ToolCallFunction{
			Name:      tool,
			Arguments: api.ToolCallFunctionArguments{"query": query},
		},
	}
}

func userMessages(q string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a helpful assistant"},
		{Role: llm.RoleUser, Content: q},
	}
}

func TestAgentRunDirectAnswer(t *testing.T) {
	model := &testLLMClient{model: "test-model", response: "This is the final answer"}

	agent := NewAgentBuilder().
		WithModel(model).
		WithMaxTurns(3).
		Build()

	reporter := &MockProgressReporter{}
	result, err := agent.Run(context.Background(), reporter, userMessages("What is 2+2?"))

	require.NoError(t, err)
	assert.Equal(t, "This is the final answer", result.Answer)
	assert.Equal(t, 1, result.Turns)
	assert.False(t, result.ForcedStop)
	assert.Empty(t, result.ToolMessages)
	assert.NotNil(t, result.ToolsUsed)
	assert.GreaterOrEqual(t, result.ProcessingTime, int64(0))
	assert.Equal(t, 1, reporter.CountStage(StageComplete))
}

func TestAgentRunWithToolRound(t *testing.T) {
	var handlerCalls atomic.Int32
	tool := echoTool("search_knowledge_base", func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
		handlerCalls.Add(1)
		return "result for " + params["query"].(string), nil
	})

	model := &testLLMClient{
		model: "test-model",
		toolCallsPerTurn: [][]llm.ToolCall{
			{queryCall("call_1", "search_knowledge_base", "LibreTexts")},
		},
		responses: []string{"", "LibreTexts is an open textbook project."},
	}

	agent := NewAgentBuilder().WithModel(model).AddTool(tool).Build()
	input := userMessages("What is LibreTexts?")

	result, err := agent.Run(context.Background(), nil, input)
	require.NoError(t, err)

	assert.Equal(t, "LibreTexts is an open textbook project.", result.Answer)
	assert.Equal(t, 2, result.Turns)
	assert.Equal(t, int32(1), handlerCalls.Load())
	assert.Equal(t, []string{"search_knowledge_base"}, result.ToolsUsed)
	require.Len(t, result.ToolMessages, 1)
	assert.Equal(t, "result for LibreTexts", result.ToolMessages[0].Content)
	assert.Equal(t, "call_1", result.ToolMessages[0].ToolCallID)

	// Second model call sees assistant tool request followed by the result.
	require.Len(t, model.seen, 2)
	second := model.seen[1]
	require.Len(t, second, 4)
	assert.Equal(t, llm.RoleAssistant, second[2].Role)
	assert.Len(t, second[2].ToolCalls, 1)
	assert.Equal(t, llm.RoleTool, second[3].Role)

	// Caller's slice is untouched.
	assert.Len(t, input, 2)
}

func TestAgentRunToolResultsKeepRequestOrder(t *testing.T) {
	slow := echoTool("slow", func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
		time.Sleep(30 * time.Millisecond)
		return "slow:" + params["query"].(string), nil
	})
	fast := echoTool("fast", func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
		return "fast:" + params["query"].(string), nil
	})

	model := &testLLMClient{
		model: "test-model",
		toolCallsPerTurn: [][]llm.ToolCall{{
			queryCall("a", "slow", "1"),
			queryCall("b", "fast", "2"),
			queryCall("c", "slow", "3"),
		}},
		responses: []string{"", "done"},
	}

	agent := NewAgentBuilder().WithModel(model).AddTool(slow).AddTool(fast).Build()
	result, err := agent.Run(context.Background(), nil, userMessages("q"))
	require.NoError(t, err)

	require.Len(t, result.ToolMessages, 3)
	assert.Equal(t, "slow:1", result.ToolMessages[0].Content)
	assert.Equal(t, "fast:2", result.ToolMessages[1].Content)
	assert.Equal(t, "slow:3", result.ToolMessages[2].Content)
	assert.Equal(t, []string{"slow", "fast"}, result.ToolsUsed)
}

func TestAgentRunToolsDispatchedConcurrently(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	tool := echoTool("wait", func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
		n := inFlight.Add(1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(40 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	})

	model := &testLLMClient{
		model:            "test-model",
		toolCallsPerTurn: [][]llm.ToolCall{{queryCall("a", "wait", "1"), queryCall("b", "wait", "2")}},
		responses:        []string{"", "done"},
	}

	agent := NewAgentBuilder().WithModel(model).AddTool(tool).Build()
	_, err := agent.Run(context.Background(), nil, userMessages("q"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), maxInFlight.Load())
}

func TestAgentRunForcedStopUsesLastText(t *testing.T) {
	tool := echoTool("endless", func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
		return "more", nil
	})

	model := &testLLMClient{
		model:     "test-model",
		toolCalls: []llm.ToolCall{queryCall("", "endless", "again")},
		responses: []string{"Let me check.", "", "Still checking."},
	}

	agent := NewAgentBuilder().WithModel(model).AddTool(tool).WithMaxTurns(3).Build()
	reporter := &MockProgressReporter{}
	result, err := agent.Run(context.Background(), reporter, userMessages("q"))
	require.NoError(t, err)

	assert.True(t, result.ForcedStop)
	assert.Equal(t, 3, result.Turns)
	assert.Equal(t, 3, model.calls())
	assert.Equal(t, "Still checking.", result.Answer)
	// Tools ran after turns 1 and 2 only; the final request is not executed.
	assert.Len(t, result.ToolMessages, 2)
	assert.Equal(t, 1, reporter.CountStage(StageForcedStop))
}

func TestAgentRunForcedStopWithoutText(t *testing.T) {
	tool := echoTool("endless", func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
		return "more", nil
	})

	model := &testLLMClient{
		model:     "test-model",
		toolCalls: []llm.ToolCall{queryCall("", "endless", "again")},
	}

	for _, maxTurns := range []int{1, 2, 6} {
		model.callCount = 0
		model.seen = nil

		agent := NewAgentBuilder().WithModel(model).AddTool(tool).WithMaxTurns(maxTurns).Build()
		result, err := agent.Run(context.Background(), nil, userMessages("q"))
		require.NoError(t, err)

		assert.True(t, result.ForcedStop)
		assert.Equal(t, maxTurns, result.Turns)
		assert.Equal(t, maxTurns, model.calls())
		assert.Equal(t, ForcedStopAnswer, result.Answer)
		assert.Len(t, result.ToolMessages, maxTurns-1)
	}
}

func TestAgentRunAssignsMissingCallIDs(t *testing.T) {
	tool := echoTool("search", func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
		return "x", nil
	})
	model := &testLLMClient{
		model:            "test-model",
		toolCallsPerTurn: [][]llm.ToolCall{{queryCall("", "search", "a"), queryCall("", "search", "b")}},
		responses:        []string{"", "done"},
	}

	agent := NewAgentBuilder().WithModel(model).AddTool(tool).Build()
	result, err := agent.Run(context.Background(), nil, userMessages("q"))
	require.NoError(t, err)

	require.Len(t, result.ToolMessages, 2)
	assert.Equal(t, "call_1_0", result.ToolMessages[0].ToolCallID)
	assert.Equal(t, "call_1_1", result.ToolMessages[1].ToolCallID)
}

func TestAgentRunToolFailuresBecomeText(t *testing.T) {
	failing := echoTool("failing", func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
		return "", errors.New("backend down")
	})
	panicking := echoTool("panicking", func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
		panic("boom")
	})

	model := &testLLMClient{
		model: "test-model",
		toolCallsPerTurn: [][]llm.ToolCall{{
			queryCall("1", "failing", "x"),
			queryCall("2", "panicking", "x"),
			queryCall("3", "missing_tool", "x"),
			{ID: "4", Function: api.ToolCallFunction{Name: "failing", Arguments: api.ToolCallFunctionArguments{}}},
			{ID: "5", Function: api.ToolCallFunction{Name: "failing", Arguments: api.ToolCallFunctionArguments{}}, ArgumentsError: "unexpected end of JSON input"},
		}},
		responses: []string{"", "I could not find anything."},
	}

	agent := NewAgentBuilder().WithModel(model).AddTool(failing).AddTool(panicking).Build()
	result, err := agent.Run(context.Background(), nil, userMessages("q"))
	require.NoError(t, err)

	assert.Equal(t, "I could not find anything.", result.Answer)
	require.Len(t, result.ToolMessages, 5)
	assert.Equal(t, "Error: backend down", result.ToolMessages[0].Content)
	assert.Contains(t, result.ToolMessages[1].Content, "panicked: boom")
	assert.Equal(t, `Error: unknown tool "missing_tool"`, result.ToolMessages[2].Content)
	assert.True(t, strings.HasPrefix(result.ToolMessages[3].Content, "Error: invalid arguments for tool failing: "))
	assert.Contains(t, result.ToolMessages[3].Content, "query")
	assert.Equal(t, "Error: invalid arguments for tool failing: unexpected end of JSON input", result.ToolMessages[4].Content)
}

func TestAgentRunToolTimeout(t *testing.T) {
	hanging := echoTool("hanging", func(ctx context.Context, params api.ToolCallFunctionArguments) (string, error) {
		time.Sleep(time.Second)
		return "too late", nil
	})
	model := &testLLMClient{
		model:            "test-model",
		toolCallsPerTurn: [][]llm.ToolCall{{queryCall("1", "hanging", "x")}},
		responses:        []string{"", "done"},
	}

	agent := NewAgentBuilder().WithModel(model).AddTool(hanging).WithToolTimeout(20 * time.Millisecond).Build()
	result, err := agent.Run(context.Background(), nil, userMessages("q"))
	require.NoError(t, err)

	require.Len(t, result.ToolMessages, 1)
	assert.True(t, strings.HasPrefix(result.ToolMessages[0].Content, "Error: tool hanging timed out"))
	assert.Equal(t, "done", result.Answer)
}

func TestAgentRunModelError(t *testing.T) {
	model := &testLLMClient{model: "test-model", shouldError: true, errorMessage: "LLM service unavailable"}

	agent := NewAgentBuilder().WithModel(model).Build()
	result, err := agent.Run(context.Background(), nil, userMessages("q"))

	assert.Nil(t, result)
	var modelErr *ModelError
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, 1, modelErr.Turn)
	assert.Contains(t, err.Error(), "LLM service unavailable")
}

func TestAgentRunModelTimeout(t *testing.T) {
	model := &testLLMClient{model: "test-model", block: true}

	agent := NewAgentBuilder().WithModel(model).WithModelTimeout(20 * time.Millisecond).Build()
	_, err := agent.Run(context.Background(), nil, userMessages("q"))

	var modelErr *ModelError
	require.ErrorAs(t, err, &modelErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAgentRunCancelledContext(t *testing.T) {
	model := &testLLMClient{model: "test-model", response: "never"}
	agent := NewAgentBuilder().WithModel(model).Build()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agent.Run(ctx, nil, userMessages("q"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, model.calls())
}

func TestAgentRunEmptyAnswer(t *testing.T) {
	model := &testLLMClient{model: "test-model", response: ""}
	agent := NewAgentBuilder().WithModel(model).Build()

	result, err := agent.Run(context.Background(), nil, userMessages("q"))
	require.NoError(t, err)
	assert.Equal(t, "", result.Answer)
	assert.False(t, result.ForcedStop)
}

func TestAgentRunWithoutModel(t *testing.T) {
	agent := NewAgentBuilder().Build()
	_, err := agent.Run(context.Background(), nil, userMessages("q"))

	var modelErr *ModelError
	assert.ErrorAs(t, err, &modelErr)
}

func TestLoopStateString(t *testing.T) {
	assert.Equal(t, "awaiting_model", StateAwaitingModel.String())
	assert.Equal(t, "executing_tools", StateExecutingTools.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "LoopState(9)", LoopState(9).String())
}
