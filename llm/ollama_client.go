package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaClient drives a local (or remote) Ollama server. Tool schemas are
// already ollama types so no conversion is needed on the way out.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient connects to host (e.g. http://localhost:11434). An empty
// host falls back to OLLAMA_HOST via the environment.
func NewOllamaClient(host, model string) (*OllamaClient, error) {
	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client from environment: %w", err)
		}
		return &OllamaClient{client: client, model: model}, nil
	}

	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &OllamaClient{client: api.NewClient(base, http.DefaultClient), model: model}, nil
}

func (c *OllamaClient) Capabilities() Capability {
	return NativeToolCalling
}

func (c *OllamaClient) GetModel() string {
	return c.model
}

func (c *OllamaClient) GenerateInference(ctx context.Context, messages []Message, callback func(chunk string) error, opts ...LLMOption) error {
	return c.GenerateInferenceWithTools(ctx, messages, callback, nil, opts...)
}

func (c *OllamaClient) GenerateInferenceWithTools(
	ctx context.Context,
	messages []Message,
	contentCallback func(chunk string) error,
	toolCallback func(toolCalls []ToolCall) error,
	opts ...LLMOption,
) error {
	settings := newSettings(c.model, opts)

	stream := false
	req := &api.ChatRequest{
		Model:    settings.model,
		Messages: toOllamaMessages(settings.system, messages),
		Stream:   &stream,
		Options: map[string]any{
			"temperature": settings.temperature,
			"num_predict": settings.maxTokens,
		},
	}
	if toolCallback != nil && len(settings.tools) > 0 {
		req.Tools = settings.tools
	}

	var content strings.Builder
	var calls []ToolCall
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		for _, tc := range resp.Message.ToolCalls {
			call := ToolCall{Function: tc.Function}
			call.Function.Index = len(calls)
			if call.Function.Arguments == nil {
				call.Function.Arguments = api.ToolCallFunctionArguments{}
			}
			calls = append(calls, call)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ollama chat error: %w", err)
	}

	if contentCallback != nil {
		if err := contentCallback(content.String()); err != nil {
			return err
		}
	}
	if toolCallback == nil || len(calls) == 0 {
		return nil
	}
	return toolCallback(calls)
}

func toOllamaMessages(system string, messages []Message) []api.Message {
	out := make([]api.Message, 0, len(messages)+1)
	if system != "" {
		out = append(out, api.Message{Role: RoleSystem, Content: system})
	}
	for _, m := range messages {
		msg := api.Message{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{Function: tc.Function})
		}
		out = append(out, msg)
	}
	return out
}
