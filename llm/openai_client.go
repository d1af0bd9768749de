package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

const groqBaseURL = "https://api.groq.com/openai/v1/"

// OpenAIClient talks to any OpenAI compatible chat completions endpoint
// (OpenAI itself, Groq, vLLM, ...) with native tool calling.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client. An empty baseURL uses the SDK default.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)
	return &OpenAIClient{client: &client, model: model}
}

// NewGroqClient targets Groq's OpenAI compatible endpoint.
func NewGroqClient(apiKey, model string) *OpenAIClient {
	return NewOpenAIClient(apiKey, groqBaseURL, model)
}

func (c *OpenAIClient) Capabilities() Capability {
	return NativeToolCalling
}

func (c *OpenAIClient) GetModel() string {
	return c.model
}

func (c *OpenAIClient) GenerateInference(ctx context.Context, messages []Message, callback func(chunk string) error, opts ...LLMOption) error {
	return c.GenerateInferenceWithTools(ctx, messages, callback, nil, opts...)
}

func (c *OpenAIClient) GenerateInferenceWithTools(
	ctx context.Context,
	messages []Message,
	contentCallback func(chunk string) error,
	toolCallback func(toolCalls []ToolCall) error,
	opts ...LLMOption,
) error {
	settings := newSettings(c.model, opts)

	params := openai.ChatCompletionNewParams{
		Messages:            toOpenAIMessages(settings.system, messages),
		Model:               settings.model,
		Temperature:         openai.Float(settings.temperature),
		MaxCompletionTokens: openai.Int(int64(settings.maxTokens)),
	}

	if toolCallback != nil && len(settings.tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(settings.tools))
		for _, tool := range settings.tools {
			schema, err := toolParametersSchema(tool)
			if err != nil {
				return err
			}
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tool.Function.Name,
					Description: openai.String(tool.Function.Description),
					Parameters:  openai.FunctionParameters(schema),
				},
			})
		}
		params.Tools = tools
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("openai api error: no choices returned")
	}

	msg := resp.Choices[0].Message
	if contentCallback != nil {
		if err := contentCallback(msg.Content); err != nil {
			return err
		}
	}

	if toolCallback == nil || len(msg.ToolCalls) == 0 {
		return nil
	}

	calls := make([]ToolCall, 0, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		call := newToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments, i)
		if call.ArgumentsError != "" {
			logger.Error("Model returned undecodable tool arguments",
				zap.String("tool", tc.Function.Name), zap.String("error", call.ArgumentsError))
		}
		calls = append(calls, call)
	}
	return toolCallback(calls)
}

func toOpenAIMessages(system string, messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Function.Arguments)
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: string(args),
					},
				})
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: calls,
			}
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
