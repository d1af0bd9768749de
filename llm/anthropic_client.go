package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"go.uber.org/zap"
)

type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient builds a client for the Messages API. extra options are
// mostly useful to point the client at a test server.
func NewAnthropicClient(apiKey, model string, extra ...option.RequestOption) *AnthropicClient {
	opts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, extra...)
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{client: &client, model: model}
}

func (c *AnthropicClient) Capabilities() Capability {
	return NativeToolCalling
}

func (c *AnthropicClient) GetModel() string {
	return c.model
}

func (c *AnthropicClient) GenerateInference(ctx context.Context, messages []Message, callback func(chunk string) error, opts ...LLMOption) error {
	return c.GenerateInferenceWithTools(ctx, messages, callback, nil, opts...)
}

func (c *AnthropicClient) GenerateInferenceWithTools(
	ctx context.Context,
	messages []Message,
	contentCallback func(chunk string) error,
	toolCallback func(toolCalls []ToolCall) error,
	opts ...LLMOption,
) error {
	settings := newSettings(c.model, opts)

	system, converted := toAnthropicMessages(settings.system, messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(settings.model),
		Messages:    converted,
		MaxTokens:   int64(settings.maxTokens),
		Temperature: anthropic.Float(settings.temperature),
	}
	if len(system) > 0 {
		params.System = system
	}

	if toolCallback != nil && len(settings.tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(settings.tools))
		for _, tool := range settings.tools {
			schema, err := toolParametersSchema(tool)
			if err != nil {
				return err
			}
			inputSchema := anthropic.ToolInputSchemaParam{
				Type:       constant.Object("object"),
				Properties: schema["properties"],
				Required:   tool.Function.Parameters.Required,
			}
			t := anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
			t.OfTool.Description = anthropic.String(tool.Function.Description)
			tools = append(tools, t)
		}
		params.Tools = tools
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return fmt.Errorf("anthropic api error: %w", err)
	}

	var text string
	var calls []ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			toolUse := block.AsToolUse()
			raw, _ := json.Marshal(toolUse.Input)
			call := newToolCall(toolUse.ID, toolUse.Name, string(raw), len(calls))
			if call.ArgumentsError != "" {
				logger.Error("Model returned undecodable tool arguments",
					zap.String("tool", toolUse.Name), zap.String("error", call.ArgumentsError))
			}
			calls = append(calls, call)
		}
	}

	if contentCallback != nil {
		if err := contentCallback(text); err != nil {
			return err
		}
	}
	if toolCallback == nil || len(calls) == 0 {
		return nil
	}
	return toolCallback(calls)
}

// toAnthropicMessages splits out system text and converts the rest. Tool
// results must be sent as user content, and consecutive results of one turn
// share a single user message.
func toAnthropicMessages(system string, messages []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var systemBlocks []anthropic.TextBlockParam
	if system != "" {
		systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: system})
	}

	var out []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion
	flushResults := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, m := range messages {
		if m.Role == RoleTool {
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, m.IsError))
			continue
		}
		flushResults()

		switch m.Role {
		case RoleSystem:
			if m.Content != "" {
				systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: m.Content})
			}
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				input := map[string]any(tc.Function.Arguments)
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			if m.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}
	flushResults()

	return systemBlocks, out
}
