package llm

import (
	"encoding/json"
	"fmt"

	"github.com/ollama/ollama/api"
)

// toolParametersSchema renders the parameters of an ollama tool definition as a
// plain JSON-schema map, the shape both hosted SDKs accept.
func toolParametersSchema(tool api.Tool) (map[string]any, error) {
	raw, err := json.Marshal(tool.Function.Parameters)
	if err != nil {
		return nil, fmt.Errorf("marshal parameters of %s: %w", tool.Function.Name, err)
	}

	schema := map[string]any{}
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("unmarshal parameters of %s: %w", tool.Function.Name, err)
	}

	if _, ok := schema["type"]; !ok || schema["type"] == "" {
		schema["type"] = "object"
	}
	if props, ok := schema["properties"]; !ok || props == nil {
		schema["properties"] = map[string]any{}
	}
	if req, ok := schema["required"]; ok && req == nil {
		delete(schema, "required")
	}
	return schema, nil
}

// decodeToolArguments parses the JSON argument string a hosted provider returns
// for a tool call. An empty string is treated as an empty object.
func decodeToolArguments(raw string) (api.ToolCallFunctionArguments, error) {
	args := api.ToolCallFunctionArguments{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return api.ToolCallFunctionArguments{}, fmt.Errorf("invalid tool arguments %q: %w", raw, err)
	}
	return args, nil
}

func newToolCall(id, name, rawArgs string, index int) ToolCall {
	call := ToolCall{
		ID: id,
		Function: api.ToolCallFunction{
			Index: index,
			Name:  name,
		},
	}
	args, err := decodeToolArguments(rawArgs)
	if err != nil {
		call.ArgumentsError = err.Error()
		call.Function.Arguments = api.ToolCallFunctionArguments{}
		return call
	}
	call.Function.Arguments = args
	return call
}
