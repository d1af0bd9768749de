package agentboot

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/ollama/ollama/api"
)

// ValidateArguments checks args against the JSON Schema the tool declares to
// the model. Parameters the schema doesn't declare are ignored.
func ValidateArguments(tool api.Tool, args api.ToolCallFunctionArguments) error {
	resolved, err := toolSchema(tool).Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve schema of %s: %w", tool.Function.Name, err)
	}

	instance, err := toJSONValue(args)
	if err != nil {
		return err
	}
	return resolved.Validate(instance)
}

func toolSchema(tool api.Tool) *jsonschema.Schema {
	params := tool.Function.Parameters
	schema := &jsonschema.Schema{
		Type:       "object",
		Required:   params.Required,
		Properties: make(map[string]*jsonschema.Schema, len(params.Properties)),
	}
	for name, prop := range params.Properties {
		schema.Properties[name] = propertySchema(prop)
	}
	return schema
}

func propertySchema(prop api.ToolProperty) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Description: prop.Description,
		Enum:        prop.Enum,
	}

	switch len(prop.Type) {
	case 0:
	case 1:
		s.Type = prop.Type[0]
	default:
		s.Types = append([]string(nil), prop.Type...)
	}

	for _, alt := range prop.AnyOf {
		s.AnyOf = append(s.AnyOf, propertySchema(alt))
	}

	if prop.Items != nil {
		s.Items = itemsSchema(prop.Items)
	}
	return s
}

// itemsSchema converts a free-form items declaration. Anything that doesn't
// parse as a schema leaves items unconstrained.
func itemsSchema(items any) *jsonschema.Schema {
	raw, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// toJSONValue round-trips args through JSON so Go ints and json.Number reach
// the validator as plain JSON numbers.
func toJSONValue(args api.ToolCallFunctionArguments) (map[string]any, error) {
	if args == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(map[string]any(args))
	if err != nil {
		return nil, fmt.Errorf("marshal arguments: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal arguments: %w", err)
	}
	return out, nil
}
