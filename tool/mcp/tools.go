package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sweetpotato0/ai-devteam/tool"
)

// ToolError is returned when the MCP server reports an error response.
type ToolError struct {
	Name    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("mcp tool %s: %s", e.Name, e.Message)
}

type caller func(ctx context.Context, name string, args map[string]any) (string, error)

func buildTools(defs []*sdkmcp.Tool, call caller) []*tool.Tool {
	tools := make([]*tool.Tool, 0, len(defs))
	for _, def := range defs {
		if def == nil || def.Name == "" {
			continue
		}
		description := def.Description
		if description == "" && def.Annotations != nil {
			description = def.Annotations.Title
		}
		remoteName := def.Name
		tools = append(tools, &tool.Tool{
			Name:        remoteName,
			Description: description,
			Parameters:  parametersFromSchema(def.InputSchema),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if args == nil {
					args = make(map[string]any)
				}
				return call(ctx, remoteName, args)
			},
		})
	}
	return tools
}

func normalizeContent(content []sdkmcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		switch v := c.(type) {
		case *sdkmcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(c); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func parametersFromSchema(schema any) []tool.Parameter {
	schemaMap := toMap(schema)
	if schemaMap == nil {
		return nil
	}
	if typ, _ := schemaMap["type"].(string); !strings.EqualFold(typ, "object") {
		return nil
	}
	props, ok := schemaMap["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return nil
	}

	required := make(map[string]bool)
	if list, ok := schemaMap["required"].([]any); ok {
		for _, item := range list {
			if name, ok := item.(string); ok {
				required[name] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]tool.Parameter, 0, len(names))
	for _, name := range names {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		param := tool.Parameter{
			Name:        name,
			Description: stringValue(prop["description"]),
			Type:        stringValue(prop["type"]),
			Default:     prop["default"],
			Required:    required[name],
		}
		if enums, ok := prop["enum"].([]any); ok {
			for _, e := range enums {
				if s, ok := e.(string); ok {
					param.Enum = append(param.Enum, s)
				}
			}
		}
		if param.Type == "" {
			param.Type = inferType(prop)
		}
		params = append(params, param)
	}
	return params
}

func inferType(prop map[string]any) string {
	if _, ok := prop["items"]; ok {
		return "array"
	}
	if _, ok := prop["properties"]; ok {
		return "object"
	}
	return "string"
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// toMap normalises the schema representations the SDK may hand back.
func toMap(v any) map[string]any {
	switch value := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return value
	case json.RawMessage:
		return decodeMap(value)
	case []byte:
		return decodeMap(value)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return nil
		}
		return decodeMap(data)
	}
}

func decodeMap(data []byte) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
