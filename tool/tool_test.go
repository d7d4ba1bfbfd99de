package tool

import (
	"context"
	"errors"
	"testing"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes input",
		Parameters: []Parameter{
			{Name: "input", Type: "string", Description: "Test input", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return args["input"].(string) + "_processed", nil
		},
	}
}

func TestToolExecution(t *testing.T) {
	result, err := echoTool("test_tool").Execute(context.Background(), map[string]any{"input": "test"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result != "test_processed" {
		t.Errorf("Expected 'test_processed', got '%s'", result)
	}
}

func TestToolValidation(t *testing.T) {
	_, err := echoTool("test_tool").Execute(context.Background(), map[string]any{})
	if err == nil {
		t.Error("Expected error for missing required parameter, got nil")
	}
}

func TestInputSchema(t *testing.T) {
	schema := echoTool("x").InputSchema()
	if schema["type"] != "object" {
		t.Fatalf("expected object schema, got %v", schema["type"])
	}
	props := schema["properties"].(map[string]any)
	if _, ok := props["input"]; !ok {
		t.Fatal("expected input property")
	}
	required := schema["required"].([]string)
	if len(required) != 1 || required[0] != "input" {
		t.Fatalf("unexpected required list %v", required)
	}
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(echoTool("b"), echoTool("a"))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if err := reg.Register(echoTool("a")); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	list := reg.List()
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "b" {
		t.Fatalf("expected sorted list [a b], got %v", list)
	}

	out, err := reg.Execute(context.Background(), "b", map[string]any{"input": "x"})
	if err != nil || out != "x_processed" {
		t.Fatalf("Execute() = %q, %v", out, err)
	}
	if _, err := reg.Execute(context.Background(), "missing", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

type stubProvider struct {
	tools []*Tool
	err   error
}

func (p stubProvider) Tools(context.Context) ([]*Tool, error) { return p.tools, p.err }
func (p stubProvider) Close() error                             { return nil }

func TestCollect(t *testing.T) {
	override := echoTool("a")
	override.Description = "from provider"

	reg, err := Collect(context.Background(), []*Tool{echoTool("a")}, stubProvider{tools: []*Tool{override, echoTool("c")}})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 tools, got %d", reg.Len())
	}
	got, _ := reg.Get("a")
	if got.Description != "from provider" {
		t.Errorf("expected provider tool to win, got %q", got.Description)
	}

	if _, err := Collect(context.Background(), nil, stubProvider{err: errors.New("down")}); err == nil {
		t.Fatal("expected provider error")
	}
}
