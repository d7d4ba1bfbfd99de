package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/sweetpotato0/ai-devteam/message"
	"github.com/sweetpotato0/ai-devteam/tool"
)

func TestToContents(t *testing.T) {
	call := message.NewMessage(message.RoleAssistant, "")
	call.ToolCalls = []message.ToolCall{{ID: "read_file-0", Name: "read_file", Args: map[string]any{"path": "a"}}}

	system, contents := toContents([]*message.Message{
		message.NewMessage(message.RoleSystem, "be brief"),
		message.NewMessage(message.RoleUser, "hello"),
		message.NewMessage(message.RoleUser, "again"),
		call,
		message.NewToolResponseMessage("read_file-0", "content"),
	})

	if system != "be brief" {
		t.Fatalf("unexpected system instruction %q", system)
	}
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	if contents[0].Role != "user" || len(contents[0].Parts) != 2 {
		t.Fatalf("expected folded user content, got %+v", contents[0])
	}
	resp, ok := contents[2].Parts[0].(genai.FunctionResponse)
	if !ok {
		t.Fatalf("expected function response, got %T", contents[2].Parts[0])
	}
	if resp.Name != "read_file" {
		t.Fatalf("expected response matched to read_file, got %q", resp.Name)
	}
}

func TestDeclarations(t *testing.T) {
	decls := declarations([]*tool.Tool{
		{Name: "read_file", Description: "read", Parameters: []tool.Parameter{{Name: "path", Type: "string", Required: true}, {Name: "limit", Type: "integer"}}},
		{Name: "get_current_directory"},
	})
	if len(decls) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(decls))
	}
	if decls[0].Parameters.Properties["limit"].Type != genai.TypeInteger {
		t.Fatalf("expected integer schema for limit")
	}
	if len(decls[0].Parameters.Required) != 1 {
		t.Fatalf("expected one required parameter")
	}
	if decls[1].Parameters != nil {
		t.Fatalf("expected no parameters schema for parameterless tool")
	}
}
