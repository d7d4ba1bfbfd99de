package message

import (
	"testing"
)

func TestNewMessage(t *testing.T) {
	msg := NewMessage(RoleUser, "Hello, world!")

	if msg.Role != RoleUser {
		t.Errorf("Expected role %s, got %s", RoleUser, msg.Role)
	}
	if msg.Content != "Hello, world!" {
		t.Errorf("Expected content 'Hello, world!', got '%s'", msg.Content)
	}
	if msg.ID == "" {
		t.Error("Expected non-empty ID")
	}
	if msg.CreatedAt.IsZero() {
		t.Error("Expected non-zero created time")
	}
}

func TestNewSystem(t *testing.T) {
	msg := NewSystem("Unknown agent: x")
	if msg.Author != SystemAuthor {
		t.Errorf("Expected author %q, got %q", SystemAuthor, msg.Author)
	}
	if msg.Speaker() != SystemAuthor {
		t.Errorf("Expected speaker %q, got %q", SystemAuthor, msg.Speaker())
	}
}

func TestSpeakerFallsBackToRole(t *testing.T) {
	msg := NewMessage(RoleUser, "hi")
	if msg.Speaker() != "user" {
		t.Errorf("Expected speaker 'user', got %q", msg.Speaker())
	}
}

func TestNewToolResponseMessage(t *testing.T) {
	msg := NewToolResponseMessage("call1", "result")

	if msg.Role != RoleTool {
		t.Errorf("Expected role %s, got %s", RoleTool, msg.Role)
	}
	if msg.ToolID != "call1" {
		t.Errorf("Expected tool ID 'call1', got '%s'", msg.ToolID)
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := NewAuthored("Developer", RoleAssistant, "code")
	orig.Metadata = map[string]any{"k": "v"}
	orig.ToolCalls = []ToolCall{{ID: "1", Name: "read_file", Args: map[string]any{"path": "a.go"}}}

	cloned := Clone(orig)
	cloned.Metadata["k"] = "changed"
	cloned.ToolCalls[0].Args["path"] = "b.go"

	if orig.Metadata["k"] != "v" {
		t.Error("metadata leaked through clone")
	}
	if orig.ToolCalls[0].Args["path"] != "a.go" {
		t.Error("tool call args leaked through clone")
	}
	if cloned.Author != "Developer" {
		t.Errorf("Expected author to be copied, got %q", cloned.Author)
	}
}

func TestCloneMessagesNil(t *testing.T) {
	if CloneMessages(nil) != nil {
		t.Error("expected nil for empty input")
	}
}
