package message

import (
	"time"

	"github.com/google/uuid"
)

// Role represents the role of the message sender
type Role string

const (
	// RoleUser marks turns written by the requesting party.
	RoleUser Role = "user"
	// RoleAssistant marks turns written by a worker.
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	// RoleTool carries tool results inside a worker's private completion loop.
	RoleTool Role = "tool"
)

// SystemAuthor is the speaker name used for turns the orchestrator writes itself.
const SystemAuthor = "System"

// Message is one turn of a conversation. Once appended to a history it is
// treated as immutable; readers receive clones.
type Message struct {
	ID        string         `json:"id"`
	Author    string         `json:"author,omitempty"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []ToolCall     `json:"tool_calls,omitempty"`
	ToolID    string         `json:"tool_id,omitempty"` // For tool response messages
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ToolCall represents a tool invocation request
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// NewMessage creates a new message with the given role and content
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAuthored creates a message attributed to a named speaker.
func NewAuthored(author string, role Role, content string) *Message {
	msg := NewMessage(role, content)
	msg.Author = author
	return msg
}

// NewSystem creates a system-authored notice.
func NewSystem(content string) *Message {
	return NewAuthored(SystemAuthor, RoleAssistant, content)
}

// NewToolResponseMessage creates a tool response message
func NewToolResponseMessage(toolID, content string) *Message {
	msg := NewMessage(RoleTool, content)
	msg.ToolID = toolID
	return msg
}

// Clone creates a deep copy of the message.
func Clone(msg *Message) *Message {
	if msg == nil {
		return nil
	}
	cloned := *msg
	if msg.Metadata != nil {
		cloned.Metadata = make(map[string]any, len(msg.Metadata))
		for k, v := range msg.Metadata {
			cloned.Metadata[k] = v
		}
	}
	if len(msg.ToolCalls) > 0 {
		cloned.ToolCalls = make([]ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			cloned.ToolCalls[i] = cloneToolCall(tc)
		}
	}
	return &cloned
}

// CloneMessages copies a slice of messages.
func CloneMessages(msgs []*Message) []*Message {
	if len(msgs) == 0 {
		return nil
	}
	clones := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		clones = append(clones, Clone(msg))
	}
	return clones
}

func cloneToolCall(call ToolCall) ToolCall {
	cloned := ToolCall{ID: call.ID, Name: call.Name}
	if call.Args != nil {
		cloned.Args = make(map[string]any, len(call.Args))
		for k, v := range call.Args {
			cloned.Args[k] = v
		}
	}
	return cloned
}

// Speaker returns the author, falling back to the role name.
func (m *Message) Speaker() string {
	if m == nil {
		return ""
	}
	if m.Author != "" {
		return m.Author
	}
	return string(m.Role)
}
