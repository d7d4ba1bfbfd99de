// Package backendtest provides a scripted completion client for tests.
package backendtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/sweetpotato0/ai-devteam/backend"
	"github.com/sweetpotato0/ai-devteam/message"
)

// Responder computes the answer for one request.
type Responder func(ctx context.Context, req *backend.Request) (*message.Message, error)

// Client replays responders in order; the last responder repeats once the
// script is exhausted. Every request is recorded.
type Client struct {
	mu       sync.Mutex
	script   []Responder
	requests []*backend.Request
}

// New returns a client following the given script.
func New(script ...Responder) *Client {
	return &Client{script: script}
}

// Text answers with fixed assistant content.
func Text(content string) Responder {
	return func(context.Context, *backend.Request) (*message.Message, error) {
		return message.NewMessage(message.RoleAssistant, content), nil
	}
}

// Decision answers with a JSON decision.
func Decision(value any, reason string) Responder {
	return func(context.Context, *backend.Request) (*message.Message, error) {
		var encoded string
		switch v := value.(type) {
		case string:
			encoded = fmt.Sprintf("%q", v)
		default:
			encoded = fmt.Sprint(v)
		}
		return message.NewMessage(message.RoleAssistant, fmt.Sprintf(`{"value": %s, "reason": %q}`, encoded, reason)), nil
	}
}

// Fail answers with err.
func Fail(err error) Responder {
	return func(context.Context, *backend.Request) (*message.Message, error) {
		return nil, err
	}
}

// ToolCall answers with a single tool call request.
func ToolCall(id, name string, args map[string]any) Responder {
	return func(context.Context, *backend.Request) (*message.Message, error) {
		msg := message.NewMessage(message.RoleAssistant, "")
		msg.ToolCalls = []message.ToolCall{{ID: id, Name: name, Args: args}}
		return msg, nil
	}
}

// Block waits for ctx to end and returns its error.
func Block() Responder {
	return func(ctx context.Context, _ *backend.Request) (*message.Message, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

// Generate implements backend.Client.
func (c *Client) Generate(ctx context.Context, req *backend.Request) (*message.Message, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	var next Responder
	switch {
	case len(c.script) == 0:
		next = Text("")
	case len(c.script) == 1:
		next = c.script[0]
	default:
		next = c.script[0]
		c.script = c.script[1:]
	}
	c.mu.Unlock()
	return next(ctx, req)
}

// Requests returns the recorded requests.
func (c *Client) Requests() []*backend.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*backend.Request(nil), c.requests...)
}

// Calls reports how many requests were made.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}
