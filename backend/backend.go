// Package backend defines the completion service consumed by the turn
// manager, the local workers and the history reducer.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	errorskg "github.com/sweetpotato0/ai-devteam/errors"
	"github.com/sweetpotato0/ai-devteam/message"
	"github.com/sweetpotato0/ai-devteam/tool"
)

// Request bundles inputs for one completion call.
type Request struct {
	Messages []*message.Message
	Tools    []*tool.Tool
	// JSON asks the provider for a JSON object answer (structured decisions).
	JSON bool
	// Temperature overrides the provider default when positive.
	Temperature float64
}

// Client is implemented by every provider adapter under contrib/provider.
type Client interface {
	Generate(ctx context.Context, req *Request) (*message.Message, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req *Request) (*message.Message, error)

// Generate implements Client.
func (f ClientFunc) Generate(ctx context.Context, req *Request) (*message.Message, error) {
	return f(ctx, req)
}

// Decision is a structured backend answer: {"value": ..., "reason": ...}.
type Decision struct {
	Value  string
	Reason string
}

// Bool interprets the value as a yes/no answer.
func (d Decision) Bool() (bool, error) {
	v, err := strconv.ParseBool(strings.TrimSpace(d.Value))
	if err != nil {
		return false, &errorskg.DecisionParseError{Raw: d.Value, Err: err}
	}
	return v, nil
}

// DecisionFormat is appended to every decision prompt.
const DecisionFormat = `Respond only with a JSON object of the form {"value": <answer>, "reason": "<short justification>"}.`

// Decide asks the backend for a structured decision about msgs. The prompt is
// appended as a trailing system message; msgs is not modified.
func Decide(ctx context.Context, client Client, msgs []*message.Message, prompt string) (Decision, error) {
	req := &Request{
		Messages: append(message.CloneMessages(msgs), message.NewMessage(message.RoleSystem, prompt+"\n\n"+DecisionFormat)),
		JSON:     true,
	}
	resp, err := client.Generate(ctx, req)
	if err != nil {
		return Decision{}, err
	}
	if resp == nil {
		return Decision{}, &errorskg.DecisionParseError{Err: errors.New("empty response")}
	}
	return ParseDecision(resp.Content)
}

// Summarize asks the backend to condense msgs into at most target short
// paragraphs.
func Summarize(ctx context.Context, client Client, msgs []*message.Message, target int) (string, error) {
	if target < 1 {
		target = 1
	}
	prompt := fmt.Sprintf("Summarize the conversation above in at most %d short paragraph(s). "+
		"Keep decisions, file names and open tasks. Do not add new information.", target)
	req := &Request{
		Messages:    append(message.CloneMessages(msgs), message.NewMessage(message.RoleSystem, prompt)),
		Temperature: 0.2,
	}
	resp, err := client.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return strings.TrimSpace(resp.Content), nil
}

// ParseDecision decodes a decision, tolerating Markdown code fences around the
// JSON object.
func ParseDecision(raw string) (Decision, error) {
	body := extractJSONBlock(raw)
	if body == "" {
		return Decision{}, &errorskg.DecisionParseError{Raw: raw, Err: errors.New("empty response")}
	}

	var payload struct {
		Value  json.RawMessage `json:"value"`
		Reason string          `json:"reason"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return Decision{}, &errorskg.DecisionParseError{Raw: raw, Err: err}
	}
	if len(payload.Value) == 0 || string(payload.Value) == "null" {
		return Decision{}, &errorskg.DecisionParseError{Raw: raw, Err: errors.New("missing value")}
	}

	value, err := scalar(payload.Value)
	if err != nil {
		return Decision{}, &errorskg.DecisionParseError{Raw: raw, Err: err}
	}
	if strings.TrimSpace(value) == "" {
		return Decision{}, &errorskg.DecisionParseError{Raw: raw, Err: errors.New("empty value")}
	}
	return Decision{Value: value, Reason: payload.Reason}, nil
}

func scalar(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("value is not a scalar: %s", raw)
}

func extractJSONBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}
