package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sweetpotato0/ai-devteam/backend"
	"github.com/sweetpotato0/ai-devteam/message"
	"github.com/sweetpotato0/ai-devteam/tool"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-1.5-flash"

// Config holds Gemini provider configuration
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int32
	Temperature float32
}

// Provider implements backend.Client for Google Gemini.
type Provider struct {
	config Config
	client *genai.Client
}

// New creates a Gemini provider. The returned provider owns a client that
// must be released with Close.
func New(ctx context.Context, config Config) (*Provider, error) {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{config: config, client: client}, nil
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Generate implements backend.Client.
func (p *Provider) Generate(ctx context.Context, req *backend.Request) (*message.Message, error) {
	if req == nil {
		return nil, errors.New("generate request cannot be nil")
	}

	model := p.client.GenerativeModel(p.config.Model)
	if p.config.MaxTokens > 0 {
		model.SetMaxOutputTokens(p.config.MaxTokens)
	}
	switch {
	case req.Temperature > 0:
		model.SetTemperature(float32(req.Temperature))
	case p.config.Temperature > 0:
		model.SetTemperature(p.config.Temperature)
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: declarations(req.Tools)}}
	}

	system, contents := toContents(req.Messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(contents) == 0 {
		return nil, errors.New("gemini: request has no conversation turns")
	}

	last := contents[len(contents)-1]
	if last.Role != "user" {
		last = &genai.Content{Role: "user", Parts: []genai.Part{genai.Text("Continue.")}}
		contents = append(contents, last)
	}
	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("gemini: no candidates returned")
	}

	var (
		text  []string
		calls []message.ToolCall
	)
	for i, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			text = append(text, string(v))
		case genai.FunctionCall:
			calls = append(calls, message.ToolCall{ID: fmt.Sprintf("%s-%d", v.Name, i), Name: v.Name, Args: v.Args})
		}
	}
	out := message.NewMessage(message.RoleAssistant, strings.Join(text, ""))
	out.ToolCalls = calls
	return out, nil
}

// toContents converts the conversation into Gemini contents. Tool results are
// matched back to the function name through the preceding tool calls since
// Gemini has no call identifiers.
func toContents(msgs []*message.Message) (string, []*genai.Content) {
	var (
		system   []string
		contents []*genai.Content
		names    = map[string]string{}
	)
	push := func(role string, part genai.Part) {
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, part)
			return
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{part}})
	}

	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleSystem:
			system = append(system, msg.Content)
		case message.RoleUser:
			push("user", genai.Text(msg.Content))
		case message.RoleAssistant:
			if msg.Content != "" {
				push("model", genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				names[tc.ID] = tc.Name
				push("model", genai.FunctionCall{Name: tc.Name, Args: tc.Args})
			}
		case message.RoleTool:
			name := names[msg.ToolID]
			if name == "" {
				name = msg.ToolID
			}
			push("user", genai.FunctionResponse{Name: name, Response: map[string]any{"result": msg.Content}})
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func declarations(tools []*tool.Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]*genai.Schema, len(t.Parameters))
		for _, p := range t.Parameters {
			props[p.Name] = &genai.Schema{
				Type:        schemaType(p.Type),
				Description: p.Description,
				Enum:        p.Enum,
			}
		}
		decl := &genai.FunctionDeclaration{Name: t.Name, Description: t.Description}
		if len(props) > 0 {
			decl.Parameters = &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   t.RequiredNames(),
			}
		}
		decls = append(decls, decl)
	}
	return decls
}

func schemaType(name string) genai.Type {
	switch strings.ToLower(name) {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
