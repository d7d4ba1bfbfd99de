package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/sweetpotato0/ai-devteam/backend"
	"github.com/sweetpotato0/ai-devteam/message"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5-20250929"

const jsonInstruction = "Answer with a single JSON object and nothing else."

// Config holds Claude provider configuration
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int64
	Temperature float64
}

// Provider implements backend.Client for Anthropic models.
type Provider struct {
	config Config
	client anthropic.Client
}

// New creates a new Claude provider using the official SDK.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return &Provider{config: config, client: anthropic.NewClient(opts...)}
}

// Generate implements backend.Client.
func (p *Provider) Generate(ctx context.Context, req *backend.Request) (*message.Message, error) {
	if req == nil {
		return nil, errors.New("generate request cannot be nil")
	}
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude: create message: %w", err)
	}

	var (
		text  []string
		calls []message.ToolCall
	)
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text = append(text, block.Text)
		case "tool_use":
			args := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					return nil, fmt.Errorf("claude: parse tool input for %s: %w", block.Name, err)
				}
			}
			calls = append(calls, message.ToolCall{ID: block.ID, Name: block.Name, Args: args})
		}
	}

	out := message.NewMessage(message.RoleAssistant, strings.Join(text, "\n"))
	out.ToolCalls = calls
	return out, nil
}

func (p *Provider) buildParams(req *backend.Request) (anthropic.MessageNewParams, error) {
	var (
		system []string
		msgs   []anthropic.MessageParam
	)
	// Consecutive turns of the same role are folded into one message because
	// tool results must follow their tool_use turn as a single user message.
	push := func(role anthropic.MessageParamRole, block anthropic.ContentBlockParamUnion) {
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, block)
			return
		}
		msgs = append(msgs, anthropic.MessageParam{Role: role, Content: []anthropic.ContentBlockParamUnion{block}})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case message.RoleSystem:
			system = append(system, msg.Content)
		case message.RoleUser:
			push(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(msg.Content))
		case message.RoleAssistant:
			if msg.Content != "" {
				push(anthropic.MessageParamRoleAssistant, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Args
				if args == nil {
					args = map[string]any{}
				}
				push(anthropic.MessageParamRoleAssistant, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
		case message.RoleTool:
			push(anthropic.MessageParamRoleUser, anthropic.NewToolResultBlock(msg.ToolID, msg.Content, false))
		}
	}
	if req.JSON {
		system = append(system, jsonInstruction)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: p.config.MaxTokens,
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if t := temperature(req.Temperature, p.config.Temperature); t > 0 {
		params.Temperature = param.NewOpt(t)
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.InputSchema()["properties"],
					Required:   t.RequiredNames(),
				},
			},
		})
	}
	return params, nil
}

func temperature(request, fallback float64) float64 {
	if request > 0 {
		return request
	}
	return fallback
}
