package worker

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sweetpotato0/ai-devteam/backend"
	"github.com/sweetpotato0/ai-devteam/message"
	"github.com/sweetpotato0/ai-devteam/middleware"
	"github.com/sweetpotato0/ai-devteam/pkg/logging"
	"github.com/sweetpotato0/ai-devteam/pkg/telemetry"
	"github.com/sweetpotato0/ai-devteam/tool"
)

// DefaultMaxInvocations caps tool calls in one turn when not configured.
const DefaultMaxInvocations = 15

// Local is a worker backed by a completion client and an optional tool set.
type Local struct {
	name         string
	description  string
	instructions string

	client         backend.Client
	chain          *middleware.MiddlewareChain
	tools          *tool.Registry
	maxInvocations int
	logger         *slog.Logger
}

// LocalOption configures a Local worker.
type LocalOption func(*Local)

// WithTools exposes a tool registry to the worker.
func WithTools(reg *tool.Registry) LocalOption {
	return func(l *Local) {
		l.tools = reg
	}
}

// WithMaxInvocations caps tool calls per turn.
func WithMaxInvocations(n int) LocalOption {
	return func(l *Local) {
		if n > 0 {
			l.maxInvocations = n
		}
	}
}

// WithMiddleware routes every completion through chain.
func WithMiddleware(chain *middleware.MiddlewareChain) LocalOption {
	return func(l *Local) {
		l.chain = chain
	}
}

func WithLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLocal creates a local worker.
func NewLocal(name, description, instructions string, client backend.Client, opts ...LocalOption) *Local {
	l := &Local{
		name:           name,
		description:    description,
		instructions:   instructions,
		client:         client,
		maxInvocations: DefaultMaxInvocations,
		logger:         logging.WithComponent("worker"),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.client = middleware.Wrap(l.client, name, l.chain)
	return l
}

// NewRole creates a local worker from a role definition.
func NewRole(role Role, client backend.Client, opts ...LocalOption) *Local {
	return NewLocal(role.Name, role.Description, role.Instructions, client, opts...)
}

func (l *Local) Name() string        { return l.name }
func (l *Local) Description() string { return l.description }

// Respond runs the completion and tool loop. Each non-empty assistant text is
// yielded as a turn authored by the worker. When the model keeps requesting
// tools past the invocation cap, a closing system note ends the turn.
func (l *Local) Respond(ctx context.Context, req Request) iter.Seq2[*message.Message, error] {
	return func(yield func(*message.Message, error) bool) {
		ctx, span := telemetry.Start(ctx, "worker.respond", attribute.String("worker", l.name))
		var spanErr error
		defer func() { telemetry.End(span, spanErr) }()

		msgs := l.prompt(req)
		var tools []*tool.Tool
		if l.tools != nil {
			tools = l.tools.List()
		}

		invocations := 0
		for {
			resp, err := l.client.Generate(ctx, &backend.Request{Messages: msgs, Tools: tools})
			if err != nil {
				spanErr = err
				yield(nil, fmt.Errorf("%s: generate: %w", l.name, err))
				return
			}
			if resp == nil {
				return
			}

			if text := strings.TrimSpace(resp.Content); text != "" {
				if !yield(message.NewAuthored(l.name, message.RoleAssistant, resp.Content), nil) {
					return
				}
			}
			if len(resp.ToolCalls) == 0 {
				return
			}
			if invocations >= l.maxInvocations {
				l.logger.Warn("tool invocation cap reached", "worker", l.name, "invocations", invocations)
				yield(message.NewSystem(fmt.Sprintf("%s stopped after %d tool invocations without a final answer.", l.name, invocations)), nil)
				return
			}

			msgs = append(msgs, resp)
			for _, call := range resp.ToolCalls {
				invocations++
				msgs = append(msgs, message.NewToolResponseMessage(call.ID, l.invoke(ctx, call)))
			}
		}
	}
}

// invoke runs one tool call. Failures are reported back to the model as text.
func (l *Local) invoke(ctx context.Context, call message.ToolCall) string {
	if l.tools == nil {
		return fmt.Sprintf("Error executing tool %s: no tools available", call.Name)
	}
	result, err := l.tools.Execute(ctx, call.Name, call.Args)
	if err != nil {
		l.logger.Debug("tool call failed", "worker", l.name, "tool", call.Name, "error", err)
		return fmt.Sprintf("Error executing tool %s: %v", call.Name, err)
	}
	return result
}

// prompt builds the completion input. The worker's own turns stay assistant
// turns; everyone else's are presented as attributed user turns.
func (l *Local) prompt(req Request) []*message.Message {
	system := l.instructions
	if req.Context != "" {
		system += "\n\n" + req.Context
	}
	msgs := make([]*message.Message, 0, len(req.History)+1)
	msgs = append(msgs, message.NewMessage(message.RoleSystem, system))

	for _, turn := range req.History {
		switch {
		case turn.Role == message.RoleTool, turn.Role == message.RoleSystem:
			continue
		case turn.Author == l.name:
			msgs = append(msgs, message.NewMessage(message.RoleAssistant, turn.Content))
		case turn.Role == message.RoleUser && turn.Author == "":
			msgs = append(msgs, message.NewMessage(message.RoleUser, turn.Content))
		default:
			msgs = append(msgs, message.NewMessage(message.RoleUser, fmt.Sprintf("[%s]: %s", turn.Speaker(), turn.Content)))
		}
	}
	return msgs
}
