package worker

import (
	"context"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	errorskg "github.com/sweetpotato0/ai-devteam/errors"
	"github.com/sweetpotato0/ai-devteam/history"
	"github.com/sweetpotato0/ai-devteam/message"
	"github.com/sweetpotato0/ai-devteam/pkg/logging"
	"github.com/sweetpotato0/ai-devteam/pkg/telemetry"
)

// RemoteRequest is what a remote worker sends over its transport.
type RemoteRequest struct {
	// ContextID groups the requests of one remote conversation.
	ContextID string
	Text      string
}

// Transport carries requests to a remote agent. The returned sequence yields
// content chunks; an error is a transport failure.
type Transport interface {
	Send(ctx context.Context, req RemoteRequest) iter.Seq2[string, error]
}

// Remote proxies turns to an agent behind a Transport.
type Remote struct {
	name        string
	description string
	transport   Transport
	contextID   string
	logger      *slog.Logger
}

// NewRemote creates a remote worker with a fresh conversation id.
func NewRemote(name, description string, transport Transport, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = logging.WithComponent("worker")
	}
	return &Remote{
		name:        name,
		description: description,
		transport:   transport,
		contextID:   uuid.NewString(),
		logger:      logger,
	}
}

func (r *Remote) Name() string        { return r.name }
func (r *Remote) Description() string { return r.description }

// ContextID is the conversation id sent with every request.
func (r *Remote) ContextID() string { return r.contextID }

// Respond serializes the history into a single request. The non-empty chunks
// of the answer are joined into one turn authored by the worker.
func (r *Remote) Respond(ctx context.Context, req Request) iter.Seq2[*message.Message, error] {
	return func(yield func(*message.Message, error) bool) {
		ctx, span := telemetry.Start(ctx, "worker.remote", attribute.String("worker", r.name))
		var spanErr error
		defer func() { telemetry.End(span, spanErr) }()

		text := history.Render(req.History)
		if req.Context != "" {
			text = req.Context + "\n\n" + text
		}

		var parts []string
		for chunk, err := range r.transport.Send(ctx, RemoteRequest{ContextID: r.contextID, Text: text}) {
			if err != nil {
				if ctx.Err() != nil {
					spanErr = ctx.Err()
					yield(nil, ctx.Err())
					return
				}
				spanErr = err
				r.logger.Warn("remote worker unavailable", "worker", r.name, "error", err)
				yield(nil, &errorskg.RemoteWorkerUnavailable{Worker: r.name, Err: err})
				return
			}
			if strings.TrimSpace(chunk) == "" {
				continue
			}
			parts = append(parts, chunk)
		}
		if len(parts) == 0 {
			return
		}
		yield(message.NewAuthored(r.name, message.RoleAssistant, strings.Join(parts, "\n\n")), nil)
	}
}
