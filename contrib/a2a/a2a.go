// Package a2a implements worker.Transport over the Agent2Agent protocol.
package a2a

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"

	"github.com/sweetpotato0/ai-devteam/worker"
)

// Transport sends worker requests to a remote A2A agent.
type Transport struct {
	card   *a2a.AgentCard
	client *a2aclient.Client
}

// Dial resolves the agent card published at baseURL and connects to the
// agent it describes.
func Dial(ctx context.Context, baseURL string) (*Transport, error) {
	card, err := agentcard.DefaultResolver.Resolve(ctx, baseURL)
	if err != nil {
		return nil, fmt.Errorf("a2a: resolve agent card: %w", err)
	}
	client, err := a2aclient.NewFromCard(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("a2a: create client: %w", err)
	}
	return &Transport{card: card, client: client}, nil
}

// Name is the remote agent's advertised name.
func (t *Transport) Name() string { return t.card.Name }

// Description is the remote agent's advertised description.
func (t *Transport) Description() string { return t.card.Description }

// Send implements worker.Transport. The remote answer is delivered as one
// chunk per text part.
func (t *Transport) Send(ctx context.Context, req worker.RemoteRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: req.Text})
		msg.ContextID = req.ContextID

		result, err := t.client.SendMessage(ctx, &a2a.MessageSendParams{Message: msg})
		if err != nil {
			yield("", fmt.Errorf("a2a: send message: %w", err))
			return
		}
		chunks, err := resultText(result)
		if err != nil {
			yield("", err)
			return
		}
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

// Close releases the client.
func (t *Transport) Close() error {
	return t.client.Destroy()
}

func resultText(result a2a.SendMessageResult) ([]string, error) {
	switch v := result.(type) {
	case *a2a.Message:
		return partsText(v.Parts), nil
	case *a2a.Task:
		var status []string
		if v.Status.Message != nil {
			status = partsText(v.Status.Message.Parts)
		}
		switch v.Status.State {
		case a2a.TaskStateFailed, a2a.TaskStateRejected, a2a.TaskStateCanceled:
			reason := strings.Join(status, " ")
			if reason == "" {
				reason = string(v.Status.State)
			}
			return nil, fmt.Errorf("a2a: task %s: %s", v.Status.State, reason)
		}
		var out []string
		for _, artifact := range v.Artifacts {
			out = append(out, partsText(artifact.Parts)...)
		}
		if len(out) == 0 {
			out = status
		}
		return out, nil
	case nil:
		return nil, errors.New("a2a: empty result")
	default:
		return nil, fmt.Errorf("a2a: unexpected result %T", result)
	}
}

func partsText(parts []a2a.Part) []string {
	var out []string
	for _, p := range parts {
		switch tp := p.(type) {
		case a2a.TextPart:
			out = append(out, tp.Text)
		case *a2a.TextPart:
			out = append(out, tp.Text)
		}
	}
	return out
}
