// Package workertest provides fake workers for orchestration tests.
package workertest

import (
	"context"
	"iter"
	"sync"

	"github.com/sweetpotato0/ai-devteam/message"
	"github.com/sweetpotato0/ai-devteam/worker"
)

// Fake answers every request with fixed replies, or with Err.
type Fake struct {
	WorkerName string
	Desc       string
	Replies    []string
	Err        error
	// Block makes Respond wait for ctx cancellation after its replies.
	Block bool
	// Panic makes Respond panic with this value.
	Panic any

	mu       sync.Mutex
	requests []worker.Request
}

// New returns a fake worker replying with replies.
func New(name string, replies ...string) *Fake {
	return &Fake{WorkerName: name, Desc: name + " worker", Replies: replies}
}

func (f *Fake) Name() string        { return f.WorkerName }
func (f *Fake) Description() string { return f.Desc }

func (f *Fake) Respond(ctx context.Context, req worker.Request) iter.Seq2[*message.Message, error] {
	return func(yield func(*message.Message, error) bool) {
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		if f.Panic != nil {
			panic(f.Panic)
		}
		if f.Err != nil {
			yield(nil, f.Err)
			return
		}
		for _, r := range f.Replies {
			if !yield(message.NewAuthored(f.WorkerName, message.RoleAssistant, r), nil) {
				return
			}
		}
		if f.Block {
			<-ctx.Done()
			yield(nil, ctx.Err())
		}
	}
}

// Calls reports how many times Respond was iterated.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns the recorded requests.
func (f *Fake) Requests() []worker.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]worker.Request(nil), f.requests...)
}

// Transport is a scripted worker.Transport.
type Transport struct {
	Chunks []string
	Err    error

	mu   sync.Mutex
	sent []worker.RemoteRequest
}

func (t *Transport) Send(_ context.Context, req worker.RemoteRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		t.mu.Lock()
		t.sent = append(t.sent, req)
		t.mu.Unlock()
		if t.Err != nil {
			yield("", t.Err)
			return
		}
		for _, c := range t.Chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

// Sent returns the recorded requests.
func (t *Transport) Sent() []worker.RemoteRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]worker.RemoteRequest(nil), t.sent...)
}
