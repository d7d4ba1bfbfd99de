// Package reducer condenses a conversation history into a short summary that
// fits into the next request's contextual message.
package reducer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sweetpotato0/ai-devteam/backend"
	"github.com/sweetpotato0/ai-devteam/history"
	"github.com/sweetpotato0/ai-devteam/message"
	"github.com/sweetpotato0/ai-devteam/pkg/logging"
)

// Counter estimates prompt tokens. contrib/tokenizer/tiktoken implements it.
type Counter interface {
	CountMessages(msgs []*message.Message) int
}

// Result is a reduced view of a history revision. Summary condenses every
// turn before Retained; Retained is the untouched tail in original order.
type Result struct {
	Summary  string
	Retained []*message.Message
	Revision uint64
	// Summarized is false when the history was small enough to be rendered
	// verbatim instead of summarized by the backend.
	Summarized bool
}

// Reducer caches the last result by history revision. Use one Reducer per
// History.
type Reducer struct {
	client    backend.Client
	counter   Counter
	threshold int
	logger    *slog.Logger

	mu     sync.Mutex
	cached *Result
	target int
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithThreshold skips backend summarization while the history counts fewer
// than threshold tokens. A zero threshold always summarizes.
func WithThreshold(counter Counter, threshold int) Option {
	return func(r *Reducer) {
		r.counter = counter
		r.threshold = threshold
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reducer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a reducer backed by client.
func New(client backend.Client, opts ...Option) *Reducer {
	r := &Reducer{
		client: client,
		logger: logging.WithComponent("reducer"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reduce summarizes the current content of h down to target turns: one
// summary plus target-1 retained turns. Repeated calls for an unchanged
// revision are answered from cache without calling the backend.
func (r *Reducer) Reduce(ctx context.Context, h *history.History, target int) (*Result, error) {
	if target < 1 {
		target = 1
	}
	msgs, rev := h.Snapshot()

	r.mu.Lock()
	if r.cached != nil && r.cached.Revision == rev && r.target == target {
		res := r.cached
		r.mu.Unlock()
		return res, nil
	}
	r.mu.Unlock()

	res, err := r.reduce(ctx, msgs, target)
	if err != nil {
		return nil, err
	}
	res.Revision = rev

	r.mu.Lock()
	r.cached, r.target = res, target
	r.mu.Unlock()
	return res, nil
}

// Summarize is Reduce for a plain snapshot, without caching.
func (r *Reducer) Summarize(ctx context.Context, msgs []*message.Message, target int) (*Result, error) {
	if target < 1 {
		target = 1
	}
	return r.reduce(ctx, message.CloneMessages(msgs), target)
}

func (r *Reducer) reduce(ctx context.Context, msgs []*message.Message, target int) (*Result, error) {
	if len(msgs) == 0 {
		return &Result{}, nil
	}

	keep := target - 1
	if keep > len(msgs) {
		keep = len(msgs)
	}
	head, tail := msgs[:len(msgs)-keep], msgs[len(msgs)-keep:]
	res := &Result{Retained: tail}
	if len(head) == 0 {
		return res, nil
	}

	if r.counter != nil && r.threshold > 0 {
		if n := r.counter.CountMessages(head); n < r.threshold {
			res.Summary = history.Render(head)
			return res, nil
		}
	}

	summary, err := backend.Summarize(ctx, r.client, head, target)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("history summarized", "turns", len(head), "retained", len(tail))
	res.Summary = summary
	res.Summarized = true
	return res, nil
}
