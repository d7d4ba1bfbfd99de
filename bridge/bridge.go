// Package bridge hands turns from a background run to a single consumer, in
// order, while recording them in the conversation history.
package bridge

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/sweetpotato0/ai-devteam/history"
	"github.com/sweetpotato0/ai-devteam/message"
)

var (
	// ErrClosed is returned by Publish after Complete.
	ErrClosed = errors.New("bridge: closed")
	// ErrAlreadyDraining is yielded to a second consumer.
	ErrAlreadyDraining = errors.New("bridge: already draining")
)

// Bridge is an unbounded single-producer single-consumer queue. Publish never
// blocks on capacity.
type Bridge struct {
	histories []*history.History

	mu        sync.Mutex
	queue     []*message.Message
	completed bool
	err       error
	draining  bool

	// signal wakes the consumer; it holds at most one pending wake-up.
	signal   chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

// New creates a bridge recording every turn into each of hs. Nil histories
// are skipped.
func New(hs ...*history.History) *Bridge {
	b := &Bridge{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, h := range hs {
		if h != nil {
			b.histories = append(b.histories, h)
		}
	}
	return b
}

func (b *Bridge) append(turn *message.Message) {
	for _, h := range b.histories {
		h.Append(turn)
	}
}

// Publish appends turn to the histories and queues it for the consumer as one
// atomic step.
func (b *Bridge) Publish(ctx context.Context, turn *message.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if turn == nil {
		return nil
	}

	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.append(turn)
	b.queue = append(b.queue, message.Clone(turn))
	b.mu.Unlock()

	b.notify()
	return nil
}

// Record appends turn to the histories without streaming it. It shares the
// publish lock, so ordering with published turns is preserved.
func (b *Bridge) Record(turn *message.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.completed {
		return ErrClosed
	}
	if turn != nil {
		b.append(turn)
	}
	return nil
}

// Complete ends the stream. A non-nil err is delivered to the consumer after
// every queued turn. Only the first call has an effect.
func (b *Bridge) Complete(err error) {
	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		return
	}
	b.completed = true
	b.err = err
	b.mu.Unlock()

	b.notify()
}

// Completed reports whether Complete was called.
func (b *Bridge) Completed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed
}

// Done is closed once the consumer's drain has ended.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

func (b *Bridge) notify() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Drain yields queued turns in publish order until the bridge completes. The
// completion error, if any, is the last element. Only one drain is allowed.
func (b *Bridge) Drain(ctx context.Context) iter.Seq2[*message.Message, error] {
	return func(yield func(*message.Message, error) bool) {
		b.mu.Lock()
		if b.draining {
			b.mu.Unlock()
			yield(nil, ErrAlreadyDraining)
			return
		}
		b.draining = true
		b.mu.Unlock()
		defer b.doneOnce.Do(func() { close(b.done) })

		for {
			b.mu.Lock()
			batch := b.queue
			b.queue = nil
			completed, err := b.completed, b.err
			b.mu.Unlock()

			for _, turn := range batch {
				if !yield(turn, nil) {
					return
				}
			}
			if len(batch) > 0 {
				continue
			}
			if completed {
				if err != nil {
					yield(nil, err)
				}
				return
			}

			select {
			case <-b.signal:
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}
	}
}
