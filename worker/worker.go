// Package worker defines the participants of a conversation: local workers
// driven by a completion backend and remote workers reached over a transport.
package worker

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/sweetpotato0/ai-devteam/message"
)

var (
	// ErrDuplicateWorker is returned when two workers share a name.
	ErrDuplicateWorker = errors.New("duplicate worker name")
	// ErrInvalidWorker is returned for nil or unnamed workers.
	ErrInvalidWorker = errors.New("invalid worker")
)

// Request is the input of one worker turn.
type Request struct {
	// History is a snapshot; workers must not modify it.
	History []*message.Message
	// Context is optional extra guidance appended to the worker instructions.
	Context string
}

// Worker is implemented by every participant.
type Worker interface {
	Name() string
	Description() string
	// Respond produces the worker's turns. Iteration stops at the first error.
	Respond(ctx context.Context, req Request) iter.Seq2[*message.Message, error]
}

// Descriptor identifies a worker for selection prompts.
type Descriptor struct {
	Name        string
	Description string
}

// Describe returns the descriptor of w.
func Describe(w Worker) Descriptor {
	return Descriptor{Name: w.Name(), Description: w.Description()}
}

// Pool is an ordered set of uniquely named workers.
type Pool struct {
	workers []Worker
	byName  map[string]Worker
}

// NewPool builds a pool, preserving the given order.
func NewPool(workers ...Worker) (*Pool, error) {
	p := &Pool{byName: make(map[string]Worker, len(workers))}
	for _, w := range workers {
		if w == nil || strings.TrimSpace(w.Name()) == "" {
			return nil, ErrInvalidWorker
		}
		if _, ok := p.byName[w.Name()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateWorker, w.Name())
		}
		p.byName[w.Name()] = w
		p.workers = append(p.workers, w)
	}
	return p, nil
}

// Get looks a worker up by exact name.
func (p *Pool) Get(name string) (Worker, bool) {
	w, ok := p.byName[name]
	return w, ok
}

// Workers returns the workers in pool order.
func (p *Pool) Workers() []Worker {
	return append([]Worker(nil), p.workers...)
}

// Names returns worker names in pool order.
func (p *Pool) Names() []string {
	names := make([]string, len(p.workers))
	for i, w := range p.workers {
		names[i] = w.Name()
	}
	return names
}

// Descriptors returns the pool catalog in order.
func (p *Pool) Descriptors() []Descriptor {
	out := make([]Descriptor, len(p.workers))
	for i, w := range p.workers {
		out[i] = Describe(w)
	}
	return out
}

func (p *Pool) Len() int {
	return len(p.workers)
}

// Format renders the participant list used in selection prompts.
func (p *Pool) Format() string {
	return FormatDescriptors(p.Descriptors())
}

// FormatDescriptors renders one "- name: description" line per worker.
func FormatDescriptors(ds []Descriptor) string {
	var b strings.Builder
	for _, d := range ds {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
	}
	return b.String()
}
