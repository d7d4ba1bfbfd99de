// Package manager decides who speaks next in a team conversation and when the
// conversation is over.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sweetpotato0/ai-devteam/backend"
	errorskg "github.com/sweetpotato0/ai-devteam/errors"
	"github.com/sweetpotato0/ai-devteam/message"
	"github.com/sweetpotato0/ai-devteam/pkg/logging"
	"github.com/sweetpotato0/ai-devteam/pkg/telemetry"
	"github.com/sweetpotato0/ai-devteam/worker"
)

// Iteration ceiling bounds.
const (
	MinIterations = 1
	MaxIterations = 50
)

var (
	// ErrOutOfOrder is returned when an operation is called in the wrong state.
	ErrOutOfOrder = errors.New("manager: operation not allowed in current state")
	// ErrAlreadyFiltered is returned by a second FilterFinalResult.
	ErrAlreadyFiltered = errors.New("manager: final result already produced")
)

// State of the turn-taking cycle.
type State int

const (
	AwaitingSelection State = iota
	AwaitingContribution
	AwaitingTerminationCheck
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingSelection:
		return "awaiting_selection"
	case AwaitingContribution:
		return "awaiting_contribution"
	case AwaitingTerminationCheck:
		return "awaiting_termination_check"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Verdict is the outcome of a termination check.
type Verdict struct {
	Terminate bool
	Reason    string
	// Forced is set when the iteration ceiling ended the conversation.
	Forced bool
}

// Manager is single use: create one per run.
type Manager struct {
	request       string
	client        backend.Client
	maxIterations int
	logger        *slog.Logger

	mu          sync.Mutex
	state       State
	invocations int
	filtered    bool
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a manager for request. maxIterations is the hard stop and must
// lie in [MinIterations, MaxIterations].
func New(request string, client backend.Client, maxIterations int, opts ...Option) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: manager requires a completion client", errorskg.ErrInvalidInput)
	}
	if maxIterations < MinIterations || maxIterations > MaxIterations {
		return nil, fmt.Errorf("%w: maximum iterations must be between %d and %d, got %d",
			errorskg.ErrInvalidInput, MinIterations, MaxIterations, maxIterations)
	}
	m := &Manager{
		request:       request,
		client:        client,
		maxIterations: maxIterations,
		logger:        logging.WithComponent("manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Invocations reports how many termination checks ran.
func (m *Manager) Invocations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invocations
}

func (m *Manager) expect(s State) error {
	if m.state != s {
		return fmt.Errorf("%w: expected %s, in %s", ErrOutOfOrder, s, m.state)
	}
	return nil
}

// SelectNext asks the backend which worker speaks next. The answer must name
// a worker from descriptors.
func (m *Manager) SelectNext(ctx context.Context, history []*message.Message, descriptors []worker.Descriptor) (string, error) {
	m.mu.Lock()
	if err := m.expect(AwaitingSelection); err != nil {
		m.mu.Unlock()
		return "", err
	}
	m.mu.Unlock()

	ctx, span := telemetry.Start(ctx, "manager.select")
	decision, err := backend.Decide(ctx, m.client, history, selectionPrompt(m.request, worker.FormatDescriptors(descriptors)))
	if err != nil {
		telemetry.End(span, err)
		return "", err
	}
	name, ok := match(decision.Value, descriptors)
	if !ok {
		err := &errorskg.SelectionError{Name: decision.Value, Candidates: names(descriptors)}
		telemetry.End(span, err)
		return "", err
	}
	span.SetAttributes(attribute.String("worker", name))
	telemetry.End(span, nil)

	m.mu.Lock()
	m.state = AwaitingContribution
	m.mu.Unlock()
	m.logger.Debug("next speaker selected", "worker", name, "reason", decision.Reason)
	return name, nil
}

// Contributed records that the selected worker finished its turn.
func (m *Manager) Contributed() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.expect(AwaitingContribution); err != nil {
		return err
	}
	m.state = AwaitingTerminationCheck
	return nil
}

// ShouldTerminate counts one iteration, applies the local ceiling and only
// otherwise asks the backend.
func (m *Manager) ShouldTerminate(ctx context.Context, history []*message.Message) (Verdict, error) {
	m.mu.Lock()
	if err := m.expect(AwaitingTerminationCheck); err != nil {
		m.mu.Unlock()
		return Verdict{}, err
	}
	m.invocations++
	n := m.invocations
	if n >= m.maxIterations {
		m.state = Terminated
		m.mu.Unlock()
		m.logger.Info("maximum iterations reached", "iterations", n)
		return Verdict{Terminate: true, Forced: true, Reason: fmt.Sprintf("maximum iterations (%d) reached", m.maxIterations)}, nil
	}
	m.mu.Unlock()

	ctx, span := telemetry.Start(ctx, "manager.terminate", attribute.Int("iteration", n))
	decision, err := backend.Decide(ctx, m.client, history, terminationPrompt(m.request))
	if err == nil {
		var done bool
		done, err = decision.Bool()
		if err == nil {
			telemetry.End(span, nil)
			m.mu.Lock()
			if done {
				m.state = Terminated
			} else {
				m.state = AwaitingSelection
			}
			m.mu.Unlock()
			m.logger.Debug("termination checked", "iteration", n, "terminate", done, "reason", decision.Reason)
			return Verdict{Terminate: done, Reason: decision.Reason}, nil
		}
	}
	telemetry.End(span, err)
	return Verdict{}, err
}

// FilterFinalResult produces the final answer. It runs once, after the
// conversation terminated.
func (m *Manager) FilterFinalResult(ctx context.Context, history []*message.Message) (string, error) {
	m.mu.Lock()
	if err := m.expect(Terminated); err != nil {
		m.mu.Unlock()
		return "", err
	}
	if m.filtered {
		m.mu.Unlock()
		return "", ErrAlreadyFiltered
	}
	m.filtered = true
	m.mu.Unlock()

	ctx, span := telemetry.Start(ctx, "manager.filter")
	decision, err := backend.Decide(ctx, m.client, history, filterPrompt(m.request))
	telemetry.End(span, err)
	if err != nil {
		return "", err
	}
	return decision.Value, nil
}

// match resolves answer against the catalog: exact name first, then a
// case-insensitive match with quotes and whitespace trimmed.
func match(answer string, descriptors []worker.Descriptor) (string, bool) {
	for _, d := range descriptors {
		if d.Name == answer {
			return d.Name, true
		}
	}
	cleaned := strings.Trim(strings.TrimSpace(answer), "\"'`")
	cleaned = strings.TrimSpace(cleaned)
	for _, d := range descriptors {
		if strings.EqualFold(d.Name, cleaned) {
			return d.Name, true
		}
	}
	return "", false
}

func names(descriptors []worker.Descriptor) []string {
	out := make([]string, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.Name
	}
	return out
}
