// Package orchestration drives one request through a team or a single worker
// and streams the produced turns to the caller.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/sweetpotato0/ai-devteam/backend"
	"github.com/sweetpotato0/ai-devteam/bridge"
	errorskg "github.com/sweetpotato0/ai-devteam/errors"
	"github.com/sweetpotato0/ai-devteam/history"
	"github.com/sweetpotato0/ai-devteam/manager"
	"github.com/sweetpotato0/ai-devteam/message"
	"github.com/sweetpotato0/ai-devteam/pkg/logging"
	"github.com/sweetpotato0/ai-devteam/pkg/telemetry"
	"github.com/sweetpotato0/ai-devteam/worker"
)

// DefaultMaximumIterations is the team ceiling used when none is configured.
const DefaultMaximumIterations = 15

var (
	// ErrRunStarted is yielded when Start is called twice.
	ErrRunStarted = errors.New("orchestration: run already started")
	// ErrRunNotStarted is returned by Wait before Start.
	ErrRunNotStarted = errors.New("orchestration: run not started")
)

// State is the lifecycle of a run.
type State int32

const (
	Created State = iota
	Running
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// Task is the request a run works on.
type Task struct {
	// Request is the raw request text used in manager prompts.
	Request string
	// Message is the request turn recorded first. It defaults to a user turn
	// carrying Request.
	Message *message.Message
}

func (t Task) turn() *message.Message {
	if t.Message != nil {
		return t.Message
	}
	return message.NewMessage(message.RoleUser, t.Request)
}

// Run is single use.
type Run struct {
	task          Task
	pool          *worker.Pool
	single        worker.Worker
	client        backend.Client
	history       *history.History
	// view is what the manager and workers read. Team runs start it empty so
	// earlier runs reach them only through the request's summary.
	view          *history.History
	bridge        *bridge.Bridge
	maxIterations int
	logger        *slog.Logger

	state    atomic.Int32
	started  atomic.Bool
	finished chan struct{}

	mu     sync.Mutex
	err    error
	result string
	forced bool
}

// Option configures a Run.
type Option func(*Run)

// WithMaximumIterations sets the team ceiling.
func WithMaximumIterations(n int) Option {
	return func(r *Run) {
		r.maxIterations = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Run) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Team creates a run in which the turn manager picks speakers from pool until
// the conversation terminates. Turns are recorded into h, but the team only
// sees the turns of this run, starting with the request.
func Team(task Task, pool *worker.Pool, client backend.Client, h *history.History, opts ...Option) (*Run, error) {
	if pool == nil || pool.Len() == 0 {
		return nil, fmt.Errorf("%w: team run needs at least one worker", errorskg.ErrInvalidInput)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: team run needs a completion client", errorskg.ErrInvalidInput)
	}
	r := newRun(task, h, history.New(), opts...)
	r.pool = pool
	r.client = client
	if r.maxIterations < manager.MinIterations || r.maxIterations > manager.MaxIterations {
		return nil, fmt.Errorf("%w: maximum iterations must be between %d and %d, got %d",
			errorskg.ErrInvalidInput, manager.MinIterations, manager.MaxIterations, r.maxIterations)
	}
	return r, nil
}

// Single creates a run with exactly one worker invocation. The worker sees
// the whole of h.
func Single(task Task, w worker.Worker, h *history.History, opts ...Option) (*Run, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: single run needs a worker", errorskg.ErrInvalidInput)
	}
	r := newRun(task, h, nil, opts...)
	r.single = w
	return r, nil
}

func newRun(task Task, h, view *history.History, opts ...Option) *Run {
	if h == nil {
		h = history.New()
	}
	recorders := []*history.History{h}
	if view == nil {
		view = h
	} else {
		recorders = append(recorders, view)
	}
	r := &Run{
		task:          task,
		history:       h,
		view:          view,
		bridge:        bridge.New(recorders...),
		maxIterations: DefaultMaximumIterations,
		logger:        logging.WithComponent("orchestration"),
		finished:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current lifecycle state.
func (r *Run) State() State {
	return State(r.state.Load())
}

// Err is the terminal error, nil unless Failed or Cancelled.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Result is the final answer: the filtered team result, or the last turn of
// a single-worker run.
func (r *Run) Result() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Forced reports whether the iteration ceiling ended the conversation.
func (r *Run) Forced() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forced
}

// History is the history the run records into. The request turn is recorded
// there but never streamed back.
func (r *Run) History() *history.History {
	return r.history
}

// Wait blocks until both the producer and the consumer are done.
func (r *Run) Wait() error {
	if !r.started.Load() {
		return ErrRunNotStarted
	}
	<-r.finished
	return r.Err()
}

// Start launches the producer and returns the stream of produced turns. A
// failure or cancellation is yielded as the final element. Breaking out of
// the loop cancels the run.
func (r *Run) Start(ctx context.Context) iter.Seq2[*message.Message, error] {
	return func(yield func(*message.Message, error) bool) {
		if !r.started.CompareAndSwap(false, true) {
			yield(nil, ErrRunStarted)
			return
		}
		r.state.Store(int32(Running))

		runCtx, cancel := context.WithCancel(ctx)
		var g errgroup.Group
		g.Go(func() error {
			r.produce(runCtx)
			return nil
		})
		defer func() {
			cancel()
			_ = g.Wait()
			close(r.finished)
		}()

		for msg, err := range r.bridge.Drain(ctx) {
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					err = errorskg.ErrRunCancelled
				}
				yield(nil, err)
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

func (r *Run) produce(ctx context.Context) {
	mode := "team"
	if r.single != nil {
		mode = "single"
	}
	ctx, span := telemetry.Start(ctx, "orchestration.run", attribute.String("mode", mode))

	var err error
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("run panicked", "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", p)
		}
		err = r.finish(ctx, err)
		telemetry.End(span, err)
	}()

	if r.single != nil {
		err = r.runSingle(ctx)
	} else {
		err = r.runTeam(ctx)
	}
}

// finish records the terminal state and completes the bridge.
func (r *Run) finish(ctx context.Context, err error) error {
	var state State
	switch {
	case err == nil:
		state = Completed
	case ctx.Err() != nil, errors.Is(err, context.Canceled), errors.Is(err, errorskg.ErrRunCancelled):
		state = Cancelled
		err = errorskg.ErrRunCancelled
	default:
		state = Failed
		if !errorskg.Classified(err) {
			err = &errorskg.RunFailed{Err: err}
		}
		r.logger.Error("run failed", "error", err, "kind", errorskg.Kind(err))
	}

	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	r.state.Store(int32(state))
	r.bridge.Complete(err)
	r.logger.Debug("run finished", "state", state)
	return err
}

func (r *Run) runTeam(ctx context.Context) error {
	if err := r.bridge.Record(r.task.turn()); err != nil {
		return err
	}
	mgr, err := manager.New(r.task.Request, r.client, r.maxIterations, manager.WithLogger(r.logger))
	if err != nil {
		return err
	}
	descriptors := r.pool.Descriptors()

	var verdict manager.Verdict
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, err := mgr.SelectNext(ctx, r.view.Messages(), descriptors)
		if err != nil {
			return err
		}
		w, _ := r.pool.Get(name)
		if err := r.contribute(ctx, w); err != nil {
			return err
		}
		if err := mgr.Contributed(); err != nil {
			return err
		}
		verdict, err = mgr.ShouldTerminate(ctx, r.view.Messages())
		if err != nil {
			return err
		}
		if verdict.Terminate {
			break
		}
	}
	r.logger.Info("conversation terminated", "iterations", mgr.Invocations(), "forced", verdict.Forced, "reason", verdict.Reason)

	result, err := mgr.FilterFinalResult(ctx, r.view.Messages())
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.result, r.forced = result, verdict.Forced
	r.mu.Unlock()
	if strings.TrimSpace(result) == "" {
		return nil
	}
	return r.bridge.Publish(ctx, message.NewAuthored(manager.Name, message.RoleAssistant, result))
}

func (r *Run) runSingle(ctx context.Context) error {
	if err := r.bridge.Record(r.task.turn()); err != nil {
		return err
	}
	return r.contribute(ctx, r.single)
}

// contribute publishes every turn of one worker invocation.
func (r *Run) contribute(ctx context.Context, w worker.Worker) error {
	for msg, err := range w.Respond(ctx, worker.Request{History: r.view.Messages()}) {
		if err != nil {
			return err
		}
		if err := r.bridge.Publish(ctx, msg); err != nil {
			return err
		}
		if r.single != nil {
			r.mu.Lock()
			r.result = msg.Content
			r.mu.Unlock()
		}
	}
	return nil
}
