// Package session keeps per-user conversation state and turns requests into
// orchestration runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sweetpotato0/ai-devteam/backend"
	"github.com/sweetpotato0/ai-devteam/config"
	errorskg "github.com/sweetpotato0/ai-devteam/errors"
	"github.com/sweetpotato0/ai-devteam/history"
	"github.com/sweetpotato0/ai-devteam/message"
	"github.com/sweetpotato0/ai-devteam/middleware"
	"github.com/sweetpotato0/ai-devteam/orchestration"
	"github.com/sweetpotato0/ai-devteam/pkg/logging"
	"github.com/sweetpotato0/ai-devteam/reducer"
	"github.com/sweetpotato0/ai-devteam/tool"
	"github.com/sweetpotato0/ai-devteam/tool/workspace"
	"github.com/sweetpotato0/ai-devteam/transcript"
	"github.com/sweetpotato0/ai-devteam/worker"
)

// Mode selects who answers a request.
type Mode string

const (
	ModeArchitect Mode = "architect"
	ModeCoder     Mode = "coder"
	ModeTester    Mode = "tester"
	ModeDevTeam   Mode = "devteam"
)

// State represents the state of a session
type State string

const (
	StateActive State = "active"
	StateClosed State = "closed"
)

var (
	// ErrClosed is returned for requests to a removed session.
	ErrClosed = errors.New("session is closed")
	// ErrTeamHalted is returned for team requests after a run stopped at the
	// iteration ceiling while automatic reset is off.
	ErrTeamHalted = errors.New("team stopped at the iteration limit; clear the history to continue")
)

// archiveTimeout bounds the best-effort transcript save after a run.
const archiveTimeout = 10 * time.Second

// Dependencies are shared by every session a registry creates.
type Dependencies struct {
	Agent  config.AgentConfig
	Client backend.Client
	// Transport reaches the remote developer agent. Nil selects the local
	// Developer role.
	Transport worker.Transport
	// Tools are external tool providers, such as MCP servers, offered to
	// local workers next to the workspace tools.
	Tools      []tool.Provider
	Counter    reducer.Counter
	Archive    transcript.Store
	Middleware *middleware.MiddlewareChain
	Logger     *slog.Logger
}

// Session is one user's conversation. At most one run is active at a time.
type Session struct {
	id      string
	deps    Dependencies
	history *history.History
	reducer *reducer.Reducer
	remote  *worker.Remote
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	workspace Workspace
	busy      bool
	halted    bool
	createdAt time.Time
	updatedAt time.Time
}

// New creates a session.
func New(id string, deps Dependencies) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session id is required", errorskg.ErrInvalidInput)
	}
	if deps.Client == nil {
		return nil, fmt.Errorf("%w: session needs a completion client", errorskg.ErrInvalidInput)
	}
	if deps.Logger == nil {
		deps.Logger = logging.WithComponent("session")
	}
	if deps.Archive == nil {
		deps.Archive = transcript.Discard{}
	}
	if deps.Agent.MaximumIterations == 0 {
		deps.Agent.MaximumIterations = orchestration.DefaultMaximumIterations
	}
	if deps.Agent.HistorySummaryTargetCount < 1 {
		deps.Agent.HistorySummaryTargetCount = 1
	}
	logger := deps.Logger.With("session_id", id)

	reducerOpts := []reducer.Option{reducer.WithLogger(logger)}
	if deps.Counter != nil && deps.Agent.SummaryTokenThreshold > 0 {
		reducerOpts = append(reducerOpts, reducer.WithThreshold(deps.Counter, deps.Agent.SummaryTokenThreshold))
	}

	s := &Session{
		id:        id,
		deps:      deps,
		history:   history.New(),
		reducer:   reducer.New(deps.Client, reducerOpts...),
		logger:    logger,
		state:     StateActive,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	if deps.Transport != nil {
		s.remote = worker.NewRemote(worker.DeveloperName, worker.Developer.Description, deps.Transport, logger)
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether a run is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Close rejects further requests. A run already in flight finishes.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
	s.updatedAt = time.Now()
}

// Workspace returns the current workspace values.
func (s *Session) Workspace() Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspace
}

// SetWorkspacePath updates the workspace root used by later runs.
func (s *Session) SetWorkspacePath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspace.Path = path
	s.updatedAt = time.Now()
}

// SetActiveDocument updates the active document shown to later runs.
func (s *Session) SetActiveDocument(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspace.ActiveDocument = path
	s.updatedAt = time.Now()
}

// History returns a copy of every recorded turn.
func (s *Session) History() []*message.Message {
	return s.history.Messages()
}

// ClearHistory drops the conversation and lifts a ceiling halt.
func (s *Session) ClearHistory() {
	s.history.Clear()
	s.mu.Lock()
	s.halted = false
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.logger.Info("chat history cleared")
}

// Transcripts lists archived runs of this session.
func (s *Session) Transcripts(ctx context.Context) ([]*transcript.Record, error) {
	return s.deps.Archive.List(ctx, s.id)
}

// Process answers text in the given mode and streams the produced turns. A
// failure is yielded as the last element. Requests while another run is
// active are rejected with ErrSessionBusy.
func (s *Session) Process(ctx context.Context, text, mode string) iter.Seq2[*message.Message, error] {
	return func(yield func(*message.Message, error) bool) {
		m := Mode(strings.ToLower(strings.TrimSpace(mode)))
		if !known(m) {
			s.logger.Warn("unknown mode requested", "mode", mode)
			yield(message.NewSystem("Unknown agent: "+mode), nil)
			return
		}

		if err := s.acquire(m); err != nil {
			yield(nil, err)
			return
		}
		defer s.release()

		ws := s.Workspace()
		s.logger.Info("processing request", "mode", m, "workspace", ws.Path)

		run, err := s.newRun(ctx, m, text, ws)
		if err != nil {
			s.logger.Error("run setup failed", "mode", m, "error", err)
			yield(nil, err)
			return
		}

		record := transcript.New(s.id, string(m), text)
		defer func() { s.archive(ctx, record, run) }()

		for msg, err := range run.Start(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			record.Turns = append(record.Turns, msg)
			if !yield(msg, nil) {
				return
			}
		}
	}
}

func known(m Mode) bool {
	switch m {
	case ModeArchitect, ModeCoder, ModeTester, ModeDevTeam:
		return true
	}
	return false
}

func (s *Session) acquire(m Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == StateClosed:
		return ErrClosed
	case s.busy:
		return errorskg.ErrSessionBusy
	case m == ModeDevTeam && s.halted:
		return ErrTeamHalted
	}
	s.busy = true
	s.updatedAt = time.Now()
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) newRun(ctx context.Context, m Mode, text string, ws Workspace) (*orchestration.Run, error) {
	opts := []orchestration.Option{orchestration.WithLogger(s.logger)}

	if m == ModeDevTeam {
		summary, err := s.summary(ctx)
		if err != nil {
			return nil, err
		}
		pool, err := s.team(ctx, ws)
		if err != nil {
			return nil, err
		}
		task := orchestration.Task{
			Request: text,
			Message: message.NewMessage(message.RoleUser, teamMessage(ws, summary, text)),
		}
		opts = append(opts, orchestration.WithMaximumIterations(s.deps.Agent.MaximumIterations))
		return orchestration.Team(task, pool, s.deps.Client, s.history, opts...)
	}

	w, err := s.single(ctx, m, ws)
	if err != nil {
		return nil, err
	}
	task := orchestration.Task{
		Request: text,
		Message: message.NewMessage(message.RoleUser, singleMessage(ws, text)),
	}
	return orchestration.Single(task, w, s.history, opts...)
}

func (s *Session) summary(ctx context.Context) (string, error) {
	if s.history.Len() == 0 {
		return "", nil
	}
	res, err := s.reducer.Reduce(ctx, s.history, s.deps.Agent.HistorySummaryTargetCount)
	if err != nil {
		return "", fmt.Errorf("summarize history: %w", err)
	}
	return res.Summary, nil
}

// tools binds the workspace tools to the run's snapshot.
func (s *Session) tools(ctx context.Context, ws Workspace) (*tool.Registry, error) {
	return tool.Collect(ctx, workspace.Tools(ws.Path), s.deps.Tools...)
}

func (s *Session) local(role worker.Role, reg *tool.Registry) worker.Worker {
	return worker.NewRole(role, s.deps.Client,
		worker.WithTools(reg),
		worker.WithMaxInvocations(s.deps.Agent.MaximumInvocationCount),
		worker.WithMiddleware(s.deps.Middleware),
		worker.WithLogger(s.logger),
	)
}

func (s *Session) developer(reg *tool.Registry) worker.Worker {
	if s.remote != nil {
		return s.remote
	}
	return s.local(worker.Developer, reg)
}

func (s *Session) team(ctx context.Context, ws Workspace) (*worker.Pool, error) {
	reg, err := s.tools(ctx, ws)
	if err != nil {
		return nil, err
	}
	return worker.NewPool(
		s.local(worker.Architect, reg),
		s.developer(reg),
		s.local(worker.Tester, reg),
	)
}

func (s *Session) single(ctx context.Context, m Mode, ws Workspace) (worker.Worker, error) {
	if m == ModeCoder && s.remote != nil {
		return s.remote, nil
	}
	reg, err := s.tools(ctx, ws)
	if err != nil {
		return nil, err
	}
	switch m {
	case ModeArchitect:
		return s.local(worker.Architect, reg), nil
	case ModeTester:
		return s.local(worker.Tester, reg), nil
	default:
		return s.developer(reg), nil
	}
}

// archive records the finished run. Failures are logged only.
func (s *Session) archive(ctx context.Context, record *transcript.Record, run *orchestration.Run) {
	err := run.Wait()
	if run.Forced() && !s.deps.Agent.AutomaticReset {
		s.mu.Lock()
		s.halted = true
		s.mu.Unlock()
		s.logger.Warn("team halted at iteration limit", "maximum_iterations", s.deps.Agent.MaximumIterations)
	}

	record.State = run.State().String()
	record.Result = run.Result()
	record.FinishedAt = time.Now()
	if err != nil {
		record.Error = err.Error()
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	if err := s.deps.Archive.Save(saveCtx, record); err != nil {
		s.logger.Warn("transcript save failed", "transcript_id", record.ID, "error", err)
	}
}
