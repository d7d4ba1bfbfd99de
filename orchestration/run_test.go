package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweetpotato0/ai-devteam/backend"
	"github.com/sweetpotato0/ai-devteam/backend/backendtest"
	errorskg "github.com/sweetpotato0/ai-devteam/errors"
	"github.com/sweetpotato0/ai-devteam/history"
	"github.com/sweetpotato0/ai-devteam/manager"
	"github.com/sweetpotato0/ai-devteam/message"
	"github.com/sweetpotato0/ai-devteam/pkg/logging"
	"github.com/sweetpotato0/ai-devteam/worker"
	"github.com/sweetpotato0/ai-devteam/worker/workertest"
)

// leader answers manager prompts: it always selects next, decides termination
// with done, and filters to result.
func leader(next string, done bool, result string) *backendtest.Client {
	return backendtest.New(func(ctx context.Context, req *backend.Request) (*message.Message, error) {
		prompt := req.Messages[len(req.Messages)-1].Content
		switch {
		case strings.Contains(prompt, "select the next team member"):
			return backendtest.Decision(next, "")(ctx, req)
		case strings.Contains(prompt, "reached a conclusion"):
			return backendtest.Decision(done, "")(ctx, req)
		default:
			return backendtest.Decision(result, "")(ctx, req)
		}
	})
}

func drain(t *testing.T, run *Run, ctx context.Context) ([]*message.Message, error) {
	t.Helper()
	var (
		out   []*message.Message
		final error
	)
	for msg, err := range run.Start(ctx) {
		if err != nil {
			final = err
			continue
		}
		out = append(out, msg)
	}
	return out, final
}

func teamPool(t *testing.T, workers ...worker.Worker) *worker.Pool {
	t.Helper()
	pool, err := worker.NewPool(workers...)
	require.NoError(t, err)
	return pool
}

func TestTeamCeilingRunsExactlyMaxCycles(t *testing.T) {
	dev := workertest.New("Developer", "working on it")
	run, err := Team(Task{Request: "build X"}, teamPool(t, dev, workertest.New("Tester")), leader("Developer", false, "summary"),
		history.New(), WithMaximumIterations(3), WithLogger(logging.Discard()))
	require.NoError(t, err)

	out, final := drain(t, run, context.Background())
	require.NoError(t, final)
	require.NoError(t, run.Wait())

	assert.Equal(t, 3, dev.Calls())
	assert.Equal(t, Completed, run.State())
	assert.True(t, run.Forced())
	assert.Equal(t, "summary", run.Result())

	// 3 contributions + final result; the request is recorded, not streamed
	require.Len(t, out, 4)
	assert.Equal(t, "working on it", out[0].Content)
	assert.Equal(t, manager.Name, out[3].Author)
	assert.Equal(t, 5, run.History().Len())
	assert.Equal(t, "build X", run.History().Messages()[0].Content)
}

func TestTeamTurnsStreamInOrder(t *testing.T) {
	dev := workertest.New("Developer", "step 1", "step 2", "step 3")
	h := history.New()
	run, err := Team(Task{Request: "build X", Message: message.NewMessage(message.RoleUser, "contextual build X")},
		teamPool(t, dev), leader("Developer", true, "done"), h, WithLogger(logging.Discard()))
	require.NoError(t, err)

	out, final := drain(t, run, context.Background())
	require.NoError(t, final)

	var contents []string
	for _, m := range out {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"step 1", "step 2", "step 3", "done"}, contents)

	recorded := h.Messages()
	require.Len(t, recorded, len(out)+1)
	assert.Equal(t, "contextual build X", recorded[0].Content)
	for i := range out {
		assert.Equal(t, out[i].ID, recorded[i+1].ID)
	}
	assert.False(t, run.Forced())
}

func TestTeamWorkerSeesHistory(t *testing.T) {
	dev := workertest.New("Developer", "ok")
	run, err := Team(Task{Request: "build X"}, teamPool(t, dev), leader("Developer", true, "done"), nil, WithLogger(logging.Discard()))
	require.NoError(t, err)

	_, final := drain(t, run, context.Background())
	require.NoError(t, final)

	reqs := dev.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].History, 1)
	assert.Equal(t, "build X", reqs[0].History[0].Content)
}

func TestTeamSeesOnlyItsOwnTurns(t *testing.T) {
	h := history.New()
	h.Append(
		message.NewMessage(message.RoleUser, "old request"),
		message.NewAuthored("Developer", message.RoleAssistant, "old answer"),
	)
	dev := workertest.New("Developer", "new answer")
	client := leader("Developer", true, "done")
	run, err := Team(Task{Request: "build Y"}, teamPool(t, dev), client, h, WithLogger(logging.Discard()))
	require.NoError(t, err)

	_, final := drain(t, run, context.Background())
	require.NoError(t, final)

	reqs := dev.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].History, 1)
	assert.Equal(t, "build Y", reqs[0].History[0].Content)

	for _, req := range client.Requests() {
		for _, msg := range req.Messages {
			assert.NotContains(t, msg.Content, "old request")
			assert.NotContains(t, msg.Content, "old answer")
		}
	}
	// The session history still receives every turn of the run.
	assert.Equal(t, 5, h.Len())
}

func TestCancellationCompletesWithRunCancelled(t *testing.T) {
	dev := &workertest.Fake{WorkerName: "Developer", Replies: []string{"thinking"}, Block: true}
	run, err := Team(Task{Request: "build X"}, teamPool(t, dev), leader("Developer", false, ""), nil, WithLogger(logging.Discard()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var (
		out   []*message.Message
		final error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg, err := range run.Start(ctx) {
			if err != nil {
				final = err
				continue
			}
			out = append(out, msg)
			if len(out) == 1 {
				cancel()
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
	assert.ErrorIs(t, final, errorskg.ErrRunCancelled)
	assert.Len(t, out, 1)
	assert.ErrorIs(t, run.Wait(), errorskg.ErrRunCancelled)
	assert.Equal(t, Cancelled, run.State())
}

func TestPanicFailsRun(t *testing.T) {
	dev := &workertest.Fake{WorkerName: "Developer", Panic: "kaboom"}
	run, err := Team(Task{Request: "build X"}, teamPool(t, dev), leader("Developer", true, ""), nil, WithLogger(logging.Discard()))
	require.NoError(t, err)

	_, final := drain(t, run, context.Background())
	var failed *errorskg.RunFailed
	require.ErrorAs(t, final, &failed)
	assert.Contains(t, failed.Error(), "kaboom")
	assert.Equal(t, Failed, run.State())
	assert.Equal(t, errorskg.KindFailed, errorskg.Kind(run.Wait()))
}

func TestSelectionErrorKeepsItsKind(t *testing.T) {
	run, err := Team(Task{Request: "build X"}, teamPool(t, workertest.New("Developer")), leader("Designer", false, ""), nil, WithLogger(logging.Discard()))
	require.NoError(t, err)

	_, final := drain(t, run, context.Background())
	var sel *errorskg.SelectionError
	require.ErrorAs(t, final, &sel)
	var failed *errorskg.RunFailed
	assert.False(t, errors.As(final, &failed))
	assert.Equal(t, Failed, run.State())
}

func TestWorkerErrorIsWrapped(t *testing.T) {
	boom := errors.New("disk full")
	dev := &workertest.Fake{WorkerName: "Developer", Err: boom}
	run, err := Team(Task{Request: "build X"}, teamPool(t, dev), leader("Developer", true, ""), nil, WithLogger(logging.Discard()))
	require.NoError(t, err)

	_, final := drain(t, run, context.Background())
	var failed *errorskg.RunFailed
	require.ErrorAs(t, final, &failed)
	assert.ErrorIs(t, final, boom)
}

func TestSinglePing(t *testing.T) {
	w := workertest.New("Tester", "pong")
	h := history.New()
	run, err := Single(Task{Request: "ping"}, w, h, WithLogger(logging.Discard()))
	require.NoError(t, err)

	out, final := drain(t, run, context.Background())
	require.NoError(t, final)

	assert.Equal(t, 1, w.Calls())
	require.Len(t, out, 1)
	assert.Equal(t, "pong", out[0].Content)
	assert.Equal(t, "pong", run.Result())
	assert.Equal(t, Completed, run.State())

	recorded := h.Messages()
	require.Len(t, recorded, 2)
	assert.Equal(t, "ping", recorded[0].Content)
}

func TestStartTwice(t *testing.T) {
	run, err := Single(Task{Request: "ping"}, workertest.New("Tester", "pong"), nil, WithLogger(logging.Discard()))
	require.NoError(t, err)
	assert.ErrorIs(t, run.Wait(), ErrRunNotStarted)

	_, final := drain(t, run, context.Background())
	require.NoError(t, final)

	_, final = drain(t, run, context.Background())
	assert.ErrorIs(t, final, ErrRunStarted)
}

func TestConsumerBreakCancelsProducer(t *testing.T) {
	dev := &workertest.Fake{WorkerName: "Developer", Replies: []string{"thinking"}, Block: true}
	run, err := Team(Task{Request: "build X"}, teamPool(t, dev), leader("Developer", false, ""), nil,
		WithMaximumIterations(50), WithLogger(logging.Discard()))
	require.NoError(t, err)

	for range run.Start(context.Background()) {
		break
	}

	waited := make(chan error, 1)
	go func() { waited <- run.Wait() }()
	select {
	case err := <-waited:
		assert.ErrorIs(t, err, errorskg.ErrRunCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("producer not awaited")
	}
	assert.Equal(t, Cancelled, run.State())
}

func TestConstructorValidation(t *testing.T) {
	_, err := Team(Task{}, nil, backendtest.New(), nil)
	assert.ErrorIs(t, err, errorskg.ErrInvalidInput)

	_, err = Team(Task{}, teamPool(t, workertest.New("Developer")), backendtest.New(), nil, WithMaximumIterations(51))
	assert.ErrorIs(t, err, errorskg.ErrInvalidInput)

	_, err = Single(Task{}, nil, nil)
	assert.ErrorIs(t, err, errorskg.ErrInvalidInput)
}
