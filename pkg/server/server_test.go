package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweetpotato0/ai-devteam/backend"
	"github.com/sweetpotato0/ai-devteam/backend/backendtest"
	"github.com/sweetpotato0/ai-devteam/config"
	"github.com/sweetpotato0/ai-devteam/pkg/logging"
	"github.com/sweetpotato0/ai-devteam/session"
	"github.com/sweetpotato0/ai-devteam/transcript"
)

func newServer(t *testing.T, client backend.Client) (*Server, *session.Registry) {
	t.Helper()
	deps := session.Dependencies{
		Agent: config.AgentConfig{
			MaximumIterations:         15,
			MaximumInvocationCount:    15,
			AutomaticReset:            true,
			HistorySummaryTargetCount: 1,
		},
		Client:  client,
		Archive: transcript.NewMemoryStore(),
		Logger:  logging.Discard(),
	}
	registry := session.NewRegistry(session.NewFactory(deps), session.WithLogger(logging.Discard()))
	return New(registry, WithLogger(logging.Discard())), registry
}

func do(t *testing.T, srv *Server, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

type frame struct {
	event string
	data  string
}

func frames(body string) []frame {
	var out []frame
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var f frame
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				f.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				f.data = strings.TrimPrefix(line, "data: ")
			}
		}
		out = append(out, f)
	}
	return out
}

func streamURL(id, msg, mode string) string {
	q := url.Values{}
	q.Set("sessionId", id)
	q.Set("message", msg)
	if mode != "" {
		q.Set("mode", mode)
	}
	return "/api/agent/stream?" + q.Encode()
}

func TestStreamSingleMode(t *testing.T) {
	srv, _ := newServer(t, backendtest.New(backendtest.Text("pong")))

	rec := do(t, srv, http.MethodGet, streamURL("s1", "ping", "tester"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	got := frames(rec.Body.String())
	require.Len(t, got, 2)
	assert.Empty(t, got[0].event)
	var turn Turn
	require.NoError(t, json.Unmarshal([]byte(got[0].data), &turn))
	assert.Equal(t, "Tester", turn.Author)
	assert.Equal(t, "pong", turn.Content)
	assert.Equal(t, frame{event: "done", data: "{}"}, got[1])
}

func TestStreamUnknownMode(t *testing.T) {
	client := backendtest.New()
	srv, _ := newServer(t, client)

	rec := do(t, srv, http.MethodGet, streamURL("s1", "hello", "poet"), "")
	got := frames(rec.Body.String())
	require.Len(t, got, 2)
	assert.Contains(t, got[0].data, `"content":"Unknown agent: poet"`)
	assert.Contains(t, got[0].data, `"author":"System"`)
	assert.Equal(t, "done", got[1].event)
	assert.Zero(t, client.Calls())
}

func TestStreamReportsErrorKindBeforeDone(t *testing.T) {
	// The manager picks a worker that does not exist.
	client := backendtest.New(backendtest.Decision("Designer", ""))
	srv, _ := newServer(t, client)

	rec := do(t, srv, http.MethodGet, streamURL("s1", "build X", ""), "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := frames(rec.Body.String())
	require.Len(t, got, 2)
	assert.Equal(t, "error", got[0].event)

	var se streamError
	require.NoError(t, json.Unmarshal([]byte(got[0].data), &se))
	assert.Equal(t, "selection", se.Kind)
	assert.Equal(t, "done", got[1].event)
}

func TestStreamValidation(t *testing.T) {
	srv, _ := newServer(t, backendtest.New())

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/agent/stream?message=hi", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/agent/stream?sessionId=s1", "").Code)
}

func TestStreamBusySessionIsConflict(t *testing.T) {
	client := backendtest.New(backendtest.Block())
	srv, registry := newServer(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest(http.MethodGet, streamURL("s1", "design", "architect"), nil).WithContext(ctx)
		srv.Handler().ServeHTTP(httptest.NewRecorder(), req)
	}()

	require.Eventually(t, func() bool {
		s, ok := registry.Get("s1")
		return ok && s.Busy()
	}, 5*time.Second, 5*time.Millisecond)

	rec := do(t, srv, http.MethodGet, streamURL("s1", "again", "architect"), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	cancel()
	<-done
}

func TestHistoryAndClear(t *testing.T) {
	srv, _ := newServer(t, backendtest.New(backendtest.Text("pong")))
	do(t, srv, http.MethodGet, streamURL("s1", "ping", "tester"), "")

	rec := do(t, srv, http.MethodGet, "/api/agent/history?sessionId=s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var turns []Turn
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turns))
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "pong", turns[1].Content)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodPost, "/api/agent/history/clear?sessionId=s1", "").Code)
	rec = do(t, srv, http.MethodGet, "/api/agent/history?sessionId=s1", "")
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestTranscripts(t *testing.T) {
	srv, _ := newServer(t, backendtest.New(backendtest.Text("pong")))

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/agent/transcripts?sessionId=s1", "").Code)

	do(t, srv, http.MethodGet, streamURL("s1", "ping", "tester"), "")
	rec := do(t, srv, http.MethodGet, "/api/agent/transcripts?sessionId=s1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []transcript.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "completed", records[0].State)
	assert.Equal(t, "ping", records[0].Request)
}

func TestWorkspaceEndpoints(t *testing.T) {
	srv, registry := newServer(t, backendtest.New())

	rec := do(t, srv, http.MethodPost, "/api/workspace/path", `{"sessionId":"s1","workspacePath":"/src/app"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodPost, "/api/workspace/activedocument", `{"sessionId":"s1","activeDocumentPath":"/src/app/main.go"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"workspacePath":"/src/app","activeDocumentPath":"/src/app/main.go"}`, rec.Body.String())

	s, ok := registry.Get("s1")
	require.True(t, ok)
	assert.Equal(t, session.Workspace{Path: "/src/app", ActiveDocument: "/src/app/main.go"}, s.Workspace())

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/workspace/path", `{"workspacePath":"/x"}`).Code)
}

func TestRemoveSession(t *testing.T) {
	srv, registry := newServer(t, backendtest.New())
	do(t, srv, http.MethodPost, "/api/workspace/path", `{"sessionId":"s1","workspacePath":"/x"}`)
	require.Equal(t, 1, registry.Len())

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/agent/session?sessionId=s1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/agent/session?sessionId=s1", "").Code)
	assert.Zero(t, registry.Len())
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t, backendtest.New())
	rec := do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, rec.Body.String())
}

func TestServeStopsWithContext(t *testing.T) {
	srv, _ := newServer(t, backendtest.New())
	ctx, cancel := context.WithCancel(context.Background())

	ln, err := Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
