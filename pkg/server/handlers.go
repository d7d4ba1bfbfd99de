package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	errorskg "github.com/sweetpotato0/ai-devteam/errors"
	"github.com/sweetpotato0/ai-devteam/message"
	"github.com/sweetpotato0/ai-devteam/session"
)

// Turn is the wire shape of one message.
type Turn struct {
	Author  string `json:"author"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

// WorkspaceRequest is the body of the workspace endpoints.
type WorkspaceRequest struct {
	SessionID          string `json:"sessionId"`
	WorkspacePath      string `json:"workspacePath"`
	ActiveDocumentPath string `json:"activeDocumentPath"`
}

type streamError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func toTurn(msg *message.Message) Turn {
	return Turn{Author: msg.Speaker(), Role: string(msg.Role), Content: msg.Content}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.registry.Len(),
	})
}

func sessionID(c echo.Context) (string, error) {
	id := strings.TrimSpace(c.QueryParam("sessionId"))
	if id == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "sessionId is required")
	}
	return id, nil
}

func (s *Server) lookup(c echo.Context, id string) (*session.Session, error) {
	sess, err := s.registry.GetOrCreate(c.Request().Context(), id)
	if err != nil {
		s.logger.Error("session unavailable", "session_id", id, "error", err)
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "session unavailable")
	}
	return sess, nil
}

// stream answers one request as server-sent events. Headers are written with
// the first frame so a busy session can still be reported as 409.
func (s *Server) stream(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	text := c.QueryParam("message")
	if strings.TrimSpace(text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	mode := c.QueryParam("mode")
	if mode == "" {
		mode = s.defaultMode
	}
	sess, err := s.lookup(c, id)
	if err != nil {
		return err
	}

	w := &sseWriter{c: c}
	for msg, runErr := range sess.Process(c.Request().Context(), text, mode) {
		if runErr != nil {
			if !w.started && errors.Is(runErr, errorskg.ErrSessionBusy) {
				return echo.NewHTTPError(http.StatusConflict, runErr.Error())
			}
			s.logger.Warn("stream ended with error", "session_id", id, "mode", mode, "error", runErr)
			if err := w.event("error", streamError{Error: runErr.Error(), Kind: errorskg.Kind(runErr)}); err != nil {
				return nil
			}
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if err := w.data(toTurn(msg)); err != nil {
			s.logger.Debug("client went away", "session_id", id, "error", err)
			return nil
		}
	}
	_ = w.event("done", struct{}{})
	return nil
}

type sseWriter struct {
	c       echo.Context
	started bool
}

func (w *sseWriter) start() {
	if w.started {
		return
	}
	w.started = true
	h := w.c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set(echo.HeaderCacheControl, "no-cache")
	h.Set(echo.HeaderConnection, "keep-alive")
	w.c.Response().WriteHeader(http.StatusOK)
}

func (w *sseWriter) data(v any) error {
	return w.write("", v)
}

func (w *sseWriter) event(name string, v any) error {
	return w.write(name, v)
}

func (w *sseWriter) write(event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.start()
	res := w.c.Response()
	if event != "" {
		if _, err := fmt.Fprintf(res, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(res, "data: %s\n\n", payload); err != nil {
		return err
	}
	res.Flush()
	return nil
}

func (s *Server) removeSession(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if !s.registry.Remove(id) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) history(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	turns := []Turn{}
	if sess, ok := s.registry.Get(id); ok {
		for _, msg := range sess.History() {
			turns = append(turns, toTurn(msg))
		}
	}
	return c.JSON(http.StatusOK, turns)
}

func (s *Server) clearHistory(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if sess, ok := s.registry.Get(id); ok {
		sess.ClearHistory()
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) transcripts(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	sess, ok := s.registry.Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	records, err := sess.Transcripts(c.Request().Context())
	if err != nil {
		s.logger.Error("list transcripts failed", "session_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list transcripts")
	}
	if records == nil {
		return c.JSON(http.StatusOK, []any{})
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) bindWorkspace(c echo.Context) (*session.Session, WorkspaceRequest, error) {
	var req WorkspaceRequest
	if err := c.Bind(&req); err != nil {
		return nil, req, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, req, echo.NewHTTPError(http.StatusBadRequest, "sessionId is required")
	}
	sess, err := s.lookup(c, req.SessionID)
	return sess, req, err
}

func (s *Server) setWorkspacePath(c echo.Context) error {
	sess, req, err := s.bindWorkspace(c)
	if err != nil {
		return err
	}
	sess.SetWorkspacePath(req.WorkspacePath)
	s.logger.Info("workspace path set", "session_id", req.SessionID, "path", req.WorkspacePath)
	return c.JSON(http.StatusOK, sess.Workspace())
}

func (s *Server) setActiveDocument(c echo.Context) error {
	sess, req, err := s.bindWorkspace(c)
	if err != nil {
		return err
	}
	sess.SetActiveDocument(req.ActiveDocumentPath)
	return c.JSON(http.StatusOK, sess.Workspace())
}
