// Package logger provides structured logging middlewares for completion calls.
package logger

import (
	"log/slog"
	"time"

	"github.com/sweetpotato0/ai-devteam/middleware"
)

// RequestLogger logs outgoing completion requests.
type RequestLogger struct {
	logger *slog.Logger
}

func NewRequestLogger(logger *slog.Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

func (m *RequestLogger) Name() string {
	return "RequestLogger"
}

func (m *RequestLogger) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if m.logger != nil && ctx.Request != nil {
		m.logger.Debug("completion request",
			"worker", ctx.Worker,
			"call_id", ctx.CallID(),
			"messages", len(ctx.Request.Messages),
			"tools", len(ctx.Request.Tools),
			"json", ctx.Request.JSON,
		)
	}
	return next(ctx)
}

// ResponseLogger logs completion results and their latency.
type ResponseLogger struct {
	logger *slog.Logger
}

func NewResponseLogger(logger *slog.Logger) *ResponseLogger {
	return &ResponseLogger{logger: logger}
}

func (m *ResponseLogger) Name() string {
	return "ResponseLogger"
}

func (m *ResponseLogger) Execute(ctx *middleware.Context, next middleware.Handler) error {
	start := time.Now()
	err := next(ctx)
	if m.logger == nil {
		return err
	}
	elapsed := time.Since(start)
	switch {
	case err != nil:
		m.logger.Warn("completion failed", "worker", ctx.Worker, "call_id", ctx.CallID(), "duration", elapsed, "error", err)
	case ctx.Response != nil:
		m.logger.Debug("completion response",
			"worker", ctx.Worker,
			"call_id", ctx.CallID(),
			"duration", elapsed,
			"content_length", len(ctx.Response.Content),
			"tool_calls", len(ctx.Response.ToolCalls),
		)
	}
	return err
}
