// Package errorhandler rewrites errors returned by completion calls.
package errorhandler

import (
	"context"
	"errors"
	"fmt"

	errorskg "github.com/sweetpotato0/ai-devteam/errors"
	"github.com/sweetpotato0/ai-devteam/middleware"
)

// HandlerFunc maps a failed call to the error the worker should see.
// Returning nil suppresses the failure.
type HandlerFunc func(ctx *middleware.Context, err error) error

// ErrorHandler handles errors raised further down the chain.
type ErrorHandler struct {
	handler HandlerFunc
}

// NewErrorHandler creates an error handling middleware. A nil handler uses
// Annotate.
func NewErrorHandler(handler HandlerFunc) *ErrorHandler {
	if handler == nil {
		handler = Annotate
	}
	return &ErrorHandler{handler: handler}
}

func (m *ErrorHandler) Name() string {
	return "ErrorHandler"
}

func (m *ErrorHandler) Execute(ctx *middleware.Context, next middleware.Handler) error {
	err := next(ctx)
	if err == nil {
		return nil
	}
	return m.handler(ctx, err)
}

// Annotate prefixes provider failures with the calling worker. Cancellation
// and already classified errors pass through untouched.
func Annotate(ctx *middleware.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errorskg.Classified(err) {
		return err
	}
	return fmt.Errorf("%s completion failed: %w", ctx.Worker, err)
}
