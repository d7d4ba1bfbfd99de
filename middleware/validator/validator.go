// Package validator rejects malformed completion requests before they reach
// a provider.
package validator

import (
	"fmt"
	"strings"

	"github.com/sweetpotato0/ai-devteam/backend"
	errorskg "github.com/sweetpotato0/ai-devteam/errors"
	"github.com/sweetpotato0/ai-devteam/middleware"
)

// ValidatorFunc inspects a request.
type ValidatorFunc func(*backend.Request) error

// RequestValidator runs a ValidatorFunc before the call proceeds.
type RequestValidator struct {
	validator ValidatorFunc
}

// NewRequestValidator creates a validation middleware. A nil validator uses
// NonEmpty.
func NewRequestValidator(validator ValidatorFunc) *RequestValidator {
	if validator == nil {
		validator = NonEmpty
	}
	return &RequestValidator{validator: validator}
}

func (m *RequestValidator) Name() string {
	return "RequestValidator"
}

func (m *RequestValidator) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if err := m.validator(ctx.Request); err != nil {
		return fmt.Errorf("%s request: %w", ctx.Worker, err)
	}
	return next(ctx)
}

// NonEmpty requires at least one message and no blank tool names.
func NonEmpty(req *backend.Request) error {
	if req == nil || len(req.Messages) == 0 {
		return fmt.Errorf("%w: no messages", errorskg.ErrInvalidInput)
	}
	for i, msg := range req.Messages {
		if msg == nil {
			return fmt.Errorf("%w: message %d is nil", errorskg.ErrInvalidInput, i)
		}
	}
	for _, t := range req.Tools {
		if t == nil || strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("%w: tool without a name", errorskg.ErrInvalidInput)
		}
	}
	return nil
}
