// Package enricher attaches metadata to completion calls before they run.
package enricher

import (
	"github.com/google/uuid"

	"github.com/sweetpotato0/ai-devteam/middleware"
)

// EnricherFunc enriches the context
type EnricherFunc func(*middleware.Context) error

// ContextEnricher adds additional data to the middleware context
type ContextEnricher struct {
	enricher EnricherFunc
}

func NewContextEnricher(enricher EnricherFunc) *ContextEnricher {
	return &ContextEnricher{enricher: enricher}
}

func (m *ContextEnricher) Name() string {
	return "ContextEnricher"
}

func (m *ContextEnricher) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if ctx.Metadata == nil {
		ctx.Metadata = make(map[string]any)
	}
	if m.enricher != nil {
		if err := m.enricher(ctx); err != nil {
			return err
		}
	}
	return next(ctx)
}

// CallID tags each call with a fresh identifier so request and response log
// lines can be correlated.
func CallID(ctx *middleware.Context) error {
	ctx.Metadata[middleware.MetadataCallID] = uuid.NewString()
	return nil
}
