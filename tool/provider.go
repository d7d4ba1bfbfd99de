package tool

import (
	"context"
	"fmt"
)

// Provider supplies tools from an external source such as an MCP server.
type Provider interface {
	// Tools returns the provider's current tool definitions.
	Tools(ctx context.Context) ([]*Tool, error)
	// Close releases resources owned by the provider.
	Close() error
}

// Collect builds a registry from static tools plus everything the providers
// currently expose. Provider tools replace static tools of the same name.
func Collect(ctx context.Context, static []*Tool, providers ...Provider) (*Registry, error) {
	reg, err := NewRegistry(static...)
	if err != nil {
		return nil, err
	}
	for _, p := range providers {
		if p == nil {
			continue
		}
		tools, err := p.Tools(ctx)
		if err != nil {
			return nil, fmt.Errorf("load provider tools: %w", err)
		}
		for _, t := range tools {
			if err := reg.Upsert(t); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}
