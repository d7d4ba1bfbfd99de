// Package middleware wraps completion calls made by local workers.
package middleware

import (
	"context"

	"github.com/sweetpotato0/ai-devteam/backend"
	"github.com/sweetpotato0/ai-devteam/message"
)

// MetadataCallID is the Metadata key holding the per-call correlation id.
const MetadataCallID = "call_id"

// Context carries one completion call through the chain.
type Context struct {
	// Worker is the name of the worker issuing the call.
	Worker string

	// Request sent to the backend. Middlewares may replace it before next.
	Request *backend.Request

	// Response from the backend, set once the final handler returns.
	Response *message.Message

	// Metadata for passing data between middlewares
	Metadata map[string]any

	context context.Context
}

// NewContext creates a middleware context for one call.
func NewContext(ctx context.Context, worker string, req *backend.Request) *Context {
	return &Context{
		Worker:   worker,
		Request:  req,
		Metadata: make(map[string]any),
		context:  ctx,
	}
}

// CallID returns the correlation id set by an enricher, if any.
func (c *Context) CallID() string {
	id, _ := c.Metadata[MetadataCallID].(string)
	return id
}

// Context returns the underlying context.Context
func (c *Context) Context() context.Context {
	if c.context == nil {
		return context.Background()
	}
	return c.context
}

// Middleware intercepts completion calls. Returning an error stops the chain.
type Middleware interface {
	Name() string
	Execute(ctx *Context, next Handler) error
}

// Handler passes control to the next middleware.
type Handler func(*Context) error

// Func adapts a function to Middleware.
type Func struct {
	ID string
	Fn func(ctx *Context, next Handler) error
}

func (f Func) Name() string { return f.ID }

func (f Func) Execute(ctx *Context, next Handler) error { return f.Fn(ctx, next) }

// MiddlewareChain runs middlewares in insertion order.
type MiddlewareChain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *MiddlewareChain {
	return &MiddlewareChain{middlewares: middlewares}
}

// Add appends a middleware to the chain
func (c *MiddlewareChain) Add(m Middleware) *MiddlewareChain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// Len reports the number of middlewares.
func (c *MiddlewareChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.middlewares)
}

// Execute runs all middlewares, then finalHandler.
func (c *MiddlewareChain) Execute(ctx *Context, finalHandler Handler) error {
	return c.executeMiddleware(ctx, 0, finalHandler)
}

func (c *MiddlewareChain) executeMiddleware(ctx *Context, index int, finalHandler Handler) error {
	if c == nil || index >= len(c.middlewares) {
		return finalHandler(ctx)
	}
	next := func(ctx *Context) error {
		return c.executeMiddleware(ctx, index+1, finalHandler)
	}
	return c.middlewares[index].Execute(ctx, next)
}

// Wrap returns a client whose Generate calls pass through chain.
func Wrap(client backend.Client, worker string, chain *MiddlewareChain) backend.Client {
	if chain.Len() == 0 {
		return client
	}
	return backend.ClientFunc(func(ctx context.Context, req *backend.Request) (*message.Message, error) {
		mctx := NewContext(ctx, worker, req)
		err := chain.Execute(mctx, func(c *Context) error {
			resp, err := client.Generate(c.Context(), c.Request)
			if err != nil {
				return err
			}
			c.Response = resp
			return nil
		})
		if err != nil {
			return nil, err
		}
		return mctx.Response, nil
	})
}
