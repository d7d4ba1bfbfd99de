// Package mcp exposes Model Context Protocol servers as tool providers for
// local workers.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sweetpotato0/ai-devteam/pkg/logging"
	"github.com/sweetpotato0/ai-devteam/tool"
)

// ErrClientClosed is returned when the MCP session has been closed.
var ErrClientClosed = errors.New("mcp client closed")

// Config describes how to reach one MCP server. A Command selects the stdio
// transport, otherwise Endpoint selects streamable HTTP.
type Config struct {
	Name     string   `mapstructure:"name"`
	Command  string   `mapstructure:"command"`
	Args     []string `mapstructure:"args"`
	Env      []string `mapstructure:"env"`
	Endpoint string   `mapstructure:"endpoint"`
}

// Provider implements tool.Provider on top of an MCP client session. The tool
// list is cached until the server announces a change.
type Provider struct {
	name    string
	session *sdkmcp.ClientSession
	logger  *slog.Logger

	mu    sync.Mutex
	tools []*tool.Tool
	stale bool

	closeOnce sync.Once
	closeErr  error
}

// Connect opens a session to the configured server and lists its tools once
// to fail fast on misconfiguration.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = logging.WithComponent("mcp")
	}
	name := cfg.Name
	if name == "" {
		name = firstNonEmpty(cfg.Command, cfg.Endpoint)
	}
	p := &Provider{name: name, logger: logger.With("server", name), stale: true}

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "ai-devteam", Version: "0.1.0"}, &sdkmcp.ClientOptions{
		ToolListChangedHandler: func(context.Context, *sdkmcp.ToolListChangedRequest) {
			p.mu.Lock()
			p.stale = true
			p.mu.Unlock()
		},
	})

	var transport sdkmcp.Transport
	switch {
	case strings.TrimSpace(cfg.Command) != "":
		cmd := exec.Command(cfg.Command, cfg.Args...)
		if len(cfg.Env) > 0 {
			cmd.Env = append(os.Environ(), cfg.Env...)
		}
		transport = &sdkmcp.CommandTransport{Command: cmd}
	case strings.TrimSpace(cfg.Endpoint) != "":
		transport = &sdkmcp.StreamableClientTransport{Endpoint: cfg.Endpoint}
	default:
		return nil, errors.New("mcp: command or endpoint is required")
	}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect %s: %w", name, err)
	}
	p.session = session

	if _, err := p.Tools(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	p.logger.Info("mcp server connected")
	return p, nil
}

// Tools returns the server's tools, refreshing the cache when it is stale.
func (p *Provider) Tools(ctx context.Context) ([]*tool.Tool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil, ErrClientClosed
	}
	if !p.stale {
		return p.tools, nil
	}

	var defs []*sdkmcp.Tool
	params := &sdkmcp.ListToolsParams{}
	for {
		res, err := p.session.ListTools(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("mcp: list tools on %s: %w", p.name, err)
		}
		defs = append(defs, res.Tools...)
		if res.NextCursor == "" {
			break
		}
		params.Cursor = res.NextCursor
	}

	p.tools = buildTools(defs, p.call)
	p.stale = false
	p.logger.Debug("mcp tools refreshed", "count", len(p.tools))
	return p.tools, nil
}

func (p *Provider) call(ctx context.Context, name string, args map[string]any) (string, error) {
	if p.session == nil {
		return "", ErrClientClosed
	}
	result, err := p.session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	text := normalizeContent(result.Content)
	if result.IsError {
		if text == "" {
			text = "tool returned error without message"
		}
		return "", &ToolError{Name: name, Message: text}
	}
	return text, nil
}

// Close terminates the MCP session.
func (p *Provider) Close() error {
	p.closeOnce.Do(func() {
		if p.session != nil {
			p.closeErr = p.session.Close()
		}
	})
	return p.closeErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
