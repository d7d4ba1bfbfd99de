package root

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sweetpotato0/ai-devteam/config"
	"github.com/sweetpotato0/ai-devteam/contrib/a2a"
	"github.com/sweetpotato0/ai-devteam/contrib/provider"
	"github.com/sweetpotato0/ai-devteam/contrib/tokenizer/tiktoken"
	"github.com/sweetpotato0/ai-devteam/middleware"
	"github.com/sweetpotato0/ai-devteam/middleware/enricher"
	"github.com/sweetpotato0/ai-devteam/middleware/errorhandler"
	"github.com/sweetpotato0/ai-devteam/middleware/limiter"
	mwlogger "github.com/sweetpotato0/ai-devteam/middleware/logger"
	"github.com/sweetpotato0/ai-devteam/middleware/validator"
	"github.com/sweetpotato0/ai-devteam/pkg/telemetry"
	"github.com/sweetpotato0/ai-devteam/session"
	"github.com/sweetpotato0/ai-devteam/tool"
	"github.com/sweetpotato0/ai-devteam/tool/mcp"
	"github.com/sweetpotato0/ai-devteam/transcript/store"
)

// app owns every long-lived resource built from the configuration.
type app struct {
	cfg      *config.Config
	registry *session.Registry
	logger   *slog.Logger
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *app, err error) {
	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Telemetry.Environment,
		Disable:        cfg.Telemetry.Disable,
		Endpoint:       cfg.Telemetry.Endpoint,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	sel, err := provider.Select(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, sel.Close)

	deps := session.Dependencies{
		Agent:      cfg.Agent,
		Client:     sel.Client,
		Middleware: completionChain(cfg.Agent, logger),
		Logger:     logger,
	}

	if cfg.Agent.SummaryTokenThreshold > 0 {
		counter, err := tiktoken.New(cfg.OpenAI.Model)
		if err != nil {
			logger.Warn("token counter unavailable, summarizing every history", "error", err)
		} else {
			deps.Counter = counter
		}
	}

	for _, server := range cfg.MCP {
		p, err := mcp.Connect(ctx, mcp.Config{
			Name:     server.Name,
			Command:  server.Command,
			Args:     server.Args,
			Env:      server.Env,
			Endpoint: server.Endpoint,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect mcp server %s: %w", server.Name, err)
		}
		a.closers = append(a.closers, p.Close)
		deps.Tools = append(deps.Tools, tool.Provider(p))
	}

	if cfg.RemoteDevAgentURL != "" {
		transport, err := a2a.Dial(ctx, cfg.RemoteDevAgentURL)
		if err != nil {
			return nil, fmt.Errorf("dial remote dev agent: %w", err)
		}
		a.closers = append(a.closers, transport.Close)
		deps.Transport = transport
		logger.Info("remote developer agent connected", "url", cfg.RemoteDevAgentURL, "agent", transport.Name())
	}

	archive, err := store.Open(ctx, cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("open transcript archive: %w", err)
	}
	a.closers = append(a.closers, archive.Close)
	deps.Archive = archive

	a.registry = session.NewRegistry(session.NewFactory(deps), session.WithLogger(logger))
	logger.Info("runtime ready", "provider", sel.Name, "archive", cfg.Archive.Driver)
	return a, nil
}

// completionChain wraps every local worker call. The limiter is shared by all
// sessions so the provider sees one global rate.
func completionChain(agent config.AgentConfig, logger *slog.Logger) *middleware.MiddlewareChain {
	chain := middleware.NewChain(
		enricher.NewContextEnricher(enricher.CallID),
		errorhandler.NewErrorHandler(errorhandler.Annotate),
		validator.NewRequestValidator(validator.NonEmpty),
	)
	if agent.RequestsPerSecond > 0 {
		chain.Add(limiter.NewRateLimiter(agent.RequestsPerSecond, agent.RequestBurst))
	}
	return chain.
		Add(mwlogger.NewRequestLogger(logger)).
		Add(mwlogger.NewResponseLogger(logger))
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
