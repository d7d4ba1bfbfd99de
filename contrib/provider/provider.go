// Package provider picks the completion backend from configuration.
package provider

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sweetpotato0/ai-devteam/backend"
	"github.com/sweetpotato0/ai-devteam/config"
	"github.com/sweetpotato0/ai-devteam/contrib/provider/claude"
	"github.com/sweetpotato0/ai-devteam/contrib/provider/gemini"
	"github.com/sweetpotato0/ai-devteam/contrib/provider/openai"
	"github.com/sweetpotato0/ai-devteam/pkg/logging"
)

// Provider names in precedence order.
const (
	AzureOpenAI = "azure_openai"
	OpenAI      = "openai"
	Anthropic   = "anthropic"
	Gemini      = "gemini"
)

// ErrNoProvider is returned when no provider section is complete.
var ErrNoProvider = errors.New("no completion provider configured")

// Selection is the chosen backend. Close releases provider resources.
type Selection struct {
	Name   string
	Client backend.Client
	close  func() error
}

// Close releases the underlying client, if it holds any resources.
func (s *Selection) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// Enabled lists the providers whose required settings are present, in
// precedence order.
func Enabled(cfg *config.Config) []string {
	var names []string
	if cfg.AzureOpenAI.Enabled() {
		names = append(names, AzureOpenAI)
	}
	if cfg.OpenAI.Enabled() {
		names = append(names, OpenAI)
	}
	if cfg.Anthropic.Enabled() {
		names = append(names, Anthropic)
	}
	if cfg.Gemini.Enabled() {
		names = append(names, Gemini)
	}
	return names
}

// Select builds the first enabled provider. Later ones are ignored.
func Select(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Selection, error) {
	if logger == nil {
		logger = logging.WithComponent("provider")
	}
	enabled := Enabled(cfg)
	if len(enabled) == 0 {
		return nil, ErrNoProvider
	}
	name := enabled[0]
	if len(enabled) > 1 {
		logger.Debug("ignoring lower precedence providers", "selected", name, "skipped", enabled[1:])
	}

	sel := &Selection{Name: name}
	switch name {
	case AzureOpenAI:
		c := cfg.AzureOpenAI
		sel.Client = openai.NewAzure(openai.AzureConfig{
			Endpoint:   c.Endpoint,
			APIKey:     c.APIKey,
			Deployment: c.Deployment,
			APIVersion: c.APIVersion,
		})
	case OpenAI:
		c := cfg.OpenAI
		sel.Client = openai.New(openai.Config{APIKey: c.APIKey, BaseURL: c.Endpoint, Model: c.Model})
	case Anthropic:
		c := cfg.Anthropic
		sel.Client = claude.New(claude.Config{APIKey: c.APIKey, Model: c.Model, MaxTokens: c.MaxTokens})
	case Gemini:
		c := cfg.Gemini
		p, err := gemini.New(ctx, gemini.Config{APIKey: c.APIKey, Model: c.Model})
		if err != nil {
			return nil, err
		}
		sel.Client = p
		sel.close = p.Close
	}
	logger.Info("completion provider selected", "provider", name)
	return sel, nil
}
