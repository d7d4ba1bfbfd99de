// Package config loads the service configuration from defaults, an optional
// YAML file and DEVTEAM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// DEVTEAM_AGENT_MAXIMUM_ITERATIONS.
const EnvPrefix = "DEVTEAM"

// Archive drivers.
const (
	ArchiveNone     = "none"
	ArchiveMemory   = "memory"
	ArchiveRedis    = "redis"
	ArchivePostgres = "postgres"
	ArchiveMongo    = "mongo"
)

// Config is the root configuration.
type Config struct {
	Agent             AgentConfig       `mapstructure:"agent"`
	AzureOpenAI       AzureOpenAIConfig `mapstructure:"azure_openai"`
	OpenAI            OpenAIConfig      `mapstructure:"openai"`
	Anthropic         AnthropicConfig   `mapstructure:"anthropic"`
	Gemini            GeminiConfig      `mapstructure:"gemini"`
	RemoteDevAgentURL string            `mapstructure:"remote_dev_agent_url"`
	MCP               []MCPServer       `mapstructure:"mcp"`
	Archive           ArchiveConfig     `mapstructure:"archive"`
	Server            ServerConfig      `mapstructure:"server"`
	Telemetry         TelemetryConfig   `mapstructure:"telemetry"`
}

// AgentConfig tunes the orchestration loop.
type AgentConfig struct {
	// MaximumIterations is the hard stop for team runs.
	MaximumIterations int `mapstructure:"maximum_iterations"`
	// MaximumInvocationCount caps tool calls inside one worker turn.
	MaximumInvocationCount    int  `mapstructure:"maximum_invocation_count"`
	AutomaticReset            bool `mapstructure:"automatic_reset"`
	HistorySummaryTargetCount int  `mapstructure:"history_summary_target_count"`
	// SummaryTokenThreshold skips summarization while the history is smaller
	// than this many tokens. Zero summarizes any non-empty history.
	SummaryTokenThreshold int `mapstructure:"summary_token_threshold"`
	// RequestsPerSecond throttles worker completion calls across all
	// sessions. Zero disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	RequestBurst      int     `mapstructure:"request_burst"`
}

type AzureOpenAIConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	APIKey     string `mapstructure:"api_key"`
	Deployment string `mapstructure:"deployment"`
	APIVersion string `mapstructure:"api_version"`
}

// Enabled reports whether every required field is set.
func (c AzureOpenAIConfig) Enabled() bool {
	return c.Endpoint != "" && c.APIKey != "" && c.Deployment != ""
}

type OpenAIConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
}

func (c OpenAIConfig) Enabled() bool { return c.APIKey != "" }

type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

func (c AnthropicConfig) Enabled() bool { return c.APIKey != "" }

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

func (c GeminiConfig) Enabled() bool { return c.APIKey != "" }

// MCPServer describes one MCP tool server. Either Command (stdio) or
// Endpoint (streamable HTTP) is set.
type MCPServer struct {
	Name     string   `mapstructure:"name"`
	Command  string   `mapstructure:"command"`
	Args     []string `mapstructure:"args"`
	Env      []string `mapstructure:"env"`
	Endpoint string   `mapstructure:"endpoint"`
}

// ArchiveConfig selects where finished run transcripts are written.
type ArchiveConfig struct {
	Driver   string         `mapstructure:"driver"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type ServerConfig struct {
	Addr         string   `mapstructure:"addr"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type TelemetryConfig struct {
	Disable        bool   `mapstructure:"disable"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
	// Endpoint is an OTLP/gRPC collector address. Empty writes spans nowhere.
	Endpoint string `mapstructure:"endpoint"`
}

// Load reads configuration. An empty path looks for devteam.yaml in the
// working directory; a missing file is not an error unless path was given.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("devteam")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	v := NewValidator()
	v.ValidateRange("agent.maximum_iterations", c.Agent.MaximumIterations, 1, 50)
	v.RequirePositive("agent.maximum_invocation_count", c.Agent.MaximumInvocationCount)
	v.RequirePositive("agent.history_summary_target_count", c.Agent.HistorySummaryTargetCount)
	v.RequireNonNegative("agent.summary_token_threshold", c.Agent.SummaryTokenThreshold)
	if c.Agent.RequestsPerSecond < 0 {
		v.Add("agent.requests_per_second", "must not be negative")
	}
	if c.Agent.RequestsPerSecond > 0 {
		v.RequirePositive("agent.request_burst", c.Agent.RequestBurst)
	}
	v.RequireNonEmpty("server.addr", c.Server.Addr)
	v.ValidateOneOf("archive.driver", c.Archive.Driver,
		ArchiveNone, ArchiveMemory, ArchiveRedis, ArchivePostgres, ArchiveMongo)

	for i, s := range c.MCP {
		field := fmt.Sprintf("mcp[%d]", i)
		v.RequireNonEmpty(field+".name", s.Name)
		if (s.Command == "") == (s.Endpoint == "") {
			v.Add(field, "exactly one of command or endpoint must be set")
		}
	}
	if err := v.Error(); err != nil {
		return err
	}

	switch c.Archive.Driver {
	case ArchiveRedis:
		r := c.Archive.Redis
		return ValidateRedisConfig(r.Addr, r.DB, r.Prefix)
	case ArchivePostgres:
		p := c.Archive.Postgres
		return ValidatePostgresConfig(p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
	case ArchiveMongo:
		m := c.Archive.Mongo
		return ValidateMongoDBConfig(m.URI, m.Database, m.Collection)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent.maximum_iterations", 15)
	v.SetDefault("agent.maximum_invocation_count", 15)
	v.SetDefault("agent.automatic_reset", true)
	v.SetDefault("agent.history_summary_target_count", 1)
	v.SetDefault("agent.summary_token_threshold", 0)
	v.SetDefault("agent.requests_per_second", 0)
	v.SetDefault("agent.request_burst", 1)

	// Registered so AutomaticEnv can see them.
	v.SetDefault("azure_openai.endpoint", "")
	v.SetDefault("azure_openai.api_key", "")
	v.SetDefault("azure_openai.deployment", "")
	v.SetDefault("azure_openai.api_version", "")
	v.SetDefault("openai.endpoint", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "")
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "")
	v.SetDefault("remote_dev_agent_url", "")

	v.SetDefault("archive.driver", ArchiveNone)
	v.SetDefault("archive.redis.addr", "localhost:6379")
	v.SetDefault("archive.redis.password", "")
	v.SetDefault("archive.redis.db", 0)
	v.SetDefault("archive.redis.prefix", "devteam:transcript:")
	v.SetDefault("archive.redis.ttl", "168h")
	v.SetDefault("archive.postgres.host", "localhost")
	v.SetDefault("archive.postgres.port", 5432)
	v.SetDefault("archive.postgres.user", "")
	v.SetDefault("archive.postgres.password", "")
	v.SetDefault("archive.postgres.dbname", "devteam")
	v.SetDefault("archive.postgres.sslmode", "disable")
	v.SetDefault("archive.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("archive.mongo.database", "devteam")
	v.SetDefault("archive.mongo.collection", "transcripts")

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("telemetry.disable", false)
	v.SetDefault("telemetry.service_version", "dev")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.endpoint", "")
}
