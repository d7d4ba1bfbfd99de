// Package root holds the devteam command tree.
package root

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sweetpotato0/ai-devteam/config"
	"github.com/sweetpotato0/ai-devteam/pkg/logging"
)

// Set at build time with -ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

type rootFlags struct {
	configPath string
	logFormat  string
	logLevel   string
}

func NewRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "devteam",
		Short: "A software team of AI agents",
		Long: `devteam answers software requests with a team of agents: an architect,
a developer and a tester, coordinated by a team leader that picks who speaks
next and decides when the work is done.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if flags.logFormat != "" || flags.logLevel != "" {
				logging.SetLogger(logging.New(os.Stderr, flags.logFormat, logging.ParseLevel(flags.logLevel)))
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to the configuration file (default ./devteam.yaml)")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format: json or text")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	cmd.AddCommand(newServeCmd(&flags))
	cmd.AddCommand(newAskCmd(&flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func loadConfig(flags *rootFlags, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded", "archive", cfg.Archive.Driver, "mcp_servers", len(cfg.MCP), "remote_dev_agent", cfg.RemoteDevAgentURL != "")
	return cfg, nil
}
