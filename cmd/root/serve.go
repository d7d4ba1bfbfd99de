package root

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sweetpotato0/ai-devteam/pkg/logging"
	"github.com/sweetpotato0/ai-devteam/pkg/server"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the streaming HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, flags, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides server.addr (unix:// for a socket)")

	return cmd
}

func runServe(ctx context.Context, flags *rootFlags, addr string) error {
	logger := logging.WithComponent("serve")
	cfg, err := loadConfig(flags, logger)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	ln, err := server.Listen(ctx, addr)
	if err != nil {
		return err
	}
	srv := server.New(a.registry,
		server.WithLogger(logging.WithComponent("server")),
		server.WithAllowOrigins(cfg.Server.AllowOrigins),
	)
	return srv.Serve(ctx, ln)
}
