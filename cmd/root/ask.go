package root

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sweetpotato0/ai-devteam/pkg/logging"
	"github.com/sweetpotato0/ai-devteam/session"
)

type askFlags struct {
	mode      string
	workspace string
	document  string
}

func newAskCmd(flags *rootFlags) *cobra.Command {
	var opts askFlags

	cmd := &cobra.Command{
		Use:   "ask <request>",
		Short: "Answer one request and stream the discussion to stdout",
		Example: `  devteam ask --mode devteam "build a CLI that counts words"
  devteam ask --mode coder --workspace . "add a --verbose flag"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runAsk(ctx, cmd.OutOrStdout(), flags, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", string(session.ModeDevTeam), "architect, coder, tester or devteam")
	cmd.Flags().StringVarP(&opts.workspace, "workspace", "w", "", "Workspace directory the workers may read and write")
	cmd.Flags().StringVar(&opts.document, "document", "", "Active document shown to the workers")

	return cmd
}

func runAsk(ctx context.Context, out io.Writer, flags *rootFlags, opts askFlags, request string) error {
	logger := logging.WithComponent("ask")
	cfg, err := loadConfig(flags, logger)
	if err != nil {
		return err
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

	sess, err := a.registry.GetOrCreate(ctx, uuid.NewString())
	if err != nil {
		return err
	}
	sess.SetWorkspacePath(opts.workspace)
	sess.SetActiveDocument(opts.document)

	return printTurns(ctx, out, sess, request, opts.mode)
}

func printTurns(ctx context.Context, out io.Writer, sess *session.Session, request, mode string) error {
	for msg, err := range sess.Process(ctx, request, mode) {
		if err != nil {
			return err
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if _, err := fmt.Fprintf(out, "## %s\n\n%s\n\n", msg.Speaker(), msg.Content); err != nil {
			return err
		}
	}
	return nil
}
