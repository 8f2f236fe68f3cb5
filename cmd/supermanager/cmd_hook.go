package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"supermanager/internal/config"
	"supermanager/internal/hooks"
	"supermanager/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newHookCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "hook [event]",
		Short:     "Handle one hook event (JSON on stdin, JSON on stdout)",
		Long:      "Reads the hook payload from stdin and writes the response to stdout. Always exits 0; internal failures are logged and the host proceeds.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: config.ValidHookEvents,
		RunE: func(cmd *cobra.Command, args []string) error {
			runHook(cmd, opts, args)
			return nil
		},
	}
}

func runHook(cmd *cobra.Command, opts *cliOptions, args []string) {
	ctx, stop := signal.NotifyContext(baseContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := opts.runtime()
	if err != nil {
		return
	}
	defer rt.Close()
	logger := rt.Logger(logging.CategoryHooks)

	in, err := hooks.DecodeInput(cmd.InOrStdin())
	if err != nil {
		logger.Warn("unreadable hook input", zap.Error(err))
		return
	}
	if len(args) == 1 {
		if in.HookEventName != "" && in.HookEventName != args[0] {
			logger.Debug("event argument differs from payload",
				zap.String("arg", args[0]), zap.String("payload", in.HookEventName))
		}
		if in.HookEventName == "" {
			in.HookEventName = args[0]
		}
	}

	out := rt.Handle(ctx, in)
	if err := out.Encode(cmd.OutOrStdout()); err != nil {
		logger.Error("failed to write hook output", zap.Error(err))
	}
}

func baseContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
