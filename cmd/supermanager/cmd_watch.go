package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"supermanager/internal/engine"
	"supermanager/internal/fingerprint"
	"supermanager/internal/logging"
	"supermanager/internal/registry"
	"supermanager/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newWatchCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the registries and report configuration changes as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(baseContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := opts.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			return runWatch(ctx, rt, cmd.OutOrStdout())
		},
	}
}

// runWatch records a baseline, then reports every settled change until ctx
// is cancelled.
func runWatch(ctx context.Context, rt *engine.Runtime, out io.Writer) error {
	logger := rt.Logger(logging.CategoryWatch)

	load := func() fingerprint.Snapshot {
		return fingerprint.ProjectSet(registry.Load(rt.Paths, rt.Logger(logging.CategoryRegistry)))
	}

	d, err := rt.Tracker.Baseline(load())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "baseline %s\n", d)

	var mu sync.Mutex
	onChange := func(ctx context.Context, paths []string) {
		mu.Lock()
		defer mu.Unlock()

		names := make([]string, 0, len(paths))
		for _, p := range paths {
			names = append(names, filepath.Base(p))
		}
		notice, err := rt.Tracker.Check(load())
		if err != nil {
			logger.Error("fingerprint check failed", zap.Error(err))
			return
		}
		if notice == nil {
			logger.Debug("change without effect on fingerprint", zap.Strings("paths", paths))
			return
		}
		fmt.Fprintf(out, "changed: %s\n%s\n", strings.Join(names, ", "), notice.Render())
	}

	w, err := watch.New(rt.Paths, rt.Config.GetWatchDebounce(), onChange, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := w.Start(gctx); err != nil {
			return err
		}
		logger.Info("watching registries", zap.Strings("dirs", w.WatchedDirs()))
		<-gctx.Done()
		w.Stop()
		return nil
	})
	g.Go(func() error {
		// The loop can also end on its own when fsnotify closes its channels.
		select {
		case <-w.Done():
			if gctx.Err() == nil {
				return fmt.Errorf("watcher stopped unexpectedly")
			}
		case <-gctx.Done():
		}
		return nil
	})

	err = g.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
