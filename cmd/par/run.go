package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/admin"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/cli"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/condition"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/config"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/history"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/manager"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/scene"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/telemetry/health"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/telemetry/metrics"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/telemetry/tracing"
)

var runFlags struct {
	scene         string
	rules         string
	listenAddress string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load rules and keep applying them to a scene",
	Long: `Load the rule directory, watch it for changes and apply the active
rules to every subject of the scene until interrupted.

An evaluation pass runs every evaluation.interval and publishes which rules
apply to which subject. The apply pass runs every apply.interval and edits
each subject's skeleton, starting from its bind pose. Rule files are
reloaded when they change and the whole directory is rescanned on
rules.rescan_schedule.

When admin.enabled is set an HTTP server exposes health probes, metrics,
the active rules, the current snapshot, assignment history and reload
endpoints.

Examples:
  # Start with defaults and no subjects
  par run

  # Start with a config file and a scene
  par run --config /etc/par/config.yaml --scene scene.yaml

  # Validate config, scene and rules without starting
  par run --scene scene.yaml --dry-run`,
	RunE: runReplacer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.scene, "scene", "s", "", "scene file with the subjects to animate")
	runCmd.Flags().StringVarP(&runFlags.rules, "rules", "r", "", "override rules.directory")
	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override admin.listen_address")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "load config, scene and rules, then exit")
}

func runReplacer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.rules != "" {
		cfg.Rules.Directory = filepath.Clean(runFlags.rules)
	}
	if runFlags.listenAddress != "" {
		cfg.Admin.ListenAddress = runFlags.listenAddress
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", "invalid flag overrides", err)
	}

	logger, err := newLogger(cfg.Telemetry.Logging)
	if err != nil {
		return err
	}

	world, err := loadWorld(runFlags.scene)
	if err != nil {
		return err
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error(), err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(ctx); err != nil {
			logger.Warn("Failed to flush spans", "error", err)
		}
	}()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())

	m, err := manager.New(manager.Config{
		Loader:      loaderConfig(cfg),
		Parallelism: cfg.Apply.Parallelism,
		Resolver:    world.Resolver(),
		Recorder:    collector,
	}, world, condition.NewParser(logger), logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	m.SetEnabled(cfg.Apply.Enabled)

	_, span := tracer.Start(commandContext(cmd), tracing.SpanLoadDirectory)
	result, err := m.LoadDirectory(cfg.Rules.Directory)
	span.SetAttributes(tracing.LoadAttributes(cfg.Rules.Directory, result)...)
	tracing.SetStatus(span, err)
	span.End()
	if err != nil {
		if len(result.Rejected) == 0 {
			return cli.NewCommandError("run", fmt.Errorf("failed to load rules: %w", err))
		}
		logger.Warn("Some rule files were rejected", "rejected", result.Rejected)
	}
	fmt.Fprintf(cmdOut(cmd), "✓ Rules loaded from %s (%d active, %d rejected)\n",
		cfg.Rules.Directory, m.Len(), len(result.Rejected))
	fmt.Fprintf(cmdOut(cmd), "✓ Scene ready (%d subjects)\n", len(world.IDs()))

	if runFlags.dryRun {
		fmt.Fprintln(cmdOut(cmd), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SignalContext(commandContext(cmd))
	defer stop()

	checker := health.New(2 * time.Second)
	checker.RegisterCheck("rules", health.RulesLoaded(m))
	checker.RegisterCheck("snapshot", health.SnapshotFresh(m, staleAfter(cfg.Evaluation.Interval)))

	var historyLister admin.HistoryLister
	if cfg.History.Enabled {
		store, err := history.Open(history.StoreConfig{
			Path:        cfg.History.Path,
			BusyTimeout: cfg.History.BusyTimeout,
		}, logger)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to open history: %w", err))
		}
		defer store.Close()

		recorder := history.NewRecorder(store, history.RecorderConfig{BufferSize: cfg.History.BufferSize}, logger)
		defer recorder.Close()
		m.OnPublish(recorder.Publish)

		retention := history.NewRetention(store, cfg.History.RetentionDays, cfg.History.PruneSchedule, logger)
		if err := retention.Start(ctx); err != nil {
			logger.Warn("Failed to start history retention", "error", err)
		} else {
			defer retention.Stop()
		}

		checker.RegisterCheck("history", health.Reachable(store))
		historyLister = store
		fmt.Fprintf(cmdOut(cmd), "✓ History recorded to %s\n", cfg.History.Path)
	}

	m.Evaluate(ctx)

	rescanner := manager.NewRescanner(m, cfg.Rules.Directory, cfg.Rules.RescanSchedule)
	if err := rescanner.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer rescanner.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Rules.Watch {
		g.Go(func() error {
			err := m.Watch(gctx, &manager.FileWatcherConfig{
				Root:             cfg.Rules.Directory,
				DebounceInterval: cfg.Rules.Debounce,
				Extensions:       cfg.Rules.Extensions,
				SkipHidden:       cfg.Rules.SkipHidden,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Rule watcher stopped", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		evaluationLoop(gctx, m, tracer, cfg.Evaluation.Interval)
		return nil
	})
	g.Go(func() error {
		applyLoop(gctx, m, world, tracer, cfg.Apply.Interval, logger)
		return nil
	})

	if cfg.Admin.Enabled {
		deps := admin.Deps{
			Manager:  m,
			RulesDir: cfg.Rules.Directory,
			Checker:  checker,
			History:  historyLister,
			Tracer:   tracer,
			Build: admin.BuildInfo{
				Version:   Version,
				Commit:    GitCommit,
				BuildTime: BuildDate,
			},
		}
		if cfg.Telemetry.Metrics.Enabled {
			deps.Metrics = collector.Handler()
			deps.MetricsPath = cfg.Telemetry.Metrics.Path
		}
		srv, err := admin.New(&cfg.Admin, deps, logger)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		g.Go(func() error {
			return srv.Start(gctx)
		})
		fmt.Fprintf(cmdOut(cmd), "✓ Admin listening on %s\n", cfg.Admin.ListenAddress)
	}

	fmt.Fprintln(cmdOut(cmd), "\nPress Ctrl+C to stop")

	err = g.Wait()
	if ctx.Err() != nil {
		fmt.Fprintln(cmdOut(cmd), "\nShutting down gracefully...")
	}
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(cmdOut(cmd), "✓ Stopped")
	return nil
}

// loadWorld builds the scene at path, or an empty scene when path is empty.
func loadWorld(path string) (*scene.World, error) {
	sc := &scene.Scene{}
	if path != "" {
		var err error
		sc, err = scene.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load scene: %w", err)
		}
	}
	world, err := sc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scene: %w", err)
	}
	return world, nil
}

// evaluationLoop publishes a snapshot every interval until ctx is done.
func evaluationLoop(ctx context.Context, m *manager.Manager, tracer *tracing.Tracer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			spanCtx, span := tracer.Start(ctx, tracing.SpanEvaluate)
			snap := m.Evaluate(spanCtx)
			span.SetAttributes(tracing.SnapshotAttributes(snap)...)
			span.End()
		}
	}
}

// applyLoop resets the scene to its bind pose and applies the published
// snapshot every interval until ctx is done.
func applyLoop(ctx context.Context, m *manager.Manager, world *scene.World, tracer *tracing.Tracer, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			targets := world.Targets()
			spanCtx, span := tracer.Start(ctx, tracing.SpanApply)
			world.Reset()
			applied, err := m.ApplyAll(spanCtx, targets, world.Updated)
			span.SetAttributes(tracing.ApplyAttributes(len(targets), applied)...)
			tracing.SetStatus(span, err)
			span.End()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("Apply pass failed", "error", err)
			}
		}
	}
}

// staleAfter is how old the published snapshot may get before readiness
// fails.
func staleAfter(interval time.Duration) time.Duration {
	return max(10*interval, 5*time.Second)
}
