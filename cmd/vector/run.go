package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/exitcode"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/metrics"
	"github.com/jmountifield/vector/internal/plugin"
	"github.com/jmountifield/vector/internal/runtime"
	"github.com/jmountifield/vector/internal/signals"
	"github.com/jmountifield/vector/internal/supervisor"
	"github.com/jmountifield/vector/internal/topology"
	"github.com/jmountifield/vector/internal/topology/builder"
	"github.com/jmountifield/vector/internal/watcher"
)

// runServe starts the pipeline and supervises it until shutdown. It returns
// the process exit code.
func runServe(cmd *cobra.Command, flags *rootFlags, run *runFlags) int {
	log, _, err := flags.newLogger(cmd)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return exitcode.Usage
	}

	log.Info(fmt.Sprintf("Log level %q is enabled.", log.Level()))

	if run.threads < 1 {
		log.Error(nil, "The `threads` argument must be greater or equal to 1.")
		return exitcode.Config
	}

	paths, err := config.ExpandPaths(run.configs)
	if err != nil {
		log.Error(err, "Invalid config path.")
		return exitcode.Config
	}
	if err := pathsCell.Set(paths); err != nil {
		log.Error(err, "Config paths were already published.")
		return exitcode.Software
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if !signals.ReloadSupported && !run.watchConfig {
		log.Warn("Reloading on signal is not supported on this platform; use --watch-config to reload on file changes.")
	}

	var reloads <-chan struct{}
	if run.watchConfig {
		w, err := watcher.New(paths, watcher.DefaultDelay, log)
		if err != nil {
			log.Error(err, "Unable to start config watcher.")
			return exitcode.Config
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error(err, "Config watcher stopped.")
			}
		}()
		reloads = w.Reloads()
	}

	log.WithFields(map[string]any{"paths": paths}).Info("Loading configs.")

	cfg, errs := config.ReadConfigs(ctx, paths)
	if len(errs) > 0 {
		for _, err := range errs {
			log.Error(err, "Configuration error.")
		}
		return exitcode.Config
	}
	if err := schemaCell.Set(cfg.LogSchema()); err != nil {
		log.Error(err, "Couldn't set schema.")
		return exitcode.Software
	}

	rt, err := runtime.New(run.threads, log)
	if err != nil {
		log.Error(err, "Unable to create runtime.")
		return exitcode.Config
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if err := m.Register(); err != nil {
		log.Error(err, "Metrics initialization failed.")
		return exitcode.Software
	}

	log.WithFields(map[string]any{
		"version": version,
		"commit":  commit,
		"built":   date,
		"threads": rt.Threads(),
	}).Info("Vector is starting.")

	topo, ok := startTopology(ctx, log, m, rt, cfg, run.requireHealthy)
	if !ok {
		rt.ShutdownNow(supervisor.DefaultShutdownTimeout)
		return exitcode.Config
	}

	if run.metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, run.metricsAddr, registry, log); err != nil {
				log.Error(err, "Metrics listener failed.")
			}
		}()
	}

	sup := supervisor.New(supervisor.Options{
		Topology:       topo,
		Signals:        signals.Notify(),
		Reloads:        reloads,
		Paths:          pathsCell.Get(),
		RequireHealthy: run.requireHealthy,
		Shutdown:       rt.ShutdownNow,
		Logger:         log,
		Metrics:        m,
	})
	outcome := sup.Run(ctx)

	log.WithFields(map[string]any{
		"shutdown":         outcome.Shutdown.String(),
		"reloads":          outcome.Reloads,
		"rejected_reloads": outcome.RejectedReloads,
	}).Debug("Supervisor finished.")
	return exitcode.OK
}

func startTopology(ctx context.Context, log *logger.Logger, m *metrics.Metrics, rt *runtime.Runtime, cfg *config.Config, requireHealthy bool) (*topology.RunningTopology, bool) {
	diff := config.InitialDiff(cfg)
	base := plugin.BuildContext{LogSchema: cfg.LogSchema(), DataDir: cfg.Global.DataDir, Logger: log}

	pieces, warnings, errs := builder.Validate(base, cfg, diff)
	for _, warning := range warnings {
		log.Warn(warning)
	}
	if len(errs) > 0 {
		for _, err := range errs {
			log.Error(err, "Configuration error.")
		}
		return nil, false
	}

	topo, err := topology.Start(ctx, topology.Options{Runtime: rt, Logger: log, Metrics: m}, cfg, diff, pieces, requireHealthy)
	if err != nil {
		log.Error(err, "Topology failed to start.")
		return nil, false
	}
	return topo, true
}
