package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/platinummonkey/plughost/pkg/api"
	"github.com/platinummonkey/plughost/pkg/config"
	"github.com/platinummonkey/plughost/pkg/observability"
	"github.com/platinummonkey/plughost/pkg/plugins"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
)

// plughost scans <base>/plugins, activates every loaded module with the
// configured locale and, optionally, keeps watching the directory
func main() {
	// Command-line flags override the environment; validate once both are applied
	cfg := config.FromEnv()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("plughost: %v", err)
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}
	defer observability.ShutdownTracing(context.Background(), tp, logger)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(promRegistry)

	registry := plugins.NewRegistry(
		plugins.WithLogger(logger),
		plugins.WithMetrics(metrics),
		plugins.WithPluginDirName(cfg.Plugins.PluginDir),
		plugins.WithReleaseOnRescan(),
	)
	defer registry.Close()

	locale := cfg.Plugins.Tag()
	activate := func(r *plugins.Registry, err error) {
		if err != nil {
			return
		}
		activateAll(r, locale, logger)
	}

	longRunning := cfg.Plugins.Watch || cfg.Plugins.RescanSchedule != "" || cfg.Server.Addr != ""
	if !cfg.Plugins.Watch {
		err := registry.Scan(ctx, cfg.Plugins.BaseDir)
		activate(registry, err)
		if err != nil {
			return err
		}
	}
	if !longRunning {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Plugins.Watch {
		g.Go(func() error {
			return registry.Watch(gctx, cfg.Plugins.BaseDir, cfg.Plugins.WatchDebounce, activate)
		})
	}

	if cfg.Plugins.RescanSchedule != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.Plugins.RescanSchedule, func() {
			logger.Info("Running scheduled plugin rescan")
			err := registry.Scan(gctx, cfg.Plugins.BaseDir)
			if err != nil {
				logger.Errorf("Scheduled rescan failed: %v", err)
			}
			activate(registry, err)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule rescan: %w", err)
		}
		c.Start()
		logger.Infof("Rescan schedule: %s", cfg.Plugins.RescanSchedule)

		g.Go(func() error {
			<-gctx.Done()
			<-c.Stop().Done()
			return nil
		})
	}

	if cfg.Server.Addr != "" {
		server := api.NewServer(registry, cfg.Plugins.BaseDir, locale, promRegistry, logger)
		g.Go(func() error {
			return server.ListenAndServe(gctx, cfg.Server.Addr,
				cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("plughost stopped")
	return nil
}

// activateAll activates every loaded module. A failing module does not stop
// the others.
func activateAll(registry *plugins.Registry, locale language.Tag, logger *logrus.Logger) {
	modules := registry.LoadedPlugins()
	logger.Infof("Activating %d plugin(s) with locale %s", len(modules), locale)

	for _, m := range modules {
		if err := m.ActivateResources(locale); err != nil {
			logger.Errorf("Failed to activate %s: %v", m.Title(), err)
			continue
		}
		logger.Debugf("Activated %s", m.Title())
	}
}
