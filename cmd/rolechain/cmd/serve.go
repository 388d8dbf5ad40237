package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/rolechain/internal/api"
	"github.com/hugo-lorenzo-mato/rolechain/internal/catalog"
	"github.com/hugo-lorenzo-mato/rolechain/internal/events"
	"github.com/hugo-lorenzo-mato/rolechain/internal/metrics"
	"github.com/hugo-lorenzo-mato/rolechain/internal/service"
	"github.com/hugo-lorenzo-mato/rolechain/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the rolechain HTTP server.

The server exposes the REST API under /api/v1, streams task events over
Server-Sent Events at /api/v1/sse/events and serves Prometheus metrics at
/metrics. Tasks left running by a previous process are marked paused.

Examples:
  # Start with defaults (127.0.0.1:8080)
  rolechain serve

  # Start on custom host and port
  rolechain serve --host 0.0.0.0 --port 3000`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"Host address to bind to (default from config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"Port to listen on (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	reg := prometheus.NewRegistry()
	m := metrics.MustNew(reg)

	bus := events.New(100)
	defer bus.Close()

	manager := service.NewManager(rt.store, rt.router, bus,
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithStepDelay(cfg.Engine.StepDelayDuration()),
		service.WithStepTimeout(cfg.Engine.StepTimeoutDuration()),
		service.WithFallbackRole(cfg.Engine.FallbackRole),
		service.WithMaxRuns(cfg.Engine.MaxRuns),
	)
	recovered, err := manager.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recovering tasks: %w", err)
	}
	if recovered > 0 {
		logger.Info("interrupted tasks marked paused", slog.Int("count", recovered))
	}

	webCfg := web.ConfigFrom(cfg.Server)
	if serveHost != "" {
		webCfg.Host = serveHost
	}
	if servePort != 0 {
		webCfg.Port = servePort
	}

	apiServer := api.NewServer(rt.store, manager, api.WithLogger(logger))
	server := web.New(webCfg, logger,
		web.WithEventBus(bus),
		web.WithAPI(apiServer.Handler()),
		web.WithGatherer(reg),
	)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Catalog.Watch {
		watcher := catalog.NewWatcher(cfg.Catalog.Dir, rt.store, logger)
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("catalog watcher: %w", err)
			}
			return nil
		})
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	logger.Info("server started", slog.String("addr", server.Addr()))

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), webCfg.ShutdownTimeout)
		defer cancel()

		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("runs did not stop in time", slog.String("error", err.Error()))
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
