package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ingestadmin/internal/api"
	"ingestadmin/internal/config"
	"ingestadmin/internal/gateway"
	"ingestadmin/internal/logging"
	ingestmcp "ingestadmin/internal/mcp"
	"ingestadmin/internal/notify"
	"ingestadmin/internal/runner"
	"ingestadmin/internal/store"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logger := logging.New(cfg.Log.Level)

	baseCtx := context.Background()
	storeInst, err := store.Open(baseCtx, cfg.StateDir)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer storeInst.DB.Close()

	location := time.Local
	if cfg.UseUTC {
		location = time.UTC
	}

	var notifier notify.Notifier = &notify.NoOpNotifier{}
	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		webhook, err := notify.NewWebhookNotifier(cfg.Webhook.URL)
		if err != nil {
			logger.Error("create webhook notifier", "err", err)
			os.Exit(1)
		}
		notifier = webhook
	}

	gw := store.NewGateway(storeInst)
	planExecutor := gateway.NewExecutor(gw, storeInst, logger)
	stageExecutor := runner.NewDispatchExecutor(storeInst, storeInst, logger)
	sched := runner.NewRunner(storeInst, stageExecutor, notifier, logger, location)

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	sched.Start(ctx)
	if err := sched.Sync(ctx); err != nil {
		logger.Error("initial sync", "err", err)
	}

	mcpServer := ingestmcp.NewMCPServer(storeInst, gw, logger)

	switch cfg.Mode {
	case "http":
		runHTTPMode(cfg, storeInst, gw, planExecutor, mcpServer, sched, logger)
	case "mcp":
		runMCPMode(mcpServer, sched, cfg.ShutdownGrace, logger, cancel)
	case "both":
		runBothMode(cfg, storeInst, gw, planExecutor, mcpServer, sched, logger)
	default:
		logger.Error("invalid mode", "mode", cfg.Mode, "valid", []string{"http", "mcp", "both"})
		os.Exit(1)
	}
}

// runHTTPMode starts only the HTTP server.
func runHTTPMode(cfg *config.Config, storeInst *store.Store, gw gateway.Gateway, planExecutor *gateway.Executor, mcpServer *ingestmcp.MCPServer, sched *runner.Runner, logger *slog.Logger) {
	server, err := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, storeInst, gw, planExecutor, sched, mcpServer, logger)
	if err != nil {
		logger.Error("create server", "err", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	}

	shutdown(server, sched, cfg.ShutdownGrace, logger)
}

// runMCPMode starts only the MCP server on stdio.
func runMCPMode(mcpServer *ingestmcp.MCPServer, sched *runner.Runner, grace time.Duration, logger *slog.Logger, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		logger.Info("received signal, shutting down...")
		cancel()
	}()

	if err := mcpServer.Run(); err != nil {
		logger.Error("mcp server error", "err", err)
		os.Exit(1)
	}

	stopCtx := sched.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(grace):
		logger.Warn("runner stop timed out")
	}
}

// runBothMode starts the HTTP server alongside the stdio MCP server.
func runBothMode(cfg *config.Config, storeInst *store.Store, gw gateway.Gateway, planExecutor *gateway.Executor, mcpServer *ingestmcp.MCPServer, sched *runner.Runner, logger *slog.Logger) {
	mcpErr := make(chan error, 1)
	go func() {
		if err := mcpServer.Run(); err != nil {
			mcpErr <- err
		}
	}()

	server, err := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, storeInst, gw, planExecutor, sched, mcpServer, logger)
	if err != nil {
		logger.Error("create server", "err", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	case err := <-mcpErr:
		logger.Error("mcp server error", "err", err)
	}

	shutdown(server, sched, cfg.ShutdownGrace, logger)
	logger.Info("shutdown complete")
}

func shutdown(server *api.Server, sched *runner.Runner, grace time.Duration, logger *slog.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), grace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}

	stopCtx := sched.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(grace):
		logger.Warn("runner stop timed out")
	}
}
