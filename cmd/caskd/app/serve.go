package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/caskhub/caskd/internal/api"
	"github.com/caskhub/caskd/internal/config"
	"github.com/caskhub/caskd/internal/git"
	"github.com/caskhub/caskd/internal/httpclient"
	"github.com/caskhub/caskd/internal/registry"
	"github.com/caskhub/caskd/internal/sources"
	"github.com/caskhub/caskd/internal/store"
	"github.com/caskhub/caskd/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the registry daemon",
	Long: `Start the registry daemon: seed the repository list, refresh every
registered repository on a schedule, and serve the aggregated registry
over HTTP.

The server requires a configuration file (--config) naming at least the
default repository URL. See examples/config.yaml for a sample
configuration.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverRequestTimeout   = 10 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 15 * time.Second // must exceed serverRequestTimeout so the timeout middleware can respond
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides config)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	configPath := viper.GetString("config")
	cfg, err := config.Load(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	address := cfg.Address
	if flagAddr := viper.GetString("address"); flagAddr != "" {
		address = flagAddr
	}

	slog.Info("Starting caskd",
		"address", address,
		"default_repository", cfg.DefaultRepository,
		"refresh_interval", cfg.GetRefreshInterval(),
	)

	st, err := store.NewFileStore(cfg.StateDir())
	if err != nil {
		return fmt.Errorf("failed to create state store: %w", err)
	}

	factory := sources.NewFactory(
		httpclient.NewDefaultClient(httpclient.DefaultTimeout),
		git.NewDefaultClient(),
		sources.NewFileCacheStore(cfg.CacheDir()),
	)

	managerOpts := []registry.Option{}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		meter, err := telemetry.NewPrometheusMeter()
		if err != nil {
			return fmt.Errorf("failed to create meter: %w", err)
		}
		refreshMetrics, err := telemetry.NewRefreshMetrics(meter.Provider)
		if err != nil {
			return fmt.Errorf("failed to create refresh metrics: %w", err)
		}
		managerOpts = append(managerOpts, registry.WithRefreshMetrics(refreshMetrics))
		metricsHandler = meter.Handler
	}

	manager := registry.New(st, factory, registry.Config{
		DefaultRepository: cfg.DefaultRepository,
		RefreshInterval:   cfg.GetRefreshInterval(),
	}, managerOpts...)

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start registry manager: %w", err)
	}

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(
			middleware.RealIP,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
		),
	}
	if metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(metricsHandler))
	}
	router := api.NewServer(manager, serverOpts...)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down")

	if err := manager.Stop(); err != nil {
		slog.Error("Failed to stop registry manager", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Shutdown complete")
	return nil
}
