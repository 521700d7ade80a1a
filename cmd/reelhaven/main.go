package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/reelhaven/reelhaven/internal/backend"
	"github.com/reelhaven/reelhaven/internal/config"
	"github.com/reelhaven/reelhaven/internal/events"
	"github.com/reelhaven/reelhaven/internal/modules/pluginui"
	"github.com/reelhaven/reelhaven/internal/settings"
)

func main() {
	configPath := flag.String("config", os.Getenv("REELHAVEN_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		hclog.Default().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "reelhaven",
		Level:      hclog.LevelFromString(cfg.Logging.Level),
		JSONFormat: cfg.Logging.Format == "json",
	})

	store, err := settings.Open(cfg.Settings.DatabasePath, logger)
	if err != nil {
		logger.Error("failed to open settings store", "error", err)
		os.Exit(1)
	}

	// A backend URL remembered in the settings store wins over the static
	// configuration.
	cfg.Backend.BaseURL = store.GetDefault(settings.KeyBackendURL, cfg.Backend.BaseURL)
	cfg.Plugins.Locale = store.GetDefault(settings.KeyLocale, cfg.Plugins.Locale)

	bus := events.NewBus(logger)
	client := backend.NewClient(cfg.Backend, logger)

	module := pluginui.NewModule(cfg.Plugins, client, bus, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := module.Initialize(ctx); err != nil {
		logger.Error("failed to initialize plugin UI module", "error", err)
		os.Exit(1)
	}
	defer module.Shutdown()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	pluginui.NewAPIHandlers(module, logger).RegisterRoutes(router)

	server := &http.Server{
		Addr:    cfg.Host.Listen,
		Handler: router,
	}

	go func() {
		logger.Info("host API listening", "addr", cfg.Host.Listen, "backend", cfg.Backend.BaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("host API server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("host API shutdown timed out", "error", err)
	}
}
