package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raaihank/transcript-sentinel/internal/api"
	"github.com/raaihank/transcript-sentinel/internal/cache"
	"github.com/raaihank/transcript-sentinel/internal/config"
	"github.com/raaihank/transcript-sentinel/internal/logger"
	"github.com/raaihank/transcript-sentinel/internal/store"
	"go.uber.org/zap"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
		watch       = flag.Bool("watch", true, "Reload privacy and segmenter settings when the config file changes")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("transcript-sentinel %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *healthCheck {
		performHealthCheck(cfg.Server.Port)
		return
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting transcript-sentinel",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)
	api.Version = version

	var deps api.Dependencies
	if cfg.Cache.Enabled {
		c, err := cache.NewResultCache(cfg.Cache, log)
		if err != nil {
			log.Fatal("Failed to create result cache", zap.Error(err))
		}
		defer c.Close()
		deps.Cache = c
	}
	if cfg.Store.Enabled {
		st, err := store.NewStore(cfg.Store, log)
		if err != nil {
			log.Fatal("Failed to create run store", zap.Error(err))
		}
		defer st.Close()
		deps.Store = st
	}

	server, err := api.New(cfg, log, deps)
	if err != nil {
		log.Fatal("Failed to create API server", zap.Error(err))
	}

	if *watch {
		err := config.Watch(func(next *config.Config) {
			if err := server.Reload(next); err != nil {
				log.Error("Failed to apply configuration", zap.Error(err))
			}
		}, func(err error) {
			log.Warn("Ignoring configuration change", zap.Error(err))
		})
		if err != nil {
			log.Info("Configuration hot reload disabled", zap.String("reason", err.Error()))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.Start(ctx)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Stop(shutdownCtx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			return
		}

		log.Info("Server shutdown complete")
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck(port int) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/health", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
