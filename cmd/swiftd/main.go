package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/swift-fca/swift/internal/config"
	"github.com/swift-fca/swift/internal/logger"
	"github.com/swift-fca/swift/internal/server"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	healthCheck := flag.Bool("health-check", false, "Check a running daemon on the configured port and exit")
	watch := flag.Bool("watch", true, "Apply profile changes to jobs started afterwards")
	flag.Parse()

	if *showVersion {
		fmt.Printf("swiftd %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "swiftd: %v\n", err)
		os.Exit(1)
	}

	if *healthCheck {
		if err := checkHealth(cfg.Server.Port); err != nil {
			fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Health check passed")
		return
	}

	if err := run(cfg, *watch); err != nil {
		fmt.Fprintf(os.Stderr, "swiftd: %v\n", err)
		os.Exit(1)
	}
}

// run serves until SIGINT or SIGTERM, then cancels jobs and drains requests
func run(cfg *config.Config, watch bool) error {
	log, err := logger.FromConfig(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("swiftd starting",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("port", cfg.Server.Port),
	)

	srv := server.New(cfg, log)
	if watch {
		if err := config.Watch(log.WithComponent("config").Logger, srv.UpdateConfig); err != nil {
			log.Warn("Profile reload disabled", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down, cancelling running jobs")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("swiftd stopped")
	return nil
}

func checkHealth(port int) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/health", port))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New(resp.Status)
	}
	return nil
}
