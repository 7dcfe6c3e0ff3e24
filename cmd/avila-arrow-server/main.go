package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"charm.land/log/v2"

	"github.com/avila-org/avila-arrow/lifecycle"
	"github.com/avila-org/avila-arrow/metrics"
	"github.com/avila-org/avila-arrow/server"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "avila-arrow",
	})

	if status := lifecycle.Init(); status != lifecycle.StatusOK {
		logger.Fatal("library initialization failed", "status", status)
	}

	cfg, err := server.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	m := metrics.NewMetrics("avila_arrow")
	m.SetInitialized(lifecycle.Initialized())

	metricsServer := metrics.NewMetricsServer(cfg.MetricsAddr)
	metricsServer.StartAsync()
	logger.Info("metrics listening", "addr", cfg.MetricsAddr)

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	srv.Handler().SetMetrics(m)

	if err := srv.StartAsync(); err != nil {
		logger.Fatal("failed to start server", "error", err)
	}
	logger.Info("compute server started", "addr", srv.Addr(), "version", lifecycle.Version)

	// Keep pool and queue gauges fresh
	statsDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-statsDone:
				return
			case <-ticker.C:
				queueStats, poolStats := srv.Handler().Stats()
				m.UpdateJobQueueSize(queueStats.Size)
				m.UpdateWorkerPool(int(poolStats.Active), poolStats.Pending)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	close(statsDone)
	srv.Stop()
	if err := metricsServer.Stop(); err != nil {
		logger.Warn("metrics server stop failed", "error", err)
	}
	logger.Info("server stopped")
}
