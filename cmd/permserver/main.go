package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zeusync/glowline/internal/config"
	"github.com/zeusync/glowline/internal/core/observability/log"
	"github.com/zeusync/glowline/internal/injector"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	app, err := injector.InitializeServer(cfg)
	if err != nil {
		fmt.Println("Error creating server:", err)
		os.Exit(1)
	}
	logger := app.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)

	if err := app.Server.Start(ctx); err != nil {
		logger.Fatal("Error starting server", log.Error(err))
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(app.Metrics, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped", log.Error(err))
			}
		}()
		logger.Info("Serving metrics", log.String("addr", cfg.Metrics.Addr))
	}

	<-stopCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := app.Server.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping server", log.Error(err))
	}
	_ = app.Server.Close()
}
