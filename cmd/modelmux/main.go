// Package main provides the entry point for the modelmux service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelmux/modelmux/internal/config"
	"github.com/modelmux/modelmux/internal/gateway"
	"github.com/modelmux/modelmux/internal/metrics"
	"github.com/modelmux/modelmux/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search ./configs and .)")
	flag.Parse()

	configManager := config.NewManager()
	var err error
	if *configPath != "" {
		err = configManager.LoadFile(*configPath)
	} else {
		err = configManager.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.Get()

	logger := utils.NewLogger(&cfg.Logging)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build gateway: %v", err)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 15*time.Second)
	gw.RefreshRemoteModels(startupCtx)
	startupCancel()

	stop := make(chan struct{})

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.WithField("addr", metricsServer.Addr).Info("Metrics endpoint listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()

		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					gw.SyncResidency()
				case <-stop:
					return
				}
			}
		}()
	}

	logger.WithField("capabilities", gw.Capabilities()).Info("modelmux ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	close(stop)

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("Metrics server shutdown failed")
		}
	}
	if err := gw.Close(); err != nil {
		logger.WithError(err).Warn("Gateway shutdown reported an error")
	}

	logger.Info("Exited")
}
