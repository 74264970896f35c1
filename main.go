package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicswap/escrow-engine/pkg/api"
	"github.com/mosaicswap/escrow-engine/pkg/config"
	"github.com/mosaicswap/escrow-engine/pkg/escrow"
	"github.com/mosaicswap/escrow-engine/pkg/health"
	"github.com/mosaicswap/escrow-engine/pkg/ledger"
	"github.com/mosaicswap/escrow-engine/pkg/logger"
	"github.com/mosaicswap/escrow-engine/pkg/nodepool"
	"github.com/mosaicswap/escrow-engine/pkg/signer"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	stdLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		stdLogger.Notice("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	// Wire the node pool, ledger gateway, signer sessions, and the escrow
	// service. Each flow opens its own signer session.
	pool := nodepool.New(cfg, stdLogger)
	gateway := ledger.NewClient(pool, stdLogger)
	sessions := func() signer.Device {
		return signer.NewRemoteDevice(cfg.SignerURL)
	}
	service := escrow.NewService(cfg, gateway, sessions, stdLogger)

	healthServer := health.NewServer(cfg.MetricsPort, pool, stdLogger)
	go func() {
		if err := healthServer.Start(ctx); err != nil {
			stdLogger.Error("Health server error: %v", err)
		}
	}()

	stdLogger.Info("Starting the escrow engine...")
	apiServer := api.NewServer(cfg.APIPort, service, stdLogger)
	if err := apiServer.Start(ctx); err != nil {
		log.Fatalf("API server error: %v", err)
	}
}
