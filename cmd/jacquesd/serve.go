package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/config"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/fanout"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/ingestion"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/registry"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/telemetry"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion, registry, and fan-out services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg := loadConfig(configPath)
	log := telemetry.NewSlogLogger(nil)

	if err := os.MkdirAll(cfg.GlobalRoot, 0o755); err != nil {
		return fmt.Errorf("create global root: %w", err)
	}
	pidPath := filepath.Join(cfg.GlobalRoot, "jacquesd.pid")

	if err := checkIPCEndpointFree(cfg.SocketPath); err != nil {
		return err
	}
	fanoutAddr := fmt.Sprintf(":%d", cfg.WSPort)
	if err := checkTCPPortFree(fanoutAddr); err != nil {
		return err
	}
	if err := checkPIDFile(pidPath); err != nil {
		return err
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	reg := registry.New()
	defer reg.Close()

	staleAfter := time.Duration(cfg.StaleSessionMinutes) * time.Minute
	sweepEvery := time.Duration(cfg.CleanupIntervalMinutes) * time.Minute
	reg.StartSweeper(ctx, sweepEvery, staleAfter)

	ing := ingestion.New(reg, log)
	broadcaster := fanout.NewBroadcaster(reg, log, 150*time.Millisecond)
	handler := fanout.NewRegistryCommandHandler(reg, nil, log)
	fserver := fanout.NewServer(reg, broadcaster, handler, log, nil)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- ing.Serve(ctx, cfg.SocketPath) }()
	go func() { errCh <- fserver.ListenAndServe(ctx, fanoutAddr) }()

	log.Info(ctx, "jacquesd started", "socket", cfg.SocketPath, "ws_port", cfg.WSPort)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Warn(ctx, "service exited with error", "error", err.Error())
		}
	}

	log.Info(ctx, "jacquesd shutting down")
	_ = ing.Close()
	ing.Wait()
	return nil
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.LoadOrDefault(defaultConfigPath())
	}
	return config.LoadOrDefault(path)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".jacques", "config.yaml")
}
