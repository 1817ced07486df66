// Package main is the entry point for the devlink-bridge binary: the
// daemon that exports local devices to remote peers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/devlinkhq/devlink/internal/bridge"
	"github.com/devlinkhq/devlink/internal/devsim"
	"github.com/devlinkhq/devlink/pkg/config"
	"github.com/devlinkhq/devlink/pkg/logging"
	"github.com/devlinkhq/devlink/pkg/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "devlink-bridge",
		Short: "Device bridge for devlink",
		Long: `Exports local hardware devices over the devlink wire protocol so
remote peers can open them through their own camera, CAN, serial, and
depth surfaces.

Example:
  devlink-bridge --listen :7368 --simulate`,
		RunE: runBridge,
	}

	rootCmd.Flags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.Flags().String("listen", "", "Session listen address (overrides config)")
	rootCmd.Flags().String("metrics-listen", "", "Prometheus listen address (overrides config)")
	rootCmd.Flags().Bool("simulate", false, "Serve simulated devices instead of real hardware")
	rootCmd.Flags().StringP("log-level", "l", "", "Log level (debug, info, warn, error)")

	return rootCmd
}

func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		cfg.Bridge.Listen = v
	}
	if v, _ := cmd.Flags().GetString("metrics-listen"); v != "" {
		cfg.Bridge.MetricsListen = v
	}
	if v, _ := cmd.Flags().GetBool("simulate"); v {
		cfg.Bridge.Simulate = true
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	return cfg, nil
}

// drivers assembles the exported backends. Real hardware drivers register
// themselves through the surface packages; without any, --simulate is the
// only way to serve devices.
func drivers(cfg *config.Config) (bridge.Drivers, error) {
	if cfg.Bridge.Simulate {
		return bridge.Drivers{
			Camera: devsim.NewCameraDriver(),
			CAN:    devsim.NewCANDriver(),
			Serial: devsim.NewSerialDriver(),
			Depth:  devsim.NewDepthDriver(),
		}, nil
	}
	return bridge.Drivers{}, errors.New("no hardware drivers linked in; run with --simulate")
}

func runBridge(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.Setup(cfg.Logging)

	shutdownTelemetry, err := telemetry.SetupProvider(cmd.Context(), telemetry.Config{
		ServiceName: "devlink-bridge",
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}

	d, err := drivers(cfg)
	if err != nil {
		return err
	}
	srv := bridge.NewServer(d, nil)

	// Metrics endpoint.
	var metricsSrv *http.Server
	if cfg.Bridge.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", srv.Metrics().Handler())
		metricsSrv = &http.Server{Addr: cfg.Bridge.MetricsListen, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("starting devlink-bridge",
		"listen", cfg.Bridge.Listen,
		"metrics", cfg.Bridge.MetricsListen,
		"simulate", cfg.Bridge.Simulate,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.Bridge.Listen)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error("bridge failed", "error", err)
			return err
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Close(); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown failed", "error", err)
	}

	logger.Info("bridge stopped")
	return nil
}
