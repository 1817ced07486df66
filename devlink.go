// Package devlink installs transparent local/remote routing into the
// hardware API surfaces: camera capture, CAN bus, serial ports, and the
// depth-camera pipeline. After Install, the surface constructors route
// each identifier by its shape; a 64-hex peer ID or a relay path reaches a
// remote device through the bridge, anything else reaches local hardware.
package devlink

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devlinkhq/devlink/internal/remote"
	"github.com/devlinkhq/devlink/pkg/camera"
	"github.com/devlinkhq/devlink/pkg/canbus"
	"github.com/devlinkhq/devlink/pkg/config"
	"github.com/devlinkhq/devlink/pkg/depth"
	"github.com/devlinkhq/devlink/pkg/serial"
)

var (
	connMu sync.Mutex
	conn   *remote.Connector
)

// Install binds remote routing into every surface and applies the
// configured per-surface deadlines. Installing twice is a no-op beyond
// re-applying the relay address and timeouts. A nil cfg uses the defaults
// plus environment overrides (DEVLINK_RELAY, DEVLINK_TIMEOUT).
func Install(cfg *config.Config) error {
	if cfg == nil {
		var err error
		cfg, err = config.Load("")
		if err != nil {
			return err
		}
	}

	connMu.Lock()
	if conn == nil {
		conn = remote.NewConnector(cfg.Relay.Address)
	} else {
		conn.SetRelay(cfg.Relay.Address)
	}
	c := conn
	connMu.Unlock()

	if err := camera.Install(c); err != nil {
		return fmt.Errorf("install camera: %w", err)
	}
	if err := canbus.Install(c); err != nil {
		return fmt.Errorf("install canbus: %w", err)
	}
	if err := serial.Install(c); err != nil {
		return fmt.Errorf("install serial: %w", err)
	}
	if err := depth.Install(c); err != nil {
		return fmt.Errorf("install depth: %w", err)
	}

	return applyTimeouts(cfg)
}

func applyTimeouts(cfg *config.Config) error {
	for surface, set := range map[string]func(time.Duration) error{
		"camera": camera.SetTimeout,
		"canbus": canbus.SetTimeout,
		"serial": serial.SetTimeout,
		"depth":  depth.SetTimeout,
	} {
		if err := set(cfg.Timeouts.For(surface)); err != nil {
			return fmt.Errorf("apply %s timeout: %w", surface, err)
		}
	}
	return nil
}

// InstallWithReload installs from the file at path and keeps watching it:
// relay and timeout edits apply without a restart. The returned loader's
// Close stops the watch.
func InstallWithReload(path string) (*config.Loader, error) {
	loader, err := config.NewLoader(path)
	if err != nil {
		return nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		loader.Close()
		return nil, err
	}
	if err := Install(cfg); err != nil {
		loader.Close()
		return nil, err
	}

	err = loader.Watch(func(cfg *config.Config) {
		if err := Install(cfg); err != nil {
			slog.Warn("config reload not applied", "error", err)
		}
	})
	if err != nil {
		loader.Close()
		return nil, err
	}
	return loader, nil
}
