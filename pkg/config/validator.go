package config

import (
	"fmt"
	"time"

	"github.com/justyntemme/jackclap/pkg/debug"
)

// Validate checks cfg and fills in defaults for unset values.
func Validate(cfg *Config) error {
	if cfg.PluginID == "" {
		cfg.PluginID = DefaultPluginID
	}

	switch cfg.Driver {
	case "":
		cfg.Driver = DriverJACK
	case DriverJACK, DriverOffline:
	default:
		return fmt.Errorf("driver must be %q or %q, got %q", DriverJACK, DriverOffline, cfg.Driver)
	}

	if cfg.Host.Name == "" {
		return fmt.Errorf("host.name is required")
	}
	if cfg.Host.Version == "" {
		return fmt.Errorf("host.version is required")
	}

	if cfg.JACK.ClientName == "" {
		cfg.JACK.ClientName = DefaultClientName
	}
	if len(cfg.JACK.Ports) == 0 {
		cfg.JACK.Ports = []string{"out_l", "out_r"}
	}
	if len(cfg.JACK.Ports) > 8 {
		return fmt.Errorf("jack.ports: at most 8 ports, got %d", len(cfg.JACK.Ports))
	}
	seen := make(map[string]bool, len(cfg.JACK.Ports))
	for _, p := range cfg.JACK.Ports {
		if p == "" {
			return fmt.Errorf("jack.ports: empty port name")
		}
		if seen[p] {
			return fmt.Errorf("jack.ports: duplicate port %q", p)
		}
		seen[p] = true
	}

	if err := validateOffline(&cfg.Offline); err != nil {
		return fmt.Errorf("offline: %w", err)
	}

	if cfg.Engine.MainThreadInterval <= 0 {
		cfg.Engine.MainThreadInterval = 10 * time.Millisecond
	}
	if cfg.Engine.StatsInterval < 0 {
		return fmt.Errorf("engine.stats_interval must be >= 0")
	}

	if _, err := debug.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if cfg.Monitor.Refresh <= 0 {
		cfg.Monitor.Refresh = 100 * time.Millisecond
	}
	return nil
}

func validateOffline(o *OfflineConfig) error {
	if o.SampleRate == 0 {
		o.SampleRate = 48000
	}
	if o.SampleRate < 0 {
		return fmt.Errorf("sample_rate must be > 0")
	}
	if o.BufferSize == 0 {
		o.BufferSize = 256
	}
	if o.BufferSize > 1<<16 {
		return fmt.Errorf("buffer_size must be <= %d", 1<<16)
	}
	if o.Duration < 0 {
		return fmt.Errorf("duration must be >= 0")
	}
	if o.BitDepth == 0 {
		o.BitDepth = 16
	}
	if o.BitDepth != 16 && o.BitDepth != 24 {
		return fmt.Errorf("bit_depth must be 16 or 24, got %d", o.BitDepth)
	}
	return nil
}
