// Package config holds the jackclap run configuration: built-in defaults,
// an optional YAML file and command line overrides applied by the caller.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete run configuration.
type Config struct {
	// PluginID is the descriptor id to instantiate.
	PluginID string `yaml:"plugin_id"`
	// Bundle is the path of the .clap bundle. Empty means discover one.
	Bundle string `yaml:"bundle"`
	// SearchHints are preferred name fragments during discovery.
	SearchHints []string `yaml:"search_hints"`
	// Driver selects the audio server: jack or offline.
	Driver string `yaml:"driver"`

	Host    HostConfig    `yaml:"host"`
	JACK    JACKConfig    `yaml:"jack"`
	Offline OfflineConfig `yaml:"offline"`
	Engine  EngineConfig  `yaml:"engine"`
	Log     LogConfig     `yaml:"log"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// HostConfig is the identity presented to plugins.
type HostConfig struct {
	Name    string `yaml:"name"`
	Vendor  string `yaml:"vendor"`
	URL     string `yaml:"url"`
	Version string `yaml:"version"`
}

// JACKConfig contains JACK client settings.
type JACKConfig struct {
	ClientName  string   `yaml:"client_name"`
	Ports       []string `yaml:"ports"`
	AutoConnect bool     `yaml:"auto_connect"`
	StartServer bool     `yaml:"start_server"`
	Mlock       bool     `yaml:"mlock"`
}

// OfflineConfig contains settings of the device-less driver.
type OfflineConfig struct {
	SampleRate float64       `yaml:"sample_rate"`
	BufferSize uint32        `yaml:"buffer_size"`
	Duration   time.Duration `yaml:"duration"`
	Output     string        `yaml:"output"`
	BitDepth   int           `yaml:"bit_depth"`
	Realtime   bool          `yaml:"realtime"`
}

// EngineConfig contains orchestration settings.
type EngineConfig struct {
	// MainThreadInterval is how often plugin main-thread requests are serviced.
	MainThreadInterval time.Duration `yaml:"main_thread_interval"`
	// StatsInterval is how often render statistics are logged. Zero disables.
	StatsInterval time.Duration `yaml:"stats_interval"`
	ThreadCheck   bool          `yaml:"thread_check"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MonitorConfig contains settings of the terminal monitor.
type MonitorConfig struct {
	Enabled bool          `yaml:"enabled"`
	Refresh time.Duration `yaml:"refresh"`
}

// Defaults used when neither the file nor the flags set a value.
const (
	DefaultPluginID    = "in.lsp-plug.oscillator_mono"
	DefaultHostName    = "jack_minimal_clap"
	DefaultHostVendor  = "Giles"
	DefaultHostURL     = "https://example.invalid"
	DefaultHostVersion = "0.1.0"
	DefaultClientName  = "jackclap"
	DriverJACK         = "jack"
	DriverOffline      = "offline"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PluginID:    DefaultPluginID,
		SearchHints: []string{"osc", "synth"},
		Driver:      DriverJACK,
		Host: HostConfig{
			Name:    DefaultHostName,
			Vendor:  DefaultHostVendor,
			URL:     DefaultHostURL,
			Version: DefaultHostVersion,
		},
		JACK: JACKConfig{
			ClientName:  DefaultClientName,
			Ports:       []string{"out_l", "out_r"},
			AutoConnect: true,
		},
		Offline: OfflineConfig{
			SampleRate: 48000,
			BufferSize: 256,
			Duration:   5 * time.Second,
			BitDepth:   16,
		},
		Engine: EngineConfig{
			MainThreadInterval: 10 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
		Monitor: MonitorConfig{
			Refresh: 100 * time.Millisecond,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
