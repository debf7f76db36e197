package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the service configuration loaded from TOML.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`

	Authority    string `toml:"Authority"`
	FeeRecipient string `toml:"FeeRecipient"`

	Oracle    OracleConfig    `toml:"Oracle"`
	Telemetry TelemetryConfig `toml:"Telemetry"`
}

// OracleConfig selects the price feeds consulted by the aggregator.
type OracleConfig struct {
	Endpoint    string `toml:"Endpoint"`
	APIKey      string `toml:"APIKey"`
	PrimaryFeed string `toml:"PrimaryFeed"`
	BackupFeed  string `toml:"BackupFeed"`
	MaxAgeSecs  uint64 `toml:"MaxAgeSecs"`
}

// MaxAge returns the configured maximum quote age, or zero when the
// aggregator default should apply.
func (o OracleConfig) MaxAge() time.Duration {
	return time.Duration(o.MaxAgeSecs) * time.Second
}

// TelemetryConfig controls the OTLP exporters.
type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// Load reads the configuration at path, writing and returning a default file
// when none exists yet. Missing fields are normalised to their defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	normalise(cfg)
	return cfg, nil
}

func normalise(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./stablecore-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if strings.TrimSpace(cfg.Oracle.PrimaryFeed) == "" {
		cfg.Oracle.PrimaryFeed = "sol-usd-primary"
	}
	if strings.TrimSpace(cfg.Oracle.BackupFeed) == "" {
		cfg.Oracle.BackupFeed = "sol-usd-backup"
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8080",
		DataDir:       "./stablecore-data",
		Environment:   "local",
		Oracle: OracleConfig{
			PrimaryFeed: "sol-usd-primary",
			BackupFeed:  "sol-usd-backup",
		},
		Telemetry: TelemetryConfig{
			Insecure: true,
		},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
