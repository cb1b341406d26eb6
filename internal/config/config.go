// Package config holds server configuration, loaded from YAML with flag
// overrides applied by the caller.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML strings like "30s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the mosaic-wms server configuration.
type Config struct {
	Addr      string `yaml:"addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Metadata is the path of the JSON layer catalogue.
	Metadata string `yaml:"metadata"`

	// DefaultStrategy applies when neither the request nor the layer
	// names a merge strategy.
	DefaultStrategy string `yaml:"default_strategy"`

	// MaxWorkers bounds concurrent cell reads per tile request.
	MaxWorkers int `yaml:"max_workers"`
	// MaxAssets, when positive, caps the cells consulted per tile.
	MaxAssets int `yaml:"max_assets"`
	// AssetTimeout is the per-cell read deadline.
	AssetTimeout Duration `yaml:"asset_timeout"`

	// MaxArea rejects GetMap requests covering more than this many
	// square metres.
	MaxArea float64 `yaml:"max_area"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        "info",
		LogFormat:       "text",
		Metadata:        "metadata.json",
		DefaultStrategy: "first",
		MaxWorkers:      4,
		AssetTimeout:    Duration(30 * time.Second),
		MaxArea:         4e11,
	}
}

// Load reads path over the defaults. Zero-valued fields in the file keep
// their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.MaxWorkers < 1 {
		return cfg, fmt.Errorf("%s: max_workers must be at least 1", path)
	}
	return cfg, nil
}
