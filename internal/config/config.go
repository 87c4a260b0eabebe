// Package config loads uhdrtool settings from YAML.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds defaults for the uhdrtool commands.
type Config struct {
	Encode struct {
		// Quality of the base JPEG.
		Quality int `yaml:"quality"`
		// GainMapQuality of the gain map JPEG.
		GainMapQuality int `yaml:"gainMapQuality"`
		// Transfer of HDR input, "hlg" or "pq".
		Transfer string `yaml:"transfer"`
		// Gamut of HDR input.
		Gamut string `yaml:"gamut"`
	} `yaml:"encode"`

	Decode struct {
		Boost  float32 `yaml:"boost"`
		Format string  `yaml:"format"`
		// Gamut of the output, empty keeps the base gamut.
		Gamut string `yaml:"gamut"`
	} `yaml:"decode"`

	Runtime struct {
		// Workers limits goroutines per call, 0 uses all cores.
		Workers int `yaml:"workers"`
	} `yaml:"runtime"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Encode.Quality = 95
	cfg.Encode.GainMapQuality = 85
	cfg.Encode.Transfer = "hlg"
	cfg.Encode.Gamut = "bt2100"

	cfg.Decode.Boost = 1000.0 / 203
	cfg.Decode.Format = "hdr-linear"

	return cfg
}

// Load reads a YAML file over the defaults, a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the directory when needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o600), "write config")
}
