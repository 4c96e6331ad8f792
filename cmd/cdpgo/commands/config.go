package commands

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/wirebird/cdpgo/cdp"
)

// config holds the resolved CLI settings: defaults, overlaid by an optional
// TOML file, overlaid by flags.
type config struct {
	Host    string
	Port    int
	Timeout time.Duration
	Verbose bool
}

func defaultConfig() config {
	return config{
		Host:    cdp.DefaultHost,
		Port:    cdp.DefaultPort,
		Timeout: 30 * time.Second,
	}
}

// cdpgo config.toml key mapping.
type fileConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Timeout string `toml:"timeout"`
	Verbose bool   `toml:"verbose"`
}

// loadConfig overlays the TOML file at path onto cfg. Only keys present in
// the file override.
func loadConfig(path string, cfg config) (config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("host") {
		cfg.Host = raw.Host
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return config{}, fmt.Errorf("load config: parsing timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("verbose") {
		cfg.Verbose = raw.Verbose
	}
	return cfg, nil
}
