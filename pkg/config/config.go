// Package config loads the server's ambient, non-wire-contract settings.
//
// The positional CLI arguments (levels dir, max games, register pipe) are
// the load-bearing contract from spec §6 and are never read from here;
// this package only covers operational knobs layered on top of that
// contract (logging, introspection report path, admission queue capacity,
// metrics listener address).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pacmanist/pacmanserver/pkg/logging"
)

// Config is the optional ambient configuration loaded from -config.
type Config struct {
	Logging logging.Config `yaml:"logging"`

	// ReportPath is where the introspection report is written on SIGUSR1.
	ReportPath string `yaml:"report_path"`

	// QueueCapacity bounds the admission queue (spec §4.3 default: 10).
	QueueCapacity int `yaml:"queue_capacity"`

	// MetricsAddr, if non-empty, starts a Prometheus /metrics listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Defaults returns the configuration used when -config is not given.
func Defaults() Config {
	return Config{
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		ReportPath:    "server_log.txt",
		QueueCapacity: 10,
		MetricsAddr:   "",
	}
}

// Load reads and parses a YAML config file, expanding environment
// variables first. Fields left zero-valued in the file fall back to
// Defaults(). A missing path is not an error at the call site — callers
// should only invoke Load when -config was actually given.
func Load(configPath string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = Defaults().QueueCapacity
	}
	if cfg.ReportPath == "" {
		cfg.ReportPath = Defaults().ReportPath
	}

	return cfg, nil
}
