package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

type MetricsConfig struct {
	// Addr is where /metrics is served. Empty disables the endpoint.
	Addr     string `env:"METRICS_ADDR"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
}

func NewMetricsConfigFromEnv() (*MetricsConfig, error) {
	return newMetricsConfig(nil)
}

func newMetricsConfig(l envconfig.Lookuper) (*MetricsConfig, error) {
	var cfg MetricsConfig
	if err := process(&cfg, l); err != nil {
		return nil, err
	}
	if _, err := cfg.Level(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Level parses LogLevel into a slog level.
func (c *MetricsConfig) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}
