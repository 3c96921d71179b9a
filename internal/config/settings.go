package config

import (
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

const (
	SettingsBackendFile     = "file"
	SettingsBackendPostgres = "postgres"
	SettingsBackendRedis    = "redis"
)

type SettingsConfig struct {
	Backend  string `env:"SETTINGS_BACKEND, default=file"`
	File     string `env:"SETTINGS_FILE, default=config.json"`
	RedisKey string `env:"SETTINGS_REDIS_KEY, default=livesfx:settings"`
}

func NewSettingsConfigFromEnv() (*SettingsConfig, error) {
	return newSettingsConfig(nil)
}

func newSettingsConfig(l envconfig.Lookuper) (*SettingsConfig, error) {
	var cfg SettingsConfig
	if err := process(&cfg, l); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case SettingsBackendFile, SettingsBackendPostgres, SettingsBackendRedis:
	default:
		return nil, fmt.Errorf("unknown SETTINGS_BACKEND %q", cfg.Backend)
	}
	return &cfg, nil
}
