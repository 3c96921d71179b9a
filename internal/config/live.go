package config

import (
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// LiveConfig holds the open-platform credentials and the session timing.
type LiveConfig struct {
	Host         string `env:"LIVE_HOST, default=https://live-open.biliapi.com"`
	AppID        int64  `env:"LIVE_APP_ID, required"`
	AccessKey    string `env:"LIVE_ACCESS_KEY, required"`
	AccessSecret string `env:"LIVE_ACCESS_SECRET, required"`
	// IDCode overrides the id code kept in the settings store.
	IDCode string `env:"LIVE_ID_CODE"`

	HeartbeatInterval    time.Duration `env:"LIVE_HEARTBEAT_INTERVAL, default=20s"`
	RetryPause           time.Duration `env:"LIVE_RETRY_PAUSE, default=1s"`
	ReconnectMaxAttempts int           `env:"LIVE_RECONNECT_MAX_ATTEMPTS, default=0"`
	ReconnectBackoff     time.Duration `env:"LIVE_RECONNECT_BACKOFF, default=1s"`
	ReconnectMaxBackoff  time.Duration `env:"LIVE_RECONNECT_MAX_BACKOFF, default=30s"`
}

func NewLiveConfigFromEnv() (*LiveConfig, error) {
	return newLiveConfig(nil)
}

func newLiveConfig(l envconfig.Lookuper) (*LiveConfig, error) {
	var cfg LiveConfig
	if err := process(&cfg, l); err != nil {
		return nil, err
	}
	if cfg.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("LIVE_HEARTBEAT_INTERVAL must be positive, got %s", cfg.HeartbeatInterval)
	}
	if cfg.ReconnectMaxAttempts < 0 {
		return nil, fmt.Errorf("LIVE_RECONNECT_MAX_ATTEMPTS must not be negative")
	}
	return &cfg, nil
}
