package config

import (
	"fmt"

	"github.com/glizzus/livesfx/internal/schedule"
	"github.com/sethvargo/go-envconfig"
)

const (
	AudioSourceDir   = "dir"
	AudioSourceMinio = "minio"
)

type AudioConfig struct {
	SampleRate  int    `env:"AUDIO_SAMPLE_RATE, default=44100"`
	MaxVoices   int    `env:"AUDIO_MAX_VOICES, default=64"`
	Source      string `env:"AUDIO_SOURCE, default=dir"`
	SoundDir    string `env:"AUDIO_SOUND_DIR, default=sound"`
	SoundPrefix string `env:"AUDIO_SOUND_PREFIX, default=sounds"`
	ReloadCron  string `env:"AUDIO_RELOAD_CRON"`
	Disabled    bool   `env:"AUDIO_DISABLED, default=false"`
}

func NewAudioConfigFromEnv() (*AudioConfig, error) {
	return newAudioConfig(nil)
}

func newAudioConfig(l envconfig.Lookuper) (*AudioConfig, error) {
	var cfg AudioConfig
	if err := process(&cfg, l); err != nil {
		return nil, err
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("AUDIO_SAMPLE_RATE must be positive, got %d", cfg.SampleRate)
	}
	if cfg.MaxVoices <= 0 {
		return nil, fmt.Errorf("AUDIO_MAX_VOICES must be positive, got %d", cfg.MaxVoices)
	}
	switch cfg.Source {
	case AudioSourceDir, AudioSourceMinio:
	default:
		return nil, fmt.Errorf("unknown AUDIO_SOURCE %q", cfg.Source)
	}
	if cfg.ReloadCron != "" {
		if err := schedule.ValidateCron(cfg.ReloadCron); err != nil {
			return nil, fmt.Errorf("AUDIO_RELOAD_CRON: %w", err)
		}
	}
	return &cfg, nil
}
