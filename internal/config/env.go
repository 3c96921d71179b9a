package config

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// LoadEnv loads variables from a .env file in the working directory.
// Variables already present in the environment win. A missing file is
// reported as an os.ErrNotExist error so callers can ignore it.
func LoadEnv() error {
	return godotenv.Load()
}

// process fills cfg from the process environment, or from l when it is set.
func process(cfg any, l envconfig.Lookuper) error {
	if l == nil {
		l = envconfig.OsLookuper()
	}
	return envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	})
}
