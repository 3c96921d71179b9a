package config

import "github.com/sethvargo/go-envconfig"

type MinioConfig struct {
	Endpoint string `env:"MINIO_ENDPOINT, required"`
	Username string `env:"MINIO_USERNAME, required"`
	Password string `env:"MINIO_PASSWORD, required"`
	Bucket   string `env:"MINIO_BUCKET, default=livesfx"`
	Secure   bool   `env:"MINIO_SECURE, default=false"`
}

func NewMinioConfigFromEnv() (*MinioConfig, error) {
	return newMinioConfig(nil)
}

func newMinioConfig(l envconfig.Lookuper) (*MinioConfig, error) {
	var cfg MinioConfig
	if err := process(&cfg, l); err != nil {
		return nil, err
	}
	return &cfg, nil
}
