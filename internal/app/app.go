// Package app opens the stores and sources selected by configuration. It is
// shared by the service and the admin CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/glizzus/livesfx/internal/config"
	"github.com/glizzus/livesfx/internal/datalayer"
	"github.com/glizzus/livesfx/internal/library"
	"github.com/glizzus/livesfx/internal/settings"
)

// OpenSettingsStore returns the configured settings backend and a function
// that releases its connections.
func OpenSettingsStore(ctx context.Context, cfg *config.SettingsConfig) (settings.Store, func(), error) {
	switch cfg.Backend {
	case config.SettingsBackendFile:
		slog.Info("Using settings file", "path", cfg.File)
		return settings.NewFileStore(cfg.File), func() {}, nil

	case config.SettingsBackendPostgres:
		pool, err := datalayer.NewPostgresPoolFromEnv(ctx)
		if err != nil {
			return nil, nil, err
		}
		if err := datalayer.MigratePostgres(pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		slog.Info("Using postgres settings store")
		return settings.NewPostgresStore(pool), pool.Close, nil

	case config.SettingsBackendRedis:
		rdb, err := datalayer.NewRedisClientFromEnv(ctx)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using redis settings store", "key", cfg.RedisKey)
		return settings.NewRedisStore(rdb, cfg.RedisKey), func() {
			if err := rdb.Close(); err != nil {
				slog.Warn("Failed to close redis client", "error", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown settings backend %q", cfg.Backend)
	}
}

// OpenBlobStorage connects to MinIO and makes sure the bucket exists.
func OpenBlobStorage(ctx context.Context) (*datalayer.MinioStorage, error) {
	storage, err := datalayer.NewMinioStorageFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create minio storage: %w", err)
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure minio bucket: %w", err)
	}
	return storage, nil
}

// OpenSoundSource returns where sound files are read from.
func OpenSoundSource(ctx context.Context, cfg *config.AudioConfig) (library.Source, error) {
	switch cfg.Source {
	case config.AudioSourceDir:
		slog.Info("Reading sounds from directory", "dir", cfg.SoundDir)
		return library.NewDirSource(cfg.SoundDir), nil
	case config.AudioSourceMinio:
		storage, err := OpenBlobStorage(ctx)
		if err != nil {
			return nil, err
		}
		slog.Info("Reading sounds from blob storage", "prefix", cfg.SoundPrefix)
		return library.NewBlobSource(storage, cfg.SoundPrefix), nil
	default:
		return nil, fmt.Errorf("unknown sound source %q", cfg.Source)
	}
}
