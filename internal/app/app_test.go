package app_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/glizzus/livesfx/internal/app"
	"github.com/glizzus/livesfx/internal/config"
	"github.com/glizzus/livesfx/internal/library"
	"github.com/glizzus/livesfx/internal/settings"
)

func TestOpenSettingsStoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store, closeStore, err := app.OpenSettingsStore(t.Context(), &config.SettingsConfig{
		Backend: config.SettingsBackendFile,
		File:    path,
	})
	if err != nil {
		t.Fatalf("OpenSettingsStore failed: %v", err)
	}
	defer closeStore()

	fileStore, ok := store.(*settings.FileStore)
	if !ok || fileStore.Path != path {
		t.Fatalf("expected a file store for %s, got %#v", path, store)
	}
}

func TestOpenSettingsStoreUnknown(t *testing.T) {
	if _, _, err := app.OpenSettingsStore(t.Context(), &config.SettingsConfig{Backend: "etcd"}); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}

func TestOpenSoundSourceDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.wav"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	source, err := app.OpenSoundSource(t.Context(), &config.AudioConfig{
		Source:   config.AudioSourceDir,
		SoundDir: dir,
	})
	if err != nil {
		t.Fatalf("OpenSoundSource failed: %v", err)
	}
	if _, ok := source.(*library.DirSource); !ok {
		t.Fatalf("expected a directory source, got %T", source)
	}

	rc, err := source.Open(t.Context(), "a.wav")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	rc.Close()
}
