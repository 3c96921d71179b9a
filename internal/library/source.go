package library

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/glizzus/livesfx/internal/datalayer"
)

// Source opens sound files by the name they carry in the settings.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Names lists the decodable files the source holds, sorted.
	Names(ctx context.Context) ([]string, error)
}

// DirSource reads sound files from a local directory.
type DirSource struct {
	Dir string
}

var _ Source = (*DirSource)(nil)

func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

func (s *DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if !filepath.IsLocal(name) {
		return nil, fmt.Errorf("sound file name %q escapes the sound directory", name)
	}
	return os.Open(filepath.Join(s.Dir, name))
}

func (s *DirSource) Names(_ context.Context) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.Dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !supported(p) {
			return nil
		}
		rel, err := filepath.Rel(s.Dir, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sound directory: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

// BlobSource reads sound files from blob storage under a key prefix.
type BlobSource struct {
	storage datalayer.BlobStorage
	prefix  string
}

var _ Source = (*BlobSource)(nil)

func NewBlobSource(storage datalayer.BlobStorage, prefix string) *BlobSource {
	return &BlobSource{storage: storage, prefix: prefix}
}

// Key returns the object key a sound file is stored under.
func (s *BlobSource) Key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *BlobSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.storage.Get(ctx, s.Key(name))
}

func (s *BlobSource) Names(ctx context.Context) ([]string, error) {
	prefix := s.prefix
	if prefix != "" {
		prefix = strings.TrimSuffix(prefix, "/") + "/"
	}
	keys, err := s.storage.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list sounds under %q: %w", prefix, err)
	}
	var names []string
	for _, key := range keys {
		if supported(key) {
			names = append(names, strings.TrimPrefix(key, prefix))
		}
	}
	slices.Sort(names)
	return names, nil
}
