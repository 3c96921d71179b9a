package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store loads and persists the policy. Save must be idempotent: saving the
// same policy twice leaves the store unchanged.
type Store interface {
	Load(ctx context.Context) (*Policy, error)
	Save(ctx context.Context, p *Policy) error
}

// Update loads the policy, applies mutate to a copy and saves the result.
func Update(ctx context.Context, s Store, mutate func(*Policy) error) (*Policy, error) {
	current, err := s.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	return next, nil
}

// FileStore keeps the settings document in a single YAML or JSON file.
// A missing file loads as the default policy.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

var _ Store = (*FileStore)(nil)

func (s *FileStore) Load(_ context.Context) (*Policy, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var doc Document
	if isJSON(s.Path) {
		err = json.Unmarshal(raw, &doc)
	} else {
		err = yaml.Unmarshal(raw, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", s.Path, err)
	}
	return doc.Policy(), nil
}

func (s *FileStore) Save(_ context.Context, p *Policy) error {
	doc := NewDocument(p)

	var raw []byte
	var err error
	if isJSON(s.Path) {
		raw, err = json.MarshalIndent(doc, "", "    ")
	} else {
		raw, err = yaml.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	// Write next to the target and rename so readers never see a partial file.
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}

// isJSON reports whether path holds the JSON flavour of the document.
// Everything else is read as YAML.
func isJSON(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}
