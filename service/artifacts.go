package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactStore holds generated documents. Locations returned by Save are opaque
// to callers and are what the contract row stores.
type ArtifactStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Open(ctx context.Context, location string) ([]byte, error)
	// Remove deletes location. A missing artifact is not an error.
	Remove(ctx context.Context, location string) error
}

// LocalArtifacts writes documents below a directory on disk.
type LocalArtifacts struct {
	dir string
}

func NewLocalArtifacts(dir string) (*LocalArtifacts, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	return &LocalArtifacts{dir: dir}, nil
}

func (a *LocalArtifacts) path(location string) (string, error) {
	clean := filepath.Clean("/" + location)
	if strings.Contains(location, "..") {
		return "", fmt.Errorf("invalid artifact location %q", location)
	}
	return filepath.Join(a.dir, clean), nil
}

func (a *LocalArtifacts) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	p, err := a.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return key, nil
}

func (a *LocalArtifacts) Open(ctx context.Context, location string) ([]byte, error) {
	p, err := a.path(location)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

func (a *LocalArtifacts) Remove(ctx context.Context, location string) error {
	p, err := a.path(location)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	return nil
}
