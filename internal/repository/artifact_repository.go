package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/teleguard/agent/internal/models"
)

const (
	artifactSuffix = ".json"
	tempSuffix     = ".tmp"
)

// ArtifactRepository is the durable pending queue: one self-contained JSON
// file per artifact under a single directory. Filenames are the artifact ids,
// so lexical order equals creation order. A coarse mutex serializes
// append/list/remove; a crash mid-append leaves only a temp file behind,
// which List ignores.
type ArtifactRepository struct {
	dir    string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewArtifactRepository ensures the queue directory exists.
func NewArtifactRepository(dir string, logger *zap.Logger) (*ArtifactRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		dir = "./captures"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &ArtifactRepository{dir: dir, logger: logger}, nil
}

// Append durably persists the artifact before returning: write to a temp file
// in the same directory, sync, then rename into place. The rename is the
// commit point; completed artifacts are never affected by a torn write.
func (r *ArtifactRepository) Append(ctx context.Context, artifact *models.Artifact) error {
	if artifact == nil || artifact.ID == "" {
		return fmt.Errorf("append artifact: missing id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", artifact.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	final := filepath.Join(r.dir, artifact.ID+artifactSuffix)
	tmp := final + tempSuffix

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create artifact temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write artifact %s: %w", artifact.ID, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync artifact %s: %w", artifact.ID, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close artifact %s: %w", artifact.ID, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit artifact %s: %w", artifact.ID, err)
	}
	return nil
}

// List returns all pending artifacts oldest-first. Entries that fail to parse
// (crash leftovers, foreign files) are skipped with a warning and never hide
// complete artifacts.
func (r *ArtifactRepository) List(ctx context.Context) ([]models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read artifact directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), artifactSuffix) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	artifacts := make([]models.Artifact, 0, len(names))
	for _, name := range names {
		path := filepath.Join(r.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("skipping unreadable artifact", zap.String("file", name), zap.Error(err))
			continue
		}
		var artifact models.Artifact
		if err := json.Unmarshal(data, &artifact); err != nil {
			r.logger.Warn("skipping corrupt artifact", zap.String("file", name), zap.Error(err))
			continue
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

// Remove deletes a pending artifact. Idempotent: a missing id is a no-op.
func (r *ArtifactRepository) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path := filepath.Join(r.dir, id+artifactSuffix)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove artifact %s: %w", id, err)
	}
	return nil
}

// Count reports how many artifacts are pending.
func (r *ArtifactRepository) Count(ctx context.Context) (int, error) {
	artifacts, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(artifacts), nil
}
