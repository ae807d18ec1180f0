// Package store persists pipeline state between runs: JSON stage
// checkpoints, flat URI backups, a sqlite library index and an in-memory
// seen-URI store.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

const (
	filePermission = 0600
	dirPermission  = 0700
)

// Checkpoint is one saved pipeline stage: every collection with the full
// track metadata, tri-state URIs included.
type Checkpoint struct {
	Stage       string                        `json:"stage"`
	SavedAt     time.Time                     `json:"saved_at"`
	Collections map[string][]*core.LocalTrack `json:"collections"`
}

// CheckpointStore saves and restores stage checkpoints as JSON files under
// one directory, one file per stage name.
type CheckpointStore struct {
	dir string
	log *zap.Logger
}

func NewCheckpointStore(dir string, log *zap.Logger) *CheckpointStore {
	return &CheckpointStore{dir: dir, log: log.Named("checkpoint")}
}

func (s *CheckpointStore) path(stage string) string {
	return filepath.Join(s.dir, stage+".json")
}

// Save writes the stage checkpoint, replacing any previous one.
func (s *CheckpointStore) Save(stage string, collections map[string][]*core.LocalTrack) error {
	if err := os.MkdirAll(s.dir, dirPermission); err != nil {
		return fmt.Errorf("creating checkpoint dir: %w", err)
	}

	checkpoint := Checkpoint{
		Stage:       stage,
		SavedAt:     time.Now().UTC(),
		Collections: collections,
	}
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint %s: %w", stage, err)
	}

	if err := os.WriteFile(s.path(stage), data, filePermission); err != nil {
		return fmt.Errorf("writing checkpoint %s: %w", stage, err)
	}

	s.log.Info("checkpoint saved",
		zap.String("stage", stage),
		zap.Int("collections", len(collections)))
	return nil
}

// Load reads the stage checkpoint. A missing file is not an error; the
// second return value reports whether a checkpoint was found.
func (s *CheckpointStore) Load(stage string) (map[string][]*core.LocalTrack, bool, error) {
	data, err := os.ReadFile(s.path(stage))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading checkpoint %s: %w", stage, err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, false, fmt.Errorf("decoding checkpoint %s: %w", stage, err)
	}

	s.log.Info("checkpoint loaded",
		zap.String("stage", stage),
		zap.Time("saved_at", checkpoint.SavedAt),
		zap.Int("collections", len(checkpoint.Collections)))
	return checkpoint.Collections, true, nil
}

// Delete removes the stage checkpoint if it exists.
func (s *CheckpointStore) Delete(stage string) error {
	err := os.Remove(s.path(stage))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing checkpoint %s: %w", stage, err)
	}
	return nil
}
