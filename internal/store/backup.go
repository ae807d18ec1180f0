package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

// Backup is a flat snapshot of URI decisions keyed by file path. It is the
// cheap-to-diff export format; checkpoints carry the full metadata.
type Backup map[string]core.URI

// BackupStore saves and restores flat URI backups as JSON files.
type BackupStore struct {
	dir string
	log *zap.Logger
}

func NewBackupStore(dir string, log *zap.Logger) *BackupStore {
	return &BackupStore{dir: dir, log: log.Named("backup")}
}

func (s *BackupStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Snapshot builds a backup from the current URI state of the given tracks.
func Snapshot(tracks []*core.LocalTrack) Backup {
	backup := make(Backup, len(tracks))
	for _, track := range tracks {
		backup[track.Path] = track.URI
	}
	return backup
}

// Save writes the backup under the given name.
func (s *BackupStore) Save(name string, backup Backup) error {
	if err := os.MkdirAll(s.dir, dirPermission); err != nil {
		return fmt.Errorf("creating backup dir: %w", err)
	}

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding backup %s: %w", name, err)
	}
	if err := os.WriteFile(s.path(name), data, filePermission); err != nil {
		return fmt.Errorf("writing backup %s: %w", name, err)
	}

	s.log.Info("backup saved", zap.String("name", name), zap.Int("tracks", len(backup)))
	return nil
}

// Load reads a named backup. A missing file is reported through the second
// return value, not as an error.
func (s *BackupStore) Load(name string) (Backup, bool, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading backup %s: %w", name, err)
	}

	var backup Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, false, fmt.Errorf("decoding backup %s: %w", name, err)
	}
	return backup, true, nil
}

// Restore overlays the backup onto the given tracks: every track whose path
// appears in the backup takes the backed-up URI, tri-state preserved. Tracks
// not in the backup keep their current state. Returns the number of tracks
// updated.
func Restore(backup Backup, tracks []*core.LocalTrack) int {
	restored := 0
	for _, track := range tracks {
		uri, ok := backup[track.Path]
		if !ok {
			continue
		}
		track.URI = uri
		restored++
	}
	return restored
}
