package library

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

// LoadPlaylists parses every M3U file in dir into a collection, resolving
// entries against the scanned track index. Entries pointing outside the
// scanned library are collected as load errors and skipped.
func (p *Provider) LoadPlaylists(dir string, index map[string]*core.LocalTrack) ([]*core.Collection, []*core.LoadError, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading playlist folder: %w", err)
	}

	var collections []*core.Collection
	var loadErrors []*core.LoadError

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".m3u" && ext != ".m3u8" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		collection, errs, err := p.loadM3U(path, index)
		if err != nil {
			return nil, nil, err
		}
		collections = append(collections, collection)
		loadErrors = append(loadErrors, errs...)
	}

	p.log.Info("playlists loaded",
		zap.String("dir", dir),
		zap.Int("playlists", len(collections)),
		zap.Int("errors", len(loadErrors)))

	return collections, loadErrors, nil
}

func (p *Provider) loadM3U(path string, index map[string]*core.LocalTrack) (*core.Collection, []*core.LoadError, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening playlist %s: %w", path, err)
	}
	defer file.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	collection := &core.Collection{Name: name}
	var loadErrors []*core.LoadError

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry := filepath.FromSlash(line)
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(filepath.Dir(path), entry)
		}
		entry = filepath.Clean(entry)

		track, ok := index[entry]
		if !ok {
			p.log.Warn("playlist entry not in library",
				zap.String("playlist", name),
				zap.String("entry", entry))
			loadErrors = append(loadErrors, &core.LoadError{
				Path: entry,
				Err:  fmt.Errorf("playlist %s references a file outside the scanned library", name),
			})
			continue
		}
		collection.Tracks = append(collection.Tracks, track)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading playlist %s: %w", path, err)
	}

	return collection, loadErrors, nil
}
