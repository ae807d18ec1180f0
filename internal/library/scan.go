package library

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

// ScanResult holds everything a library walk produced. Unreadable files
// are collected as errors instead of aborting the scan.
type ScanResult struct {
	Tracks      []*core.LocalTrack
	Collections []*core.Collection
	Errors      []*core.LoadError
}

// ByPath indexes the scanned tracks by their absolute path.
func (r *ScanResult) ByPath() map[string]*core.LocalTrack {
	index := make(map[string]*core.LocalTrack, len(r.Tracks))
	for _, track := range r.Tracks {
		index[track.Path] = track
	}
	return index
}

// Scan walks the music folder, reading every supported audio file and
// grouping tracks into one collection per containing folder.
func (p *Provider) Scan(root string) (*ScanResult, error) {
	result := &ScanResult{}
	folders := make(map[string][]*core.LocalTrack)

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !Supported(path) {
			return nil
		}

		track, readErr := p.Read(path)
		if readErr != nil {
			var loadErr *core.LoadError
			if errors.As(readErr, &loadErr) {
				p.log.Warn("skipping unreadable file",
					zap.String("path", path),
					zap.Error(loadErr.Err))
				result.Errors = append(result.Errors, loadErr)
				return nil
			}
			return readErr
		}

		result.Tracks = append(result.Tracks, track)
		folder := filepath.Dir(path)
		folders[folder] = append(folders[folder], track)
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(folders))
	for folder := range folders {
		names = append(names, folder)
	}
	sort.Strings(names)

	for _, folder := range names {
		tracks := folders[folder]
		sort.SliceStable(tracks, func(i, j int) bool {
			if tracks[i].DiscNumber != tracks[j].DiscNumber {
				return tracks[i].DiscNumber < tracks[j].DiscNumber
			}
			return tracks[i].TrackNumber < tracks[j].TrackNumber
		})
		result.Collections = append(result.Collections, &core.Collection{
			Name:   filepath.Base(folder),
			Tracks: tracks,
		})
	}

	p.log.Info("library scan finished",
		zap.String("root", root),
		zap.Int("tracks", len(result.Tracks)),
		zap.Int("folders", len(result.Collections)),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}
