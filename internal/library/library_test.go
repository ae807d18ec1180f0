package library

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

func TestSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/music/a.mp3", true},
		{"/music/a.MP3", true},
		{"/music/a.flac", true},
		{"/music/a.m4a", true},
		{"/music/cover.jpg", false},
		{"/music/notes.txt", false},
	}

	for _, tt := range tests {
		if got := Supported(tt.path); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestReadRejectsUnsupportedExtension(t *testing.T) {
	provider := NewProvider(zap.NewNop())

	_, err := provider.Read("/music/cover.jpg")
	if err == nil {
		t.Fatal("Read accepted a non-audio file")
	}
	var loadErr *core.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("err = %T, want LoadError", err)
	}
	if loadErr.Path != "/music/cover.jpg" {
		t.Errorf("LoadError path = %s", loadErr.Path)
	}
}

func TestWriteRejectsNonMP3(t *testing.T) {
	provider := NewProvider(zap.NewNop())

	_, err := provider.Write("/music/a.flac", map[string]string{"comment": "x"}, false)
	if err == nil {
		t.Fatal("Write accepted a non-MP3 file")
	}
}

func TestWriteDryRunTouchesNothing(t *testing.T) {
	provider := NewProvider(zap.NewNop())

	// The path does not exist; a dry run must succeed without opening it.
	result, err := provider.Write("/nonexistent/a.mp3", map[string]string{"comment": "spotify:track:x"}, true)
	if err != nil {
		t.Fatalf("dry run Write: %v", err)
	}
	if result.Saved {
		t.Error("dry run reported saved = true")
	}
	if len(result.Updated) != 1 || result.Updated[0] != "comment" {
		t.Errorf("updated = %v, want [comment]", result.Updated)
	}
}

func TestWriteRejectsUnknownField(t *testing.T) {
	provider := NewProvider(zap.NewNop())

	if _, err := provider.Write("/music/a.mp3", map[string]string{"bpm": "120"}, true); err == nil {
		t.Error("Write accepted an unknown tag field")
	}
}

func TestLoadPlaylists(t *testing.T) {
	dir := t.TempDir()
	musicDir := filepath.Join(dir, "music")
	playlistDir := filepath.Join(dir, "playlists")
	for _, d := range []string{musicDir, playlistDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	one := filepath.Join(musicDir, "one.mp3")
	two := filepath.Join(musicDir, "two.mp3")
	index := map[string]*core.LocalTrack{
		one: {Path: one, Title: "One"},
		two: {Path: two, Title: "Two"},
	}

	m3u := "#EXTM3U\n" +
		"#EXTINF:123,One\n" +
		"../music/one.mp3\n" +
		two + "\n" +
		"../music/ghost.mp3\n"
	if err := os.WriteFile(filepath.Join(playlistDir, "Road Trip.m3u"), []byte(m3u), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(playlistDir, "notes.txt"), []byte("not a playlist"), 0644); err != nil {
		t.Fatal(err)
	}

	provider := NewProvider(zap.NewNop())
	collections, loadErrors, err := provider.LoadPlaylists(playlistDir, index)
	if err != nil {
		t.Fatalf("LoadPlaylists: %v", err)
	}

	if len(collections) != 1 {
		t.Fatalf("collections = %d, want 1", len(collections))
	}
	playlist := collections[0]
	if playlist.Name != "Road Trip" {
		t.Errorf("name = %q", playlist.Name)
	}
	if len(playlist.Tracks) != 2 || playlist.Tracks[0].Title != "One" || playlist.Tracks[1].Title != "Two" {
		t.Errorf("tracks = %+v", playlist.Tracks)
	}
	if len(loadErrors) != 1 {
		t.Errorf("loadErrors = %d, want 1 for the ghost entry", len(loadErrors))
	}
}

func TestScanCollectsErrorsAndGroupsFolders(t *testing.T) {
	dir := t.TempDir()
	albumDir := filepath.Join(dir, "Artist", "Album")
	if err := os.MkdirAll(albumDir, 0755); err != nil {
		t.Fatal(err)
	}

	// Not a real MP3, so reading must fail and be collected.
	if err := os.WriteFile(filepath.Join(albumDir, "broken.mp3"), []byte("junk"), 0644); err != nil {
		t.Fatal(err)
	}
	// Non-audio files are ignored entirely.
	if err := os.WriteFile(filepath.Join(albumDir, "cover.jpg"), []byte("img"), 0644); err != nil {
		t.Fatal(err)
	}

	provider := NewProvider(zap.NewNop())
	result, err := provider.Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(result.Tracks) != 0 {
		t.Errorf("tracks = %d, want 0", len(result.Tracks))
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %d, want the broken file collected", len(result.Errors))
	}
	if len(result.Collections) != 0 {
		t.Errorf("collections = %+v, want none", result.Collections)
	}
}
