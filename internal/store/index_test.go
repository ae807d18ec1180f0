package store

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	index, err := OpenIndex(filepath.Join(t.TempDir(), "library.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	t.Cleanup(func() { index.Close() })
	return index
}

func TestIndexRoundTrip(t *testing.T) {
	index := openTestIndex(t)

	tracks := []*core.LocalTrack{
		{Path: "/music/a.flac", Title: "A", Artist: "One", Album: "First",
			AlbumArtist: "One", TrackNumber: 1, DiscNumber: 1, Year: 1999,
			Genres: []string{"rock", "indie"}, Duration: 215 * time.Second,
			Compilation: false, URI: core.ResolvedURI("spotify:track:aaa")},
		{Path: "/music/b.flac", Title: "B", Artist: "Two", Album: "Various",
			Compilation: true, URI: core.MissingURI()},
	}
	if err := index.Upsert(tracks); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	loaded, err := index.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded = %d, want 2", len(loaded))
	}

	a := loaded[0]
	if a.Title != "A" || a.Year != 1999 || a.Duration != 215*time.Second {
		t.Errorf("a = %+v", a)
	}
	if len(a.Genres) != 2 || a.Genres[1] != "indie" {
		t.Errorf("genres = %v", a.Genres)
	}
	if !a.URI.IsResolved() || a.URI.Value() != "spotify:track:aaa" {
		t.Errorf("a uri = %v", a.URI)
	}
	b := loaded[1]
	if !b.Compilation || !b.URI.IsMissing() {
		t.Errorf("b = %+v", b)
	}
}

func TestIndexUpsertReplacesByPath(t *testing.T) {
	index := openTestIndex(t)

	track := &core.LocalTrack{Path: "/music/a.flac", Title: "Old", Artist: "One", Album: "First"}
	if err := index.Upsert([]*core.LocalTrack{track}); err != nil {
		t.Fatal(err)
	}
	track.Title = "New"
	track.URI = core.ResolvedURI("spotify:track:aaa")
	if err := index.Upsert([]*core.LocalTrack{track}); err != nil {
		t.Fatal(err)
	}

	count, err := index.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	loaded, _ := index.LoadAll()
	if loaded[0].Title != "New" || !loaded[0].URI.IsResolved() {
		t.Errorf("loaded = %+v", loaded[0])
	}
}

func TestIndexUpdateURI(t *testing.T) {
	index := openTestIndex(t)

	track := &core.LocalTrack{Path: "/music/a.flac", Title: "A", Artist: "One", Album: "First"}
	if err := index.Upsert([]*core.LocalTrack{track}); err != nil {
		t.Fatal(err)
	}
	if err := index.UpdateURI("/music/a.flac", core.MissingURI()); err != nil {
		t.Fatalf("UpdateURI: %v", err)
	}

	loaded, _ := index.LoadAll()
	if !loaded[0].URI.IsMissing() {
		t.Errorf("uri = %v, want missing", loaded[0].URI)
	}
}

func TestIndexPruneDropsDeletedFiles(t *testing.T) {
	index := openTestIndex(t)

	tracks := []*core.LocalTrack{
		{Path: "/music/keep.flac", Title: "K", Artist: "One", Album: "First"},
		{Path: "/music/gone.flac", Title: "G", Artist: "One", Album: "First"},
	}
	if err := index.Upsert(tracks); err != nil {
		t.Fatal(err)
	}

	keep := map[string]*core.LocalTrack{"/music/keep.flac": tracks[0]}
	pruned, err := index.Prune(keep)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}
	count, _ := index.Count()
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
