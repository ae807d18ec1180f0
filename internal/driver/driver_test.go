package driver

import (
	"io"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"tunesync/internal/core"
	"tunesync/internal/library"
	"tunesync/internal/store"
)

func TestOverlayCheckpoint(t *testing.T) {
	collections := []*core.Collection{
		{Name: "Album", Tracks: []*core.LocalTrack{
			{Path: "/music/a.mp3"},
			{Path: "/music/b.mp3"},
			{Path: "/music/c.mp3", URI: core.ResolvedURI("spotify:track:current")},
			{Path: "/music/d.mp3"},
		}},
	}
	saved := map[string][]*core.LocalTrack{
		"Album": {
			{Path: "/music/a.mp3", URI: core.ResolvedURI("spotify:track:aaa")},
			{Path: "/music/b.mp3", URI: core.MissingURI()},
			{Path: "/music/c.mp3", URI: core.UnresolvedURI()},
		},
	}

	restored := overlayCheckpoint(saved, collections)
	if restored != 2 {
		t.Errorf("restored = %d, want 2", restored)
	}

	tracks := collections[0].Tracks
	if tracks[0].URI.Value() != "spotify:track:aaa" {
		t.Errorf("a uri = %v", tracks[0].URI)
	}
	if !tracks[1].URI.IsMissing() {
		t.Errorf("b uri = %v, want missing", tracks[1].URI)
	}
	// An unresolved checkpoint entry never wipes a newer decision.
	if tracks[2].URI.Value() != "spotify:track:current" {
		t.Errorf("c uri = %v, want kept", tracks[2].URI)
	}
	if !tracks[3].URI.IsUnresolved() {
		t.Errorf("d uri = %v, want untouched", tracks[3].URI)
	}
}

func TestResumePrefersNewestCheckpoint(t *testing.T) {
	log := zap.NewNop()
	checkpoints := store.NewCheckpointStore(t.TempDir(), log)
	d := New(core.DefaultConfig(), Deps{Checkpoints: checkpoints, Out: io.Discard}, log)

	collections := []*core.Collection{
		{Name: "Album", Tracks: []*core.LocalTrack{{Path: "/music/a.mp3"}}},
	}

	stage, err := d.resume(collections)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if stage != "" {
		t.Errorf("stage = %q, want none without checkpoints", stage)
	}

	if err := checkpoints.Save(StageSearch, map[string][]*core.LocalTrack{
		"Album": {{Path: "/music/a.mp3", URI: core.ResolvedURI("spotify:track:searched")}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := checkpoints.Save(StageCheck, map[string][]*core.LocalTrack{
		"Album": {{Path: "/music/a.mp3", URI: core.ResolvedURI("spotify:track:reviewed")}},
	}); err != nil {
		t.Fatal(err)
	}

	stage, err = d.resume(collections)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if stage != StageCheck {
		t.Errorf("stage = %q, want the check checkpoint over the search one", stage)
	}
	if got := collections[0].Tracks[0].URI.Value(); got != "spotify:track:reviewed" {
		t.Errorf("uri = %s, want the reviewed decision", got)
	}
}

func TestWriteTagsIndexFallbackForUnwritableFormats(t *testing.T) {
	log := zap.NewNop()
	dir := t.TempDir()

	index, err := store.OpenIndex(filepath.Join(dir, "library.db"), log)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer index.Close()

	track := &core.LocalTrack{
		Path: "/music/a.flac", Title: "A", Artist: "One", Album: "First",
		URI: core.ResolvedURI("spotify:track:aaa"),
	}
	if err := index.Upsert([]*core.LocalTrack{{Path: track.Path, Title: "A", Artist: "One", Album: "First"}}); err != nil {
		t.Fatal(err)
	}

	cfg := core.DefaultConfig()
	cfg.Sync.DryRun = false
	d := New(cfg, Deps{
		Library:     library.NewProvider(log),
		Checkpoints: store.NewCheckpointStore(dir, log),
		Index:       index,
		Out:         io.Discard,
	}, log)

	if err := d.WriteTags([]*core.LocalTrack{track}); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}

	loaded, err := index.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if !loaded[0].URI.IsResolved() || loaded[0].URI.Value() != "spotify:track:aaa" {
		t.Errorf("indexed uri = %v, want resolved fallback", loaded[0].URI)
	}

	if _, found, _ := d.deps.Checkpoints.Load(StageTags); !found {
		t.Error("tags checkpoint not saved")
	}
}

func TestWriteTagsDryRunLeavesIndexUntouched(t *testing.T) {
	log := zap.NewNop()
	dir := t.TempDir()

	index, err := store.OpenIndex(filepath.Join(dir, "library.db"), log)
	if err != nil {
		t.Fatal(err)
	}
	defer index.Close()
	if err := index.Upsert([]*core.LocalTrack{{Path: "/music/a.flac", Title: "A", Artist: "One", Album: "First"}}); err != nil {
		t.Fatal(err)
	}

	cfg := core.DefaultConfig()
	cfg.Sync.DryRun = true
	d := New(cfg, Deps{
		Library:     library.NewProvider(log),
		Checkpoints: store.NewCheckpointStore(dir, log),
		Index:       index,
		Out:         io.Discard,
	}, log)

	track := &core.LocalTrack{Path: "/music/a.flac", URI: core.ResolvedURI("spotify:track:aaa")}
	if err := d.WriteTags([]*core.LocalTrack{track}); err != nil {
		t.Fatal(err)
	}

	loaded, _ := index.LoadAll()
	if !loaded[0].URI.IsUnresolved() {
		t.Errorf("indexed uri = %v, want untouched on dry run", loaded[0].URI)
	}
}

func TestQuickloadGroupsByFolder(t *testing.T) {
	log := zap.NewNop()
	dir := t.TempDir()

	index, err := store.OpenIndex(filepath.Join(dir, "library.db"), log)
	if err != nil {
		t.Fatal(err)
	}
	defer index.Close()
	if err := index.Upsert([]*core.LocalTrack{
		{Path: "/music/First/01.flac", Title: "A", Artist: "One", Album: "First"},
		{Path: "/music/First/02.flac", Title: "B", Artist: "One", Album: "First"},
		{Path: "/music/Second/01.flac", Title: "C", Artist: "Two", Album: "Second"},
	}); err != nil {
		t.Fatal(err)
	}

	cfg := core.DefaultConfig()
	cfg.Library.MusicPath = ""
	d := New(cfg, Deps{Index: index, Out: io.Discard}, log)

	tracks, folders, playlists, err := d.quickload()
	if err != nil {
		t.Fatalf("quickload: %v", err)
	}
	if len(tracks) != 3 {
		t.Errorf("tracks = %d, want 3", len(tracks))
	}
	if len(folders) != 2 {
		t.Fatalf("folders = %d, want 2", len(folders))
	}
	if folders[0].Name != "First" || len(folders[0].Tracks) != 2 {
		t.Errorf("first folder = %s with %d tracks", folders[0].Name, len(folders[0].Tracks))
	}
	if playlists != nil {
		t.Errorf("playlists = %v, want none from quickload", playlists)
	}
}
