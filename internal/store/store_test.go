package store

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

func testTracks() []*core.LocalTrack {
	return []*core.LocalTrack{
		{Path: "/music/a.mp3", Title: "A", Artist: "One", Album: "First",
			URI: core.ResolvedURI("spotify:track:aaa")},
		{Path: "/music/b.mp3", Title: "B", Artist: "One", Album: "First",
			URI: core.MissingURI()},
		{Path: "/music/c.mp3", Title: "C", Artist: "Two", Album: "Second",
			URI: core.UnresolvedURI()},
	}
}

func TestCheckpointRoundTripPreservesURIStates(t *testing.T) {
	cs := NewCheckpointStore(t.TempDir(), zap.NewNop())

	saved := map[string][]*core.LocalTrack{"First": testTracks()}
	if err := cs.Save("search", saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, found, err := cs.Load("search")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !found {
		t.Fatal("checkpoint not found after save")
	}

	tracks := loaded["First"]
	if len(tracks) != 3 {
		t.Fatalf("tracks = %d, want 3", len(tracks))
	}
	if !tracks[0].URI.IsResolved() || tracks[0].URI.Value() != "spotify:track:aaa" {
		t.Errorf("track 0 uri = %v, want resolved", tracks[0].URI)
	}
	if !tracks[1].URI.IsMissing() {
		t.Errorf("track 1 uri = %v, want missing", tracks[1].URI)
	}
	if !tracks[2].URI.IsUnresolved() {
		t.Errorf("track 2 uri = %v, want unresolved", tracks[2].URI)
	}
}

func TestCheckpointMissingStageIsNotAnError(t *testing.T) {
	cs := NewCheckpointStore(t.TempDir(), zap.NewNop())

	collections, found, err := cs.Load("never-saved")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found || collections != nil {
		t.Errorf("found = %v, collections = %v, want miss", found, collections)
	}
}

func TestCheckpointDeleteIsIdempotent(t *testing.T) {
	cs := NewCheckpointStore(t.TempDir(), zap.NewNop())

	if err := cs.Save("search", map[string][]*core.LocalTrack{}); err != nil {
		t.Fatal(err)
	}
	if err := cs.Delete("search"); err != nil {
		t.Fatalf("first Delete: %v", err)
	}
	if err := cs.Delete("search"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, found, _ := cs.Load("search"); found {
		t.Error("checkpoint still present after delete")
	}
}

func TestBackupRoundTripAndOverlay(t *testing.T) {
	bs := NewBackupStore(t.TempDir(), zap.NewNop())

	tracks := testTracks()
	if err := bs.Save("library", Snapshot(tracks)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	backup, found, err := bs.Load("library")
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}

	// Fresh scan state: everything unresolved, plus a file the backup has
	// never heard of.
	fresh := []*core.LocalTrack{
		{Path: "/music/a.mp3"},
		{Path: "/music/b.mp3"},
		{Path: "/music/c.mp3", URI: core.ResolvedURI("spotify:track:keep")},
		{Path: "/music/new.mp3", URI: core.ResolvedURI("spotify:track:new")},
	}
	restored := Restore(backup, fresh)
	if restored != 3 {
		t.Errorf("restored = %d, want 3", restored)
	}
	if fresh[0].URI.Value() != "spotify:track:aaa" {
		t.Errorf("a.mp3 uri = %v", fresh[0].URI)
	}
	if !fresh[1].URI.IsMissing() {
		t.Errorf("b.mp3 uri = %v, want missing", fresh[1].URI)
	}
	// c.mp3 was unresolved in the backup, so the overlay resets it.
	if !fresh[2].URI.IsUnresolved() {
		t.Errorf("c.mp3 uri = %v, want unresolved from backup", fresh[2].URI)
	}
	if fresh[3].URI.Value() != "spotify:track:new" {
		t.Errorf("new.mp3 uri = %v, want untouched", fresh[3].URI)
	}
}

func TestBackupAcceptsLegacyFalse(t *testing.T) {
	var backup Backup
	raw := `{"/music/old.mp3": false, "/music/gone.mp3": "spotify:track:unavailable"}`
	if err := json.Unmarshal([]byte(raw), &backup); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !backup["/music/old.mp3"].IsMissing() {
		t.Error("legacy false not read as missing")
	}
	if !backup["/music/gone.mp3"].IsMissing() {
		t.Error("sentinel not read as missing")
	}
}

func TestSeenStore(t *testing.T) {
	seen := NewSeenStore(100, 0.01)

	if seen.Seen("spotify:track:x") {
		t.Error("fresh store reports seen")
	}
	if !seen.Mark("spotify:track:x") {
		t.Error("first Mark not reported as new")
	}
	if seen.Mark("spotify:track:x") {
		t.Error("second Mark reported as new")
	}
	if !seen.Seen("spotify:track:x") {
		t.Error("marked uri not seen")
	}
	if seen.Mark("") {
		t.Error("empty uri accepted")
	}

	seen.Forget("spotify:track:x")
	if seen.Seen("spotify:track:x") {
		t.Error("forgotten uri still seen")
	}

	seen.Mark("spotify:track:y")
	seen.Reset()
	if seen.Size() != 0 || seen.Seen("spotify:track:y") {
		t.Error("reset did not clear the store")
	}
}

func TestSeenStoreEvictsAtCapacity(t *testing.T) {
	seen := NewSeenStore(2, 0.01)
	seen.Mark("spotify:track:1")
	seen.Mark("spotify:track:2")
	seen.Mark("spotify:track:3")

	if seen.Size() != 2 {
		t.Errorf("size = %d, want capacity 2", seen.Size())
	}
	if seen.Seen("spotify:track:1") {
		t.Error("oldest entry not evicted")
	}
	if !seen.Seen("spotify:track:3") {
		t.Error("newest entry lost")
	}
}
