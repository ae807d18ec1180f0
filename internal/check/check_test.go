package check

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"tunesync/internal/core"
)

// fakeAPI is an in-memory remote for checker tests. Playlist IDs are
// derived from the name so tests can inject state up front.
type fakeAPI struct {
	items       map[string][]core.RemoteTrack
	deleteCount map[string]int
	createCalls int

	// getItemsErr fails GetPlaylistItems for the given playlist ID.
	getItemsErr map[string]error
	// overrideItems replaces the stored items for the given playlist ID.
	overrideItems map[string][]core.RemoteTrack
}

func newCheckFake() *fakeAPI {
	return &fakeAPI{
		items:         make(map[string][]core.RemoteTrack),
		deleteCount:   make(map[string]int),
		getItemsErr:   make(map[string]error),
		overrideItems: make(map[string][]core.RemoteTrack),
	}
}

func playlistID(name string) string {
	return "pl-" + name
}

func (f *fakeAPI) SearchTracks(context.Context, string, int) ([]core.RemoteTrack, error) {
	return nil, nil
}

func (f *fakeAPI) SearchAlbums(context.Context, string, int) ([]core.RemoteAlbum, error) {
	return nil, nil
}

func (f *fakeAPI) GetAlbum(context.Context, string) (*core.RemoteAlbum, error) {
	return nil, nil
}

func (f *fakeAPI) GetTrack(_ context.Context, id string) (*core.RemoteTrack, error) {
	return &core.RemoteTrack{URI: "spotify:track:" + id, Title: "Remote Track"}, nil
}

func (f *fakeAPI) CreatePlaylist(_ context.Context, name string, _, _ bool) (string, error) {
	f.createCalls++
	id := playlistID(name)
	f.items[id] = nil
	return id, nil
}

func (f *fakeAPI) GetPlaylistItems(_ context.Context, id string) ([]core.RemoteTrack, error) {
	if err := f.getItemsErr[id]; err != nil {
		return nil, err
	}
	if items, ok := f.overrideItems[id]; ok {
		return items, nil
	}
	return f.items[id], nil
}

func (f *fakeAPI) AddToPlaylist(_ context.Context, id string, uris []string, _ bool) (int, error) {
	for _, uri := range uris {
		f.items[id] = append(f.items[id], core.RemoteTrack{URI: uri})
	}
	return len(uris), nil
}

func (f *fakeAPI) ClearFromPlaylist(context.Context, string, []string) (int, error) {
	return 0, nil
}

func (f *fakeAPI) DeletePlaylist(_ context.Context, id string) error {
	f.deleteCount[id]++
	delete(f.items, id)
	return nil
}

func newTestChecker(api core.RemoteAPI, interval int, input string) *Checker {
	return NewChecker(
		api,
		core.CheckConfig{Interval: interval},
		DefaultPair(zap.NewNop()),
		strings.NewReader(input),
		io.Discard,
		zap.NewNop(),
	)
}

func resolvedCollection(name string, uris ...string) *core.Collection {
	collection := &core.Collection{Name: name}
	for i, uri := range uris {
		collection.Tracks = append(collection.Tracks, &core.LocalTrack{
			Title: fmt.Sprintf("%s track %d", name, i+1),
			URI:   core.ResolvedURI(uri),
		})
	}
	return collection
}

func TestPauseHelpPrintsWithoutBlankLine(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()

	var out bytes.Buffer
	checker := NewChecker(
		newCheckFake(),
		core.CheckConfig{Interval: 10},
		DefaultPair(zap.NewNop()),
		strings.NewReader("h\nq\n"),
		&out,
		zap.NewNop(),
	)

	checker.pause(context.Background(), 1, 1)

	if strings.Contains(out.String(), "\n\n") {
		t.Error("help text followed by a blank line, the text carries its own newline")
	}
	if strings.Count(out.String(), "Temporary playlists have been created") != 2 {
		t.Error("help not reprinted on h")
	}
}

func TestCheckDeletesPlaylistsExactlyOnceOnError(t *testing.T) {
	api := newCheckFake()
	api.getItemsErr[playlistID("Two")] = &core.APIError{StatusCode: 500, Message: "boom"}

	collections := []*core.Collection{
		resolvedCollection("One", "spotify:track:a"),
		resolvedCollection("Two", "spotify:track:b"),
		resolvedCollection("Three", "spotify:track:c"),
	}

	// Batch of 3, empty return at the pause, then the failure hits.
	checker := newTestChecker(api, 3, "\n")
	_, err := checker.Check(context.Background(), collections)
	if err == nil {
		t.Fatal("Check succeeded, want the remote failure surfaced")
	}

	for _, name := range []string{"One", "Two", "Three"} {
		if got := api.deleteCount[playlistID(name)]; got != 1 {
			t.Errorf("playlist %s deleted %d times, want exactly once", name, got)
		}
	}
}

func TestCheckQuitCleansUpAndReturnsNil(t *testing.T) {
	api := newCheckFake()
	collections := []*core.Collection{resolvedCollection("Mix", "spotify:track:a")}

	checker := newTestChecker(api, 10, "q\n")
	report, err := checker.Check(context.Background(), collections)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report != nil {
		t.Errorf("report = %+v, want nil after quit", report)
	}
	if got := api.deleteCount[playlistID("Mix")]; got != 1 {
		t.Errorf("playlist deleted %d times, want once", got)
	}
}

func TestCheckEOFBehavesLikeQuit(t *testing.T) {
	api := newCheckFake()
	collections := []*core.Collection{resolvedCollection("Mix", "spotify:track:a")}

	checker := newTestChecker(api, 10, "")
	report, err := checker.Check(context.Background(), collections)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report != nil {
		t.Error("report should be nil when input ends unexpectedly")
	}
	if got := api.deleteCount[playlistID("Mix")]; got != 1 {
		t.Errorf("playlist deleted %d times, want once", got)
	}
}

func TestCheckApplyToAllPropagates(t *testing.T) {
	api := newCheckFake()

	collection := &core.Collection{
		Name: "Mix",
		Tracks: []*core.LocalTrack{
			{Title: "Anchor", URI: core.ResolvedURI("spotify:track:anchor")},
			{Title: "T1"},
			{Title: "T2"},
			{Title: "T3"},
			{Title: "T4"},
		},
	}

	// Empty return at the pause, then "u" for T1 and "ua" for the rest.
	checker := newTestChecker(api, 10, "\nu\nua\n")
	report, err := checker.Check(context.Background(), []*core.Collection{collection})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report == nil {
		t.Fatal("report is nil")
	}

	for _, track := range collection.Tracks[1:] {
		if !track.URI.IsMissing() {
			t.Errorf("%s URI = %v, want missing", track.Title, track.URI)
		}
	}
	if len(report.Unavailable) != 4 {
		t.Errorf("unavailable = %d, want 4", len(report.Unavailable))
	}
}

func TestCheckPairsSwitchedTracks(t *testing.T) {
	api := newCheckFake()

	track := &core.LocalTrack{
		Title: "Riders on the Storm",
		URI:   core.ResolvedURI("spotify:track:original"),
	}
	collection := &core.Collection{Name: "Mix", Tracks: []*core.LocalTrack{track}}

	// The user replaced the track in the temp playlist with another
	// recording of the same title.
	api.overrideItems[playlistID("Mix")] = []core.RemoteTrack{{
		URI:   "spotify:track:replacement",
		Title: "Riders on the Storm",
	}}

	checker := newTestChecker(api, 10, "\n")
	report, err := checker.Check(context.Background(), []*core.Collection{collection})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if !track.URI.IsResolved() || track.URI.Value() != "spotify:track:replacement" {
		t.Errorf("track URI = %v, want the replacement", track.URI)
	}
	if len(report.Switched) != 1 {
		t.Errorf("switched = %d, want 1", len(report.Switched))
	}
}

func TestCheckSkipsCollectionsWithoutResolvedURIs(t *testing.T) {
	api := newCheckFake()
	collections := []*core.Collection{{
		Name:   "All Unresolved",
		Tracks: []*core.LocalTrack{{Title: "Nothing Found"}},
	}}

	checker := newTestChecker(api, 10, "\n")
	report, err := checker.Check(context.Background(), collections)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if api.createCalls != 0 {
		t.Errorf("createCalls = %d, want no playlist for unresolvable collection", api.createCalls)
	}
	if report == nil || len(report.Switched)+len(report.Unavailable)+len(report.Skipped) != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
}

func TestCheckManualURIAssignment(t *testing.T) {
	api := newCheckFake()

	track := &core.LocalTrack{Title: "Obscure B-Side"}
	collection := &core.Collection{
		Name: "Mix",
		Tracks: []*core.LocalTrack{
			{Title: "Anchor", URI: core.ResolvedURI("spotify:track:anchor")},
			track,
		},
	}

	input := "\nspotify:track:6rqhFgbbKwnb9MLmUQDhG6\n"
	checker := newTestChecker(api, 10, input)
	report, err := checker.Check(context.Background(), []*core.Collection{collection})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if track.URI.Value() != "spotify:track:6rqhFgbbKwnb9MLmUQDhG6" {
		t.Errorf("track URI = %v, want the entered URI", track.URI)
	}
	if len(report.Switched) != 1 {
		t.Errorf("switched = %d, want 1", len(report.Switched))
	}
}
