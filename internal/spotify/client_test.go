package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"tunesync/internal/core"
	"tunesync/internal/ratelimit"
)

func TestParseReleaseYear(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"1970-02-09", 1970},
		{"1970", 1970},
		{"", 0},
		{"19", 0},
		{"abcd-01-01", 0},
	}

	for _, tt := range tests {
		if got := parseReleaseYear(tt.date); got != tt.want {
			t.Errorf("parseReleaseYear(%q) = %d, want %d", tt.date, got, tt.want)
		}
	}
}

func TestURIToID(t *testing.T) {
	if got := uriToID("spotify:track:6rqhFgbbKwnb9MLmUQDhG6"); got != spotify.ID("6rqhFgbbKwnb9MLmUQDhG6") {
		t.Errorf("uriToID = %s", got)
	}
	if got := uriToID("6rqhFgbbKwnb9MLmUQDhG6"); got != spotify.ID("6rqhFgbbKwnb9MLmUQDhG6") {
		t.Errorf("bare ID passthrough = %s", got)
	}
}

func TestChunkIDs(t *testing.T) {
	uris := make([]string, 250)
	for i := range uris {
		uris[i] = fmt.Sprintf("spotify:track:%022d", i)
	}

	chunks := chunkIDs(uris)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if len(chunks[0]) != 100 || len(chunks[1]) != 100 || len(chunks[2]) != 50 {
		t.Errorf("chunk sizes = %d/%d/%d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}

	if chunkIDs(nil) != nil {
		t.Error("empty input should produce no chunks")
	}
}

func TestCallReportsAPIErrors(t *testing.T) {
	c := &Client{
		config: &core.SpotifyConfig{MaxRetries: 2},
		logger: zap.NewNop(),
		client: spotify.New(http.DefaultClient),
		gate:   ratelimit.New(0),
	}

	var codes []int
	c.OnAPIError = func(statusCode int) { codes = append(codes, statusCode) }

	attempts := 0
	err := c.call(context.Background(), "op", func() error {
		attempts++
		return spotify.Error{Status: 404, Message: "not found"}
	})
	if err == nil {
		t.Fatal("call must surface the API error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, a 404 is not retryable", attempts)
	}
	if len(codes) != 1 || codes[0] != 404 {
		t.Errorf("reported codes = %v, want [404]", codes)
	}

	codes = nil
	plain := errors.New("network down")
	err = c.call(context.Background(), "op", func() error { return plain })
	if !errors.Is(err, plain) {
		t.Fatalf("err = %v, want passthrough", err)
	}
	if len(codes) != 0 {
		t.Errorf("reported codes = %v, non-API errors must not be reported", codes)
	}
}

func TestURIsToClear(t *testing.T) {
	existing := []core.RemoteTrack{
		{URI: "spotify:track:a"},
		{URI: "spotify:track:b"},
		{URI: "spotify:track:c"},
	}

	got := urisToClear(existing, nil)
	if len(got) != 3 {
		t.Errorf("nil request cleared %d tracks, want the whole playlist", len(got))
	}

	got = urisToClear(existing, []string{})
	if len(got) != 0 {
		t.Errorf("empty request cleared %d tracks, want none", len(got))
	}

	got = urisToClear(existing, []string{"spotify:track:b", "spotify:track:zz"})
	if len(got) != 1 || got[0] != "spotify:track:b" {
		t.Errorf("filtered request = %v, want only the present URI", got)
	}
}

func TestConvertFullAlbumTakesTotalFromTrackPage(t *testing.T) {
	var full spotify.FullAlbum
	full.ID = "abc123"
	full.URI = "spotify:album:abc123"
	full.Name = "Morrison Hotel"
	full.Artists = []spotify.SimpleArtist{{Name: "The Doors"}}
	full.ReleaseDate = "1970-02-09"
	full.Tracks.Total = 11

	album := convertFullAlbum(&full)
	if album.TotalTracks != 11 {
		t.Errorf("TotalTracks = %d, want 11", album.TotalTracks)
	}
	if album.ID != "abc123" || album.Year != 1970 {
		t.Errorf("album = %+v, simple fields must carry over", album)
	}
}

func TestMapError(t *testing.T) {
	mapped := mapError(spotify.Error{Status: 429, Message: "rate limited"})

	apiErr, ok := core.AsAPIError(mapped)
	if !ok {
		t.Fatalf("mapError did not produce an APIError: %v", mapped)
	}
	if apiErr.StatusCode != 429 || !apiErr.Retryable() {
		t.Errorf("mapped = %+v, want retryable 429", apiErr)
	}

	plain := errors.New("network down")
	if mapError(plain) != plain {
		t.Error("non-API errors must pass through unchanged")
	}
}
