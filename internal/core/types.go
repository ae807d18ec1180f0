package core

import (
	"context"
	"time"
)

// LocalTrack is the metadata snapshot of one audio file in the local library.
// Path is the unique key. URI carries the tri-state match result and is the
// only field the matching pipeline mutates.
type LocalTrack struct {
	Path        string        `json:"path"`
	Title       string        `json:"title"`
	Artist      string        `json:"artist"`
	Album       string        `json:"album"`
	AlbumArtist string        `json:"album_artist,omitempty"`
	TrackNumber int           `json:"track_number,omitempty"`
	DiscNumber  int           `json:"disc_number,omitempty"`
	Year        int           `json:"year,omitempty"`
	Genres      []string      `json:"genres,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	BPM         float64       `json:"bpm,omitempty"`
	Key         string        `json:"key,omitempty"`
	Compilation bool          `json:"compilation,omitempty"`
	URI         URI           `json:"uri"`
}

// RemoteTrack is an ephemeral candidate produced by a remote search or a
// playlist listing. It is never persisted.
type RemoteTrack struct {
	URI          string
	Title        string
	Artists      []string
	Album        string
	AlbumArtists []string
	Duration     time.Duration
	Year         int
}

// RemoteAlbum is an album candidate from a remote search. Tracks is only
// populated after a detail fetch.
type RemoteAlbum struct {
	ID          string
	URI         string
	Title       string
	Artists     []string
	TotalTracks int
	Year        int
	Tracks      []RemoteTrack
}

// Collection is a named, ordered group of local tracks: a playlist or an
// album folder.
type Collection struct {
	Name   string
	Tracks []*LocalTrack
}

// ResolvedURIs returns the URI values of all resolved tracks, in order.
func (c Collection) ResolvedURIs() []string {
	var uris []string
	for _, t := range c.Tracks {
		if t.URI.IsResolved() {
			uris = append(uris, t.URI.Value())
		}
	}
	return uris
}

// IsCompilation reports whether more than half of the tracks carry the
// compilation flag, in which case the collection is matched track by track
// rather than as one album.
func (c Collection) IsCompilation() bool {
	count := 0
	for _, t := range c.Tracks {
		if t.Compilation {
			count++
		}
	}
	return float64(count) > float64(len(c.Tracks))*0.5
}

// RemoteAPI is the abstract remote service consumed by the matching,
// checking and reconciliation components. Implementations retry transient
// failures internally and surface an *APIError once retries are exhausted.
type RemoteAPI interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]RemoteTrack, error)
	SearchAlbums(ctx context.Context, query string, limit int) ([]RemoteAlbum, error)
	GetAlbum(ctx context.Context, id string) (*RemoteAlbum, error)
	GetTrack(ctx context.Context, id string) (*RemoteTrack, error)

	CreatePlaylist(ctx context.Context, name string, public, collaborative bool) (string, error)
	GetPlaylistItems(ctx context.Context, playlistID string) ([]RemoteTrack, error)
	AddToPlaylist(ctx context.Context, playlistID string, uris []string, skipDupes bool) (int, error)
	ClearFromPlaylist(ctx context.Context, playlistID string, uris []string) (int, error)
	DeletePlaylist(ctx context.Context, playlistID string) error
}

// WriteResult reports the outcome of one tag write-back.
type WriteResult struct {
	Saved   bool
	Updated []string
}
