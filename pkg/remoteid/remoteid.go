// Package remoteid validates and converts between the three Spotify
// identifier forms: open.spotify.com URLs, spotify: URIs and bare IDs.
package remoteid

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// IDLength is the length of a Spotify track/album/artist/playlist ID.
const IDLength = 22

// Kind is the remote object type an identifier refers to.
type Kind string

const (
	KindTrack    Kind = "track"
	KindAlbum    Kind = "album"
	KindArtist   Kind = "artist"
	KindPlaylist Kind = "playlist"
)

var (
	idRegex  = regexp.MustCompile(`^[a-zA-Z0-9]{22}$`)
	uriRegex = regexp.MustCompile(`^spotify:(track|album|artist|playlist):([a-zA-Z0-9]{22})$`)
	urlRegex = regexp.MustCompile(`(?:https?://)?open\.spotify\.com/(track|album|artist|playlist)/([a-zA-Z0-9]{22})`)
)

// Valid reports whether s is a recognisable Spotify URL, URI or bare ID.
func Valid(s string) bool {
	_, _, err := Parse(s)
	return err == nil
}

// Parse extracts the object kind and bare ID from a URL, URI or ID string.
// A bare ID is reported as KindTrack since the kind cannot be inferred.
func Parse(s string) (Kind, string, error) {
	s = strings.TrimSpace(s)

	if m := uriRegex.FindStringSubmatch(s); m != nil {
		return Kind(m[1]), m[2], nil
	}
	if m := urlRegex.FindStringSubmatch(s); m != nil {
		return Kind(m[1]), m[2], nil
	}
	if idRegex.MatchString(s) {
		return KindTrack, s, nil
	}

	return "", "", fmt.Errorf("not a Spotify URL, URI or ID: %q", s)
}

// ParseKind is like Parse but fails when the identifier refers to a
// different object kind than expected.
func ParseKind(s string, want Kind) (string, error) {
	kind, id, err := Parse(s)
	if err != nil {
		return "", err
	}
	if kind != want {
		return "", fmt.Errorf("expected a %s identifier, got %s: %q", want, kind, s)
	}
	return id, nil
}

// URI builds the canonical spotify: URI for the given kind and bare ID.
func URI(kind Kind, id string) string {
	return fmt.Sprintf("spotify:%s:%s", kind, id)
}

// URL builds the open.spotify.com URL for the given kind and bare ID.
func URL(kind Kind, id string) string {
	return fmt.Sprintf("https://open.spotify.com/%s/%s", kind, id)
}

// IDFromURI strips the prefix from a spotify: URI, returning the bare ID.
// Inputs that are already bare IDs pass through unchanged.
func IDFromURI(uri string) string {
	if i := strings.LastIndex(uri, ":"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

// IsOpenURL reports whether s points at the open.spotify.com host.
func IsOpenURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), "open.spotify.com")
}
