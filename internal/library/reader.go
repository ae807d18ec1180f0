// Package library reads and writes the local music library: audio file
// tags, folder scans and M3U playlists.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	id3v2 "github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
	"go.uber.org/zap"

	"tunesync/internal/core"
)

// supportedExtensions are the audio file types the scanner picks up.
var supportedExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".wma":  true,
}

// Provider reads track metadata from audio files and writes URI decisions
// back into them.
type Provider struct {
	log *zap.Logger
}

func NewProvider(log *zap.Logger) *Provider {
	return &Provider{log: log.Named("library")}
}

// Supported reports whether the file extension is a readable audio type.
func Supported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Read extracts a track record from the audio file at path. The remote URI
// convention lives in the comment tag: absent means never searched, the
// unavailable sentinel means confirmed absent.
func (p *Provider) Read(path string) (*core.LocalTrack, error) {
	if !Supported(path) {
		return nil, &core.LoadError{Path: path, Err: fmt.Errorf("unsupported extension %q", filepath.Ext(path))}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &core.LoadError{Path: path, Err: err}
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		return nil, &core.LoadError{Path: path, Err: err}
	}

	trackNum, _ := meta.Track()
	discNum, _ := meta.Disc()

	track := &core.LocalTrack{
		Path:        path,
		Title:       meta.Title(),
		Artist:      meta.Artist(),
		Album:       meta.Album(),
		AlbumArtist: meta.AlbumArtist(),
		TrackNumber: trackNum,
		DiscNumber:  discNum,
		Year:        meta.Year(),
		Compilation: isCompilation(meta),
		URI:         core.ParseTagValue(strings.TrimSpace(meta.Comment())),
	}
	if genre := meta.Genre(); genre != "" {
		track.Genres = strings.Split(genre, ";")
		for i := range track.Genres {
			track.Genres[i] = strings.TrimSpace(track.Genres[i])
		}
	}

	// The tag reader exposes no duration or per-description comments, so
	// MP3s get a second pass over the raw frames: TLEN for length and the
	// dedicated URI comment frame. Other formats keep a zero duration and
	// rely on looser length thresholds during matching.
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		duration, uri, found := readID3Extras(path)
		track.Duration = duration
		if found {
			track.URI = uri
		}
	}

	// Title and artist are the minimum needed to search; fall back to the
	// file name convention "artist - title" when tags are empty.
	if track.Title == "" {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if artist, title, found := strings.Cut(base, " - "); found {
			if track.Artist == "" {
				track.Artist = strings.TrimSpace(artist)
			}
			track.Title = strings.TrimSpace(title)
		} else {
			track.Title = base
		}
	}

	return track, nil
}

// isCompilation checks the format-specific compilation flags the tag
// reader only exposes through its raw map.
func isCompilation(meta tag.Metadata) bool {
	for _, key := range []string{"compilation", "TCMP", "cpil"} {
		raw, ok := meta.Raw()[key]
		if !ok {
			continue
		}
		switch value := raw.(type) {
		case bool:
			return value
		case string:
			return value == "1" || strings.EqualFold(value, "true")
		case int:
			return value == 1
		}
	}
	return false
}

// readID3Extras parses the TLEN length frame (in milliseconds) and the
// URI comment frame from an MP3's ID3 tag.
func readID3Extras(path string) (time.Duration, core.URI, bool) {
	tagFile, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return 0, core.UnresolvedURI(), false
	}
	defer tagFile.Close()

	var duration time.Duration
	if text := strings.TrimSpace(tagFile.GetTextFrame("TLEN").Text); text != "" {
		if ms, err := strconv.Atoi(text); err == nil {
			duration = time.Duration(ms) * time.Millisecond
		}
	}

	for _, frame := range tagFile.GetFrames(tagFile.CommonID("Comments")) {
		comment, ok := frame.(id3v2.CommentFrame)
		if !ok || comment.Description != uriCommentDescription {
			continue
		}
		return duration, core.ParseTagValue(strings.TrimSpace(comment.Text)), true
	}

	return duration, core.UnresolvedURI(), false
}
