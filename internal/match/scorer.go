package match

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"tunesync/internal/core"
	"tunesync/pkg/clean"
)

// karaokeWords are the words that together mark a candidate as a karaoke
// production. All three must appear for the candidate to be excluded.
var karaokeWords = []string{"karaoke", "backing", "instrumental"}

// Scorer judges whether a remote candidate matches a local track under one
// settings tier. Every tier is a hard pass/fail gate without a continuous
// confidence value.
type Scorer struct {
	log *zap.Logger
}

func NewScorer(log *zap.Logger) *Scorer {
	return &Scorer{log: log.Named("scorer")}
}

// Match runs the tier selected by the signed algorithm ID at the given
// visitation depth against the full candidate set. It returns the matched
// URI and whether any candidate passed the tier's gate.
func (s *Scorer) Match(local *core.LocalTrack, results []core.RemoteTrack, algorithm, depth int) (string, bool) {
	if len(results) == 0 {
		return "", false
	}

	settings := settingsFor(algorithm, depth)
	switch settings.fn {
	case simpleFunc:
		return results[0].URI, true
	case quickFunc:
		return s.quickMatch(local, results, settings)
	case deepFunc:
		return s.deepMatch(local, results, settings)
	default:
		return "", false
	}
}

// TitleMatch accepts the first non-karaoke candidate whose name contains
// enough of the cleaned local title words. Used when pairing replacement
// tracks inside playlists, where album and length metadata are unreliable.
func (s *Scorer) TitleMatch(local *core.LocalTrack, results []core.RemoteTrack, minDiff float64) (string, bool) {
	title := clean.Words(clean.Title(local.Title))

	for _, result := range results {
		if IsKaraoke(result) {
			continue
		}
		if wordsMatch(title, strings.ToLower(result.Title), minDiff) {
			s.log.Debug("title match",
				zap.String("title", local.Title),
				zap.String("uri", result.URI))
			return result.URI, true
		}
	}
	return "", false
}

// quickMatch accepts the first non-karaoke candidate passing any one of the
// length, album or year conditions. Karaoke candidates are skipped, not
// accepted.
func (s *Scorer) quickMatch(local *core.LocalTrack, results []core.RemoteTrack, settings tierSettings) (string, bool) {
	album := clean.Words(clean.Album(local.Album))

	for _, result := range results {
		if IsKaraoke(result) {
			continue
		}

		timeMatch := absDuration(result.Duration-local.Duration) <= settings.lenDiff
		albumMatch := wordsMatch(album, strings.ToLower(result.Album), settings.minDiff)
		yearMatch := local.Year != 0 && local.Year == result.Year

		s.log.Debug("quick match candidate",
			zap.String("title", local.Title),
			zap.String("uri", result.URI),
			zap.Bool("time_match", timeMatch),
			zap.Bool("album_match", albumMatch),
			zap.Bool("year_match", yearMatch))

		if timeMatch || albumMatch || yearMatch {
			return result.URI, true
		}
	}
	return "", false
}

// deepMatch scans every candidate and keeps the acceptable one whose length
// is closest to the local track. Unlike the other tiers it never stops at
// the first hit, since length proximity is the strongest signal once word
// thresholds are this loose. A karaoke candidate aborts the scan.
func (s *Scorer) deepMatch(local *core.LocalTrack, results []core.RemoteTrack, settings tierSettings) (string, bool) {
	title := clean.Words(clean.Title(local.Title))
	artist := clean.Words(clean.Artist(local.Artist))

	bestDiff := settings.maxLenDiff
	var bestURI string
	var matched bool

	for _, result := range results {
		if IsKaraoke(result) {
			break
		}

		titleMatch := wordsMatch(title, clean.Title(result.Title), settings.minDiff)

		artistMatch := true
		for _, artistR := range result.Artists {
			artistMatch = wordsMatch(artist, clean.Artist(artistR), settings.minDiff)
			if artistMatch {
				break
			}
		}

		lengthDiff := absDuration(result.Duration - local.Duration)

		s.log.Debug("deep match candidate",
			zap.String("title", local.Title),
			zap.String("uri", result.URI),
			zap.Bool("title_match", titleMatch),
			zap.Bool("artist_match", artistMatch),
			zap.Duration("length_diff", lengthDiff))

		if (artistMatch || titleMatch) && lengthDiff < bestDiff {
			bestDiff = lengthDiff
			bestURI = result.URI
			matched = true
		}
	}
	return bestURI, matched
}

// IsKaraoke reports whether a track candidate is a karaoke production. The
// test is conjunctive: the album name (or the track name when no album is
// set) must contain all karaoke words, or every artist name must.
func IsKaraoke(result core.RemoteTrack) bool {
	name := result.Album
	if name == "" {
		name = result.Title
	}
	return isKaraokeNames(name, result.Artists)
}

// IsKaraokeAlbum is the album-candidate form of IsKaraoke.
func IsKaraokeAlbum(result core.RemoteAlbum) bool {
	return isKaraokeNames(result.Title, result.Artists)
}

func isKaraokeNames(name string, artists []string) bool {
	if containsAll(strings.ToLower(name), karaokeWords) {
		return true
	}
	if len(artists) == 0 {
		return false
	}
	for _, artist := range artists {
		if !containsAll(clean.Artist(artist), karaokeWords) {
			return false
		}
	}
	return true
}

// wordsMatch reports whether the count of words found as substrings of
// target reaches len(words) * ratio.
func wordsMatch(words []string, target string, ratio float64) bool {
	count := 0
	for _, word := range words {
		if strings.Contains(target, word) {
			count++
		}
	}
	return float64(count) >= float64(len(words))*ratio
}

// containsAll reports whether target contains every word as a substring.
func containsAll(target string, words []string) bool {
	for _, word := range words {
		if !strings.Contains(target, word) {
			return false
		}
	}
	return true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
