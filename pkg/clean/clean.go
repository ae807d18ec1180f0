// Package clean normalizes noisy tag metadata for matching purposes.
// Cleaned values are only ever used for comparison; callers must never
// write them back to the original records.
package clean

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	bracketRegex    = regexp.MustCompile(`[\(\[].*?[\)\]]`)
	alnumRegex      = regexp.MustCompile(`[^a-z0-9']+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	epWordRegex     = regexp.MustCompile(`\bep\b`)
)

// Title cleans a track title: parenthetical text, featured-artist markers,
// slash-delimited trailing segments and filler words are dropped, then the
// result is lowercased and reduced to alphanumerics and apostrophes.
func Title(title string) string {
	title = bracketRegex.ReplaceAllString(title, "")
	title = strings.ReplaceAll(title, "part ", " ")
	title = strings.ReplaceAll(title, "the ", " ")
	title = strings.ToLower(title)
	title = strings.ReplaceAll(title, "featuring", "")
	title = cutAny(title, "feat.", "ft.", " / ")
	return fold(title)
}

// Artist cleans an artist name: collaborator suffixes ("feat.", "&", "and",
// "vs") are dropped along with parenthetical text and a leading "the".
func Artist(artist string) string {
	artist = bracketRegex.ReplaceAllString(artist, "")
	artist = strings.ReplaceAll(artist, "the ", " ")
	artist = strings.ToLower(artist)
	artist = strings.ReplaceAll(artist, " featuring", "")
	artist = cutAny(artist, " feat.", " ft.", "&", " and ", " vs")
	return fold(artist)
}

// Album cleans an album title: everything after a "-" is dropped, the word
// "ep" is removed, and a leading "the" is stripped.
func Album(album string) string {
	album, _, _ = strings.Cut(album, "-")
	album = bracketRegex.ReplaceAllString(album, "")
	album = strings.ToLower(album)
	album = epWordRegex.ReplaceAllString(album, "")
	album = strings.ReplaceAll(album, "the ", " ")
	return fold(album)
}

// Words splits cleaned text into its component words.
func Words(s string) []string {
	return strings.Fields(s)
}

// cutAny truncates s at the first occurrence of any separator.
func cutAny(s string, seps ...string) string {
	for _, sep := range seps {
		if before, _, found := strings.Cut(s, sep); found {
			s = before
		}
	}
	return s
}

// fold strips diacritics and reduces the string to lowercase alphanumerics
// and apostrophes with single spaces between words.
func fold(s string) string {
	s = norm.NFKD.String(s)

	var b strings.Builder
	for _, r := range s {
		if !unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}

	s = alnumRegex.ReplaceAllString(b.String(), " ")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
