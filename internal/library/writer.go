package library

import (
	"fmt"
	"path/filepath"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"
	"go.uber.org/zap"

	"tunesync/internal/core"
)

// uriCommentDescription marks the comment frame carrying the remote URI.
const uriCommentDescription = "URI"

// WriteURI persists a resolved or confirmed-absent URI into the track's
// comment tag. Unresolved URIs clear the tag. With dryRun set the file is
// left untouched and the result reports what would have been written.
func (p *Provider) WriteURI(track *core.LocalTrack, dryRun bool) (*core.WriteResult, error) {
	result := &core.WriteResult{}

	fields := map[string]string{"comment": track.URI.TagValue()}
	return p.write(track.Path, fields, dryRun, result)
}

// Write updates the given tag fields on the file at path. Only MP3 files
// are writable; other formats report an unsupported-extension load error.
// Supported field names: title, artist, album, comment.
func (p *Provider) Write(path string, fields map[string]string, dryRun bool) (*core.WriteResult, error) {
	return p.write(path, fields, dryRun, &core.WriteResult{})
}

func (p *Provider) write(path string, fields map[string]string, dryRun bool, result *core.WriteResult) (*core.WriteResult, error) {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return nil, &core.LoadError{Path: path, Err: fmt.Errorf("tag writing unsupported for %q", filepath.Ext(path))}
	}

	for field := range fields {
		switch field {
		case "title", "artist", "album", "comment":
		default:
			return nil, fmt.Errorf("unknown tag field %q", field)
		}
		result.Updated = append(result.Updated, field)
	}

	if dryRun {
		p.log.Debug("dry run, skipping tag write",
			zap.String("path", path),
			zap.Strings("fields", result.Updated))
		return result, nil
	}

	tagFile, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, &core.LoadError{Path: path, Err: err}
	}
	defer tagFile.Close()

	for field, value := range fields {
		switch field {
		case "title":
			tagFile.SetTitle(value)
		case "artist":
			tagFile.SetArtist(value)
		case "album":
			tagFile.SetAlbum(value)
		case "comment":
			setComment(tagFile, value)
		}
	}

	if err := tagFile.Save(); err != nil {
		return nil, fmt.Errorf("saving tags for %s: %w", path, err)
	}

	result.Saved = true
	p.log.Debug("tags written",
		zap.String("path", path),
		zap.Strings("fields", result.Updated))
	return result, nil
}

// setComment replaces the URI comment frame, leaving unrelated comment
// frames from other taggers in place.
func setComment(tagFile *id3v2.Tag, value string) {
	commentID := tagFile.CommonID("Comments")

	var kept []id3v2.Framer
	for _, frame := range tagFile.GetFrames(commentID) {
		comment, ok := frame.(id3v2.CommentFrame)
		if !ok || comment.Description == uriCommentDescription {
			continue
		}
		kept = append(kept, comment)
	}

	tagFile.DeleteFrames(commentID)
	for _, frame := range kept {
		tagFile.AddFrame(commentID, frame)
	}

	if value != "" {
		tagFile.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: uriCommentDescription,
			Text:        value,
		})
	}
}
