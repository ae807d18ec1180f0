package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"tunesync/internal/core"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS library_tracks (
	path         TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	artist       TEXT NOT NULL,
	album        TEXT NOT NULL,
	album_artist TEXT NOT NULL DEFAULT '',
	track_number INTEGER NOT NULL DEFAULT 0,
	disc_number  INTEGER NOT NULL DEFAULT 0,
	year         INTEGER NOT NULL DEFAULT 0,
	genre        TEXT NOT NULL DEFAULT '',
	duration_ms  INTEGER NOT NULL DEFAULT 0,
	compilation  INTEGER NOT NULL DEFAULT 0,
	uri          TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Index is the sqlite snapshot of the local library. It lets later runs
// load track metadata without re-reading every audio file, and records URI
// decisions for formats whose tags are not writable.
type Index struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenIndex opens (and if needed creates) the library index at path.
func OpenIndex(path string, log *zap.Logger) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening library index: %w", err)
	}

	// WAL keeps concurrent reads cheap while the scanner upserts.
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring library index: %w", err)
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating library index schema: %w", err)
	}

	return &Index{db: db, log: log.Named("index")}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// Upsert writes the given tracks into the index, replacing existing rows by
// path. Runs in one transaction.
func (ix *Index) Upsert(tracks []*core.LocalTrack) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("starting index transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO library_tracks
			(path, title, artist, album, album_artist, track_number,
			 disc_number, year, genre, duration_ms, compilation, uri, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			album_artist = excluded.album_artist,
			track_number = excluded.track_number,
			disc_number = excluded.disc_number,
			year = excluded.year,
			genre = excluded.genre,
			duration_ms = excluded.duration_ms,
			compilation = excluded.compilation,
			uri = excluded.uri,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("preparing index upsert: %w", err)
	}
	defer stmt.Close()

	for _, track := range tracks {
		compilation := 0
		if track.Compilation {
			compilation = 1
		}
		_, err := stmt.Exec(
			track.Path, track.Title, track.Artist, track.Album,
			track.AlbumArtist, track.TrackNumber, track.DiscNumber,
			track.Year, strings.Join(track.Genres, ";"),
			track.Duration.Milliseconds(), compilation,
			track.URI.TagValue(),
		)
		if err != nil {
			return fmt.Errorf("upserting %s: %w", track.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index transaction: %w", err)
	}

	ix.log.Debug("index updated", zap.Int("tracks", len(tracks)))
	return nil
}

// UpdateURI records a URI decision for one path without touching the rest
// of the row. Used for formats whose file tags cannot carry the URI.
func (ix *Index) UpdateURI(path string, uri core.URI) error {
	_, err := ix.db.Exec(
		`UPDATE library_tracks SET uri = ?, updated_at = CURRENT_TIMESTAMP WHERE path = ?`,
		uri.TagValue(), path)
	if err != nil {
		return fmt.Errorf("updating uri for %s: %w", path, err)
	}
	return nil
}

// LoadAll returns every indexed track ordered by path.
func (ix *Index) LoadAll() ([]*core.LocalTrack, error) {
	rows, err := ix.db.Query(`
		SELECT path, title, artist, album, album_artist, track_number,
		       disc_number, year, genre, duration_ms, compilation, uri
		FROM library_tracks
		ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("loading library index: %w", err)
	}
	defer rows.Close()

	var tracks []*core.LocalTrack
	for rows.Next() {
		var track core.LocalTrack
		var genre, uri string
		var durationMS int64
		var compilation int
		if err := rows.Scan(
			&track.Path, &track.Title, &track.Artist, &track.Album,
			&track.AlbumArtist, &track.TrackNumber, &track.DiscNumber,
			&track.Year, &genre, &durationMS, &compilation, &uri,
		); err != nil {
			return nil, fmt.Errorf("scanning index row: %w", err)
		}
		if genre != "" {
			track.Genres = strings.Split(genre, ";")
		}
		track.Duration = time.Duration(durationMS) * time.Millisecond
		track.Compilation = compilation == 1
		track.URI = core.ParseTagValue(uri)
		tracks = append(tracks, &track)
	}
	return tracks, rows.Err()
}

// Count returns the number of indexed tracks.
func (ix *Index) Count() (int, error) {
	var count int
	err := ix.db.QueryRow(`SELECT COUNT(*) FROM library_tracks`).Scan(&count)
	return count, err
}

// Prune removes rows whose path is not in the given set, returning the
// number removed. Called after a scan so deleted files fall out.
func (ix *Index) Prune(keep map[string]*core.LocalTrack) (int, error) {
	rows, err := ix.db.Query(`SELECT path FROM library_tracks`)
	if err != nil {
		return 0, fmt.Errorf("listing index paths: %w", err)
	}
	var stale []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return 0, err
		}
		if _, ok := keep[path]; !ok {
			stale = append(stale, path)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, path := range stale {
		if _, err := ix.db.Exec(`DELETE FROM library_tracks WHERE path = ?`, path); err != nil {
			return 0, fmt.Errorf("pruning %s: %w", path, err)
		}
	}
	return len(stale), nil
}
