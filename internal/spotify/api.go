package spotify

import (
	"context"
	"strings"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"tunesync/internal/core"
)

// SearchTracks queries the track catalogue and returns up to limit
// candidates.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]core.RemoteTrack, error) {
	var results *spotify.SearchResult
	err := c.call(ctx, "search_tracks", func() error {
		var callErr error
		results, callErr = c.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
		return callErr
	})
	if err != nil {
		return nil, err
	}

	if results.Tracks == nil {
		return nil, nil
	}

	var tracks []core.RemoteTrack
	for i := range results.Tracks.Tracks {
		if len(tracks) >= limit {
			break
		}
		tracks = append(tracks, convertFullTrack(&results.Tracks.Tracks[i]))
	}
	return tracks, nil
}

// SearchAlbums queries the album catalogue and returns up to limit
// candidates without their track listings. The search response's
// simplified albums carry no track count, so the candidates are hydrated
// through a batched album fetch. Use GetAlbum for the full listing of a
// chosen candidate.
func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) ([]core.RemoteAlbum, error) {
	var results *spotify.SearchResult
	err := c.call(ctx, "search_albums", func() error {
		var callErr error
		results, callErr = c.client.Search(ctx, query, spotify.SearchTypeAlbum, spotify.Limit(limit))
		return callErr
	})
	if err != nil {
		return nil, err
	}

	if results.Albums == nil {
		return nil, nil
	}

	var ids []spotify.ID
	for i := range results.Albums.Albums {
		if len(ids) >= limit {
			break
		}
		ids = append(ids, results.Albums.Albums[i].ID)
	}

	var albums []core.RemoteAlbum
	for start := 0; start < len(ids); start += AlbumBatchSize {
		end := min(start+AlbumBatchSize, len(ids))
		batch := ids[start:end]

		var fulls []*spotify.FullAlbum
		err := c.call(ctx, "get_albums", func() error {
			var callErr error
			fulls, callErr = c.client.GetAlbums(ctx, batch)
			return callErr
		})
		if err != nil {
			return nil, err
		}

		for _, full := range fulls {
			if full == nil {
				continue
			}
			album := convertFullAlbum(full)
			album.Tracks = nil
			albums = append(albums, album)
		}
	}
	return albums, nil
}

func (c *Client) GetAlbum(ctx context.Context, id string) (*core.RemoteAlbum, error) {
	var full *spotify.FullAlbum
	err := c.call(ctx, "get_album", func() error {
		var callErr error
		full, callErr = c.client.GetAlbum(ctx, spotify.ID(id))
		return callErr
	})
	if err != nil {
		return nil, err
	}

	album := convertFullAlbum(full)
	for i := range full.Tracks.Tracks {
		album.Tracks = append(album.Tracks, convertSimpleTrack(&full.Tracks.Tracks[i]))
	}
	return &album, nil
}

func (c *Client) GetTrack(ctx context.Context, id string) (*core.RemoteTrack, error) {
	var full *spotify.FullTrack
	err := c.call(ctx, "get_track", func() error {
		var callErr error
		full, callErr = c.client.GetTrack(ctx, spotify.ID(id))
		return callErr
	})
	if err != nil {
		return nil, err
	}

	track := convertFullTrack(full)
	return &track, nil
}

func (c *Client) CreatePlaylist(ctx context.Context, name string, public, collaborative bool) (string, error) {
	var playlist *spotify.FullPlaylist
	err := c.call(ctx, "create_playlist", func() error {
		var callErr error
		playlist, callErr = c.client.CreatePlaylistForUser(ctx, c.userID, name, "", public, collaborative)
		return callErr
	})
	if err != nil {
		return "", err
	}

	c.logger.Debug("created playlist",
		zap.String("name", name),
		zap.String("id", string(playlist.ID)))
	return string(playlist.ID), nil
}

// GetPlaylistItems returns every track of a playlist, following
// pagination. Episode and null entries are skipped.
func (c *Client) GetPlaylistItems(ctx context.Context, playlistID string) ([]core.RemoteTrack, error) {
	var all []core.RemoteTrack
	offset := 0

	for {
		var page *spotify.PlaylistItemPage
		err := c.call(ctx, "get_playlist_items", func() error {
			var callErr error
			page, callErr = c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(PageLimit), spotify.Offset(offset))
			return callErr
		})
		if err != nil {
			return nil, err
		}

		for i := range page.Items {
			if page.Items[i].Track.Track == nil {
				continue
			}
			all = append(all, convertFullTrack(page.Items[i].Track.Track))
		}

		if len(page.Items) < PageLimit {
			break
		}
		offset += PageLimit
	}

	return all, nil
}

// AddToPlaylist appends the given track URIs, chunked to the API's write
// limit. With skipDupes set, URIs already in the playlist are not added
// again and the returned count excludes them.
func (c *Client) AddToPlaylist(ctx context.Context, playlistID string, uris []string, skipDupes bool) (int, error) {
	toAdd := uris
	if skipDupes {
		existing, err := c.GetPlaylistItems(ctx, playlistID)
		if err != nil {
			return 0, err
		}
		present := make(map[string]bool, len(existing))
		for _, item := range existing {
			present[item.URI] = true
		}

		toAdd = nil
		for _, uri := range uris {
			if !present[uri] {
				toAdd = append(toAdd, uri)
			}
		}
	}

	added := 0
	for _, chunk := range chunkIDs(toAdd) {
		err := c.call(ctx, "add_to_playlist", func() error {
			_, callErr := c.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), chunk...)
			return callErr
		})
		if err != nil {
			return added, err
		}
		added += len(chunk)
	}

	c.logger.Debug("added tracks to playlist",
		zap.String("playlist", playlistID),
		zap.Int("count", added))
	return added, nil
}

// ClearFromPlaylist removes the given track URIs, chunked to the API's
// write limit. A nil slice clears the whole playlist. The returned count
// is the number of URIs that were actually present.
func (c *Client) ClearFromPlaylist(ctx context.Context, playlistID string, uris []string) (int, error) {
	existing, err := c.GetPlaylistItems(ctx, playlistID)
	if err != nil {
		return 0, err
	}

	toRemove := urisToClear(existing, uris)

	removed := 0
	for _, chunk := range chunkIDs(toRemove) {
		err := c.call(ctx, "clear_from_playlist", func() error {
			_, callErr := c.client.RemoveTracksFromPlaylist(ctx, spotify.ID(playlistID), chunk...)
			return callErr
		})
		if err != nil {
			return removed, err
		}
		removed += len(chunk)
	}

	c.logger.Debug("removed tracks from playlist",
		zap.String("playlist", playlistID),
		zap.Int("count", removed))
	return removed, nil
}

func (c *Client) DeletePlaylist(ctx context.Context, playlistID string) error {
	return c.call(ctx, "delete_playlist", func() error {
		return c.client.UnfollowPlaylist(ctx, spotify.ID(playlistID))
	})
}

// FindPlaylist resolves a playlist owned or followed by the current user
// by exact name, following pagination.
func (c *Client) FindPlaylist(ctx context.Context, name string) (string, bool, error) {
	offset := 0

	for {
		var page *spotify.SimplePlaylistPage
		err := c.call(ctx, "find_playlist", func() error {
			var callErr error
			page, callErr = c.client.CurrentUsersPlaylists(ctx,
				spotify.Limit(PageLimit), spotify.Offset(offset))
			return callErr
		})
		if err != nil {
			return "", false, err
		}

		for i := range page.Playlists {
			if strings.EqualFold(page.Playlists[i].Name, name) {
				return string(page.Playlists[i].ID), true, nil
			}
		}

		if len(page.Playlists) < PageLimit {
			break
		}
		offset += PageLimit
	}

	return "", false, nil
}

// urisToClear intersects the requested URIs with the playlist's current
// content. A nil request selects everything in the playlist.
func urisToClear(existing []core.RemoteTrack, uris []string) []string {
	if uris == nil {
		var all []string
		for _, item := range existing {
			all = append(all, item.URI)
		}
		return all
	}

	present := make(map[string]bool, len(existing))
	for _, item := range existing {
		present[item.URI] = true
	}

	var toRemove []string
	for _, uri := range uris {
		if present[uri] {
			toRemove = append(toRemove, uri)
		}
	}
	return toRemove
}

func chunkIDs(uris []string) [][]spotify.ID {
	var chunks [][]spotify.ID
	for start := 0; start < len(uris); start += WriteChunkSize {
		end := min(start+WriteChunkSize, len(uris))
		chunk := make([]spotify.ID, 0, end-start)
		for _, uri := range uris[start:end] {
			chunk = append(chunk, uriToID(uri))
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}
