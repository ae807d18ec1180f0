// Package spotify provides the Spotify Web API implementation of the
// remote surface used by search, check and reconcile.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"tunesync/internal/core"
	"tunesync/internal/ratelimit"
)

const (
	// FilePermission is the permission for token files
	FilePermission = 0600
	// ReleaseDateYearLength is the expected length of a release date year string
	ReleaseDateYearLength = 4
	// PageLimit is the page size used for paginated playlist reads
	PageLimit = 100
	// WriteChunkSize is the maximum URIs per playlist mutation call
	WriteChunkSize = 100
	// AlbumBatchSize is the maximum IDs per batched album fetch
	AlbumBatchSize = 20
)

type Client struct {
	config *core.SpotifyConfig
	logger *zap.Logger
	client *spotify.Client
	auth   *spotifyauth.Authenticator
	gate   *ratelimit.Gate
	userID string

	// OnAPIError, when set, is called with the status code of every API
	// error response, including ones that are retried. Used for metrics.
	OnAPIError func(statusCode int)
}

type TokenData struct {
	Token *oauth2.Token `json:"token"`
}

func NewClient(config *core.SpotifyConfig, logger *zap.Logger) *Client {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(config.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopePlaylistReadCollaborative,
		),
		spotifyauth.WithClientID(config.ClientID),
		spotifyauth.WithClientSecret(config.ClientSecret),
	)

	return &Client{
		config: config,
		logger: logger.Named("spotify"),
		auth:   auth,
		gate:   ratelimit.New(config.RequestsPerMinute),
	}
}

func (c *Client) Authenticate(ctx context.Context) error {
	token, err := c.loadToken()
	if err != nil {
		c.logger.Info("No saved token found, starting OAuth flow")
		return c.startOAuthFlow(ctx)
	}

	client := spotify.New(c.auth.Client(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		c.logger.Warn("Saved token invalid, starting OAuth flow", zap.Error(err))
		return c.startOAuthFlow(ctx)
	}

	c.userID = user.ID
	c.logger.Info("Authenticated successfully", zap.String("user", user.DisplayName))
	return nil
}

func (c *Client) startOAuthFlow(ctx context.Context) error {
	state := "tunesync-auth-state"
	authURL := c.auth.AuthURL(state)

	fmt.Printf("Please visit the following URL to authorize the application:\n%s\n", authURL)
	fmt.Print("Enter the authorization code: ")

	var code string
	if _, err := fmt.Scanln(&code); err != nil {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}

	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	if saveErr := c.saveToken(token); saveErr != nil {
		c.logger.Warn("Failed to save token", zap.Error(saveErr))
	}

	client := spotify.New(c.auth.Client(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	c.userID = user.ID
	c.logger.Info("OAuth flow completed successfully", zap.String("user", user.DisplayName))
	return nil
}

func (c *Client) loadToken() (*oauth2.Token, error) {
	file, err := os.Open(c.config.TokenPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return nil, err
	}

	return tokenData.Token, nil
}

func (c *Client) saveToken(token *oauth2.Token) error {
	tokenData := TokenData{Token: token}

	data, err := json.MarshalIndent(tokenData, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.config.TokenPath), 0700); err != nil {
		return err
	}
	return os.WriteFile(c.config.TokenPath, data, FilePermission)
}

// call runs one API operation through the rate gate, retrying 429 and 5xx
// responses up to the configured limit. 4xx responses other than 429 are
// surfaced immediately as a typed APIError.
func (c *Client) call(ctx context.Context, op string, fn func() error) error {
	if c.client == nil {
		return fmt.Errorf("client not authenticated")
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.gate.Wait(ctx); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}

		apiErr := mapError(err)
		lastErr = apiErr

		typed, ok := core.AsAPIError(apiErr)
		if ok && c.OnAPIError != nil {
			c.OnAPIError(typed.StatusCode)
		}
		if !ok || !typed.Retryable() {
			return apiErr
		}

		delay := c.config.RetryDelay * time.Duration(attempt+1)
		c.logger.Warn("retrying API call",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Int("status", typed.StatusCode),
			zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// mapError converts the library's error type into the core taxonomy.
func mapError(err error) error {
	var spotifyErr spotify.Error
	if errors.As(err, &spotifyErr) {
		return &core.APIError{StatusCode: spotifyErr.Status, Message: spotifyErr.Message}
	}
	return err
}

func convertFullTrack(track *spotify.FullTrack) core.RemoteTrack {
	converted := convertSimpleTrack(&track.SimpleTrack)
	converted.Album = track.Album.Name
	converted.Year = parseReleaseYear(track.Album.ReleaseDate)
	for _, artist := range track.Album.Artists {
		converted.AlbumArtists = append(converted.AlbumArtists, artist.Name)
	}
	return converted
}

func convertSimpleTrack(track *spotify.SimpleTrack) core.RemoteTrack {
	var artists []string
	for _, artist := range track.Artists {
		artists = append(artists, artist.Name)
	}

	return core.RemoteTrack{
		URI:      string(track.URI),
		Title:    track.Name,
		Artists:  artists,
		Duration: time.Duration(track.Duration) * time.Millisecond,
	}
}

func convertSimpleAlbum(album *spotify.SimpleAlbum) core.RemoteAlbum {
	var artists []string
	for _, artist := range album.Artists {
		artists = append(artists, artist.Name)
	}

	return core.RemoteAlbum{
		ID:      string(album.ID),
		URI:     string(album.URI),
		Title:   album.Name,
		Artists: artists,
		Year:    parseReleaseYear(album.ReleaseDate),
	}
}

// convertFullAlbum converts a full album without its track listing. The
// simplified album object carries no track count, so the total comes from
// the track page.
func convertFullAlbum(full *spotify.FullAlbum) core.RemoteAlbum {
	album := convertSimpleAlbum(&full.SimpleAlbum)
	album.TotalTracks = full.Tracks.Total
	return album
}

func parseReleaseYear(releaseDate string) int {
	if len(releaseDate) < ReleaseDateYearLength {
		return 0
	}

	var year int
	if _, err := fmt.Sscanf(releaseDate[:ReleaseDateYearLength], "%d", &year); err != nil {
		return 0
	}
	return year
}

func uriToID(uri string) spotify.ID {
	if i := strings.LastIndex(uri, ":"); i >= 0 {
		return spotify.ID(uri[i+1:])
	}
	return spotify.ID(uri)
}
