package core

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

type Config struct {
	Library LibraryConfig
	Spotify SpotifyConfig
	Match   MatchConfig
	Check   CheckConfig
	Sync    SyncConfig
	Server  ServerConfig
	Log     LogConfig
}

type LibraryConfig struct {
	MusicPath    string
	PlaylistPath string
	StateDir     string
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenPath    string
	// RequestsPerMinute caps outbound API calls across all components.
	RequestsPerMinute int
	MaxRetries        int
	RetryDelay        time.Duration
}

type MatchConfig struct {
	// Algorithm is the signed tier-depth for per-track matching. Positive
	// values visit the quick tiers first, negative values the deep tiers
	// first. Zero accepts the first result unconditionally.
	Algorithm int
	// AlbumAlgorithm selects the settings tier used for whole-album matching.
	AlbumAlgorithm int
	// MaxResults limits how many candidates a single query returns.
	MaxResults int
	// Parallelism bounds concurrent collection searches.
	Parallelism int
}

type CheckConfig struct {
	// Interval is how many temporary playlists to create before pausing for
	// user review.
	Interval int
}

type SyncConfig struct {
	Strategy string
	DryRun   bool
	Reload   bool
}

type ServerConfig struct {
	Enabled      bool
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level string
}

func DefaultConfig() *Config {
	stateDir := filepath.Join(xdg.DataHome, "tunesync")

	return &Config{
		Library: LibraryConfig{
			StateDir: stateDir,
		},
		Spotify: SpotifyConfig{
			RedirectURL:       "http://localhost:8080/callback",
			TokenPath:         filepath.Join(stateDir, "token.json"),
			RequestsPerMinute: 120,
			MaxRetries:        3,
			RetryDelay:        5 * time.Second,
		},
		Match: MatchConfig{
			Algorithm:      4,
			AlbumAlgorithm: 2,
			MaxResults:     10,
			Parallelism:    4,
		},
		Check: CheckConfig{
			Interval: 10,
		},
		Sync: SyncConfig{
			Strategy: "new",
			DryRun:   true,
			Reload:   false,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
