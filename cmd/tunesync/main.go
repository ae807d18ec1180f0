// Package main provides the tunesync CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"tunesync/internal/check"
	"tunesync/internal/core"
	"tunesync/internal/driver"
	httpserver "tunesync/internal/http"
	"tunesync/internal/library"
	"tunesync/internal/match"
	"tunesync/internal/reconcile"
	"tunesync/internal/spotify"
	"tunesync/internal/store"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tunesync",
	Short: "Sync a local music library with Spotify",
	Long: `tunesync matches the tracks and playlists of a local music library against
Spotify, reviews the matches interactively, stores the decisions in the file
tags and keeps remote playlists in sync with the local ones.`,
	RunE: runSync,
}

var restoreCmd = &cobra.Command{
	Use:   "restore [name]",
	Short: "Overlay a saved URI backup onto the library tags",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRestore,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("music-path", "", "root folder of the local music library")
	rootCmd.PersistentFlags().String("playlist-path", "", "folder containing M3U playlists")
	rootCmd.PersistentFlags().String("state-dir", "", "directory for checkpoints, backups and the library index")
	rootCmd.PersistentFlags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("spotify-client-secret", "", "Spotify client secret")
	rootCmd.PersistentFlags().Int("requests-per-minute", 120, "remote API request budget per minute")
	rootCmd.PersistentFlags().Int("algorithm", 4, "signed match tier depth for track search")
	rootCmd.PersistentFlags().Int("album-algorithm", 2, "settings tier for whole-album matching")
	rootCmd.PersistentFlags().Int("interval", 10, "collections per interactive check batch")
	rootCmd.PersistentFlags().String("strategy", "new", "playlist sync strategy (new, refresh, sync)")
	rootCmd.PersistentFlags().Bool("dry-run", true, "report what would change without changing it")
	rootCmd.PersistentFlags().Bool("reload", false, "refetch playlists after sync for exact final counts")
	rootCmd.PersistentFlags().Bool("server-enabled", false, "serve Prometheus metrics")
	rootCmd.PersistentFlags().Int("server-port", 8080, "metrics server port")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(restoreCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("TUNESYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Library.MusicPath = viper.GetString("music-path")
	cfg.Library.PlaylistPath = viper.GetString("playlist-path")
	if dir := viper.GetString("state-dir"); dir != "" {
		cfg.Library.StateDir = dir
		cfg.Spotify.TokenPath = filepath.Join(dir, "token.json")
	}

	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	if url := viper.GetString("spotify-redirect-url"); url != "" {
		cfg.Spotify.RedirectURL = url
	}
	cfg.Spotify.RequestsPerMinute = viper.GetInt("requests-per-minute")

	cfg.Match.Algorithm = viper.GetInt("algorithm")
	cfg.Match.AlbumAlgorithm = viper.GetInt("album-algorithm")
	cfg.Check.Interval = viper.GetInt("interval")

	cfg.Sync.Strategy = viper.GetString("strategy")
	cfg.Sync.DryRun = viper.GetBool("dry-run")
	cfg.Sync.Reload = viper.GetBool("reload")

	cfg.Server.Enabled = viper.GetBool("server-enabled")
	cfg.Server.Port = viper.GetInt("server-port")

	cfg.Log.Level = viper.GetString("log-level")

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	// The interactive checker owns stdout; logs go to stderr only.
	cfg.OutputPaths = []string{"stderr"}

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}
	return builtLogger
}

func validateConfig() error {
	if config.Spotify.ClientID == "" {
		return fmt.Errorf("spotify client ID is required")
	}
	if config.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client secret is required")
	}
	if config.Library.MusicPath == "" && config.Library.StateDir == "" {
		return fmt.Errorf("either a music path or a state dir with a library index is required")
	}
	if _, err := reconcile.ParseStrategy(config.Sync.Strategy); err != nil {
		return err
	}
	return nil
}

// buildDriver authenticates the remote client and wires all components.
func buildDriver(ctx context.Context) (*driver.Driver, *httpserver.Server, error) {
	spotifyClient := spotify.NewClient(&config.Spotify, logger)
	if err := spotifyClient.Authenticate(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to authenticate with Spotify: %w", err)
	}

	stateDir := config.Library.StateDir
	index, err := store.OpenIndex(filepath.Join(stateDir, "library.db"), logger)
	if err != nil {
		return nil, nil, err
	}

	var metricsServer *httpserver.Server
	var metrics driver.Metrics
	if config.Server.Enabled {
		metricsServer = httpserver.NewServer(&config.Server, logger)
		metrics = metricsServer
		spotifyClient.OnAPIError = func(statusCode int) {
			metricsServer.RecordAPIError(strconv.Itoa(statusCode))
		}
	}

	deps := driver.Deps{
		Library:  library.NewProvider(logger),
		Searcher: match.NewSearcher(spotifyClient, config.Match, logger),
		Checker: check.NewChecker(spotifyClient, config.Check,
			check.DefaultPair(logger), os.Stdin, os.Stdout, logger),
		Reconciler:  reconcile.NewReconciler(spotifyClient, logger),
		Checkpoints: store.NewCheckpointStore(filepath.Join(stateDir, "checkpoints"), logger),
		Backups:     store.NewBackupStore(filepath.Join(stateDir, "backups"), logger),
		Index:       index,
		Seen:        store.NewSeenStore(100000, 0.001),
		Metrics:     metrics,
		Out:         os.Stdout,
	}

	return driver.New(config, deps, logger), metricsServer, nil
}

func runSync(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting tunesync",
		zap.String("music_path", config.Library.MusicPath),
		zap.String("strategy", config.Sync.Strategy),
		zap.Bool("dry_run", config.Sync.DryRun))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	d, metricsServer, err := buildDriver(ctx)
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)

	if metricsServer != nil {
		g.Go(func() error {
			return metricsServer.Start(gCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return d.Run(gCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("tunesync stopped with error", zap.Error(err))
		return err
	}

	logger.Info("tunesync finished")
	return nil
}

func runRestore(_ *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	name := "library"
	if len(args) > 0 {
		name = args[0]
	}

	d, _, err := buildDriver(ctx)
	if err != nil {
		return err
	}
	return d.Restore(ctx, name)
}
