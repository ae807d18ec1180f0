// Package driver orchestrates one synchronisation run: scan the library,
// resolve tracks against the remote service, review the matches, write the
// decisions back into file tags and push playlists remotely. Each stage
// checkpoints its output so an interrupted run resumes where it stopped.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	progressbar "github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"tunesync/internal/check"
	"tunesync/internal/core"
	"tunesync/internal/library"
	"tunesync/internal/match"
	"tunesync/internal/reconcile"
	"tunesync/internal/store"
)

// Checkpoint stage names, in pipeline order.
const (
	StageSearch = "search"
	StageCheck  = "check"
	StageTags   = "tags"
)

const backupName = "library"

// Metrics is the subset of the metrics server the driver reports to. A nil
// implementation is allowed.
type Metrics interface {
	RecordSearch(status string)
	RecordSearchTime(elapsed time.Duration)
	RecordSwitched()
	RecordSyncOp(op string, count int)
	SetLibrarySize(size int)
}

// Deps carries the wired components. Index and Metrics may be nil.
type Deps struct {
	Library     *library.Provider
	Searcher    *match.Searcher
	Checker     *check.Checker
	Reconciler  *reconcile.Reconciler
	Checkpoints *store.CheckpointStore
	Backups     *store.BackupStore
	Index       *store.Index
	Seen        *store.SeenStore
	Metrics     Metrics
	Out         io.Writer
}

type Driver struct {
	cfg  *core.Config
	deps Deps
	log  *zap.Logger
}

func New(cfg *core.Config, deps Deps, log *zap.Logger) *Driver {
	return &Driver{cfg: cfg, deps: deps, log: log.Named("driver")}
}

// Run executes the full pipeline. Destructive calls honour the configured
// dry-run flag throughout.
func (d *Driver) Run(ctx context.Context) error {
	tracks, folders, playlists, err := d.loadLibrary(ctx)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return errors.New("library is empty, nothing to sync")
	}

	resumed, err := d.resume(folders)
	if err != nil {
		return err
	}

	if resumed == "" {
		if _, err := d.Search(ctx, folders); err != nil {
			return err
		}
	}

	if resumed == "" || resumed == StageSearch {
		quit, err := d.ReviewMatches(ctx, folders)
		if err != nil {
			return err
		}
		if quit {
			d.log.Info("review session quit, leaving checkpoints for resume")
			return nil
		}
	}

	if resumed != StageTags {
		if err := d.WriteTags(tracks); err != nil {
			return err
		}
	}

	target := playlists
	if len(target) == 0 {
		target = folders
	}
	results, err := d.Push(ctx, target)
	if err != nil {
		return err
	}

	d.printSyncReport(results)

	if err := d.deps.Backups.Save(backupName, store.Snapshot(tracks)); err != nil {
		return err
	}
	for _, stage := range []string{StageSearch, StageCheck, StageTags} {
		if err := d.deps.Checkpoints.Delete(stage); err != nil {
			return err
		}
	}
	return nil
}

// loadLibrary scans the music folder and loads M3U playlists against it.
// With no music path configured the last indexed snapshot is used instead,
// so metadata-only runs skip the expensive file walk.
func (d *Driver) loadLibrary(_ context.Context) ([]*core.LocalTrack, []*core.Collection, []*core.Collection, error) {
	if d.cfg.Library.MusicPath == "" {
		return d.quickload()
	}

	result, err := d.deps.Library.Scan(d.cfg.Library.MusicPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("scanning library: %w", err)
	}
	index := result.ByPath()

	if d.deps.Index != nil {
		if err := d.deps.Index.Upsert(result.Tracks); err != nil {
			return nil, nil, nil, err
		}
		if pruned, err := d.deps.Index.Prune(index); err != nil {
			return nil, nil, nil, err
		} else if pruned > 0 {
			d.log.Info("pruned deleted files from index", zap.Int("count", pruned))
		}
	}
	if d.deps.Metrics != nil {
		d.deps.Metrics.SetLibrarySize(len(result.Tracks))
	}

	var playlists []*core.Collection
	if d.cfg.Library.PlaylistPath != "" {
		var loadErrors []*core.LoadError
		playlists, loadErrors, err = d.deps.Library.LoadPlaylists(d.cfg.Library.PlaylistPath, index)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading playlists: %w", err)
		}
		for _, loadErr := range loadErrors {
			d.log.Warn("playlist entry skipped", zap.String("path", loadErr.Path), zap.Error(loadErr.Err))
		}
	}

	return result.Tracks, result.Collections, playlists, nil
}

func (d *Driver) quickload() ([]*core.LocalTrack, []*core.Collection, []*core.Collection, error) {
	if d.deps.Index == nil {
		return nil, nil, nil, errors.New("no music path configured and no library index available")
	}
	tracks, err := d.deps.Index.LoadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	d.log.Info("loaded library from index", zap.Int("tracks", len(tracks)))

	// The index is flat; folder grouping comes back from the paths.
	byFolder := make(map[string]*core.Collection)
	var folders []*core.Collection
	for _, track := range tracks {
		folder := filepath.Dir(track.Path)
		collection, ok := byFolder[folder]
		if !ok {
			collection = &core.Collection{Name: filepath.Base(folder)}
			byFolder[folder] = collection
			folders = append(folders, collection)
		}
		collection.Tracks = append(collection.Tracks, track)
	}
	return tracks, folders, nil, nil
}

// resume overlays the newest stage checkpoint left by an interrupted run
// and returns its stage name, or "" when no checkpoint exists. Later
// stages supersede earlier ones, so a persisted check or tags checkpoint
// skips the search and review stages entirely on the next run.
func (d *Driver) resume(collections []*core.Collection) (string, error) {
	for _, stage := range []string{StageTags, StageCheck, StageSearch} {
		saved, found, err := d.deps.Checkpoints.Load(stage)
		if err != nil {
			return "", err
		}
		if !found {
			continue
		}

		restored := overlayCheckpoint(saved, collections)
		d.log.Info("resuming from checkpoint",
			zap.String("stage", stage),
			zap.Int("restored", restored))
		return stage, nil
	}
	return "", nil
}

// Search resolves every unresolved track.
func (d *Driver) Search(ctx context.Context, collections []*core.Collection) (*match.Report, error) {
	bar := progressbar.Default(int64(len(collections)), "searching")
	d.deps.Searcher.OnCollectionDone = func(elapsed time.Duration) {
		_ = bar.Add(1)
		if d.deps.Metrics != nil {
			d.deps.Metrics.RecordSearchTime(elapsed)
		}
	}
	defer func() {
		d.deps.Searcher.OnCollectionDone = nil
		_ = bar.Finish()
	}()

	report, err := d.deps.Searcher.SearchCollections(ctx, collections)
	if err != nil {
		return report, err
	}

	duplicates := 0
	if d.deps.Seen != nil {
		for _, tracks := range report.Found {
			for _, track := range tracks {
				if !d.deps.Seen.Mark(track.URI.Value()) {
					duplicates++
				}
			}
		}
	}
	if d.deps.Metrics != nil {
		foundCount, notFoundCount, skippedCount := report.Totals()
		for i := 0; i < foundCount; i++ {
			d.deps.Metrics.RecordSearch("found")
		}
		for i := 0; i < notFoundCount; i++ {
			d.deps.Metrics.RecordSearch("not_found")
		}
		for i := 0; i < skippedCount; i++ {
			d.deps.Metrics.RecordSearch("skipped")
		}
	}
	if duplicates > 0 {
		d.log.Info("tracks sharing a remote match", zap.Int("count", duplicates))
	}

	if err := d.deps.Checkpoints.Save(StageSearch, collectionMap(collections)); err != nil {
		return report, err
	}
	d.printSearchReport(report)
	return report, nil
}

// ReviewMatches runs the interactive check session. Returns true when the
// user quit, in which case nothing has been persisted.
func (d *Driver) ReviewMatches(ctx context.Context, collections []*core.Collection) (bool, error) {
	report, err := d.deps.Checker.Check(ctx, collections)
	if err != nil {
		return false, err
	}
	if report == nil {
		return true, nil
	}

	if d.deps.Metrics != nil {
		for range report.Switched {
			d.deps.Metrics.RecordSwitched()
		}
	}
	d.log.Info("review finished",
		zap.Int("switched", len(report.Switched)),
		zap.Int("unavailable", len(report.Unavailable)),
		zap.Int("skipped", len(report.Skipped)))

	return false, d.deps.Checkpoints.Save(StageCheck, collectionMap(collections))
}

// WriteTags persists every decided URI into the audio files. Formats whose
// tags are not writable fall back to the library index. Per-file failures
// are logged and do not abort the run.
func (d *Driver) WriteTags(tracks []*core.LocalTrack) error {
	written, indexed, failed := 0, 0, 0
	for _, track := range tracks {
		if track.URI.IsUnresolved() {
			continue
		}

		_, err := d.deps.Library.WriteURI(track, d.cfg.Sync.DryRun)
		if err == nil {
			written++
			continue
		}

		var loadErr *core.LoadError
		if errors.As(err, &loadErr) && d.deps.Index != nil {
			if !d.cfg.Sync.DryRun {
				if err := d.deps.Index.UpdateURI(track.Path, track.URI); err != nil {
					return err
				}
			}
			indexed++
			continue
		}

		failed++
		d.log.Warn("tag write failed", zap.String("path", track.Path), zap.Error(err))
	}

	d.log.Info("tags written",
		zap.Int("files", written),
		zap.Int("index_only", indexed),
		zap.Int("failed", failed),
		zap.Bool("dry_run", d.cfg.Sync.DryRun))

	return d.deps.Checkpoints.Save(StageTags, map[string][]*core.LocalTrack{"library": tracks})
}

// Push reconciles every collection with its remote playlist.
func (d *Driver) Push(ctx context.Context, collections []*core.Collection) (map[string]*reconcile.SyncResult, error) {
	strategy, err := reconcile.ParseStrategy(d.cfg.Sync.Strategy)
	if err != nil {
		return nil, err
	}

	results, err := d.deps.Reconciler.SyncAll(ctx, collections, strategy, d.cfg.Sync.DryRun, d.cfg.Sync.Reload)
	if err != nil {
		return nil, err
	}

	if d.deps.Metrics != nil {
		for _, result := range results {
			d.deps.Metrics.RecordSyncOp("added", result.Added)
			d.deps.Metrics.RecordSyncOp("removed", result.Removed)
		}
	}
	return results, nil
}

// Restore overlays a saved backup onto the current library and rewrites
// the tags accordingly.
func (d *Driver) Restore(ctx context.Context, name string) error {
	backup, found, err := d.deps.Backups.Load(name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no backup named %q", name)
	}

	tracks, _, _, err := d.loadLibrary(ctx)
	if err != nil {
		return err
	}

	restored := store.Restore(backup, tracks)
	d.log.Info("backup restored", zap.String("name", name), zap.Int("tracks", restored))
	return d.WriteTags(tracks)
}

func (d *Driver) printSearchReport(report *match.Report) {
	found, notFound, skipped := report.Totals()
	fmt.Fprintf(d.deps.Out, "%s: %s found, %s not found, %s skipped\n",
		color.New(color.Bold).Sprint("Search"),
		color.GreenString("%d", found),
		color.RedString("%d", notFound),
		color.YellowString("%d", skipped))

	for name, tracks := range report.NotFound {
		fmt.Fprintf(d.deps.Out, "  %s\n", color.New(color.Bold).Sprint(name))
		for _, track := range tracks {
			fmt.Fprintf(d.deps.Out, "    %s - %s\n", track.Artist, track.Title)
		}
	}
}

func (d *Driver) printSyncReport(results map[string]*reconcile.SyncResult) {
	verb := "Synced"
	if d.cfg.Sync.DryRun {
		verb = "Would sync"
	}
	for name, result := range results {
		fmt.Fprintf(d.deps.Out, "%s %s: +%s -%s (%d -> %d)\n",
			verb,
			color.New(color.Bold).Sprint(name),
			color.GreenString("%d", result.Added),
			color.RedString("%d", result.Removed),
			result.Start, result.Final)
	}
}

// overlayCheckpoint copies checkpointed URI decisions onto the freshly
// loaded tracks, keyed by path. Tracks missing from the checkpoint keep
// their current state.
func overlayCheckpoint(saved map[string][]*core.LocalTrack, collections []*core.Collection) int {
	uris := make(map[string]core.URI)
	for _, tracks := range saved {
		for _, track := range tracks {
			uris[track.Path] = track.URI
		}
	}

	restored := 0
	for _, collection := range collections {
		for _, track := range collection.Tracks {
			uri, ok := uris[track.Path]
			if !ok || uri.IsUnresolved() {
				continue
			}
			track.URI = uri
			restored++
		}
	}
	return restored
}

func collectionMap(collections []*core.Collection) map[string][]*core.LocalTrack {
	m := make(map[string][]*core.LocalTrack, len(collections))
	for _, collection := range collections {
		m[collection.Name] = collection.Tracks
	}
	return m
}
