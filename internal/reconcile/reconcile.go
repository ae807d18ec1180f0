// Package reconcile computes and applies add/remove/unchanged sets between
// a local collection's URIs and a remote playlist under a named strategy.
package reconcile

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

// Strategy names how a remote playlist is brought in line with the local
// collection.
type Strategy string

const (
	// StrategyNew only appends local tracks the playlist is missing.
	StrategyNew Strategy = "new"
	// StrategyRefresh clears the playlist and rebuilds it from local state.
	StrategyRefresh Strategy = "refresh"
	// StrategySync appends missing tracks and removes remote-only ones.
	StrategySync Strategy = "sync"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyNew, StrategyRefresh, StrategySync:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown sync strategy %q", s)
}

// SyncResult reports the outcome of reconciling one playlist.
type SyncResult struct {
	Start      int `json:"start"`
	Added      int `json:"added"`
	Removed    int `json:"removed"`
	Unchanged  int `json:"unchanged"`
	Difference int `json:"difference"`
	Final      int `json:"final"`
}

// API is the remote surface the reconciler needs: the shared playlist
// operations plus name-based playlist lookup.
type API interface {
	core.RemoteAPI
	FindPlaylist(ctx context.Context, name string) (id string, ok bool, err error)
}

// Reconciler applies sync strategies to remote playlists. Mutations to one
// playlist are serialized through a per-playlist lock so concurrent add and
// clear calls can never interleave.
type Reconciler struct {
	api API
	log *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewReconciler(api API, log *zap.Logger) *Reconciler {
	return &Reconciler{
		api:   api,
		log:   log.Named("reconcile"),
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *Reconciler) playlistLock(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}

// Sync reconciles one remote playlist against the given local URIs. With
// dryRun set no mutating call is issued and the counts are computed as if
// every operation had succeeded.
func (r *Reconciler) Sync(ctx context.Context, playlistID string, localURIs []string, strategy Strategy, dryRun, reload bool) (*SyncResult, error) {
	lock := r.playlistLock(playlistID)
	lock.Lock()
	defer lock.Unlock()

	remoteURIs, err := r.remoteURIs(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("loading playlist %s: %w", playlistID, err)
	}

	start := len(remoteURIs)
	remoteSet := uriSet(remoteURIs)
	localSet := uriSet(localURIs)

	var toAdd, toClear []string
	unchanged := 0

	switch strategy {
	case StrategyNew:
		for _, uri := range localURIs {
			if !remoteSet[uri] {
				toAdd = append(toAdd, uri)
			}
		}
		unchanged = start
	case StrategyRefresh:
		toClear = remoteURIs
		toAdd = localURIs
	case StrategySync:
		for _, uri := range remoteURIs {
			if localSet[uri] {
				unchanged++
			} else {
				toClear = append(toClear, uri)
			}
		}
		for _, uri := range localURIs {
			if !remoteSet[uri] {
				toAdd = append(toAdd, uri)
			}
		}
	default:
		return nil, fmt.Errorf("unknown sync strategy %q", strategy)
	}

	result := &SyncResult{Start: start, Unchanged: unchanged}

	if dryRun {
		result.Added = len(toAdd)
		result.Removed = len(toClear)
	} else {
		if len(toClear) > 0 {
			removed, err := r.api.ClearFromPlaylist(ctx, playlistID, toClear)
			if err != nil {
				return nil, fmt.Errorf("clearing playlist %s: %w", playlistID, err)
			}
			result.Removed = removed
		}
		if len(toAdd) > 0 {
			added, err := r.api.AddToPlaylist(ctx, playlistID, toAdd, true)
			if err != nil {
				return nil, fmt.Errorf("adding to playlist %s: %w", playlistID, err)
			}
			result.Added = added
		}
	}

	if reload && !dryRun {
		after, err := r.remoteURIs(ctx, playlistID)
		if err != nil {
			return nil, fmt.Errorf("reloading playlist %s: %w", playlistID, err)
		}
		result.Final = len(after)
	} else {
		result.Final = result.Start + result.Added - result.Removed
	}
	result.Difference = result.Final - result.Start

	r.log.Debug("playlist reconciled",
		zap.String("playlist", playlistID),
		zap.String("strategy", string(strategy)),
		zap.Bool("dry_run", dryRun),
		zap.Int("start", result.Start),
		zap.Int("added", result.Added),
		zap.Int("removed", result.Removed),
		zap.Int("final", result.Final))

	return result, nil
}

// SyncAll reconciles every collection against its same-named remote
// playlist, creating missing playlists on live runs. A failed playlist is
// logged and skipped so the remaining collections still reconcile.
func (r *Reconciler) SyncAll(ctx context.Context, collections []*core.Collection, strategy Strategy, dryRun, reload bool) (map[string]*SyncResult, error) {
	results := make(map[string]*SyncResult, len(collections))

	for _, collection := range collections {
		localURIs := collection.ResolvedURIs()

		id, found, err := r.api.FindPlaylist(ctx, collection.Name)
		if err != nil {
			return results, fmt.Errorf("finding playlist %q: %w", collection.Name, err)
		}

		if !found {
			if dryRun {
				results[collection.Name] = &SyncResult{
					Added:      len(localURIs),
					Final:      len(localURIs),
					Difference: len(localURIs),
				}
				continue
			}
			id, err = r.api.CreatePlaylist(ctx, collection.Name, false, false)
			if err != nil {
				return results, fmt.Errorf("creating playlist %q: %w", collection.Name, err)
			}
		}

		result, err := r.Sync(ctx, id, localURIs, strategy, dryRun, reload)
		if err != nil {
			// Partial reconciliation must stay visible, so log the
			// playlist and move on instead of aborting the run.
			r.log.Error("reconciliation failed",
				zap.String("playlist", collection.Name),
				zap.Error(err))
			continue
		}
		results[collection.Name] = result
	}

	return results, nil
}

func (r *Reconciler) remoteURIs(ctx context.Context, playlistID string) ([]string, error) {
	items, err := r.api.GetPlaylistItems(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	uris := make([]string, len(items))
	for i, item := range items {
		uris[i] = item.URI
	}
	return uris, nil
}

func uriSet(uris []string) map[string]bool {
	set := make(map[string]bool, len(uris))
	for _, uri := range uris {
		set[uri] = true
	}
	return set
}
