// Package check implements the interactive match review session. Matched
// URIs are loaded into temporary remote playlists so the user can audit
// them in the player, swap wrong matches and resolve leftovers by hand.
package check

import (
	"bufio"
	"context"
	"io"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

// Report holds the drained accumulators of one completed check session.
type Report struct {
	Switched    []*core.LocalTrack
	Unavailable []*core.LocalTrack
	Skipped     []*core.LocalTrack
}

// PairFunc matches one unresolved local track against tracks the user
// added to a temporary playlist, returning the paired remote URI. The
// pairing is a best-effort heuristic and deliberately pluggable.
type PairFunc func(local *core.LocalTrack, added []core.RemoteTrack) (string, bool)

// Checker drives the review state machine. It is not safe for concurrent
// use: one session owns all accumulators, and Check resets them on entry.
type Checker struct {
	api      core.RemoteAPI
	pair     PairFunc
	interval int
	in       *bufio.Scanner
	out      io.Writer
	log      *zap.Logger

	// per-batch state
	playlists   map[string]string
	collections map[string]*core.Collection
	order       []string

	skip bool
	quit bool

	remaining []*core.LocalTrack
	switched  []*core.LocalTrack

	finalSwitched    []*core.LocalTrack
	finalUnavailable []*core.LocalTrack
	finalSkipped     []*core.LocalTrack
}

func NewChecker(api core.RemoteAPI, cfg core.CheckConfig, pair PairFunc, in io.Reader, out io.Writer, log *zap.Logger) *Checker {
	return &Checker{
		api:         api,
		pair:        pair,
		interval:    cfg.Interval,
		in:          bufio.NewScanner(in),
		out:         out,
		log:         log.Named("check"),
		playlists:   make(map[string]string),
		collections: make(map[string]*core.Collection),
	}
}

// Check runs the review session over all collections in batches of the
// configured interval. It returns nil without error when the user quit,
// since a quit discards the session rather than completing it.
func (c *Checker) Check(ctx context.Context, collections []*core.Collection) (*Report, error) {
	c.reset()

	total := 0
	for _, collection := range collections {
		total += len(collection.Tracks)
	}
	if total == 0 {
		c.log.Debug("nothing to check")
		return &Report{}, nil
	}

	batches := (len(collections) + c.interval - 1) / c.interval

	for page := 0; page < batches; page++ {
		start := page * c.interval
		end := min(start+c.interval, len(collections))

		if err := c.runBatch(ctx, collections[start:end], page+1, batches); err != nil {
			return nil, err
		}
		if c.quit || c.skip {
			break
		}
	}

	if c.quit {
		c.reset()
		return nil, nil
	}

	report := &Report{
		Switched:    c.finalSwitched,
		Unavailable: c.finalUnavailable,
		Skipped:     c.finalSkipped,
	}
	c.log.Info("check finished",
		zap.Int("switched", len(report.Switched)),
		zap.Int("unavailable", len(report.Unavailable)),
		zap.Int("skipped", len(report.Skipped)))

	c.reset()
	return report, nil
}

// runBatch creates the batch's temporary playlists, pauses for review and
// reconciles user changes. The playlists are deleted on every exit path.
func (c *Checker) runBatch(ctx context.Context, collections []*core.Collection, page, batches int) (err error) {
	defer func() {
		if deleteErr := c.deletePlaylists(ctx); deleteErr != nil && err == nil {
			err = deleteErr
		}
	}()

	for _, collection := range collections {
		if err := c.createPlaylist(ctx, collection); err != nil {
			c.quit = true
			return err
		}
	}

	c.pause(ctx, page, batches)

	if !c.quit {
		if err := c.checkCollections(ctx); err != nil {
			c.quit = true
			return err
		}
	}
	return nil
}

// createPlaylist makes one temporary playlist filled with the collection's
// resolved URIs. Collections without a single resolved URI are skipped
// without any remote call.
func (c *Checker) createPlaylist(ctx context.Context, collection *core.Collection) error {
	uris := collection.ResolvedURIs()
	if len(uris) == 0 {
		return nil
	}

	id, err := c.api.CreatePlaylist(ctx, collection.Name, false, false)
	if err != nil {
		return err
	}
	c.playlists[collection.Name] = id
	c.collections[collection.Name] = collection
	c.order = append(c.order, collection.Name)

	if _, err := c.api.AddToPlaylist(ctx, id, uris, false); err != nil {
		return err
	}
	return nil
}

// deletePlaylists removes every temporary playlist of the current batch.
// Individual delete failures are logged and do not stop the remaining
// deletions. Clearing the registry afterwards makes repeated calls no-ops,
// so each playlist is deleted at most once.
func (c *Checker) deletePlaylists(ctx context.Context) error {
	if len(c.playlists) == 0 {
		return nil
	}

	c.log.Info("deleting temporary playlists", zap.Int("count", len(c.playlists)))
	for name, id := range c.playlists {
		if err := c.api.DeletePlaylist(ctx, id); err != nil {
			c.log.Error("failed to delete temporary playlist",
				zap.String("playlist", name),
				zap.Error(err))
		}
	}

	c.playlists = make(map[string]string)
	c.collections = make(map[string]*core.Collection)
	c.order = nil
	return nil
}

// checkCollections reconciles user changes for every collection in the
// current batch, prompting for whatever cannot be matched automatically.
func (c *Checker) checkCollections(ctx context.Context) error {
	skipHold := c.skip
	c.skip = false

	for _, name := range c.order {
		for {
			if err := c.matchToRemote(ctx, name); err != nil {
				return err
			}
			c.matchToInput(name)
			if len(c.remaining) == 0 {
				break
			}
		}

		collection := c.collections[name]
		var unavailable, skipped []*core.LocalTrack
		for _, track := range collection.Tracks {
			switch {
			case track.URI.IsMissing():
				unavailable = append(unavailable, track)
			case track.URI.IsUnresolved():
				skipped = append(skipped, track)
			}
		}

		c.finalSwitched = append(c.finalSwitched, c.switched...)
		c.finalUnavailable = append(c.finalUnavailable, unavailable...)
		c.finalSkipped = append(c.finalSkipped, skipped...)
		c.switched = nil

		if c.quit || c.skip {
			break
		}
	}

	c.skip = skipHold
	return nil
}

// matchToRemote compares a collection against its temporary playlist and
// pairs user substitutions. Tracks the user removed have their URI reset
// to unresolved before pairing, so a failed pairing leaves them queued for
// manual resolution rather than silently keeping a rejected match.
func (c *Checker) matchToRemote(ctx context.Context, name string) error {
	collection := c.collections[name]

	remote, err := c.api.GetPlaylistItems(ctx, c.playlists[name])
	if err != nil {
		return err
	}

	localURIs := make(map[string]bool)
	for _, track := range collection.Tracks {
		if track.URI.IsResolved() {
			localURIs[track.URI.Value()] = true
		}
	}
	remoteURIs := make(map[string]bool, len(remote))
	for _, item := range remote {
		remoteURIs[item.URI] = true
	}

	var added []core.RemoteTrack
	for _, item := range remote {
		if !localURIs[item.URI] {
			added = append(added, item)
		}
	}

	var removed, missing []*core.LocalTrack
	if len(c.remaining) == 0 {
		for _, track := range collection.Tracks {
			switch {
			case track.URI.IsResolved() && !remoteURIs[track.URI.Value()]:
				track.URI = core.UnresolvedURI()
				removed = append(removed, track)
			case track.URI.IsUnresolved():
				missing = append(missing, track)
			}
		}
	} else {
		missing = c.remaining
	}

	c.log.Debug("playlist changes",
		zap.String("playlist", name),
		zap.Int("added", len(added)),
		zap.Int("removed", len(removed)),
		zap.Int("missing", len(missing)))

	c.remaining = nil
	for _, track := range append(removed, missing...) {
		if len(added) > 0 {
			if uri, ok := c.pair(track, added); ok {
				track.URI = core.ResolvedURI(uri)
				c.switched = append(c.switched, track)
				added = removeByURI(added, uri)
				continue
			}
		}
		c.remaining = append(c.remaining, track)
	}

	return nil
}

func (c *Checker) reset() {
	c.skip = false
	c.quit = false
	c.remaining = nil
	c.switched = nil
	c.finalSwitched = nil
	c.finalUnavailable = nil
	c.finalSkipped = nil
	c.playlists = make(map[string]string)
	c.collections = make(map[string]*core.Collection)
	c.order = nil
}

func removeByURI(items []core.RemoteTrack, uri string) []core.RemoteTrack {
	for i, item := range items {
		if item.URI == uri {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}
