package match

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tunesync/internal/core"
	"tunesync/pkg/clean"
)

// Report collects the per-collection outcome of a search run.
type Report struct {
	Found    map[string][]*core.LocalTrack
	NotFound map[string][]*core.LocalTrack
	Skipped  map[string][]*core.LocalTrack
}

func NewReport() *Report {
	return &Report{
		Found:    make(map[string][]*core.LocalTrack),
		NotFound: make(map[string][]*core.LocalTrack),
		Skipped:  make(map[string][]*core.LocalTrack),
	}
}

// Totals returns the summed found, not found and skipped counts.
func (r *Report) Totals() (found, notFound, skipped int) {
	for _, tracks := range r.Found {
		found += len(tracks)
	}
	for _, tracks := range r.NotFound {
		notFound += len(tracks)
	}
	for _, tracks := range r.Skipped {
		skipped += len(tracks)
	}
	return found, notFound, skipped
}

// Searcher resolves local tracks and albums to remote URIs through tiered
// fuzzy matching over remote search results.
type Searcher struct {
	api    core.RemoteAPI
	scorer *Scorer
	cfg    core.MatchConfig
	log    *zap.Logger

	// OnCollectionDone, when set, is called once per finished collection
	// during SearchCollections with the time the collection took. Used for
	// progress reporting and metrics.
	OnCollectionDone func(elapsed time.Duration)
}

func NewSearcher(api core.RemoteAPI, cfg core.MatchConfig, log *zap.Logger) *Searcher {
	return &Searcher{
		api:    api,
		scorer: NewScorer(log),
		cfg:    cfg,
		log:    log.Named("search"),
	}
}

// trackResults issues up to three progressively looser queries for a track:
// title with artist, then title with album, then title alone. Albums under
// a "downloads" placeholder name are never used as a query term.
func (s *Searcher) trackResults(ctx context.Context, title, artist, album string) (string, []core.RemoteTrack, error) {
	query := fmt.Sprintf("%s %s", title, artist)
	results, err := s.api.SearchTracks(ctx, query, s.cfg.MaxResults)
	if err != nil {
		return query, nil, err
	}

	if len(results) == 0 && !strings.HasPrefix(album, "downloads") {
		query = fmt.Sprintf("%s %s", title, album)
		results, err = s.api.SearchTracks(ctx, query, s.cfg.MaxResults)
		if err != nil {
			return query, nil, err
		}
	}

	if len(results) == 0 {
		query = title
		results, err = s.api.SearchTracks(ctx, query, s.cfg.MaxResults)
		if err != nil {
			return query, nil, err
		}
	}

	return query, results, nil
}

// SearchTrack resolves a single track, leaving its URI unresolved when no
// candidate passes any configured tier. The signed algorithm ID sets both
// the maximum tier depth and the visitation direction.
func (s *Searcher) SearchTrack(ctx context.Context, track *core.LocalTrack) error {
	title := clean.Title(track.Title)
	artist := clean.Artist(track.Artist)
	album := clean.Album(track.Album)

	query, results, err := s.trackResults(ctx, title, artist, album)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		s.log.Debug("no results", zap.String("title", track.Title), zap.String("query", query))
		return nil
	}

	algorithm := s.cfg.Algorithm
	titleSearch := query == title
	maxDepth := algorithm
	if maxDepth < 0 {
		maxDepth = -maxDepth
	}

	for depth := 0; depth <= maxDepth; depth++ {
		// Depth 0 accepts blindly and is only ever run when it is the
		// whole algorithm.
		if depth == 0 && algorithm != 0 {
			continue
		}

		tierResults := results
		if algorithm > 0 && depth == 2 && !titleSearch {
			// The loosest quick tier compares against a title-only
			// result set for a fairer album and year comparison. The
			// deeper tiers keep judging the original result set.
			tierResults, err = s.api.SearchTracks(ctx, title, s.cfg.MaxResults)
			if err != nil {
				return err
			}
		}

		signedDepth := depth
		if algorithm < 0 {
			signedDepth = -depth
		}

		if uri, ok := s.scorer.Match(track, tierResults, algorithm, signedDepth); ok {
			s.log.Debug("track matched",
				zap.String("title", track.Title),
				zap.String("uri", uri),
				zap.Int("depth", signedDepth))
			track.URI = core.ResolvedURI(uri)
			return nil
		}
	}

	s.log.Debug("no match", zap.String("title", track.Title), zap.String("query", query))
	return nil
}

// SearchAlbum resolves a whole collection as one remote album, assigning
// URIs from the best-fitting album candidate. Tracks left unresolved fall
// back to per-track search.
func (s *Searcher) SearchAlbum(ctx context.Context, collection *core.Collection) error {
	if len(collection.Tracks) == 0 {
		return nil
	}

	settings := tierTable[s.cfg.AlbumAlgorithm]

	// The shortest artist string is the least likely to carry collaborator
	// noise, making it the safest query term.
	artist := collection.Tracks[0].Artist
	for _, track := range collection.Tracks {
		if len(track.Artist) < len(artist) {
			artist = track.Artist
		}
	}
	artistClean := clean.Artist(artist)
	albumClean := clean.Album(collection.Tracks[0].Album)

	query := fmt.Sprintf("%s %s", albumClean, artistClean)
	results, err := s.api.SearchAlbums(ctx, query, s.cfg.MaxResults)
	if err != nil {
		return err
	}
	sort.SliceStable(results, func(i, j int) bool {
		return absInt(results[i].TotalTracks-len(collection.Tracks)) <
			absInt(results[j].TotalTracks-len(collection.Tracks))
	})

	s.log.Debug("album candidates",
		zap.String("album", collection.Tracks[0].Album),
		zap.String("query", query),
		zap.Int("results", len(results)))

	albumWords := clean.Words(albumClean)
	artistWords := clean.Words(artistClean)

	for _, candidate := range results {
		if IsKaraokeAlbum(candidate) {
			continue
		}

		full, err := s.api.GetAlbum(ctx, candidate.ID)
		if err != nil {
			return err
		}

		if !containsAll(strings.ToLower(full.Title), albumWords) {
			continue
		}
		if settings.artistMatch &&
			!containsAll(strings.ToLower(strings.Join(full.Artists, " ")), artistWords) {
			continue
		}

		pool := make([]core.RemoteTrack, len(full.Tracks))
		copy(pool, full.Tracks)

		for _, track := range collection.Tracks {
			if !track.URI.IsUnresolved() {
				continue
			}

			title := clean.Words(clean.Title(track.Title))
			for i, remote := range pool {
				if wordsMatch(title, strings.ToLower(remote.Title), settings.albumTitleLenMatch) {
					track.URI = core.ResolvedURI(remote.URI)
					// Consumed candidates leave the pool so two local
					// tracks can never claim the same remote URI.
					pool = append(pool[:i], pool[i+1:]...)
					break
				}
			}
		}

		if unresolvedCount(collection.Tracks) == 0 {
			break
		}
	}

	for _, track := range collection.Tracks {
		if !track.URI.IsUnresolved() {
			continue
		}
		if err := s.SearchTrack(ctx, track); err != nil {
			return err
		}
	}

	return nil
}

// SearchCollections searches every collection, per track for compilations
// and per album otherwise. Independent collections run in parallel up to
// the configured bound. Per-item failures are isolated: a failed search
// leaves the track unresolved and the run continues.
func (s *Searcher) SearchCollections(ctx context.Context, collections []*core.Collection) (*Report, error) {
	report := NewReport()
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)

	for _, collection := range collections {
		collection := collection
		g.Go(func() error {
			start := time.Now()
			var toSearch []*core.LocalTrack
			var skipped []*core.LocalTrack
			for _, track := range collection.Tracks {
				switch {
				case track.URI.IsUnresolved():
					toSearch = append(toSearch, track)
				case track.URI.IsMissing():
					skipped = append(skipped, track)
				}
			}

			if len(toSearch) > 0 {
				if collection.IsCompilation() {
					s.log.Debug("searching per track", zap.String("collection", collection.Name))
					for _, track := range toSearch {
						if err := s.SearchTrack(ctx, track); err != nil {
							if apiErr, ok := core.AsAPIError(err); ok {
								s.log.Warn("search failed",
									zap.String("title", track.Title),
									zap.Int("status", apiErr.StatusCode))
								continue
							}
							return err
						}
					}
				} else {
					s.log.Debug("searching as album", zap.String("collection", collection.Name))
					if err := s.SearchAlbum(ctx, collection); err != nil {
						if apiErr, ok := core.AsAPIError(err); ok {
							s.log.Warn("album search failed",
								zap.String("collection", collection.Name),
								zap.Int("status", apiErr.StatusCode))
						} else {
							return err
						}
					}
				}
			}

			var found, notFound []*core.LocalTrack
			for _, track := range toSearch {
				if track.URI.IsResolved() {
					found = append(found, track)
				} else {
					notFound = append(notFound, track)
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if len(found) > 0 {
				report.Found[collection.Name] = found
			}
			if len(notFound) > 0 {
				report.NotFound[collection.Name] = notFound
			}
			if len(skipped) > 0 {
				report.Skipped[collection.Name] = skipped
			}
			if s.OnCollectionDone != nil {
				s.OnCollectionDone(time.Since(start))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	found, notFound, skipped := report.Totals()
	s.log.Info("search finished",
		zap.Int("found", found),
		zap.Int("not_found", notFound),
		zap.Int("skipped", skipped))

	return report, nil
}

func unresolvedCount(tracks []*core.LocalTrack) int {
	count := 0
	for _, track := range tracks {
		if track.URI.IsUnresolved() {
			count++
		}
	}
	return count
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
