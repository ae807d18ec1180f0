package check

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"go.uber.org/zap"

	"tunesync/internal/core"
	"tunesync/internal/match"
	"tunesync/pkg/clean"
)

// pairMinDiff is the title word-overlap threshold for pairing a local
// track to a user-added remote track.
const pairMinDiff = 0.66

// DefaultPair pairs by title word-overlap, breaking ties between multiple
// acceptable candidates on string similarity against the cleaned title.
func DefaultPair(log *zap.Logger) PairFunc {
	scorer := match.NewScorer(log)
	jw := metrics.NewJaroWinkler()

	return func(local *core.LocalTrack, added []core.RemoteTrack) (string, bool) {
		title := clean.Title(local.Title)

		bestScore := -1.0
		var bestURI string

		for _, candidate := range added {
			if _, ok := scorer.TitleMatch(local, []core.RemoteTrack{candidate}, pairMinDiff); !ok {
				continue
			}
			score := strutil.Similarity(title, clean.Title(candidate.Title), jw)
			if score > bestScore {
				bestScore = score
				bestURI = candidate.URI
			}
		}

		return bestURI, bestScore >= 0
	}
}
