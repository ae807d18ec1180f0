// Package match implements the tiered fuzzy-matching engine that maps noisy
// local tag metadata to remote track URIs.
package match

import "time"

// tierFunc selects which comparison algorithm a settings tier runs. The
// vocabulary is a closed enum dispatched over a switch so every tier is
// statically enumerable.
type tierFunc int

const (
	simpleFunc tierFunc = iota
	quickFunc
	deepFunc
)

// tierSettings holds the threshold parameters for one comparison tier.
type tierSettings struct {
	fn tierFunc
	// lenDiff is the accepted track-length difference for the quick tier.
	lenDiff time.Duration
	// minDiff is the word-overlap ratio threshold.
	minDiff float64
	// maxLenDiff is the length-difference ceiling for the deep tier.
	maxLenDiff time.Duration
	// albumTitleLenMatch is the title word-overlap ratio used when matching
	// tracks inside a matched album.
	albumTitleLenMatch float64
	// artistMatch requires album artists to match during album matching.
	artistMatch bool
}

// tierTable maps tier depth to its settings. Depth 0 and 5 accept the first
// result unconditionally; 1-2 are the quick tiers; 3-4 the deep tiers.
var tierTable = map[int]tierSettings{
	0: {fn: simpleFunc},
	1: {
		fn:                 quickFunc,
		lenDiff:            15 * time.Second,
		minDiff:            0.8,
		albumTitleLenMatch: 0.6,
		artistMatch:        true,
	},
	2: {
		fn:                 quickFunc,
		lenDiff:            30 * time.Second,
		minDiff:            0.66,
		albumTitleLenMatch: 0.6,
		artistMatch:        false,
	},
	3: {
		fn:                 deepFunc,
		minDiff:            0.8,
		maxLenDiff:         600 * time.Second,
		albumTitleLenMatch: 0.6,
		artistMatch:        false,
	},
	4: {
		fn:                 deepFunc,
		minDiff:            0.66,
		maxLenDiff:         600 * time.Second,
		albumTitleLenMatch: 0.6,
		artistMatch:        false,
	},
	5: {fn: simpleFunc},
}

// negOrder reverses the tier visitation order for negative algorithm IDs:
// the deep tiers are tried before the quick tiers.
var negOrder = map[int]int{-1: 3, -2: 4, -3: 1, -4: 2, -5: 5}

// settingsFor resolves the settings tier for the given visitation depth
// under the given signed algorithm ID.
func settingsFor(algorithm, depth int) tierSettings {
	if algorithm < 0 {
		return tierTable[negOrder[depth]]
	}
	return tierTable[depth]
}
