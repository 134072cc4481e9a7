// Package match resolves the engine's approximate textual recommendation
// into one concrete catalog entry. Scoring and tie-breaking are deliberately
// deterministic: the same title and candidate list always select the same
// track, and the tie-break (first seen wins) is part of the contract, not an
// accident of loop order.
package match

import (
	"errors"
	"strings"

	"AutoDJ-Go/pkg/music"
)

// ErrNoCandidates is returned when the candidate list is empty. A non-empty
// list always yields a decision, even when every score is zero.
var ErrNoCandidates = errors.New("no candidates to match")

// Decision is the selected candidate together with its similarity score.
type Decision struct {
	Track music.Track
	Score float64
}

// Score computes the similarity between a recommended title and a candidate
// display name. Comparison is case-insensitive throughout:
//
//	exact equality            -> 1.0
//	either contains the other -> 0.8
//	otherwise                 -> |shared words| / max(|title words|, 1)
//
// The word ratio is asymmetric by design: it measures how much of the
// recommended title the candidate covers, not mutual overlap.
func Score(recommended, candidate string) float64 {
	a := strings.ToLower(strings.TrimSpace(recommended))
	b := strings.ToLower(strings.TrimSpace(candidate))
	if a == b {
		return 1.0
	}
	if a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return 0.8
	}
	titleWords := wordSet(a)
	candWords := wordSet(b)
	shared := 0
	for w := range titleWords {
		if _, ok := candWords[w]; ok {
			shared++
		}
	}
	denom := len(titleWords)
	if denom < 1 {
		denom = 1
	}
	return float64(shared) / float64(denom)
}

// Select picks the best candidate for recommended. Candidates are visited in
// the order supplied and a later candidate replaces the current best only
// with a strictly greater score, so ties keep the earlier entry.
func Select(recommended string, candidates []music.Track) (Decision, error) {
	if len(candidates) == 0 {
		return Decision{}, ErrNoCandidates
	}
	best := Decision{Track: candidates[0], Score: Score(recommended, candidates[0].Name)}
	for _, c := range candidates[1:] {
		if s := Score(recommended, c.Name); s > best.Score {
			best = Decision{Track: c, Score: s}
		}
	}
	return best, nil
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}
