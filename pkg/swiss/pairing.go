package swiss

import (
	"fmt"
	"sort"

	"github.com/pashagolub/swisspredict/pkg/elo"
)

// priorityPatterns lists pairings of a six-participant bucket (by position in
// difficulty order) from most to least preferred. Late rounds take the first
// pattern without a rematch.
var priorityPatterns = [15][3][2]int{
	{{0, 5}, {1, 4}, {2, 3}},
	{{0, 5}, {1, 3}, {2, 4}},
	{{0, 4}, {1, 5}, {2, 3}},
	{{0, 4}, {1, 3}, {2, 5}},
	{{0, 3}, {1, 5}, {2, 4}},
	{{0, 3}, {1, 4}, {2, 5}},
	{{0, 5}, {1, 2}, {3, 4}},
	{{0, 4}, {1, 2}, {3, 5}},
	{{0, 2}, {1, 5}, {3, 4}},
	{{0, 2}, {1, 4}, {3, 5}},
	{{0, 3}, {1, 2}, {4, 5}},
	{{0, 2}, {1, 3}, {4, 5}},
	{{0, 1}, {2, 5}, {3, 4}},
	{{0, 1}, {2, 4}, {3, 5}},
	{{0, 1}, {2, 3}, {4, 5}},
}

// patternBucketSize is the bucket size the priority patterns are written for
const patternBucketSize = 6

// firstPatternRound is the first round paired with priority patterns
const firstPatternRound = 4

// PairRoundOne returns the fixed opening pairings unchanged, all as BO1
func PairRoundOne(fixed []Pairing) []Pairing {
	pairs := make([]Pairing, len(fixed))
	for i, p := range fixed {
		pairs[i] = Pairing{A: p.A, B: p.B, Format: elo.BO1}
	}
	return pairs
}

// PairBucket pairs the seeds of one record bucket for the given round (2..5).
// Seeds are ordered by descending difficulty, ties broken by seed. Rounds 2 and
// 3 pair greedily; rounds 4 and 5 use the priority patterns for six-participant
// buckets and fall back to greedy pairing for any other size. Rematches are
// avoided whenever the method finds an alternative.
func PairBucket(state *TrialState, round int, bucket []int) ([]Pairing, error) {
	if round < 2 || round > Rounds {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRound, round)
	}
	if len(bucket) < 2 || len(bucket)%2 != 0 {
		return nil, fmt.Errorf("%w: round %d bucket %v has %d participants", ErrBucketInvariant, round, bucket, len(bucket))
	}

	ordered := orderByDifficulty(state, bucket)

	var pairs []Pairing
	if round >= firstPatternRound && len(ordered) == patternBucketSize {
		pairs = pairByPattern(state, ordered)
	} else {
		pairs = pairGreedy(state, ordered)
	}

	for i := range pairs {
		pairs[i].Format = state.StakeFormat(pairs[i].A, pairs[i].B)
	}
	return pairs, nil
}

// orderByDifficulty returns a sorted copy of bucket
func orderByDifficulty(state *TrialState, bucket []int) []int {
	ordered := make([]int, len(bucket))
	copy(ordered, bucket)

	difficulty := make(map[int]int, len(ordered))
	for _, seed := range ordered {
		difficulty[seed] = state.Difficulty(seed)
	}

	sort.Slice(ordered, func(i, j int) bool {
		di, dj := difficulty[ordered[i]], difficulty[ordered[j]]
		if di != dj {
			return di > dj
		}
		return ordered[i] < ordered[j]
	})
	return ordered
}

// pairGreedy takes the hardest remaining seed and pairs it with the easiest
// remaining seed it has not yet faced, scanning from the bottom. When every
// candidate is a rematch the easiest remaining seed is taken anyway.
func pairGreedy(state *TrialState, ordered []int) []Pairing {
	remaining := make([]int, len(ordered))
	copy(remaining, ordered)

	pairs := make([]Pairing, 0, len(ordered)/2)
	for len(remaining) >= 2 {
		a := remaining[0]
		remaining = remaining[1:]

		pick := len(remaining) - 1
		for i := len(remaining) - 1; i >= 0; i-- {
			if !state.HasFaced(a, remaining[i]) {
				pick = i
				break
			}
		}

		b := remaining[pick]
		remaining = append(remaining[:pick], remaining[pick+1:]...)
		pairs = append(pairs, Pairing{A: a, B: b})
	}
	return pairs
}

// pairByPattern applies the first rematch-free priority pattern, or the top
// pattern when none is rematch-free.
func pairByPattern(state *TrialState, ordered []int) []Pairing {
	chosen := priorityPatterns[0]
	for _, pattern := range priorityPatterns {
		if patternAvoidsRematch(state, ordered, pattern) {
			chosen = pattern
			break
		}
	}

	pairs := make([]Pairing, 0, len(chosen))
	for _, idx := range chosen {
		pairs = append(pairs, Pairing{A: ordered[idx[0]], B: ordered[idx[1]]})
	}
	return pairs
}

func patternAvoidsRematch(state *TrialState, ordered []int, pattern [3][2]int) bool {
	for _, idx := range pattern {
		if state.HasFaced(ordered[idx[0]], ordered[idx[1]]) {
			return false
		}
	}
	return true
}
