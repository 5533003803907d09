package swiss

import (
	"math/bits"
	"sort"
)

// TrialOutcome is the classification of one simulated stage as seed bitmasks
type TrialOutcome struct {
	Swept       uint64 // Qualified 3-0
	Qualified   uint64 // Reached three wins
	Whitewashed uint64 // Eliminated 0-3
}

// Advanced returns the participants that qualified with at least one loss
func (o TrialOutcome) Advanced() uint64 { return o.Qualified &^ o.Swept }

// QualifiedCount returns the number of qualified participants
func (o TrialOutcome) QualifiedCount() int { return bits.OnesCount64(o.Qualified) }

// Seeds expands a bitmask into ascending seed indices
func Seeds(mask uint64) []int {
	seeds := make([]int, 0, bits.OnesCount64(mask))
	for mask != 0 {
		seed := bits.TrailingZeros64(mask)
		seeds = append(seeds, seed)
		mask &= mask - 1
	}
	return seeds
}

// Mask builds a bitmask from seed indices
func Mask(seeds []int) uint64 {
	var mask uint64
	for _, s := range seeds {
		mask |= 1 << uint(s)
	}
	return mask
}

// StageRates are per-participant frequencies over all trials
type StageRates struct {
	Sweep     float64 `json:"sweep"`     // 3-0
	Qualified float64 `json:"qualified"` // any three-win record
	Whitewash float64 `json:"whitewash"` // 0-3
	Advanced  float64 `json:"advanced"`  // 3-1 or 3-2
}

// StageResult aggregates a stage simulation
type StageResult struct {
	Trials   int            // Number of simulated stages
	Seed     uint64         // Base seed of the random streams
	Rates    []StageRates   // indexed by seed
	Outcomes []TrialOutcome // one per trial, in trial order
}

// tally counts classifications for every participant
type tally struct {
	sweep     []int
	qualified []int
	whitewash []int
}

func newTally(n int) tally {
	return tally{
		sweep:     make([]int, n),
		qualified: make([]int, n),
		whitewash: make([]int, n),
	}
}

func (t tally) add(o TrialOutcome) {
	for _, s := range Seeds(o.Swept) {
		t.sweep[s]++
	}
	for _, s := range Seeds(o.Qualified) {
		t.qualified[s]++
	}
	for _, s := range Seeds(o.Whitewashed) {
		t.whitewash[s]++
	}
}

func (t tally) merge(other tally) {
	for i := range t.sweep {
		t.sweep[i] += other.sweep[i]
		t.qualified[i] += other.qualified[i]
		t.whitewash[i] += other.whitewash[i]
	}
}

func (t tally) rates(trials int) []StageRates {
	rates := make([]StageRates, len(t.sweep))
	n := float64(trials)
	for i := range rates {
		rates[i] = StageRates{
			Sweep:     float64(t.sweep[i]) / n,
			Qualified: float64(t.qualified[i]) / n,
			Whitewash: float64(t.whitewash[i]) / n,
			Advanced:  float64(t.qualified[i]-t.sweep[i]) / n,
		}
	}
	return rates
}

// Qualifiers derives a bracket seeding from stage rates: the QualifierCount
// participants most likely to qualify, led by the two of them most likely to go
// 3-0, the rest in seed order. Ties are broken by seed.
func Qualifiers(rates []StageRates) []int {
	seeds := make([]int, len(rates))
	for i := range seeds {
		seeds[i] = i
	}
	sort.SliceStable(seeds, func(i, j int) bool {
		return rates[seeds[i]].Qualified > rates[seeds[j]].Qualified
	})
	if len(seeds) > QualifierCount {
		seeds = seeds[:QualifierCount]
	}
	sort.Ints(seeds)

	sort.SliceStable(seeds, func(i, j int) bool {
		return rates[seeds[i]].Sweep > rates[seeds[j]].Sweep
	})
	lead := min(2, len(seeds))
	rest := seeds[lead:]
	sort.Ints(rest)
	return seeds
}
