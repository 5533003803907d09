package swiss

import (
	"context"
	"fmt"
	"math/bits"
	"slices"
	"sort"
)

// Pick'em prediction shape
const (
	PickSweep     = 2 // Participants predicted to go 3-0
	PickAdvance   = 6 // Participants predicted to qualify 3-1 or 3-2
	PickWhitewash = 2 // Participants predicted to go 0-3

	// DefaultPickemThreshold is the number of correct picks that counts as a success
	DefaultPickemThreshold = 5
)

// Prediction is a pick'em entry over seed indices
type Prediction struct {
	Sweep     []int `json:"sweep"`
	Advance   []int `json:"advance"`
	Whitewash []int `json:"whitewash"`
}

// Validate checks the prediction shape and that no seed is picked twice
func (p Prediction) Validate() error {
	if len(p.Sweep) != PickSweep || len(p.Advance) != PickAdvance || len(p.Whitewash) != PickWhitewash {
		return fmt.Errorf("%w: want %d/%d/%d picks, got %d/%d/%d", ErrInvalidPrediction,
			PickSweep, PickAdvance, PickWhitewash, len(p.Sweep), len(p.Advance), len(p.Whitewash))
	}
	seen := make(map[int]bool, PickSweep+PickAdvance+PickWhitewash)
	for _, seed := range p.all() {
		if seed < 0 || seed >= FieldSize {
			return fmt.Errorf("%w: seed %d out of range", ErrInvalidPrediction, seed)
		}
		if seen[seed] {
			return fmt.Errorf("%w: seed %d picked twice", ErrInvalidPrediction, seed)
		}
		seen[seed] = true
	}
	return nil
}

// Qualifiers returns the predicted bracket participants, 3-0 picks first and
// seed order within each category
func (p Prediction) Qualifiers() []int {
	sweep, advance := slices.Clone(p.Sweep), slices.Clone(p.Advance)
	slices.Sort(sweep)
	slices.Sort(advance)
	return append(sweep, advance...)
}

func (p Prediction) all() []int {
	return append(p.Qualifiers(), p.Whitewash...)
}

// pickMasks is a prediction compiled to bitmasks
type pickMasks struct {
	sweep, advance, whitewash uint64
}

func (p Prediction) masks() pickMasks {
	return pickMasks{sweep: Mask(p.Sweep), advance: Mask(p.Advance), whitewash: Mask(p.Whitewash)}
}

func (m pickMasks) score(o TrialOutcome) int {
	return bits.OnesCount64(o.Swept&m.sweep) +
		bits.OnesCount64(o.Advanced()&m.advance) +
		bits.OnesCount64(o.Whitewashed&m.whitewash)
}

// Score returns the number of correct picks for one simulated stage
func (p Prediction) Score(o TrialOutcome) int {
	return p.masks().score(o)
}

// successes counts the outcomes scoring at least threshold correct picks
func (m pickMasks) successes(outcomes []TrialOutcome, threshold int) int {
	n := 0
	for _, o := range outcomes {
		if m.score(o) >= threshold {
			n++
		}
	}
	return n
}

// Evaluate returns the share of simulated stages in which the prediction
// scores at least threshold correct picks.
func Evaluate(p Prediction, outcomes []TrialOutcome, threshold int) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if len(outcomes) == 0 {
		return 0, fmt.Errorf("%w: no simulated stages", ErrInvalidTrials)
	}
	return float64(p.masks().successes(outcomes, threshold)) / float64(len(outcomes)), nil
}

// SuggestPrediction fills each pick category greedily from the stage rates:
// the highest 3-0 rates, then the highest 3-1/3-2 rates among the rest, then
// the highest 0-3 rates among the rest. Ties are broken by seed.
func SuggestPrediction(rates []StageRates) Prediction {
	taken := make(map[int]bool, len(rates))
	pick := func(n int, key func(StageRates) float64) []int {
		candidates := make([]int, 0, len(rates))
		for seed := range rates {
			if !taken[seed] {
				candidates = append(candidates, seed)
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return key(rates[candidates[i]]) > key(rates[candidates[j]])
		})
		if len(candidates) > n {
			candidates = candidates[:n]
		}
		for _, seed := range candidates {
			taken[seed] = true
		}
		return candidates
	}

	return Prediction{
		Sweep:     pick(PickSweep, func(r StageRates) float64 { return r.Sweep }),
		Advance:   pick(PickAdvance, func(r StageRates) float64 { return r.Advanced }),
		Whitewash: pick(PickWhitewash, func(r StageRates) float64 { return r.Whitewash }),
	}
}

// OptimizePrediction improves a starting prediction by local search over the
// simulated stages. Each pass tries replacing any pick with an unpicked seed and
// swapping picks between categories, keeping the first strict improvement.
// The search stops after maxPasses passes or when a pass finds nothing better.
// The returned categories are in seed order.
func OptimizePrediction(ctx context.Context, start Prediction, outcomes []TrialOutcome, threshold, maxPasses int) (Prediction, float64, error) {
	if err := start.Validate(); err != nil {
		return Prediction{}, 0, err
	}
	if len(outcomes) == 0 {
		return Prediction{}, 0, fmt.Errorf("%w: no simulated stages", ErrInvalidTrials)
	}

	// picks holds all categories back to back: sweep, advance, whitewash
	picks := start.all()
	best := picksMasks(picks).successes(outcomes, threshold)

	try := func(candidate []int) bool {
		score := picksMasks(candidate).successes(outcomes, threshold)
		if score > best {
			best = score
			copy(picks, candidate)
			return true
		}
		return false
	}

	candidate := make([]int, len(picks))
	for pass := 0; pass < maxPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return Prediction{}, 0, err
		}

		improved := false
		picked := Mask(picks)

		for slot := range picks {
			for seed := 0; seed < FieldSize; seed++ {
				if picked&(1<<uint(seed)) != 0 {
					continue
				}
				copy(candidate, picks)
				candidate[slot] = seed
				if try(candidate) {
					improved = true
					picked = Mask(picks)
				}
			}
		}

		for i := range picks {
			for j := i + 1; j < len(picks); j++ {
				if category(i) == category(j) {
					continue
				}
				copy(candidate, picks)
				candidate[i], candidate[j] = candidate[j], candidate[i]
				if try(candidate) {
					improved = true
				}
			}
		}

		if !improved {
			break
		}
	}

	return picksToPrediction(picks), float64(best) / float64(len(outcomes)), nil
}

func category(slot int) int {
	switch {
	case slot < PickSweep:
		return 0
	case slot < PickSweep+PickAdvance:
		return 1
	default:
		return 2
	}
}

func picksMasks(picks []int) pickMasks {
	return pickMasks{
		sweep:     Mask(picks[:PickSweep]),
		advance:   Mask(picks[PickSweep : PickSweep+PickAdvance]),
		whitewash: Mask(picks[PickSweep+PickAdvance:]),
	}
}

// picksToPrediction splits the slots back into categories, each in seed order
func picksToPrediction(picks []int) Prediction {
	p := Prediction{
		Sweep:     slices.Clone(picks[:PickSweep]),
		Advance:   slices.Clone(picks[PickSweep : PickSweep+PickAdvance]),
		Whitewash: slices.Clone(picks[PickSweep+PickAdvance:]),
	}
	slices.Sort(p.Sweep)
	slices.Sort(p.Advance)
	slices.Sort(p.Whitewash)
	return p
}
