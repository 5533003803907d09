package swiss

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to build an outcome from seed lists
func createOutcome(swept, advanced, whitewashed []int) TrialOutcome {
	return TrialOutcome{
		Swept:       Mask(swept),
		Qualified:   Mask(swept) | Mask(advanced),
		Whitewashed: Mask(whitewashed),
	}
}

func TestPredictionValidate(t *testing.T) {
	valid := Prediction{
		Sweep:     []int{0, 1},
		Advance:   []int{2, 3, 4, 5, 6, 7},
		Whitewash: []int{14, 15},
	}
	require.NoError(t, valid.Validate())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, valid.Qualifiers())

	shuffled := Prediction{Sweep: []int{9, 3}, Advance: []int{7, 0, 12, 2, 5, 1}, Whitewash: []int{15, 14}}
	assert.Equal(t, []int{3, 9, 0, 1, 2, 5, 7, 12}, shuffled.Qualifiers())
	assert.Equal(t, []int{9, 3}, shuffled.Sweep)

	tests := []struct {
		name       string
		prediction Prediction
	}{
		{"too few sweeps", Prediction{Sweep: []int{0}, Advance: valid.Advance, Whitewash: valid.Whitewash}},
		{"duplicate seed", Prediction{Sweep: []int{0, 2}, Advance: valid.Advance, Whitewash: valid.Whitewash}},
		{"seed out of range", Prediction{Sweep: []int{0, 16}, Advance: valid.Advance, Whitewash: valid.Whitewash}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.prediction.Validate(), ErrInvalidPrediction)
		})
	}
}

func TestPredictionScore(t *testing.T) {
	outcome := createOutcome([]int{0, 1}, []int{2, 3, 4, 5, 6, 7}, []int{14, 15})

	perfect := Prediction{Sweep: []int{0, 1}, Advance: []int{2, 3, 4, 5, 6, 7}, Whitewash: []int{14, 15}}
	assert.Equal(t, 10, perfect.Score(outcome))

	// 3-0 picks that went 3-1 do not count as advances
	mixed := Prediction{Sweep: []int{2, 3}, Advance: []int{0, 1, 4, 5, 6, 7}, Whitewash: []int{8, 9}}
	assert.Equal(t, 4, mixed.Score(outcome))
}

func TestEvaluate(t *testing.T) {
	outcomes := []TrialOutcome{
		createOutcome([]int{0, 1}, []int{2, 3, 4, 5, 6, 7}, []int{14, 15}),
		createOutcome([]int{8, 9}, []int{10, 11, 12, 13, 14, 15}, []int{0, 1}),
	}
	prediction := Prediction{Sweep: []int{0, 1}, Advance: []int{2, 3, 4, 5, 6, 7}, Whitewash: []int{14, 15}}

	rate, err := Evaluate(prediction, outcomes, DefaultPickemThreshold)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rate, tolerance)

	_, err = Evaluate(prediction, nil, DefaultPickemThreshold)
	assert.ErrorIs(t, err, ErrInvalidTrials)

	_, err = Evaluate(Prediction{}, outcomes, DefaultPickemThreshold)
	assert.ErrorIs(t, err, ErrInvalidPrediction)
}

func TestSuggestPrediction(t *testing.T) {
	rates := make([]StageRates, FieldSize)
	for i := range rates {
		rates[i] = StageRates{Sweep: 0.01, Advanced: 0.3, Whitewash: 0.05}
	}
	rates[4].Sweep = 0.6
	rates[9].Sweep = 0.4
	rates[4].Advanced = 0.9
	for _, s := range []int{1, 2, 3, 5, 6, 7} {
		rates[s].Advanced = 0.5
	}
	rates[13].Whitewash = 0.3
	rates[0].Whitewash = 0.2

	prediction := SuggestPrediction(rates)
	require.NoError(t, prediction.Validate())
	assert.Equal(t, []int{4, 9}, prediction.Sweep)
	assert.Equal(t, []int{1, 2, 3, 5, 6, 7}, prediction.Advance)
	assert.Equal(t, []int{13, 0}, prediction.Whitewash)
}

func TestOptimizePrediction(t *testing.T) {
	outcomes := make([]TrialOutcome, 10)
	for i := range outcomes {
		outcomes[i] = createOutcome([]int{0, 1}, []int{2, 3, 4, 5, 6, 7}, []int{14, 15})
	}
	start := Prediction{Sweep: []int{2, 3}, Advance: []int{0, 1, 4, 5, 6, 7}, Whitewash: []int{8, 9}}

	startRate, err := Evaluate(start, outcomes, DefaultPickemThreshold)
	require.NoError(t, err)
	assert.Equal(t, 0.0, startRate)

	t.Run("improves to a successful prediction", func(t *testing.T) {
		best, rate, err := OptimizePrediction(context.Background(), start, outcomes, DefaultPickemThreshold, 10)
		require.NoError(t, err)
		require.NoError(t, best.Validate())
		assert.Equal(t, 1.0, rate)

		check, err := Evaluate(best, outcomes, DefaultPickemThreshold)
		require.NoError(t, err)
		assert.Equal(t, rate, check)
		assert.True(t, slices.IsSorted(best.Sweep))
		assert.True(t, slices.IsSorted(best.Advance))
		assert.True(t, slices.IsSorted(best.Whitewash))
		assert.Equal(t, append(slices.Clone(best.Sweep), best.Advance...), best.Qualifiers())
		// start is untouched
		assert.Equal(t, []int{2, 3}, start.Sweep)
	})

	t.Run("zero passes keeps the start", func(t *testing.T) {
		best, rate, err := OptimizePrediction(context.Background(), start, outcomes, DefaultPickemThreshold, 0)
		require.NoError(t, err)
		assert.Equal(t, start, best)
		assert.Equal(t, 0.0, rate)
	})

	t.Run("replacements do not keep the replaced slot", func(t *testing.T) {
		// seed 15 sits first among the advance picks and must be replaced by a lower seed
		unordered := Prediction{Sweep: []int{0, 1}, Advance: []int{15, 2, 3, 4, 5, 6}, Whitewash: []int{13, 14}}
		best, rate, err := OptimizePrediction(context.Background(), unordered, outcomes, 9, 10)
		require.NoError(t, err)
		assert.Equal(t, 1.0, rate)
		assert.Equal(t, []int{2, 3, 4, 5, 6, 7}, best.Advance)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := OptimizePrediction(ctx, start, outcomes, DefaultPickemThreshold, 5)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
