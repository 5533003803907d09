package elo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestModel(t *testing.T, ratingWeight, scoreWeight float64) *OutcomeModel {
	t.Helper()
	model, err := NewOutcomeModel(ratingWeight, scoreWeight)
	require.NoError(t, err)
	return model
}

func TestNewOutcomeModel(t *testing.T) {
	model, err := NewOutcomeModel(DefaultRatingWeight, DefaultScoreWeight)
	require.NoError(t, err)
	assert.Equal(t, 0.8, model.RatingWeight)
	assert.Equal(t, 0.2, model.ScoreWeight)

	_, err = NewOutcomeModel(-0.1, 0.2)
	assert.ErrorIs(t, err, ErrInvalidWeight)

	_, err = NewOutcomeModel(0.8, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidWeight)
}

func TestWinProbability(t *testing.T) {
	t.Run("equal ratings are a coin flip", func(t *testing.T) {
		model := createTestModel(t, 1, 0)
		a := Contender{Rating: 1000}
		b := Contender{Rating: 1000}

		for _, f := range []Format{BO1, BO3, BO5} {
			assert.InDelta(t, 0.5, model.WinProbability(a, b, f), tolerance, f.String())
		}
	})

	t.Run("rating only with single map dampening", func(t *testing.T) {
		model := createTestModel(t, 1, 0)
		a := Contender{Rating: 1400}
		b := Contender{Rating: 1000}

		raw := 10.0 / 11.0
		assert.InDelta(t, raw, model.WinProbability(a, b, BO3), tolerance)
		assert.InDelta(t, 0.5+(raw-0.5)*0.85, model.WinProbability(a, b, BO1), tolerance)
		assert.InDelta(t, 1-raw, model.WinProbability(b, a, BO3), tolerance)
	})

	t.Run("both weights zero", func(t *testing.T) {
		model := createTestModel(t, 0, 0)
		p := model.WinProbability(Contender{Rating: 2000}, Contender{Rating: 500}, BO3)
		assert.Equal(t, 0.5, p)
	})

	t.Run("missing score falls back to a coin flip", func(t *testing.T) {
		model := createTestModel(t, 0.8, 0.2)
		a := Contender{Rating: 1500, Score: 10, HasScore: true}
		b := Contender{Rating: 1000}
		assert.Equal(t, 0.5, model.WinProbability(a, b, BO1))
	})

	t.Run("combined rating and score", func(t *testing.T) {
		model := createTestModel(t, 0.8, 0.2)
		a := Contender{Rating: 1000, Score: 100, HasScore: true}
		b := Contender{Rating: 1000, Score: 0, HasScore: true}

		// score win rate 90%
		assert.InDelta(t, 0.58, model.WinProbability(a, b, BO3), tolerance)
		assert.InDelta(t, 0.568, model.WinProbability(a, b, BO1), tolerance)
	})

	t.Run("always a probability", func(t *testing.T) {
		model := createTestModel(t, 3, 2)
		a := Contender{Rating: 5000, Score: 1000, HasScore: true}
		b := Contender{Rating: -5000, Score: 0, HasScore: true}

		for _, f := range []Format{BO1, BO3, BO5} {
			p := model.WinProbability(a, b, f)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
			q := model.WinProbability(b, a, f)
			assert.GreaterOrEqual(t, q, 0.0)
			assert.LessOrEqual(t, q, 1.0)
		}
	})
}

func TestScoreWinRate(t *testing.T) {
	assert.Equal(t, 50.0, ScoreWinRate(0, 0))
	assert.InDelta(t, 50.0, ScoreWinRate(40, 40), tolerance)
	assert.InDelta(t, 90.0, ScoreWinRate(100, 0), tolerance)
	assert.InDelta(t, 10.0, ScoreWinRate(0, 100), tolerance)

	t.Run("complementary", func(t *testing.T) {
		for _, pair := range [][2]float64{{3, 7}, {120, 45}, {1, 0}, {900, 899}} {
			sum := ScoreWinRate(pair[0], pair[1]) + ScoreWinRate(pair[1], pair[0])
			assert.InDelta(t, 100.0, sum, tolerance)
		}
	})
}

func TestSeriesWinProbability(t *testing.T) {
	tests := []struct {
		name     string
		p        float64
		format   Format
		expected float64
	}{
		{"even bo3", 0.5, BO3, 0.5},
		{"even bo5", 0.5, BO5, 0.5},
		{"bo1 passthrough", 0.6, BO1, 0.6},
		{"bo3 favourite", 0.6, BO3, 0.648},
		{"bo5 favourite", 0.6, BO5, 0.68256},
		{"certain win", 1, BO5, 1},
		{"certain loss", 0, BO3, 0},
		{"clamped input", 1.4, BO3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, SeriesWinProbability(tt.p, tt.format), tolerance)
		})
	}

	t.Run("longer series favour the stronger side", func(t *testing.T) {
		p := 0.55
		assert.Greater(t, SeriesWinProbability(p, BO3), p)
		assert.Greater(t, SeriesWinProbability(p, BO5), SeriesWinProbability(p, BO3))
	})

	t.Run("monotonic in the map probability", func(t *testing.T) {
		for _, format := range []Format{BO3, BO5} {
			prev := SeriesWinProbability(0, format)
			for i := 1; i <= 100; i++ {
				p := float64(i) / 100
				next := SeriesWinProbability(p, format)
				assert.GreaterOrEqual(t, next, prev, "format %v at p=%.2f", format, p)
				prev = next
			}
			assert.InDelta(t, 1.0, prev, tolerance)
		}
	})
}
