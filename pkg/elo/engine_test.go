package elo

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test configuration constants
const (
	tolerance = 0.0001 // Floating point comparison tolerance
)

var refDate = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

// Helper function to create a default engine for testing
func createTestEngine() *Engine {
	engine, _ := NewEngine(DefaultConfig())
	return engine
}

// Helper function to create a historical match
func createMatch(daysBefore int, team1, team2 string, score1, score2 int, format Format) Match {
	return Match{
		Date:   refDate.AddDate(0, 0, -daysBefore),
		Team1:  team1,
		Team2:  team2,
		Score1: score1,
		Score2: score2,
		Format: format,
	}
}

func TestNewEngine(t *testing.T) {
	t.Run("valid configuration creates engine", func(t *testing.T) {
		engine, err := NewEngine(Config{BaseRating: 1500, KFactor: 32, DecayDays: 30})
		require.NoError(t, err)
		require.NotNil(t, engine)

		assert.Equal(t, 1500.0, engine.BaseRating)
		assert.Equal(t, 32.0, engine.KFactor)
		assert.Equal(t, 30.0, engine.DecayDays)
	})

	t.Run("defaults", func(t *testing.T) {
		engine := createTestEngine()
		require.NotNil(t, engine)
		assert.Equal(t, DefaultBaseRating, engine.BaseRating)
		assert.Equal(t, DefaultKFactor, engine.KFactor)
		assert.Equal(t, DefaultDecayDays, engine.DecayDays)
	})

	t.Run("invalid K-factor returns error", func(t *testing.T) {
		engine, err := NewEngine(Config{BaseRating: 1000, KFactor: 0, DecayDays: 50})
		assert.ErrorIs(t, err, ErrInvalidKFactor)
		assert.Nil(t, engine)
	})

	t.Run("invalid decay returns error", func(t *testing.T) {
		engine, err := NewEngine(Config{BaseRating: 1000, KFactor: 40, DecayDays: -1})
		assert.ErrorIs(t, err, ErrInvalidDecay)
		assert.Nil(t, engine)
	})

	t.Run("non-finite base rating returns error", func(t *testing.T) {
		_, err := NewEngine(Config{BaseRating: math.NaN(), KFactor: 40, DecayDays: 50})
		assert.ErrorIs(t, err, ErrInvalidRating)

		_, err = NewEngine(Config{BaseRating: math.Inf(1), KFactor: 40, DecayDays: 50})
		assert.ErrorIs(t, err, ErrInvalidRating)
	})
}

func TestShrinkExternal(t *testing.T) {
	t.Run("blends toward the mean by sample size", func(t *testing.T) {
		shrunk := ShrinkExternal(map[string]ExternalRating{
			"A": {Value: 1.2, Maps: 100},
			"B": {Value: 0.8, Maps: 0},
			"C": {Value: 1.3, Maps: 50},
		})
		require.Len(t, shrunk, 3)

		// mean is 1.1
		assert.InDelta(t, 1.2, shrunk["A"], tolerance)
		assert.InDelta(t, 0.1*0.8+0.9*1.1, shrunk["B"], tolerance)
		assert.InDelta(t, 0.625*1.3+0.375*1.1, shrunk["C"], tolerance)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, ShrinkExternal(nil))
	})
}

func TestExternalConfidence(t *testing.T) {
	tests := []struct {
		maps     int
		expected float64
	}{
		{0, 0.1},
		{4, 0.1},
		{10, 0.125},
		{20, 0.25},
		{50, 0.625},
		{80, 1.0},
		{500, 1.0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, externalConfidence(tt.maps), tolerance, "maps=%d", tt.maps)
	}
}

func TestExternalInfluence(t *testing.T) {
	tests := []struct {
		matches  int
		expected float64
	}{
		{0, 70},
		{9, 70},
		{10, 70},
		{15, 52.5},
		{20, 35},
		{25, 27.5},
		{30, 20},
		{120, 20},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, externalInfluence(tt.matches), tolerance, "matches=%d", tt.matches)
	}
}

func TestInitialRatings(t *testing.T) {
	engine := createTestEngine()

	t.Run("adjustment is clamped to the influence", func(t *testing.T) {
		initial := engine.InitialRatings(
			[]string{"Mid", "Strong", "Ref", "Unknown"},
			map[string]float64{"Mid": 1.10, "Strong": 2.0, "Ref": ReferenceExternal},
			nil,
		)

		assert.InDelta(t, 1049.0, initial["Mid"], tolerance)
		assert.InDelta(t, 1070.0, initial["Strong"], tolerance)
		assert.InDelta(t, 1000.0, initial["Ref"], tolerance)
		// missing external rating falls back to 1.0
		assert.InDelta(t, 979.0, initial["Unknown"], tolerance)
	})

	t.Run("long history reduces influence", func(t *testing.T) {
		var matches []Match
		for i := 0; i < 30; i++ {
			matches = append(matches, createMatch(i, "Veteran", "Outsider", 1, 0, BO1))
		}

		initial := engine.InitialRatings([]string{"Veteran"}, map[string]float64{"Veteran": 2.0}, matches)
		assert.InDelta(t, 1020.0, initial["Veteran"], tolerance)
	})
}

func TestFit(t *testing.T) {
	engine := createTestEngine()

	t.Run("single fresh match uses the inexperienced K-factor", func(t *testing.T) {
		result, err := engine.Fit(
			map[string]float64{"A": 1000, "B": 1000},
			[]Match{createMatch(0, "A", "B", 1, 0, BO1)},
		)
		require.NoError(t, err)

		assert.InDelta(t, 1025.0, result.Ratings["A"], tolerance)
		assert.InDelta(t, 975.0, result.Ratings["B"], tolerance)
		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 0, result.Skipped)
	})

	t.Run("format multiplier", func(t *testing.T) {
		result, err := engine.Fit(
			map[string]float64{"A": 1000, "B": 1000},
			[]Match{createMatch(0, "A", "B", 2, 1, BO3)},
		)
		require.NoError(t, err)
		assert.InDelta(t, 1030.0, result.Ratings["A"], tolerance)

		result, err = engine.Fit(
			map[string]float64{"A": 1000, "B": 1000},
			[]Match{createMatch(0, "A", "B", 1, 3, BO5)},
		)
		require.NoError(t, err)
		assert.InDelta(t, 962.5, result.Ratings["A"], tolerance)
	})

	t.Run("older matches weigh less", func(t *testing.T) {
		result, err := engine.Fit(
			map[string]float64{"A": 1000, "B": 1000, "C": 1000, "D": 1000},
			[]Match{
				createMatch(0, "C", "D", 1, 0, BO1),
				createMatch(50, "A", "B", 1, 0, BO1),
			},
		)
		require.NoError(t, err)

		assert.InDelta(t, 1000+25*math.Exp(-1), result.Ratings["A"], tolerance)
		assert.InDelta(t, 1025.0, result.Ratings["C"], tolerance)
	})

	t.Run("draw between equals changes nothing", func(t *testing.T) {
		result, err := engine.Fit(
			map[string]float64{"A": 1000, "B": 1000},
			[]Match{createMatch(0, "A", "B", 1, 1, BO3)},
		)
		require.NoError(t, err)
		assert.InDelta(t, 1000.0, result.Ratings["A"], tolerance)
		assert.InDelta(t, 1000.0, result.Ratings["B"], tolerance)
	})

	t.Run("unknown participants are skipped but count as experience", func(t *testing.T) {
		var matches []Match
		for i := 0; i < 15; i++ {
			matches = append(matches, createMatch(0, "A", "Ghost", 1, 0, BO1))
		}
		matches = append(matches, createMatch(0, "A", "B", 1, 0, BO1))

		result, err := engine.Fit(map[string]float64{"A": 1000, "B": 1000}, matches)
		require.NoError(t, err)

		assert.Equal(t, 15, result.Skipped)
		assert.Equal(t, 1, result.Processed)
		assert.NotContains(t, result.Ratings, "Ghost")
		// A has 16 log entries (K=40), B has one (K=50)
		assert.InDelta(t, 1022.5, result.Ratings["A"], tolerance)
		assert.InDelta(t, 977.5, result.Ratings["B"], tolerance)
	})

	t.Run("log is replayed in date order without mutating input", func(t *testing.T) {
		matches := []Match{
			createMatch(0, "A", "B", 0, 1, BO1),
			createMatch(10, "A", "B", 1, 0, BO1),
		}
		original := make([]Match, len(matches))
		copy(original, matches)

		result, err := engine.Fit(map[string]float64{"A": 1000, "B": 1000}, matches)
		require.NoError(t, err)
		assert.Equal(t, original, matches)

		// Oldest first: A wins with weight exp(-0.2), then loses at full weight
		// while rated above B.
		first := 50 * math.Exp(-10.0/50.0) * 0.5
		a, b := 1000+first, 1000-first
		e := ExpectedScore(a, b)
		a += 50 * (0 - e)
		assert.InDelta(t, a, result.Ratings["A"], tolerance)
	})

	t.Run("zero-sum updates", func(t *testing.T) {
		result, err := engine.Fit(
			map[string]float64{"A": 1100, "B": 950, "C": 1000},
			[]Match{
				createMatch(3, "A", "B", 0, 2, BO3),
				createMatch(2, "B", "C", 1, 0, BO1),
				createMatch(1, "C", "A", 3, 2, BO5),
			},
		)
		require.NoError(t, err)

		total := result.Ratings["A"] + result.Ratings["B"] + result.Ratings["C"]
		assert.InDelta(t, 3050.0, total, tolerance)
	})

	t.Run("stats", func(t *testing.T) {
		result, err := engine.Fit(
			map[string]float64{"A": 1000, "B": 1100, "C": 900, "D": 1000},
			[]Match{
				createMatch(2, "A", "B", 1, 0, BO1),
				createMatch(1, "A", "C", 1, 0, BO1),
			},
		)
		require.NoError(t, err)

		stats := result.Stats["A"]
		assert.Equal(t, 2, stats.Matches)
		assert.Equal(t, 1000.0, stats.Initial)
		assert.InDelta(t, result.Ratings["A"], stats.Final, tolerance)
		assert.Greater(t, stats.Change(), 0.0)
		// B and C pre-match ratings
		assert.InDelta(t, 1000.0, stats.MeanOpponent, tolerance)

		idle := result.Stats["D"]
		assert.Equal(t, 0, idle.Matches)
		assert.Equal(t, DefaultBaseRating, idle.MeanOpponent)
		assert.Equal(t, 0.0, idle.Change())
	})

	t.Run("non-finite initial rating", func(t *testing.T) {
		_, err := engine.Fit(map[string]float64{"A": math.NaN()}, nil)
		assert.ErrorIs(t, err, ErrInvalidRating)
	})

	t.Run("empty log keeps initial ratings", func(t *testing.T) {
		result, err := engine.Fit(map[string]float64{"A": 1010}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1010.0, result.Ratings["A"])
	})
}

func TestFormat(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		for input, expected := range map[string]Format{"bo1": BO1, "BO3": BO3, " bo5 ": BO5, "3": BO3} {
			f, err := ParseFormat(input)
			require.NoError(t, err, input)
			assert.Equal(t, expected, f)
		}

		_, err := ParseFormat("bo2")
		assert.ErrorIs(t, err, ErrUnknownFormat)
	})

	t.Run("text round trip", func(t *testing.T) {
		text, err := BO5.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, "bo5", string(text))

		var f Format
		require.NoError(t, f.UnmarshalText([]byte("bo3")))
		assert.Equal(t, BO3, f)

		_, err = Format(9).MarshalText()
		assert.Error(t, err)
	})

	t.Run("weights", func(t *testing.T) {
		assert.Equal(t, 1.0, BO1.Weight())
		assert.Equal(t, 1.2, BO3.Weight())
		assert.Equal(t, 1.5, BO5.Weight())
	})
}
