package forecast

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pashagolub/swisspredict/pkg/bracket"
	"github.com/pashagolub/swisspredict/pkg/data"
	"github.com/pashagolub/swisspredict/pkg/elo"
)

const tolerance = 0.0001

// Helper function to create a 16-team input with opening pairs 1v9, 2v10, ...
func createTestInput() *data.Input {
	in := &data.Input{External: map[string]elo.ExternalRating{}}
	for i := 0; i < data.TeamCount; i++ {
		in.Teams = append(in.Teams, data.Team{Name: fmt.Sprintf("T%d", i), Score: 50, HasScore: true})
	}
	for i := 0; i < data.RoundOneCount; i++ {
		in.RoundOne = append(in.RoundOne, data.Matchup{Team1: in.Teams[i].Name, Team2: in.Teams[i+data.RoundOneCount].Name})
	}
	return in
}

// Helper function giving T0 a long, recent winning record
func addDominantHistory(in *data.Input) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for round := 0; round < 4; round++ {
		for i := 1; i < data.TeamCount; i++ {
			in.Matches = append(in.Matches, elo.Match{
				Date:   ref.AddDate(0, 0, -(round*15 + i)),
				Team1:  "T0",
				Team2:  fmt.Sprintf("T%d", i),
				Score1: 2,
				Score2: 0,
				Format: elo.BO3,
			})
		}
	}
	in.Teams[0].Score = 100
}

// Helper function returning fast deterministic settings
func createTestSettings() Settings {
	settings := DefaultSettings()
	settings.StageTrials = 2000
	settings.BracketTrials = 2000
	settings.Seed = 7
	settings.BlockSize = 256
	settings.PickemPasses = 3
	return settings
}

func TestRun(t *testing.T) {
	t.Run("complete report", func(t *testing.T) {
		report, err := Run(context.Background(), createTestInput(), createTestSettings(), nil)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, report.ID)
		require.Len(t, report.Standings, data.TeamCount)
		require.Len(t, report.Published, 7)
		assert.NotEmpty(t, report.Champion)
		assert.Equal(t, report.Published[6].WinnerName, report.Champion)
		assert.Equal(t, 2000, report.Stage.Trials)
		assert.Equal(t, 2000, report.Bracket.Trials)

		var qualified, champion float64
		inBracket := 0
		for i, s := range report.Standings {
			assert.Equal(t, i, s.Seed)
			// no history and no external rating: 1000 + (1.0 - 1.03) * 700
			assert.InDelta(t, 979.0, s.Rating, tolerance)
			qualified += s.Stage.Qualified
			champion += s.Bracket.Champion
			if s.InBracket {
				inBracket++
			} else {
				assert.Zero(t, s.Bracket)
			}
		}
		assert.InDelta(t, 8.0, qualified, tolerance)
		assert.InDelta(t, 1.0, champion, tolerance)
		assert.Equal(t, bracket.Size, inBracket)

		require.NotNil(t, report.Pickem)
		assert.Equal(t, OrderPickem, report.OrderSource)
		assert.GreaterOrEqual(t, report.Pickem.Rate, report.Pickem.Suggested)
		assert.Equal(t, append(append([]string(nil), report.Pickem.Sweep...), report.Pickem.Advance...), report.Order)

		// pick'em qualifiers enter the bracket in seed order within each category
		seeds := make(map[string]int, len(report.Standings))
		for _, st := range report.Standings {
			seeds[st.Name] = st.Seed
		}
		for i := 1; i < len(report.Order); i++ {
			if i == len(report.Pickem.Sweep) {
				continue
			}
			assert.Less(t, seeds[report.Order[i-1]], seeds[report.Order[i]], "bracket position %d", i)
		}
	})

	t.Run("dominant participant leads the forecast", func(t *testing.T) {
		in := createTestInput()
		addDominantHistory(in)

		report, err := Run(context.Background(), in, createTestSettings(), nil)
		require.NoError(t, err)

		leader := report.Standings[0]
		assert.Greater(t, leader.Rating, leader.InitialRating)
		assert.Equal(t, 60, leader.Matches)
		assert.Equal(t, 60, report.Processed)
		assert.Greater(t, leader.Stage.Qualified, 0.9)
		for _, s := range report.Standings[1:] {
			assert.Less(t, s.Stage.Qualified, leader.Stage.Qualified)
			assert.Less(t, s.Bracket.Champion, leader.Bracket.Champion)
		}
		assert.Equal(t, "T0", report.Champion)
	})

	t.Run("same seed gives the same forecast", func(t *testing.T) {
		settings := createTestSettings()
		settings.Workers = 1
		a, err := Run(context.Background(), createTestInput(), settings, nil)
		require.NoError(t, err)

		settings.Workers = 4
		b, err := Run(context.Background(), createTestInput(), settings, nil)
		require.NoError(t, err)

		assert.NotEqual(t, a.ID, b.ID)
		assert.Equal(t, a.Standings, b.Standings)
		assert.Equal(t, a.Published, b.Published)
	})

	t.Run("configured qualifiers", func(t *testing.T) {
		settings := createTestSettings()
		settings.Qualifiers = []string{"T15", "T14", "T13", "T12", "T11", "T10", "T9", "T8"}

		report, err := Run(context.Background(), createTestInput(), settings, nil)
		require.NoError(t, err)
		assert.Equal(t, OrderConfigured, report.OrderSource)
		assert.Equal(t, settings.Qualifiers, report.Order)
		assert.True(t, report.Standings[15].InBracket)
		assert.False(t, report.Standings[0].InBracket)
	})

	t.Run("rate-derived qualifiers without pick'em", func(t *testing.T) {
		settings := createTestSettings()
		settings.Pickem = false

		report, err := Run(context.Background(), createTestInput(), settings, nil)
		require.NoError(t, err)
		assert.Nil(t, report.Pickem)
		assert.Equal(t, OrderRates, report.OrderSource)
		assert.Len(t, report.Order, bracket.Size)
	})

	t.Run("stage and playoff progress", func(t *testing.T) {
		var mu sync.Mutex
		var stageDone, bracketDone int
		var order []string
		settings := createTestSettings()
		settings.Progress = func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			stageDone = max(stageDone, done)
			order = append(order, "stage")
			assert.Equal(t, settings.StageTrials, total)
		}
		settings.BracketProgress = func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			bracketDone = max(bracketDone, done)
			order = append(order, "bracket")
			assert.Equal(t, settings.BracketTrials, total)
		}

		_, err := Run(context.Background(), createTestInput(), settings, nil)
		require.NoError(t, err)
		assert.Equal(t, settings.StageTrials, stageDone)
		assert.Equal(t, settings.BracketTrials, bracketDone)
		require.NotEmpty(t, order)
		assert.Equal(t, "stage", order[0])
		assert.Equal(t, "bracket", order[len(order)-1])
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := Run(ctx, createTestInput(), createTestSettings(), nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, report)
	})
}

func TestRunValidation(t *testing.T) {
	tests := []struct {
		name     string
		input    func() *data.Input
		settings func(*Settings)
		wantErr  error
	}{
		{
			name:    "missing input",
			input:   func() *data.Input { return nil },
			wantErr: data.ErrInvalidField,
		},
		{
			name: "fifteen teams",
			input: func() *data.Input {
				in := createTestInput()
				in.Teams = in.Teams[:15]
				return in
			},
			wantErr: data.ErrInvalidField,
		},
		{
			name: "unknown round one team",
			input: func() *data.Input {
				in := createTestInput()
				in.RoundOne[3].Team2 = "Ghost"
				return in
			},
			wantErr: data.ErrInvalidField,
		},
		{
			name:     "unknown qualifier",
			settings: func(s *Settings) { s.Qualifiers = []string{"T0", "T1", "T2", "T3", "T4", "T5", "T6", "Ghost"} },
			wantErr:  data.ErrInvalidField,
		},
		{
			name:     "short qualifier list",
			settings: func(s *Settings) { s.Qualifiers = []string{"T0"} },
			wantErr:  ErrInvalidSettings,
		},
		{
			name:     "zero trials",
			settings: func(s *Settings) { s.StageTrials = 0 },
			wantErr:  ErrInvalidSettings,
		},
		{
			name:     "negative weight",
			settings: func(s *Settings) { s.ScoreWeight = -1 },
			wantErr:  ErrInvalidSettings,
		},
		{
			name:     "zero k-factor",
			settings: func(s *Settings) { s.Rating.KFactor = 0 },
			wantErr:  ErrInvalidSettings,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := createTestInput()
			if tt.input != nil {
				in = tt.input()
			}
			settings := createTestSettings()
			if tt.settings != nil {
				tt.settings(&settings)
			}

			report, err := Run(context.Background(), in, settings, nil)
			assert.Nil(t, report)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSettingsFromConfig(t *testing.T) {
	config := data.DefaultConfig()
	config.Simulation.Seed = 5
	config.Simulation.Qualifiers = []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	config.Outcome.ScoreWeight = 0

	settings := SettingsFromConfig(config)
	assert.Equal(t, elo.DefaultConfig(), settings.Rating)
	assert.Equal(t, uint64(5), settings.Seed)
	assert.Zero(t, settings.ScoreWeight)
	assert.Equal(t, config.Simulation.Qualifiers, settings.Qualifiers)
	assert.True(t, settings.Pickem)
	require.NoError(t, settings.Validate())

	// the copy is independent of the config
	config.Simulation.Qualifiers[0] = "z"
	assert.Equal(t, "a", settings.Qualifiers[0])
}
