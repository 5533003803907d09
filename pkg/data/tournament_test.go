package data

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a valid field definition
func createTestTeams() ([]Team, []Matchup) {
	teams := make([]Team, TeamCount)
	for i := range teams {
		teams[i] = Team{Name: fmt.Sprintf("T%d", i), Score: 50 + i, HasScore: true}
	}
	matchups := make([]Matchup, RoundOneCount)
	for i := range matchups {
		matchups[i] = Matchup{Team1: teams[i].Name, Team2: teams[i+RoundOneCount].Name}
	}
	return teams, matchups
}

func TestNewField(t *testing.T) {
	t.Run("valid field", func(t *testing.T) {
		teams, matchups := createTestTeams()
		field, err := NewField(teams, matchups)
		require.NoError(t, err)

		assert.Len(t, field.Participants(), TeamCount)
		assert.Equal(t, Participant{Name: "T3", Seed: 3, Score: 53}, field.Participants()[3])
		assert.Equal(t, "T15", field.Name(15))
		assert.Empty(t, field.Name(16))

		seed, ok := field.Seed("T7")
		assert.True(t, ok)
		assert.Equal(t, 7, seed)

		rounds := field.RoundOneSeeds()
		assert.Len(t, rounds, RoundOneCount)
		assert.Equal(t, [2]int{2, 10}, rounds[2])

		seeds, err := field.SeedsOf([]string{"T1", "T0"})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 0}, seeds)

		_, err = field.SeedsOf([]string{"nobody"})
		assert.ErrorIs(t, err, ErrInvalidField)
	})

	tests := []struct {
		name    string
		modify  func([]Team, []Matchup) ([]Team, []Matchup)
		message string
	}{
		{
			name:    "fifteen teams",
			modify:  func(ts []Team, ms []Matchup) ([]Team, []Matchup) { return ts[:15], ms },
			message: "15 teams",
		},
		{
			name:    "seven opening matches",
			modify:  func(ts []Team, ms []Matchup) ([]Team, []Matchup) { return ts, ms[:7] },
			message: "7 opening matches",
		},
		{
			name: "missing score",
			modify: func(ts []Team, ms []Matchup) ([]Team, []Matchup) {
				ts[4].HasScore = false
				return ts, ms
			},
			message: "no score",
		},
		{
			name: "duplicate team",
			modify: func(ts []Team, ms []Matchup) ([]Team, []Matchup) {
				ts[5].Name = "T4"
				return ts, ms
			},
			message: "listed twice",
		},
		{
			name: "unknown opening opponent",
			modify: func(ts []Team, ms []Matchup) ([]Team, []Matchup) {
				ms[0].Team2 = "Ghost"
				return ts, ms
			},
			message: "unknown team",
		},
		{
			name: "team plays twice",
			modify: func(ts []Team, ms []Matchup) ([]Team, []Matchup) {
				ms[1].Team1 = "T0"
				return ts, ms
			},
			message: "plays twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			teams, matchups := tt.modify(createTestTeams())
			field, err := NewField(teams, matchups)
			assert.Nil(t, field)
			assert.ErrorIs(t, err, ErrInvalidField)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
