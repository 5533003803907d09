package data

import (
	"errors"
	"fmt"
	"strings"
)

// Tournament shape constants
const (
	TeamCount     = 16 // Participants in the group stage
	RoundOneCount = 8  // Fixed opening pairings
)

// ErrInvalidField reports a participant field that cannot be simulated
var ErrInvalidField = errors.New("invalid participant field")

// Team is one row of the teams file. Row order defines the seed order.
type Team struct {
	Name     string
	Score    int
	HasScore bool
}

// Matchup is one row of the opening pairings file
type Matchup struct {
	Team1 string
	Team2 string
}

// Participant is a validated member of the field
type Participant struct {
	Name  string `json:"name"`
	Seed  int    `json:"seed"` // 0-based position in the seed order
	Score int    `json:"score"`
}

// Field is the validated, immutable set of participants and opening pairings
type Field struct {
	participants []Participant
	roundOne     [][2]int
	index        map[string]int
}

// NewField validates teams and opening pairings. Every problem is reported
// before any simulation can start.
func NewField(teams []Team, roundOne []Matchup) (*Field, error) {
	if len(teams) != TeamCount {
		return nil, fmt.Errorf("%w: %d teams, want %d", ErrInvalidField, len(teams), TeamCount)
	}
	if len(roundOne) != RoundOneCount {
		return nil, fmt.Errorf("%w: %d opening matches, want %d", ErrInvalidField, len(roundOne), RoundOneCount)
	}

	f := &Field{
		participants: make([]Participant, 0, TeamCount),
		roundOne:     make([][2]int, 0, RoundOneCount),
		index:        make(map[string]int, TeamCount),
	}

	for i, t := range teams {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: team at seed %d has no name", ErrInvalidField, i+1)
		}
		if _, dup := f.index[name]; dup {
			return nil, fmt.Errorf("%w: team %q listed twice", ErrInvalidField, name)
		}
		if !t.HasScore {
			return nil, fmt.Errorf("%w: team %q has no score", ErrInvalidField, name)
		}
		f.index[name] = i
		f.participants = append(f.participants, Participant{Name: name, Seed: i, Score: t.Score})
	}

	paired := make(map[int]bool, TeamCount)
	for i, m := range roundOne {
		a, okA := f.index[strings.TrimSpace(m.Team1)]
		b, okB := f.index[strings.TrimSpace(m.Team2)]
		switch {
		case !okA:
			return nil, fmt.Errorf("%w: opening match %d references unknown team %q", ErrInvalidField, i+1, m.Team1)
		case !okB:
			return nil, fmt.Errorf("%w: opening match %d references unknown team %q", ErrInvalidField, i+1, m.Team2)
		case a == b:
			return nil, fmt.Errorf("%w: opening match %d pairs %q with itself", ErrInvalidField, i+1, m.Team1)
		case paired[a]:
			return nil, fmt.Errorf("%w: team %q plays twice in round one", ErrInvalidField, m.Team1)
		case paired[b]:
			return nil, fmt.Errorf("%w: team %q plays twice in round one", ErrInvalidField, m.Team2)
		}
		paired[a], paired[b] = true, true
		f.roundOne = append(f.roundOne, [2]int{a, b})
	}

	return f, nil
}

// Participants returns a copy of the participants in seed order
func (f *Field) Participants() []Participant {
	return append([]Participant(nil), f.participants...)
}

// Names returns participant names in seed order
func (f *Field) Names() []string {
	names := make([]string, len(f.participants))
	for i, p := range f.participants {
		names[i] = p.Name
	}
	return names
}

// Name returns the name of the participant at seed
func (f *Field) Name(seed int) string {
	if seed < 0 || seed >= len(f.participants) {
		return ""
	}
	return f.participants[seed].Name
}

// Seed resolves a participant name
func (f *Field) Seed(name string) (int, bool) {
	seed, ok := f.index[strings.TrimSpace(name)]
	return seed, ok
}

// RoundOneSeeds returns the opening pairings as seed pairs
func (f *Field) RoundOneSeeds() [][2]int {
	return append([][2]int(nil), f.roundOne...)
}

// SeedsOf resolves a list of names, failing on the first unknown one
func (f *Field) SeedsOf(names []string) ([]int, error) {
	seeds := make([]int, len(names))
	for i, name := range names {
		seed, ok := f.Seed(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown team %q", ErrInvalidField, name)
		}
		seeds[i] = seed
	}
	return seeds, nil
}
