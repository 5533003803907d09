// Package elo provides the rating model and the match outcome model used by the
// tournament simulators. Ratings are fitted from a log of historical matches with
// an adaptive, recency-weighted Elo update seeded from an external rating source.
package elo

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Error types for validation
var (
	ErrInvalidRating  = errors.New("rating value is invalid")
	ErrInvalidKFactor = errors.New("k-factor must be positive")
	ErrInvalidDecay   = errors.New("time decay must be positive")
	ErrInvalidWeight  = errors.New("model weight must be a non-negative number")
	ErrUnknownFormat  = errors.New("unknown match format")
)

// Rating model defaults
const (
	DefaultBaseRating = 1000.0 // Rating of an average participant
	DefaultKFactor    = 40.0   // Base K-factor before adaptive scaling
	DefaultDecayDays  = 50.0   // Recency decay constant in days

	// ReferenceExternal is the external rating that maps to exactly BaseRating
	ReferenceExternal = 1.03
	// NeutralExternal is assumed for participants missing from the external source
	NeutralExternal = 1.0
)

// Sample-size thresholds for trusting an external rating
const (
	fullConfidenceMaps = 80
	minConfidenceMaps  = 20
)

// Config holds configuration parameters for the rating engine
type Config struct {
	BaseRating float64 // Starting rating before external adjustment
	KFactor    float64 // Base K-factor, scaled by experience, format and recency
	DecayDays  float64 // Time constant for recency weighting
}

// DefaultConfig returns the standard rating parameters
func DefaultConfig() Config {
	return Config{
		BaseRating: DefaultBaseRating,
		KFactor:    DefaultKFactor,
		DecayDays:  DefaultDecayDays,
	}
}

// Engine fits participant ratings from historical results
type Engine struct {
	BaseRating float64 // Starting rating before external adjustment
	KFactor    float64 // Base K-factor
	DecayDays  float64 // Recency time constant in days
}

// NewEngine creates a new rating engine with specified configuration
func NewEngine(config Config) (*Engine, error) {
	if math.IsNaN(config.KFactor) || config.KFactor <= 0 {
		return nil, ErrInvalidKFactor
	}
	if math.IsNaN(config.DecayDays) || config.DecayDays <= 0 {
		return nil, ErrInvalidDecay
	}
	if !isFinite(config.BaseRating) {
		return nil, ErrInvalidRating
	}

	return &Engine{
		BaseRating: config.BaseRating,
		KFactor:    config.KFactor,
		DecayDays:  config.DecayDays,
	}, nil
}

// Match is a single historical result
type Match struct {
	Date   time.Time // Day the match was played
	Team1  string    // First listed participant
	Team2  string    // Second listed participant
	Score1 int       // Maps won by Team1
	Score2 int       // Maps won by Team2
	Format Format    // Series length
	Event  string    // Tournament name, informational only
}

// Involves reports whether the named participant played in the match
func (m Match) Involves(name string) bool {
	return m.Team1 == name || m.Team2 == name
}

// ExternalRating is a rating from an outside source together with its sample size
type ExternalRating struct {
	Value float64 // Raw rating, centred around 1.0
	Maps  int     // Number of maps the value was computed from
}

// ExpectedScore returns the logistic win expectation of a rating ra against rb
func ExpectedScore(ra, rb float64) float64 {
	return 1.0 / (1.0 + math.Pow(10.0, (rb-ra)/400.0))
}

// ShrinkExternal blends every external rating toward the mean of all of them,
// trusting each value in proportion to the number of maps behind it.
func ShrinkExternal(external map[string]ExternalRating) map[string]float64 {
	shrunk := make(map[string]float64, len(external))
	if len(external) == 0 {
		return shrunk
	}

	mean := 0.0
	for _, r := range external {
		mean += r.Value
	}
	mean /= float64(len(external))

	for name, r := range external {
		c := externalConfidence(r.Maps)
		shrunk[name] = c*r.Value + (1-c)*mean
	}
	return shrunk
}

// externalConfidence maps a sample size onto a 0.1..1.0 trust factor
func externalConfidence(maps int) float64 {
	switch {
	case maps >= fullConfidenceMaps:
		return 1.0
	case maps >= minConfidenceMaps:
		return 0.25 + float64(maps-minConfidenceMaps)/float64(fullConfidenceMaps-minConfidenceMaps)*0.75
	default:
		return math.Max(0.1, float64(maps)/float64(minConfidenceMaps)*0.25)
	}
}

// externalInfluence bounds how far the external rating may move the starting
// rating. Participants with a long match history rely less on it.
func externalInfluence(historyMatches int) float64 {
	n := float64(historyMatches)
	switch {
	case historyMatches < 10:
		return 70
	case historyMatches < 20:
		return 70 - (n-10)*3.5
	case historyMatches < 30:
		return 35 - (n-20)*1.5
	default:
		return 20
	}
}

// InitialRatings derives the starting rating of every named participant from its
// external rating and the number of log entries it appears in.
// Participants without an external rating are treated as NeutralExternal.
func (e *Engine) InitialRatings(names []string, external map[string]float64, matches []Match) map[string]float64 {
	counts := make(map[string]int, len(names))
	for _, name := range names {
		counts[name] = 0
	}
	for _, m := range matches {
		if _, ok := counts[m.Team1]; ok {
			counts[m.Team1]++
		}
		if _, ok := counts[m.Team2]; ok && m.Team2 != m.Team1 {
			counts[m.Team2]++
		}
	}

	initial := make(map[string]float64, len(names))
	for _, name := range names {
		ext, ok := external[name]
		if !ok || !isFinite(ext) {
			ext = NeutralExternal
		}
		influence := externalInfluence(counts[name])
		adjustment := (ext - ReferenceExternal) * influence * 10
		adjustment = math.Max(-influence, math.Min(influence, adjustment))
		initial[name] = e.BaseRating + adjustment
	}
	return initial
}

// Stats summarises how a participant's rating evolved during a fit
type Stats struct {
	Initial      float64 // Rating before the first processed match
	Final        float64 // Rating after the last processed match
	Matches      int     // Processed matches involving the participant
	MeanOpponent float64 // Mean pre-match rating of the opponents faced
}

// Change returns the total rating movement
func (s Stats) Change() float64 {
	return s.Final - s.Initial
}

// FitResult holds fitted ratings together with per-participant statistics
type FitResult struct {
	Ratings   map[string]float64 // Final rating per participant
	Stats     map[string]Stats   // Summary per participant
	Processed int                // Matches applied to the ratings
	Skipped   int                // Matches referencing unknown participants
}

// Fit replays the match log oldest to newest and returns the adjusted ratings.
// Only participants present in initial are rated; matches referencing anyone
// else are skipped. The input slice is not modified.
func (e *Engine) Fit(initial map[string]float64, matches []Match) (*FitResult, error) {
	ratings := make(map[string]float64, len(initial))
	for name, r := range initial {
		if !isFinite(r) {
			return nil, fmt.Errorf("%w: initial rating of %s is %v", ErrInvalidRating, name, r)
		}
		ratings[name] = r
	}

	ordered := make([]Match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	var latest time.Time
	if len(ordered) > 0 {
		latest = ordered[len(ordered)-1].Date
	}

	// Experience counts every log entry naming a rated participant, including
	// those against unrated opponents.
	experience := make(map[string]int, len(ratings))
	for _, m := range ordered {
		if _, ok := ratings[m.Team1]; ok {
			experience[m.Team1]++
		}
		if _, ok := ratings[m.Team2]; ok {
			experience[m.Team2]++
		}
	}

	opponentSum := make(map[string]float64, len(ratings))
	played := make(map[string]int, len(ratings))
	result := &FitResult{}

	for _, m := range ordered {
		r1, ok1 := ratings[m.Team1]
		r2, ok2 := ratings[m.Team2]
		if !ok1 || !ok2 || m.Team1 == m.Team2 {
			result.Skipped++
			continue
		}

		opponentSum[m.Team1] += r2
		opponentSum[m.Team2] += r1
		played[m.Team1]++
		played[m.Team2]++

		k := (e.adaptiveK(experience[m.Team1]) + e.adaptiveK(experience[m.Team2])) / 2
		k *= m.Format.Weight() * e.recencyWeight(latest.Sub(m.Date))

		expected := ExpectedScore(r1, r2)
		actual := actualScore(m.Score1, m.Score2)

		ratings[m.Team1] = r1 + k*(actual-expected)
		ratings[m.Team2] = r2 + k*((1-actual)-(1-expected))
		result.Processed++
	}

	result.Ratings = ratings
	result.Stats = make(map[string]Stats, len(ratings))
	for name, final := range ratings {
		stat := Stats{
			Initial:      initial[name],
			Final:        final,
			Matches:      played[name],
			MeanOpponent: e.BaseRating,
		}
		if played[name] > 0 {
			stat.MeanOpponent = opponentSum[name] / float64(played[name])
		}
		result.Stats[name] = stat
	}

	return result, nil
}

// adaptiveK scales the base K-factor down as a participant's history grows
func (e *Engine) adaptiveK(experience int) float64 {
	switch {
	case experience < 15:
		return e.KFactor * 1.25
	case experience < 30:
		return e.KFactor
	default:
		return e.KFactor * 0.75
	}
}

// recencyWeight decays exponentially with the whole days elapsed before the latest match
func (e *Engine) recencyWeight(age time.Duration) float64 {
	days := math.Floor(age.Hours() / 24)
	if days < 0 {
		days = 0
	}
	return math.Exp(-days / e.DecayDays)
}

func actualScore(score1, score2 int) float64 {
	switch {
	case score1 > score2:
		return 1
	case score1 < score2:
		return 0
	default:
		return 0.5
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
