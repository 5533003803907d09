package elo

import (
	"fmt"
	"math"
)

// Outcome model defaults
const (
	DefaultRatingWeight = 0.8
	DefaultScoreWeight  = 0.2

	// bo1Dampening pulls single-map probabilities toward a coin flip
	bo1Dampening = 0.85
)

// Contender is one side of a predicted match
type Contender struct {
	Rating   float64 // Fitted rating
	Score    float64 // Secondary ranking score
	HasScore bool    // False when no secondary score is known
}

// OutcomeModel turns ratings and secondary scores into per-match win probabilities
type OutcomeModel struct {
	RatingWeight float64 // Weight of the rating-based probability
	ScoreWeight  float64 // Weight of the score-based probability
}

// NewOutcomeModel creates an outcome model with validated weights
func NewOutcomeModel(ratingWeight, scoreWeight float64) (*OutcomeModel, error) {
	if math.IsNaN(ratingWeight) || math.IsInf(ratingWeight, 0) || ratingWeight < 0 {
		return nil, fmt.Errorf("%w: rating weight %v", ErrInvalidWeight, ratingWeight)
	}
	if math.IsNaN(scoreWeight) || math.IsInf(scoreWeight, 0) || scoreWeight < 0 {
		return nil, fmt.Errorf("%w: score weight %v", ErrInvalidWeight, scoreWeight)
	}
	return &OutcomeModel{RatingWeight: ratingWeight, ScoreWeight: scoreWeight}, nil
}

// WinProbability returns the probability that a beats b in a single match of
// the given format. The result is always within [0, 1].
func (m *OutcomeModel) WinProbability(a, b Contender, format Format) float64 {
	if m.RatingWeight == 0 && m.ScoreWeight == 0 {
		return 0.5
	}

	ratingProb := ExpectedScore(a.Rating, b.Rating)
	if m.ScoreWeight == 0 {
		return clampProbability(dampen(ratingProb, format))
	}

	if !a.HasScore || !b.HasScore {
		return 0.5
	}

	scoreProb := ScoreWinRate(a.Score, b.Score) / 100
	combined := m.RatingWeight*ratingProb + m.ScoreWeight*scoreProb
	return clampProbability(dampen(combined, format))
}

// ScoreWinRate converts two secondary scores into a win rate for a, in percent.
// Equal totals of zero yield 50.
func ScoreWinRate(a, b float64) float64 {
	total := a + b
	if total == 0 {
		return 50
	}

	base := a / total * 100
	diff := a - b
	adjustment := 25 * (diff / (math.Abs(diff) + 50))

	rate := 0.7*base + 0.3*(50+adjustment)
	return math.Max(0, math.Min(100, rate))
}

// SeriesWinProbability lifts a per-map probability p to the probability of
// winning a whole series: p²(3−2p) for BO3 and p³(10−15p+6p²) for BO5.
func SeriesWinProbability(p float64, format Format) float64 {
	p = clampProbability(p)
	switch format {
	case BO3:
		return clampProbability(p * p * (3 - 2*p))
	case BO5:
		return clampProbability(p * p * p * (10 - 15*p + 6*p*p))
	default:
		return p
	}
}

// dampen applies the single-map variance adjustment
func dampen(p float64, format Format) float64 {
	if format == BO1 {
		return 0.5 + (p-0.5)*bo1Dampening
	}
	return p
}

func clampProbability(p float64) float64 {
	if math.IsNaN(p) {
		return 0.5
	}
	return math.Max(0, math.Min(1, p))
}
