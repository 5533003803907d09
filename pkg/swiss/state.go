// Package swiss simulates a 16-participant Swiss group stage played over five
// rounds. Participants are identified by their seed index (0..15). Three wins
// qualify a participant, three losses eliminate it.
package swiss

import (
	"errors"
	"fmt"

	"github.com/pashagolub/swisspredict/pkg/elo"
)

// Stage dimensions
const (
	FieldSize       = 16            // Participants in the stage
	QualifierCount  = 8             // Participants advancing to the bracket
	Rounds          = 5             // Rounds needed to resolve every participant
	RoundOneMatches = FieldSize / 2 // Fixed opening pairings

	winsToQualify     = 3
	lossesToEliminate = 3
)

// Error types for validation and structural invariants
var (
	ErrInvalidField      = errors.New("invalid stage field")
	ErrInvalidTrials     = errors.New("trial count must be positive")
	ErrInvalidRound      = errors.New("round out of range")
	ErrBucketInvariant   = errors.New("pairing bucket invariant violated")
	ErrStageInvariant    = errors.New("stage ended in an invalid state")
	ErrInvalidPrediction = errors.New("invalid pick'em prediction")
)

// Record is a participant's current win/loss count
type Record struct {
	Wins   int
	Losses int
}

// Diff returns wins minus losses
func (r Record) Diff() int { return r.Wins - r.Losses }

// Resolved reports whether the participant has qualified or been eliminated
func (r Record) Resolved() bool {
	return r.Wins >= winsToQualify || r.Losses >= lossesToEliminate
}

// String formats the record as "2-1"
func (r Record) String() string { return fmt.Sprintf("%d-%d", r.Wins, r.Losses) }

// Pairing is a scheduled match between two seeds
type Pairing struct {
	A      int        // First-listed seed
	B      int        // Second-listed seed
	Format elo.Format // BO1, or BO3 when qualification or elimination is at stake
}

// TrialState holds the records and opponent history of one simulated stage.
// A TrialState belongs to a single worker and is reset between trials.
type TrialState struct {
	Records []Record // indexed by seed
	Faced   [][]int  // indexed by seed, opponents in play order

	bucketIndex map[Record]int
}

// NewTrialState creates an empty state for n participants
func NewTrialState(n int) *TrialState {
	s := &TrialState{
		Records:     make([]Record, n),
		Faced:       make([][]int, n),
		bucketIndex: make(map[Record]int, 6),
	}
	for i := range s.Faced {
		s.Faced[i] = make([]int, 0, Rounds)
	}
	return s
}

// Reset clears all records and histories while keeping allocations
func (s *TrialState) Reset() {
	for i := range s.Records {
		s.Records[i] = Record{}
		s.Faced[i] = s.Faced[i][:0]
	}
}

// HasFaced reports whether seeds a and b already met in this trial
func (s *TrialState) HasFaced(a, b int) bool {
	for _, o := range s.Faced[a] {
		if o == b {
			return true
		}
	}
	return false
}

// Play records the result of a pairing
func (s *TrialState) Play(p Pairing, aWon bool) {
	if aWon {
		s.Records[p.A].Wins++
		s.Records[p.B].Losses++
	} else {
		s.Records[p.A].Losses++
		s.Records[p.B].Wins++
	}
	s.Faced[p.A] = append(s.Faced[p.A], p.B)
	s.Faced[p.B] = append(s.Faced[p.B], p.A)
}

// Difficulty sums wins minus losses over every opponent the seed has faced,
// using the opponents' current records.
func (s *TrialState) Difficulty(seed int) int {
	total := 0
	for _, o := range s.Faced[seed] {
		total += s.Records[o].Diff()
	}
	return total
}

// StakeFormat returns BO3 when either side sits at two wins or two losses
func (s *TrialState) StakeFormat(a, b int) elo.Format {
	ra, rb := s.Records[a], s.Records[b]
	if ra.Wins == 2 || ra.Losses == 2 || rb.Wins == 2 || rb.Losses == 2 {
		return elo.BO3
	}
	return elo.BO1
}

// Buckets groups unresolved seeds by identical record. Buckets are ordered by
// the lowest seed they contain and list seeds in ascending order.
func (s *TrialState) Buckets() [][]int {
	clear(s.bucketIndex)
	var buckets [][]int
	for seed, r := range s.Records {
		if r.Resolved() {
			continue
		}
		idx, ok := s.bucketIndex[r]
		if !ok {
			idx = len(buckets)
			s.bucketIndex[r] = idx
			buckets = append(buckets, make([]int, 0, 8))
		}
		buckets[idx] = append(buckets[idx], seed)
	}
	return buckets
}

// Outcome classifies the finished stage. Every participant must be resolved
// and exactly QualifierCount of them must have qualified.
func (s *TrialState) Outcome() (TrialOutcome, error) {
	var out TrialOutcome
	for seed, r := range s.Records {
		switch {
		case r.Wins >= winsToQualify:
			out.Qualified |= 1 << uint(seed)
			if r.Losses == 0 {
				out.Swept |= 1 << uint(seed)
			}
		case r.Losses >= lossesToEliminate:
			if r.Wins == 0 {
				out.Whitewashed |= 1 << uint(seed)
			}
		default:
			return TrialOutcome{}, fmt.Errorf("%w: seed %d unresolved at %s", ErrStageInvariant, seed, r)
		}
	}
	if n := out.QualifiedCount(); n != QualifierCount {
		return TrialOutcome{}, fmt.Errorf("%w: %d qualified, want %d", ErrStageInvariant, n, QualifierCount)
	}
	return out, nil
}
