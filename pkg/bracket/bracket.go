// Package bracket simulates the 8-participant single-elimination playoff that
// follows the group stage, and builds the deterministic "published" bracket.
// Participant strength is a proxy such as the group-stage qualification rate.
package bracket

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pashagolub/swisspredict/pkg/elo"
)

// Size is the number of bracket participants
const Size = 8

// DefaultBlockSize is the number of trials sharing one random stream
const DefaultBlockSize = 1024

// Error types for validation
var (
	ErrInvalidBracket  = errors.New("invalid bracket")
	ErrInvalidStrength = errors.New("strength must be a finite non-negative number")
	ErrInvalidTrials   = errors.New("trial count must be positive")
)

// Round identifies a bracket round
type Round int

// Bracket rounds
const (
	Quarterfinal Round = iota + 1
	Semifinal
	GrandFinal
)

// String returns a human readable round name
func (r Round) String() string {
	switch r {
	case Quarterfinal:
		return "Quarterfinal"
	case Semifinal:
		return "Semifinal"
	case GrandFinal:
		return "Final"
	}
	return fmt.Sprintf("round(%d)", int(r))
}

// Format returns the series format played in the round
func (r Round) Format() elo.Format {
	if r == GrandFinal {
		return elo.BO5
	}
	return elo.BO3
}

// Match is one predicted match of the published bracket
type Match struct {
	Label          string     `json:"label"`
	Round          Round      `json:"round"`
	A              int        `json:"a"`
	B              int        `json:"b"`
	Format         elo.Format `json:"format"`
	Winner         int        `json:"winner"`
	WinProbability float64    `json:"win_probability"`
}

// Probabilities are the stochastic outcomes for one participant
type Probabilities struct {
	Semifinal float64 `json:"semifinal"` // Won the quarterfinal
	Final     float64 `json:"final"`     // Won the semifinal
	Champion  float64 `json:"champion"`  // Won the final
}

// Result aggregates a bracket simulation
type Result struct {
	Trials int             // Number of simulated brackets
	Seed   uint64          // Base seed of the random streams
	Order  []int           // Participants in bracket order
	Rates  []Probabilities // indexed like Order
}

// Pairwise converts two strengths into the probability that the first wins a
// single map. Two zero strengths yield 0.5.
func Pairwise(a, b float64) float64 {
	if a+b == 0 {
		return 0.5
	}
	return a / (a + b)
}

// ProgressFunc is called after each finished block with the number of trials
// completed so far. It may be called concurrently from several workers.
type ProgressFunc func(done, total int)

// Option configures a Simulator
type Option func(*Simulator)

// WithWorkers sets the number of concurrent workers (defaults to GOMAXPROCS)
func WithWorkers(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSeed fixes the base seed of the random streams
func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		s.seed = seed
		s.seeded = true
	}
}

// WithBlockSize sets how many consecutive trials share one random stream
func WithBlockSize(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.blockSize = n
		}
	}
}

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger.Sugar()
		}
	}
}

// WithProgress registers a progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(s *Simulator) {
		s.progress = fn
	}
}

// Simulator plays the bracket QF1 = 1v2, QF2 = 3v4, QF3 = 5v6, QF4 = 7v8 (BO3),
// SF1 = QF1 vs QF2, SF2 = QF3 vs QF4 (BO3) and the final (BO5).
type Simulator struct {
	order    []int
	strength []float64 // indexed by bracket position
	series   [elo.BO5 + 1][Size][Size]float64

	workers   int
	blockSize int
	seed      uint64
	seeded    bool
	logger    *zap.SugaredLogger
	progress  ProgressFunc
}

// NewSimulator validates the bracket. order lists the participants in bracket
// position order; strength is indexed by participant and must cover every one
// of them.
func NewSimulator(order []int, strength []float64, opts ...Option) (*Simulator, error) {
	if len(order) != Size {
		return nil, fmt.Errorf("%w: %d participants, want %d", ErrInvalidBracket, len(order), Size)
	}

	s := &Simulator{
		order:     make([]int, Size),
		strength:  make([]float64, Size),
		workers:   runtime.GOMAXPROCS(0),
		blockSize: DefaultBlockSize,
		logger:    zap.NewNop().Sugar(),
	}

	seen := make(map[int]bool, Size)
	for pos, id := range order {
		if id < 0 || id >= len(strength) {
			return nil, fmt.Errorf("%w: participant %d has no strength", ErrInvalidBracket, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: participant %d listed twice", ErrInvalidBracket, id)
		}
		seen[id] = true

		v := strength[id]
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("%w: participant %d has %v", ErrInvalidStrength, id, v)
		}
		s.order[pos] = id
		s.strength[pos] = v
	}

	for _, opt := range opts {
		opt(s)
	}
	if !s.seeded {
		s.seed = rand.Uint64()
	}

	for _, f := range []elo.Format{elo.BO3, elo.BO5} {
		for a := 0; a < Size; a++ {
			for b := 0; b < Size; b++ {
				s.series[f][a][b] = elo.SeriesWinProbability(Pairwise(s.strength[a], s.strength[b]), f)
			}
		}
	}

	return s, nil
}

// Seed returns the base seed of the random streams
func (s *Simulator) Seed() uint64 { return s.seed }

// Run simulates the bracket trials times with the same block scheme as the
// group stage, so results are independent of the worker count.
func (s *Simulator) Run(ctx context.Context, trials int) (*Result, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTrials, trials)
	}

	start := time.Now()
	blocks := (trials + s.blockSize - 1) / s.blockSize
	counts := make([]counter, blocks)
	var done atomic.Int64

	s.logger.Infow("Bracket simulation started",
		"trials", trials, "blocks", blocks, "workers", s.workers, "seed", s.seed)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for b := 0; b < blocks; b++ {
		first := b * s.blockSize
		last := min(first+s.blockSize, trials)

		g.Go(func() error {
			rng := rand.New(rand.NewPCG(s.seed, uint64(b)))
			var c counter
			for i := first; i < last; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				s.simulateTrial(rng, &c)
			}
			counts[b] = c
			n := done.Add(int64(last - first))
			if s.progress != nil {
				s.progress(int(n), trials)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warnw("Bracket simulation aborted", "error", err, "completed", done.Load())
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var total counter
	for _, c := range counts {
		total.merge(c)
	}

	s.logger.Infow("Bracket simulation finished", "trials", trials, "duration", time.Since(start))

	rates := make([]Probabilities, Size)
	n := float64(trials)
	for pos := range rates {
		rates[pos] = Probabilities{
			Semifinal: float64(total.semifinal[pos]) / n,
			Final:     float64(total.final[pos]) / n,
			Champion:  float64(total.champion[pos]) / n,
		}
	}

	return &Result{
		Trials: trials,
		Seed:   s.seed,
		Order:  append([]int(nil), s.order...),
		Rates:  rates,
	}, nil
}

// counter accumulates per-position results
type counter struct {
	semifinal [Size]int
	final     [Size]int
	champion  [Size]int
}

func (c *counter) merge(other counter) {
	for i := 0; i < Size; i++ {
		c.semifinal[i] += other.semifinal[i]
		c.final[i] += other.final[i]
		c.champion[i] += other.champion[i]
	}
}

// simulateTrial plays one bracket, working on positions
func (s *Simulator) simulateTrial(rng *rand.Rand, c *counter) {
	var qf [4]int
	for i := range qf {
		qf[i] = s.decide(rng, 2*i, 2*i+1, elo.BO3)
		c.semifinal[qf[i]]++
	}

	sf1 := s.decide(rng, qf[0], qf[1], elo.BO3)
	sf2 := s.decide(rng, qf[2], qf[3], elo.BO3)
	c.final[sf1]++
	c.final[sf2]++

	c.champion[s.decide(rng, sf1, sf2, elo.BO5)]++
}

// decide draws the winner of a series between two positions
func (s *Simulator) decide(rng *rand.Rand, a, b int, format elo.Format) int {
	if rng.Float64() < s.series[format][a][b] {
		return a
	}
	return b
}

// Published builds the deterministic bracket in which the stronger side of
// every match advances. Equal strengths favour the first-listed participant.
// Each match reports the single-map pairwise probability of its winner.
func (s *Simulator) Published() ([]Match, int) {
	matches := make([]Match, 0, 7)

	predict := func(label string, round Round, a, b int) int {
		winner, loser := a, b
		if s.strength[b] > s.strength[a] {
			winner, loser = b, a
		}
		matches = append(matches, Match{
			Label:          label,
			Round:          round,
			A:              s.order[a],
			B:              s.order[b],
			Format:         round.Format(),
			Winner:         s.order[winner],
			WinProbability: Pairwise(s.strength[winner], s.strength[loser]),
		})
		return winner
	}

	var qf [4]int
	for i := range qf {
		qf[i] = predict(fmt.Sprintf("QF%d", i+1), Quarterfinal, 2*i, 2*i+1)
	}
	sf1 := predict("SF1", Semifinal, qf[0], qf[1])
	sf2 := predict("SF2", Semifinal, qf[2], qf[3])
	champion := predict("Final", GrandFinal, sf1, sf2)

	return matches, s.order[champion]
}
