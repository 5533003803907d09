package swiss

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pashagolub/swisspredict/pkg/elo"
)

// DefaultBlockSize is the number of trials sharing one random stream
const DefaultBlockSize = 1024

// ProgressFunc is called after each finished block with the number of trials
// completed so far. It may be called concurrently from several workers.
type ProgressFunc func(done, total int)

// Option configures a Stage
type Option func(*Stage)

// WithWorkers sets the number of concurrent workers (defaults to GOMAXPROCS)
func WithWorkers(n int) Option {
	return func(s *Stage) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSeed fixes the base seed of the random streams
func WithSeed(seed uint64) Option {
	return func(s *Stage) {
		s.seed = seed
		s.seeded = true
	}
}

// WithBlockSize sets how many consecutive trials share one random stream
func WithBlockSize(n int) Option {
	return func(s *Stage) {
		if n > 0 {
			s.blockSize = n
		}
	}
}

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Stage) {
		if logger != nil {
			s.logger = logger.Sugar()
		}
	}
}

// WithProgress registers a progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(s *Stage) {
		s.progress = fn
	}
}

// Stage runs Monte Carlo simulations of the Swiss group stage
type Stage struct {
	roundOne []Pairing
	prob     [elo.BO5 + 1][][]float64 // [format][a][b], probability that a beats b

	workers   int
	blockSize int
	seed      uint64
	seeded    bool
	logger    *zap.SugaredLogger
	progress  ProgressFunc
}

// NewStage validates the field and precomputes every pairwise win probability.
// contenders are indexed by seed; roundOne lists the fixed opening pairings.
func NewStage(contenders []elo.Contender, roundOne []Pairing, model *elo.OutcomeModel, opts ...Option) (*Stage, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: outcome model is required", ErrInvalidField)
	}
	if err := validateField(len(contenders), roundOne); err != nil {
		return nil, err
	}

	s := &Stage{
		roundOne:  PairRoundOne(roundOne),
		workers:   runtime.GOMAXPROCS(0),
		blockSize: DefaultBlockSize,
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.seeded {
		s.seed = rand.Uint64()
	}

	n := len(contenders)
	for _, f := range []elo.Format{elo.BO1, elo.BO3, elo.BO5} {
		table := make([][]float64, n)
		for a := range table {
			table[a] = make([]float64, n)
			for b := range table[a] {
				if a != b {
					table[a][b] = model.WinProbability(contenders[a], contenders[b], f)
				}
			}
		}
		s.prob[f] = table
	}

	return s, nil
}

func validateField(n int, roundOne []Pairing) error {
	if n != FieldSize {
		return fmt.Errorf("%w: %d participants, want %d", ErrInvalidField, n, FieldSize)
	}
	if len(roundOne) != RoundOneMatches {
		return fmt.Errorf("%w: %d opening pairings, want %d", ErrInvalidField, len(roundOne), RoundOneMatches)
	}
	seen := make([]bool, n)
	for i, p := range roundOne {
		for _, seed := range []int{p.A, p.B} {
			if seed < 0 || seed >= n {
				return fmt.Errorf("%w: opening pairing %d references seed %d", ErrInvalidField, i+1, seed)
			}
			if seen[seed] {
				return fmt.Errorf("%w: seed %d appears in more than one opening pairing", ErrInvalidField, seed)
			}
			seen[seed] = true
		}
	}
	return nil
}

// Probability returns the precomputed probability that seed a beats seed b
func (s *Stage) Probability(a, b int, format elo.Format) float64 {
	return s.prob[format][a][b]
}

// Seed returns the base seed of the random streams
func (s *Stage) Seed() uint64 { return s.seed }

// Run simulates the stage trials times. Trials are split into fixed-size
// blocks, each with its own random stream derived from the base seed and the
// block index, so the result does not depend on the number of workers.
// Cancelling ctx aborts the run and discards partial results.
func (s *Stage) Run(ctx context.Context, trials int) (*StageResult, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTrials, trials)
	}

	start := time.Now()
	blocks := (trials + s.blockSize - 1) / s.blockSize
	outcomes := make([]TrialOutcome, trials)
	tallies := make([]tally, blocks)
	var done atomic.Int64

	s.logger.Infow("Stage simulation started",
		"trials", trials, "blocks", blocks, "workers", s.workers, "seed", s.seed)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for b := 0; b < blocks; b++ {
		first := b * s.blockSize
		last := min(first+s.blockSize, trials)

		g.Go(func() error {
			rng := rand.New(rand.NewPCG(s.seed, uint64(b)))
			state := NewTrialState(FieldSize)
			t := newTally(FieldSize)

			for i := first; i < last; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				out, err := s.simulateTrial(state, rng)
				if err != nil {
					return fmt.Errorf("trial %d: %w", i, err)
				}
				outcomes[i] = out
				t.add(out)
			}
			tallies[b] = t

			n := done.Add(int64(last - first))
			if s.progress != nil {
				s.progress(int(n), trials)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warnw("Stage simulation aborted", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := newTally(FieldSize)
	for _, t := range tallies {
		total.merge(t)
	}

	s.logger.Infow("Stage simulation finished", "trials", trials, "duration", time.Since(start))

	return &StageResult{
		Trials:   trials,
		Seed:     s.seed,
		Rates:    total.rates(trials),
		Outcomes: outcomes,
	}, nil
}

// simulateTrial plays one complete stage on a reset state
func (s *Stage) simulateTrial(state *TrialState, rng *rand.Rand) (TrialOutcome, error) {
	state.Reset()

	for _, p := range s.roundOne {
		s.play(state, p, rng)
	}

	for round := 2; round <= Rounds; round++ {
		// Buckets are fixed at the start of the round; pairing inside each
		// bucket sees the results of buckets already played this round.
		for _, bucket := range state.Buckets() {
			pairs, err := PairBucket(state, round, bucket)
			if err != nil {
				return TrialOutcome{}, err
			}
			for _, p := range pairs {
				s.play(state, p, rng)
			}
		}
	}

	out, err := state.Outcome()
	if err != nil {
		return TrialOutcome{}, fmt.Errorf("%w (records %v)", err, state.Records)
	}
	return out, nil
}

// play decides a pairing with a single uniform draw
func (s *Stage) play(state *TrialState, p Pairing, rng *rand.Rand) {
	aWon := rng.Float64() < s.prob[p.Format][p.A][p.B]
	state.Play(p, aWon)
}
