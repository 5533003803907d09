// Package forecast runs the complete prediction pipeline: historical results
// are turned into ratings, the group stage is simulated, qualifiers are seeded
// into the playoff bracket and everything is assembled into a Report.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pashagolub/swisspredict/pkg/bracket"
	"github.com/pashagolub/swisspredict/pkg/data"
	"github.com/pashagolub/swisspredict/pkg/elo"
	"github.com/pashagolub/swisspredict/pkg/swiss"
)

// ErrInvalidSettings reports settings that cannot drive a forecast
var ErrInvalidSettings = errors.New("invalid forecast settings")

// Qualifier order sources
const (
	OrderConfigured = "configured" // Listed explicitly in the settings
	OrderPickem     = "pickem"     // 3-0 picks followed by advance picks
	OrderRates      = "rates"      // Derived from qualification and 3-0 rates
)

// Settings holds everything the pipeline needs besides the input data
type Settings struct {
	Rating        elo.Config
	RatingWeight  float64
	ScoreWeight   float64
	StageTrials   int
	BracketTrials int
	Workers       int      // 0 uses one worker per CPU
	Seed          uint64   // 0 picks a random seed
	BlockSize     int      // 0 uses the engine default
	Qualifiers    []string // Optional fixed bracket order

	Pickem          bool
	PickemThreshold int
	PickemPasses    int

	Progress        swiss.ProgressFunc   // Optional group stage progress callback
	BracketProgress bracket.ProgressFunc // Optional playoff progress callback
}

// DefaultSettings mirrors data.DefaultConfig
func DefaultSettings() Settings {
	return SettingsFromConfig(data.DefaultConfig())
}

// SettingsFromConfig converts a loaded configuration
func SettingsFromConfig(cfg data.Config) Settings {
	return Settings{
		Rating: elo.Config{
			BaseRating: cfg.Rating.BaseRating,
			KFactor:    cfg.Rating.KFactor,
			DecayDays:  cfg.Rating.DecayDays,
		},
		RatingWeight:    cfg.Outcome.RatingWeight,
		ScoreWeight:     cfg.Outcome.ScoreWeight,
		StageTrials:     cfg.Simulation.StageTrials,
		BracketTrials:   cfg.Simulation.BracketTrials,
		Workers:         cfg.Simulation.Workers,
		Seed:            cfg.Simulation.Seed,
		BlockSize:       cfg.Simulation.BlockSize,
		Qualifiers:      append([]string(nil), cfg.Simulation.Qualifiers...),
		Pickem:          cfg.Pickem.Enabled,
		PickemThreshold: cfg.Pickem.Threshold,
		PickemPasses:    cfg.Pickem.MaxPasses,
	}
}

// Standing is the complete forecast for one participant
type Standing struct {
	data.Participant
	InitialRating float64               `json:"initial_rating"`
	Rating        float64               `json:"rating"`
	Matches       int                   `json:"matches"`
	MeanOpponent  float64               `json:"mean_opponent"`
	Stage         swiss.StageRates      `json:"stage"`
	InBracket     bool                  `json:"in_bracket"`
	Bracket       bracket.Probabilities `json:"bracket"`
}

// PublishedMatch is a bracket.Match with participant names resolved
type PublishedMatch struct {
	bracket.Match
	NameA      string `json:"name_a"`
	NameB      string `json:"name_b"`
	WinnerName string `json:"winner_name"`
}

// PickemReport describes the pick'em prediction derived from the stage trials
type PickemReport struct {
	Sweep     []string `json:"sweep"`
	Advance   []string `json:"advance"`
	Whitewash []string `json:"whitewash"`
	Threshold int      `json:"threshold"`
	Suggested float64  `json:"suggested_rate"` // Success rate of the greedy suggestion
	Rate      float64  `json:"success_rate"`   // Success rate after local search

	prediction swiss.Prediction
}

// Prediction returns the underlying seed-based prediction
func (p *PickemReport) Prediction() swiss.Prediction { return p.prediction }

// Report is the result of a forecast run
type Report struct {
	ID          uuid.UUID          `json:"id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Duration    time.Duration      `json:"duration"`
	Standings   []Standing         `json:"standings"` // in seed order
	Processed   int                `json:"matches_processed"`
	Skipped     int                `json:"matches_skipped"`
	Stage       *swiss.StageResult `json:"-"`
	Bracket     *bracket.Result    `json:"-"`
	Order       []string           `json:"bracket_order"`
	OrderSource string             `json:"bracket_order_source"`
	Published   []PublishedMatch   `json:"published"`
	Champion    string             `json:"champion"`
	Pickem      *PickemReport      `json:"pickem,omitempty"`
}

// Name returns the participant name at seed
func (r *Report) Name(seed int) string {
	if seed < 0 || seed >= len(r.Standings) {
		return ""
	}
	return r.Standings[seed].Name
}

// Names resolves a list of seeds
func (r *Report) Names(seeds []int) []string {
	names := make([]string, len(seeds))
	for i, s := range seeds {
		names[i] = r.Name(s)
	}
	return names
}

// Validate checks the settings before any work is done
func (s Settings) Validate() error {
	if s.StageTrials <= 0 || s.BracketTrials <= 0 {
		return fmt.Errorf("%w: trial counts must be positive (stage %d, bracket %d)",
			ErrInvalidSettings, s.StageTrials, s.BracketTrials)
	}
	if n := len(s.Qualifiers); n != 0 && n != bracket.Size {
		return fmt.Errorf("%w: %d qualifiers listed, want %d", ErrInvalidSettings, n, bracket.Size)
	}
	if s.Pickem && (s.PickemThreshold < 1 || s.PickemThreshold > swiss.PickSweep+swiss.PickAdvance+swiss.PickWhitewash) {
		return fmt.Errorf("%w: pick'em threshold %d", ErrInvalidSettings, s.PickemThreshold)
	}
	return nil
}

// Run executes the pipeline. Input and settings are validated before any
// simulation starts; a cancelled context aborts and returns no report.
func Run(ctx context.Context, in *data.Input, settings Settings, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Sugar()
	start := time.Now()

	if in == nil {
		return nil, fmt.Errorf("%w: no input", data.ErrInvalidField)
	}
	field, err := data.NewField(in.Teams, in.RoundOne)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	var fixedOrder []int
	if len(settings.Qualifiers) > 0 {
		if fixedOrder, err = field.SeedsOf(settings.Qualifiers); err != nil {
			return nil, err
		}
	}

	engine, err := elo.NewEngine(settings.Rating)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	model, err := elo.NewOutcomeModel(settings.RatingWeight, settings.ScoreWeight)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	report := &Report{
		ID:          uuid.New(),
		GeneratedAt: start.UTC(),
	}
	log = log.With("report", report.ID.String())

	// Ratings
	names := field.Names()
	external := elo.ShrinkExternal(in.External)
	initial := engine.InitialRatings(names, external, in.Matches)
	fit, err := engine.Fit(initial, in.Matches)
	if err != nil {
		return nil, err
	}
	report.Processed, report.Skipped = fit.Processed, fit.Skipped
	log.Infow("Ratings fitted", "matches", fit.Processed, "skipped", fit.Skipped)

	participants := field.Participants()
	report.Standings = make([]Standing, len(participants))
	contenders := make([]elo.Contender, len(participants))
	for i, p := range participants {
		stats := fit.Stats[p.Name]
		report.Standings[i] = Standing{
			Participant:   p,
			InitialRating: stats.Initial,
			Rating:        fit.Ratings[p.Name],
			Matches:       stats.Matches,
			MeanOpponent:  stats.MeanOpponent,
		}
		contenders[i] = elo.Contender{Rating: fit.Ratings[p.Name], Score: float64(p.Score), HasScore: true}
	}

	// Group stage
	roundOne := make([]swiss.Pairing, 0, data.RoundOneCount)
	for _, pair := range field.RoundOneSeeds() {
		roundOne = append(roundOne, swiss.Pairing{A: pair[0], B: pair[1], Format: elo.BO1})
	}

	stageOpts := []swiss.Option{
		swiss.WithWorkers(settings.Workers),
		swiss.WithBlockSize(settings.BlockSize),
		swiss.WithLogger(logger),
		swiss.WithProgress(settings.Progress),
	}
	if settings.Seed != 0 {
		stageOpts = append(stageOpts, swiss.WithSeed(settings.Seed))
	}
	stage, err := swiss.NewStage(contenders, roundOne, model, stageOpts...)
	if err != nil {
		return nil, err
	}
	stageResult, err := stage.Run(ctx, settings.StageTrials)
	if err != nil {
		return nil, err
	}
	report.Stage = stageResult
	for i := range report.Standings {
		report.Standings[i].Stage = stageResult.Rates[i]
	}

	// Pick'em
	if settings.Pickem {
		if report.Pickem, err = evaluatePickem(ctx, report, stageResult, settings); err != nil {
			return nil, err
		}
		log.Infow("Pick'em prediction optimised",
			"threshold", settings.PickemThreshold,
			"suggested", report.Pickem.Suggested,
			"rate", report.Pickem.Rate)
	}

	// Bracket
	order, source := bracketOrder(fixedOrder, report.Pickem, stageResult.Rates)
	report.Order = report.Names(order)
	report.OrderSource = source

	strength := make([]float64, len(stageResult.Rates))
	for i, r := range stageResult.Rates {
		strength[i] = r.Qualified
	}

	bracketOpts := []bracket.Option{
		bracket.WithWorkers(settings.Workers),
		bracket.WithBlockSize(settings.BlockSize),
		bracket.WithLogger(logger),
		bracket.WithProgress(settings.BracketProgress),
	}
	if settings.Seed != 0 {
		bracketOpts = append(bracketOpts, bracket.WithSeed(settings.Seed+1))
	}
	sim, err := bracket.NewSimulator(order, strength, bracketOpts...)
	if err != nil {
		return nil, err
	}
	bracketResult, err := sim.Run(ctx, settings.BracketTrials)
	if err != nil {
		return nil, err
	}
	report.Bracket = bracketResult
	for pos, seed := range bracketResult.Order {
		report.Standings[seed].InBracket = true
		report.Standings[seed].Bracket = bracketResult.Rates[pos]
	}

	published, champion := sim.Published()
	report.Published = make([]PublishedMatch, len(published))
	for i, m := range published {
		report.Published[i] = PublishedMatch{
			Match:      m,
			NameA:      report.Name(m.A),
			NameB:      report.Name(m.B),
			WinnerName: report.Name(m.Winner),
		}
	}
	report.Champion = report.Name(champion)
	report.Duration = time.Since(start)

	log.Infow("Forecast finished",
		"champion", report.Champion,
		"order_source", source,
		"duration", report.Duration)

	return report, nil
}

// evaluatePickem builds the greedy suggestion and improves it by local search
func evaluatePickem(ctx context.Context, report *Report, stage *swiss.StageResult, settings Settings) (*PickemReport, error) {
	suggestion := swiss.SuggestPrediction(stage.Rates)
	suggested, err := swiss.Evaluate(suggestion, stage.Outcomes, settings.PickemThreshold)
	if err != nil {
		return nil, err
	}

	best, rate, err := swiss.OptimizePrediction(ctx, suggestion, stage.Outcomes, settings.PickemThreshold, settings.PickemPasses)
	if err != nil {
		return nil, err
	}

	return &PickemReport{
		Sweep:      report.Names(best.Sweep),
		Advance:    report.Names(best.Advance),
		Whitewash:  report.Names(best.Whitewash),
		Threshold:  settings.PickemThreshold,
		Suggested:  suggested,
		Rate:       rate,
		prediction: best,
	}, nil
}

// bracketOrder picks the bracket seeding: an explicit list wins, then the
// pick'em qualifiers, then the rate-based derivation
func bracketOrder(fixed []int, pickem *PickemReport, rates []swiss.StageRates) ([]int, string) {
	switch {
	case len(fixed) > 0:
		return fixed, OrderConfigured
	case pickem != nil:
		return pickem.prediction.Qualifiers(), OrderPickem
	default:
		return swiss.Qualifiers(rates), OrderRates
	}
}
