// Package data provides configuration management, input loading and field
// validation for the swisspredict application. It handles CSV input files,
// rating and simulation settings and export options with validation and
// environment variable support.
package data

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Error types for configuration validation
var (
	ErrInvalidInputConfig      = errors.New("invalid input configuration")
	ErrInvalidRatingConfig     = errors.New("invalid rating configuration")
	ErrInvalidOutcomeConfig    = errors.New("invalid outcome configuration")
	ErrInvalidSimulationConfig = errors.New("invalid simulation configuration")
	ErrInvalidPickemConfig     = errors.New("invalid pick'em configuration")
	ErrInvalidExportConfig     = errors.New("invalid export configuration")
	ErrConfigNotFound          = errors.New("configuration file not found")
	ErrConfigParseError        = errors.New("failed to parse configuration file")
	ErrConfigExists            = errors.New("configuration file already exists")
)

// envPrefix prefixes every environment variable override
const envPrefix = "SWISSPREDICT_"

// Config is the top-level configuration of a forecast run
type Config struct {
	Input      InputConfig      `yaml:"input" json:"input"`
	Rating     RatingConfig     `yaml:"rating" json:"rating"`
	Outcome    OutcomeConfig    `yaml:"outcome" json:"outcome"`
	Simulation SimulationConfig `yaml:"simulation" json:"simulation"`
	Pickem     PickemConfig     `yaml:"pickem" json:"pickem"`
	Export     ExportConfig     `yaml:"export" json:"export"`
}

// InputConfig locates the CSV input files
type InputConfig struct {
	TeamsFile    string `yaml:"teams_file" json:"teams_file"`       // Team,Score rows in seed order (required)
	RoundOneFile string `yaml:"round_one_file" json:"round_one_file"` // Team1,Team2 opening pairings (required)
	RatingsFile  string `yaml:"ratings_file" json:"ratings_file"`   // Team,Rating,Maps external ratings (optional)
	MatchesFile  string `yaml:"matches_file" json:"matches_file"`   // Historical match log (optional)
	Delimiter    string `yaml:"delimiter" json:"delimiter"`         // CSV field separator (default comma)
	DateLayout   string `yaml:"date_layout" json:"date_layout"`     // Go time layout of the match log dates
}

// RatingConfig holds settings for the rating fit
type RatingConfig struct {
	BaseRating float64 `yaml:"base_rating" json:"base_rating"` // Starting rating (default 1000)
	KFactor    float64 `yaml:"k_factor" json:"k_factor"`       // Base K-factor (default 40)
	DecayDays  float64 `yaml:"decay_days" json:"decay_days"`   // Recency time constant (default 50)
}

// OutcomeConfig weights the two probability sources of a match prediction
type OutcomeConfig struct {
	RatingWeight float64 `yaml:"rating_weight" json:"rating_weight"` // Weight of the rating probability (default 0.8)
	ScoreWeight  float64 `yaml:"score_weight" json:"score_weight"`   // Weight of the score probability (default 0.2)
}

// SimulationConfig controls the Monte Carlo runs
type SimulationConfig struct {
	StageTrials   int      `yaml:"stage_trials" json:"stage_trials"`     // Group stage trials (default 100000)
	BracketTrials int      `yaml:"bracket_trials" json:"bracket_trials"` // Bracket trials (default 100000)
	Workers       int      `yaml:"workers" json:"workers"`               // Concurrent workers, 0 means one per CPU
	Seed          uint64   `yaml:"seed" json:"seed"`                     // Base random seed, 0 means random
	BlockSize     int      `yaml:"block_size" json:"block_size"`         // Trials per random stream (default 1024)
	Qualifiers    []string `yaml:"qualifiers" json:"qualifiers"`         // Fixed bracket order, overrides the derived one
}

// PickemConfig controls pick'em evaluation
type PickemConfig struct {
	Enabled   bool `yaml:"enabled" json:"enabled"`       // Evaluate and optimise a pick'em prediction
	Threshold int  `yaml:"threshold" json:"threshold"`   // Correct picks needed for success (default 5)
	MaxPasses int  `yaml:"max_passes" json:"max_passes"` // Local search passes (default 20)
}

// ExportConfig holds output format settings
type ExportConfig struct {
	Format        string `yaml:"format" json:"format"`                 // Output format (csv/json/text)
	Path          string `yaml:"path" json:"path"`                     // Output file, empty means stdout
	SortBy        string `yaml:"sort_by" json:"sort_by"`               // Sort criterion (seed/rating/qualified/champion)
	IncludeTrials bool   `yaml:"include_trials" json:"include_trials"` // Include raw per-trial sets in JSON
	RoundDecimals int    `yaml:"round_decimals" json:"round_decimals"` // Decimal places for probabilities
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Input:      DefaultInputConfig(),
		Rating:     DefaultRatingConfig(),
		Outcome:    DefaultOutcomeConfig(),
		Simulation: DefaultSimulationConfig(),
		Pickem:     DefaultPickemConfig(),
		Export:     DefaultExportConfig(),
	}
}

// DefaultInputConfig returns input file defaults
func DefaultInputConfig() InputConfig {
	return InputConfig{
		TeamsFile:    "data/team_scores.csv",
		RoundOneFile: "data/round1_matches.csv",
		RatingsFile:  "data/ratings.csv",
		MatchesFile:  "data/matches.csv",
		Delimiter:    ",",
		DateLayout:   "2006-01-02",
	}
}

// DefaultRatingConfig returns rating fit defaults
func DefaultRatingConfig() RatingConfig {
	return RatingConfig{
		BaseRating: 1000,
		KFactor:    40,
		DecayDays:  50,
	}
}

// DefaultOutcomeConfig returns outcome weighting defaults
func DefaultOutcomeConfig() OutcomeConfig {
	return OutcomeConfig{
		RatingWeight: 0.8,
		ScoreWeight:  0.2,
	}
}

// DefaultSimulationConfig returns Monte Carlo defaults
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		StageTrials:   100000,
		BracketTrials: 100000,
		BlockSize:     1024,
	}
}

// DefaultPickemConfig returns pick'em defaults
func DefaultPickemConfig() PickemConfig {
	return PickemConfig{
		Enabled:   true,
		Threshold: 5,
		MaxPasses: 20,
	}
}

// DefaultExportConfig returns export format defaults
func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		Format:        "text",
		SortBy:        "qualified",
		RoundDecimals: 4,
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := c.Input.Validate(); err != nil {
		return fmt.Errorf("input config validation failed: %w", err)
	}

	if err := c.Rating.Validate(); err != nil {
		return fmt.Errorf("rating config validation failed: %w", err)
	}

	if err := c.Outcome.Validate(); err != nil {
		return fmt.Errorf("outcome config validation failed: %w", err)
	}

	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation config validation failed: %w", err)
	}

	if err := c.Pickem.Validate(); err != nil {
		return fmt.Errorf("pick'em config validation failed: %w", err)
	}

	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export config validation failed: %w", err)
	}

	return nil
}

// Validate checks that input configuration is valid
func (i *InputConfig) Validate() error {
	if strings.TrimSpace(i.TeamsFile) == "" {
		return fmt.Errorf("%w: teams_file is required", ErrInvalidInputConfig)
	}

	if strings.TrimSpace(i.RoundOneFile) == "" {
		return fmt.Errorf("%w: round_one_file is required", ErrInvalidInputConfig)
	}

	if i.Delimiter == "" {
		return fmt.Errorf("%w: delimiter cannot be empty", ErrInvalidInputConfig)
	}

	// Common CSV delimiters
	validDelimiters := map[string]bool{
		",": true, ";": true, "\t": true, "|": true,
	}

	if !validDelimiters[i.Delimiter] {
		return fmt.Errorf("%w: delimiter '%s' is not a common CSV separator", ErrInvalidInputConfig, i.Delimiter)
	}

	if strings.TrimSpace(i.DateLayout) == "" {
		return fmt.Errorf("%w: date_layout cannot be empty", ErrInvalidInputConfig)
	}

	return nil
}

// Validate checks that rating configuration is valid
func (r *RatingConfig) Validate() error {
	if math.IsNaN(r.BaseRating) || math.IsInf(r.BaseRating, 0) {
		return fmt.Errorf("%w: base_rating must be finite", ErrInvalidRatingConfig)
	}

	if r.KFactor <= 0 {
		return fmt.Errorf("%w: k_factor must be positive, got %.2f", ErrInvalidRatingConfig, r.KFactor)
	}

	if r.KFactor > 200 {
		return fmt.Errorf("%w: k_factor %.2f is unusually high (typical range: 10-60)", ErrInvalidRatingConfig, r.KFactor)
	}

	if r.DecayDays <= 0 {
		return fmt.Errorf("%w: decay_days must be positive, got %.2f", ErrInvalidRatingConfig, r.DecayDays)
	}

	return nil
}

// Validate checks that outcome configuration is valid
func (o *OutcomeConfig) Validate() error {
	if o.RatingWeight < 0 || math.IsNaN(o.RatingWeight) {
		return fmt.Errorf("%w: rating_weight must be non-negative, got %v", ErrInvalidOutcomeConfig, o.RatingWeight)
	}

	if o.ScoreWeight < 0 || math.IsNaN(o.ScoreWeight) {
		return fmt.Errorf("%w: score_weight must be non-negative, got %v", ErrInvalidOutcomeConfig, o.ScoreWeight)
	}

	return nil
}

// Validate checks that simulation configuration is valid
func (s *SimulationConfig) Validate() error {
	if s.StageTrials <= 0 {
		return fmt.Errorf("%w: stage_trials must be positive, got %d", ErrInvalidSimulationConfig, s.StageTrials)
	}

	if s.BracketTrials <= 0 {
		return fmt.Errorf("%w: bracket_trials must be positive, got %d", ErrInvalidSimulationConfig, s.BracketTrials)
	}

	if s.Workers < 0 {
		return fmt.Errorf("%w: workers cannot be negative, got %d", ErrInvalidSimulationConfig, s.Workers)
	}

	if s.BlockSize <= 0 {
		return fmt.Errorf("%w: block_size must be positive, got %d", ErrInvalidSimulationConfig, s.BlockSize)
	}

	if n := len(s.Qualifiers); n != 0 && n != 8 {
		return fmt.Errorf("%w: qualifiers must list exactly 8 teams, got %d", ErrInvalidSimulationConfig, n)
	}

	return nil
}

// Validate checks that pick'em configuration is valid
func (p *PickemConfig) Validate() error {
	if p.Threshold < 1 || p.Threshold > 10 {
		return fmt.Errorf("%w: threshold %d must be between 1 and 10", ErrInvalidPickemConfig, p.Threshold)
	}

	if p.MaxPasses < 0 {
		return fmt.Errorf("%w: max_passes cannot be negative, got %d", ErrInvalidPickemConfig, p.MaxPasses)
	}

	return nil
}

// Validate checks that export configuration is valid
func (e *ExportConfig) Validate() error {
	validFormats := map[string]bool{
		"csv":  true,
		"json": true,
		"text": true,
	}

	if !validFormats[e.Format] {
		return fmt.Errorf("%w: format '%s' must be one of: csv, json, text", ErrInvalidExportConfig, e.Format)
	}

	validSortBy := map[string]bool{
		"seed":      true,
		"rating":    true,
		"qualified": true,
		"champion":  true,
	}

	if !validSortBy[e.SortBy] {
		return fmt.Errorf("%w: sort_by '%s' must be one of: seed, rating, qualified, champion", ErrInvalidExportConfig, e.SortBy)
	}

	if e.RoundDecimals < 0 || e.RoundDecimals > 10 {
		return fmt.Errorf("%w: round_decimals %d must be between 0 and 10", ErrInvalidExportConfig, e.RoundDecimals)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file. Keys missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, filename)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParseError, filename, err)
	}

	// Apply defaults for values explicitly left empty
	config = mergeWithDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filename, err)
	}

	return &config, nil
}

// LoadWithEnvironment loads configuration from file and applies environment variable overrides
func LoadWithEnvironment(filename string) (*Config, error) {
	config := DefaultConfig()

	if filename != "" {
		fileConfig, err := LoadFromFile(filename)
		if err != nil && !errors.Is(err, ErrConfigNotFound) {
			return nil, err
		}
		if err == nil {
			config = *fileConfig
		}
	}

	applyEnvironmentOverrides(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid final configuration: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filename, err)
	}

	return nil
}

// CreateDefaultConfig writes the default configuration to filePath, creating
// its directory. An existing file is only replaced when overwrite is set.
func CreateDefaultConfig(filePath string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(filePath); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, filePath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	config := DefaultConfig()
	if err := config.SaveToFile(filePath); err != nil {
		return fmt.Errorf("failed to create default config: %w", err)
	}
	return nil
}

// mergeWithDefaults fills in values that must never be empty
func mergeWithDefaults(config Config) Config {
	defaults := DefaultConfig()

	if config.Input.Delimiter == "" {
		config.Input.Delimiter = defaults.Input.Delimiter
	}
	if config.Input.DateLayout == "" {
		config.Input.DateLayout = defaults.Input.DateLayout
	}

	if config.Rating.KFactor == 0 {
		config.Rating.KFactor = defaults.Rating.KFactor
	}
	if config.Rating.DecayDays == 0 {
		config.Rating.DecayDays = defaults.Rating.DecayDays
	}

	if config.Simulation.StageTrials == 0 {
		config.Simulation.StageTrials = defaults.Simulation.StageTrials
	}
	if config.Simulation.BracketTrials == 0 {
		config.Simulation.BracketTrials = defaults.Simulation.BracketTrials
	}
	if config.Simulation.BlockSize == 0 {
		config.Simulation.BlockSize = defaults.Simulation.BlockSize
	}

	if config.Pickem.Threshold == 0 {
		config.Pickem.Threshold = defaults.Pickem.Threshold
	}

	if config.Export.Format == "" {
		config.Export.Format = defaults.Export.Format
	}
	if config.Export.SortBy == "" {
		config.Export.SortBy = defaults.Export.SortBy
	}

	return config
}

// applyEnvironmentOverrides applies environment variable overrides
func applyEnvironmentOverrides(config *Config) {
	// Input configuration overrides
	if val := os.Getenv(envPrefix + "INPUT_TEAMS_FILE"); val != "" {
		config.Input.TeamsFile = val
	}
	if val := os.Getenv(envPrefix + "INPUT_ROUND_ONE_FILE"); val != "" {
		config.Input.RoundOneFile = val
	}
	if val := os.Getenv(envPrefix + "INPUT_RATINGS_FILE"); val != "" {
		config.Input.RatingsFile = val
	}
	if val := os.Getenv(envPrefix + "INPUT_MATCHES_FILE"); val != "" {
		config.Input.MatchesFile = val
	}
	if val := os.Getenv(envPrefix + "INPUT_DELIMITER"); val != "" {
		config.Input.Delimiter = val
	}

	// Rating configuration overrides
	if val := os.Getenv(envPrefix + "RATING_BASE_RATING"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			config.Rating.BaseRating = parsed
		}
	}
	if val := os.Getenv(envPrefix + "RATING_K_FACTOR"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			config.Rating.KFactor = parsed
		}
	}
	if val := os.Getenv(envPrefix + "RATING_DECAY_DAYS"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			config.Rating.DecayDays = parsed
		}
	}

	// Outcome configuration overrides
	if val := os.Getenv(envPrefix + "OUTCOME_RATING_WEIGHT"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			config.Outcome.RatingWeight = parsed
		}
	}
	if val := os.Getenv(envPrefix + "OUTCOME_SCORE_WEIGHT"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			config.Outcome.ScoreWeight = parsed
		}
	}

	// Simulation configuration overrides
	if val := os.Getenv(envPrefix + "SIMULATION_STAGE_TRIALS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.Simulation.StageTrials = parsed
		}
	}
	if val := os.Getenv(envPrefix + "SIMULATION_BRACKET_TRIALS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.Simulation.BracketTrials = parsed
		}
	}
	if val := os.Getenv(envPrefix + "SIMULATION_WORKERS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.Simulation.Workers = parsed
		}
	}
	if val := os.Getenv(envPrefix + "SIMULATION_SEED"); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 64); err == nil {
			config.Simulation.Seed = parsed
		}
	}

	// Pick'em configuration overrides
	if val := os.Getenv(envPrefix + "PICKEM_ENABLED"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.Pickem.Enabled = parsed
		}
	}
	if val := os.Getenv(envPrefix + "PICKEM_THRESHOLD"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.Pickem.Threshold = parsed
		}
	}

	// Export configuration overrides
	if val := os.Getenv(envPrefix + "EXPORT_FORMAT"); val != "" {
		config.Export.Format = val
	}
	if val := os.Getenv(envPrefix + "EXPORT_PATH"); val != "" {
		config.Export.Path = val
	}
	if val := os.Getenv(envPrefix + "EXPORT_SORT_BY"); val != "" {
		config.Export.SortBy = val
	}
	if val := os.Getenv(envPrefix + "EXPORT_INCLUDE_TRIALS"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.Export.IncludeTrials = parsed
		}
	}
}
