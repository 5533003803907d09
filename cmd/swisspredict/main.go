// Package main provides the command-line interface for the swisspredict tournament forecaster.
// It implements subcommands for running a forecast, validating input files, fitting ratings,
// browsing a forecast in the terminal viewer and inspecting the forecast history.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pashagolub/swisspredict/pkg/bracket"
	"github.com/pashagolub/swisspredict/pkg/data"
	"github.com/pashagolub/swisspredict/pkg/elo"
	"github.com/pashagolub/swisspredict/pkg/forecast"
	"github.com/pashagolub/swisspredict/pkg/journal"
	"github.com/pashagolub/swisspredict/pkg/swiss"
	"github.com/pashagolub/swisspredict/pkg/tui"
)

// Version information - set by build process
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// stdout receives command output
var stdout io.Writer = os.Stdout

// GlobalOptions defines global CLI flags
type GlobalOptions struct {
	Config  string `long:"config" short:"c" description:"Configuration file path" default:"swisspredict.yaml"`
	Verbose bool   `long:"verbose" short:"v" description:"Enable verbose logging"`
	Version bool   `long:"version" description:"Show version information"`
}

// InputOptions override the input file locations of the configuration
type InputOptions struct {
	Teams    string `long:"teams" description:"Team,Score file in seed order"`
	RoundOne string `long:"round-one" description:"Team1,Team2 opening pairings file"`
	Ratings  string `long:"ratings" description:"Team,Rating,Maps external ratings file"`
	Matches  string `long:"matches" description:"Historical match log"`
}

// SimulationOptions override the simulation settings of the configuration
type SimulationOptions struct {
	StageTrials   int      `long:"stage-trials" description:"Simulated group stages"`
	BracketTrials int      `long:"bracket-trials" description:"Simulated playoff brackets"`
	Workers       int      `long:"workers" short:"w" description:"Concurrent workers (0 = one per CPU)"`
	Seed          uint64   `long:"seed" description:"Random seed for a reproducible forecast"`
	Qualifiers    []string `long:"qualifier" description:"Fixed bracket order, repeat eight times"`
	NoPickem      bool     `long:"no-pickem" description:"Skip pick'em evaluation"`
}

// RunCommand handles 'swisspredict run' subcommand
type RunCommand struct {
	Input      InputOptions      `group:"Input Files"`
	Simulation SimulationOptions `group:"Simulation"`

	Format        string `long:"format" short:"f" description:"Export format (csv/json/text)"`
	Output        string `long:"output" short:"o" description:"Output file path (default stdout)"`
	SortBy        string `long:"sort-by" description:"Standing order (seed/rating/qualified/champion)"`
	IncludeTrials bool   `long:"include-trials" description:"Include every simulated stage in JSON output"`
	History       string `long:"history" description:"Append the run to this forecast history file"`

	Global *GlobalOptions `no-flag:"true"`
}

// ValidateCommand handles 'swisspredict validate' subcommand
type ValidateCommand struct {
	Input InputOptions `group:"Input Files"`

	Global *GlobalOptions `no-flag:"true"`
}

// RatingsCommand handles 'swisspredict ratings' subcommand
type RatingsCommand struct {
	Input InputOptions `group:"Input Files"`

	Format string `long:"format" description:"Output format (table/json)" default:"table"`

	Global *GlobalOptions `no-flag:"true"`
}

// ViewCommand handles 'swisspredict view' subcommand
type ViewCommand struct {
	Input      InputOptions      `group:"Input Files"`
	Simulation SimulationOptions `group:"Simulation"`

	Output  string `long:"output" short:"o" description:"File written by the Export key"`
	LogFile string `long:"log-file" description:"Write logs to this file while the viewer runs"`
	History string `long:"history" description:"Append the run to this forecast history file"`

	Global *GlobalOptions `no-flag:"true"`
}

// HistoryCommand handles 'swisspredict history' subcommand
type HistoryCommand struct {
	File     string `long:"file" description:"Forecast history file" required:"true"`
	Verify   bool   `long:"verify" description:"Only verify the hash chain"`
	Champion string `long:"champion" description:"Show only forecasts with this predicted champion"`
	Event    string `long:"event" description:"Show only this event type (forecast_completed/forecast_exported/forecast_failed)"`
	Limit    int    `long:"limit" description:"Maximum entries to show (0 = all)"`
	Format   string `long:"format" description:"Output format (table/json)" default:"table"`

	Global *GlobalOptions `no-flag:"true"`
}

// InitCommand handles 'swisspredict init' subcommand
type InitCommand struct {
	Force bool `long:"force" description:"Overwrite an existing configuration file"`

	Global *GlobalOptions `no-flag:"true"`
}

// ErrorCode represents CLI exit codes
type ErrorCode int

const (
	ExitSuccess ErrorCode = iota
	ExitFileError
	ExitConfigError
	ExitValidationError
	ExitSimulationError
	ExitExportError
)

// CLIError represents a CLI error with exit code
type CLIError struct {
	Code        ErrorCode
	Message     string
	Details     map[string]any
	Suggestions []string
}

func (e *CLIError) Error() string {
	return e.Message
}

// formatErrorJSON formats error as JSON for structured output
func formatErrorJSON(err *CLIError) string {
	body := map[string]any{
		"code":    err.Code,
		"message": err.Message,
	}
	if err.Details != nil {
		body["details"] = err.Details
	}
	if err.Suggestions != nil {
		body["suggestions"] = err.Suggestions
	}

	jsonBytes, _ := json.MarshalIndent(map[string]any{"error": body}, "", "  ")
	return string(jsonBytes)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		var cliErr *CLIError
		if errors.As(err, &cliErr) {
			fmt.Fprintln(os.Stderr, formatErrorJSON(cliErr))
			os.Exit(int(cliErr.Code))
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := &GlobalOptions{}
	parser := flags.NewParser(global, flags.Default)
	parser.Usage = "[OPTIONS] COMMAND [COMMAND-OPTIONS]"
	parser.SubcommandsOptional = true

	runCmd := &RunCommand{Global: global}
	validateCmd := &ValidateCommand{Global: global}
	ratingsCmd := &RatingsCommand{Global: global}
	viewCmd := &ViewCommand{Global: global}
	historyCmd := &HistoryCommand{Global: global}
	initCmd := &InitCommand{Global: global}

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"run", "Run a forecast and export it", "Fits ratings, simulates the group stage and the playoff bracket and exports the report.", runCmd},
		{"validate", "Validate input files", "Loads every input file and checks the participant field without simulating.", validateCmd},
		{"ratings", "Fit and print ratings", "Replays the match log and prints the fitted rating of every participant.", ratingsCmd},
		{"view", "Run a forecast in the terminal viewer", "Simulates with a live progress display and opens the interactive viewer.", viewCmd},
		{"init", "Write a default configuration file", "Writes the default configuration to the --config path so it can be edited.", initCmd},
		{"history", "Show the forecast history", "Verifies a forecast history file and lists its entries with a summary of predicted champions.", historyCmd},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			return err
		}
	}

	_, err := parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			switch flagsErr.Type {
			case flags.ErrHelp:
				return nil
			default:
				return &CLIError{
					Code:    ExitConfigError,
					Message: fmt.Sprintf("Invalid arguments: %v", err),
				}
			}
		}
		return err
	}

	if parser.Active == nil {
		if global.Version {
			return showVersion()
		}
		parser.WriteHelp(os.Stderr)
		return &CLIError{
			Code:    ExitConfigError,
			Message: "No command specified",
			Suggestions: []string{
				"Use 'swisspredict run' to produce a forecast",
				"Use 'swisspredict --help' to see all available commands",
			},
		}
	}
	return nil
}

// Execute implements the Command interface for RunCommand
func (c *RunCommand) Execute(args []string) error {
	if c.Global.Version {
		return showVersion()
	}

	config, err := loadConfiguration(c.Global.Config)
	if err != nil {
		return err
	}
	c.Input.apply(&config.Input)
	c.Simulation.apply(config)
	if c.Format != "" {
		config.Export.Format = c.Format
	}
	if c.Output != "" {
		config.Export.Path = c.Output
	}
	if c.SortBy != "" {
		config.Export.SortBy = c.SortBy
	}
	if c.IncludeTrials {
		config.Export.IncludeTrials = true
	}
	if err := config.Validate(); err != nil {
		return configError(err)
	}

	logger, err := newLogger(c.Global.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	in, err := loadInput(config.Input)
	if err != nil {
		return err
	}

	history, err := openHistory(c.History)
	if err != nil {
		return err
	}
	defer closeHistory(history, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := forecast.Run(ctx, in, forecast.SettingsFromConfig(*config), logger)
	if err != nil {
		recordFailure(history, err, logger)
		return simulationError(err)
	}
	recordForecast(history, report, logger)

	if err := exportReport(report, config.Export); err != nil {
		return err
	}
	if history != nil && config.Export.Path != "" {
		if err := history.RecordExport(report, config.Export.Path, journal.ExportFormat(config.Export.Format)); err != nil {
			logger.Warn("failed to record export", zap.Error(err))
		}
	}
	return nil
}

// Execute implements the Command interface for ValidateCommand
func (c *ValidateCommand) Execute(args []string) error {
	if c.Global.Version {
		return showVersion()
	}

	config, err := loadConfiguration(c.Global.Config)
	if err != nil {
		return err
	}
	c.Input.apply(&config.Input)

	fmt.Fprintf(stdout, "Validation Results\n")
	fmt.Fprintf(stdout, "==================\n\n")

	in, err := loadInput(config.Input)
	if err != nil {
		fmt.Fprintf(stdout, "INVALID: %v\n", err)
		return err
	}

	field, err := data.NewField(in.Teams, in.RoundOne)
	if err != nil {
		fmt.Fprintf(stdout, "INVALID: %v\n", err)
		return &CLIError{
			Code:    ExitValidationError,
			Message: fmt.Sprintf("Field validation failed: %v", err),
			Details: map[string]any{
				"teams_file":     config.Input.TeamsFile,
				"round_one_file": config.Input.RoundOneFile,
			},
			Suggestions: []string{
				fmt.Sprintf("The teams file needs exactly %d rows with a score", data.TeamCount),
				fmt.Sprintf("The opening pairings file needs exactly %d rows covering every team once", data.RoundOneCount),
			},
		}
	}

	fmt.Fprintf(stdout, "VALID participant field\n\n")
	fmt.Fprintf(stdout, "Participants:\n")
	for _, p := range field.Participants() {
		fmt.Fprintf(stdout, "  [%2d] %-20s score %d\n", p.Seed+1, p.Name, p.Score)
	}
	fmt.Fprintf(stdout, "\nOpening pairings:\n")
	for _, pair := range field.RoundOneSeeds() {
		fmt.Fprintf(stdout, "  %s vs %s\n", field.Name(pair[0]), field.Name(pair[1]))
	}

	known, unknown := countMatches(in.Matches, field)
	fmt.Fprintf(stdout, "\nExternal ratings: %d\n", len(in.External))
	fmt.Fprintf(stdout, "Historical matches: %d usable, %d with unknown teams\n", known, unknown)
	return nil
}

// Execute implements the Command interface for RatingsCommand
func (c *RatingsCommand) Execute(args []string) error {
	if c.Global.Version {
		return showVersion()
	}
	if c.Format != "table" && c.Format != "json" {
		return &CLIError{
			Code:    ExitConfigError,
			Message: fmt.Sprintf("Unknown ratings format: %s", c.Format),
			Suggestions: []string{
				"Use --format table or --format json",
			},
		}
	}

	config, err := loadConfiguration(c.Global.Config)
	if err != nil {
		return err
	}
	c.Input.apply(&config.Input)

	in, err := loadInput(config.Input)
	if err != nil {
		return err
	}

	rows, err := fitRatings(in, config.Rating)
	if err != nil {
		return &CLIError{
			Code:    ExitValidationError,
			Message: fmt.Sprintf("Rating fit failed: %v", err),
		}
	}

	if c.Format == "json" {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rows)
	}

	fmt.Fprintf(stdout, "%-4s %-20s %9s %9s %8s %8s %9s\n",
		"#", "TEAM", "INITIAL", "RATING", "CHANGE", "MATCHES", "OPPONENT")
	fmt.Fprintln(stdout, strings.Repeat("-", 73))
	for i, r := range rows {
		fmt.Fprintf(stdout, "%-4d %-20s %9.1f %9.1f %+8.1f %8d %9.1f\n",
			i+1, r.Name, r.Initial, r.Rating, r.Rating-r.Initial, r.Matches, r.MeanOpponent)
	}
	return nil
}

// Execute implements the Command interface for ViewCommand
func (c *ViewCommand) Execute(args []string) error {
	if c.Global.Version {
		return showVersion()
	}

	config, err := loadConfiguration(c.Global.Config)
	if err != nil {
		return err
	}
	c.Input.apply(&config.Input)
	c.Simulation.apply(config)
	if c.Output != "" {
		config.Export.Path = c.Output
	}
	if err := config.Validate(); err != nil {
		return configError(err)
	}

	// the terminal belongs to the viewer, so logs only go to a file
	logger := zap.NewNop()
	if c.LogFile != "" {
		if logger, err = newFileLogger(c.LogFile, c.Global.Verbose); err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	in, err := loadInput(config.Input)
	if err != nil {
		return err
	}

	app, err := tui.NewApp(config.Export, logger)
	if err != nil {
		return configError(err)
	}

	history, err := openHistory(c.History)
	if err != nil {
		return err
	}
	defer closeHistory(history, logger)

	settings := forecast.SettingsFromConfig(*config)
	err = app.RunWithSimulation(func(ctx context.Context, stage swiss.ProgressFunc, playoffs bracket.ProgressFunc) (*forecast.Report, error) {
		settings.Progress = stage
		settings.BracketProgress = playoffs
		report, err := forecast.Run(ctx, in, settings, logger)
		if err != nil {
			recordFailure(history, err, logger)
			return nil, err
		}
		recordForecast(history, report, logger)
		return report, nil
	})
	if err != nil {
		return simulationError(err)
	}
	return nil
}

// Execute implements the Command interface for InitCommand
func (c *InitCommand) Execute(args []string) error {
	if c.Global.Version {
		return showVersion()
	}
	if err := data.CreateDefaultConfig(c.Global.Config, c.Force); err != nil {
		code := ExitFileError
		if errors.Is(err, data.ErrConfigExists) {
			code = ExitConfigError
		}
		return &CLIError{
			Code:    code,
			Message: fmt.Sprintf("Cannot write configuration: %v", err),
			Details: map[string]any{"config_file": c.Global.Config},
			Suggestions: []string{
				"Use --force to overwrite an existing file",
			},
		}
	}
	fmt.Fprintf(stdout, "Wrote default configuration to: %s\n", c.Global.Config)
	return nil
}

// Execute implements the Command interface for HistoryCommand
func (c *HistoryCommand) Execute(args []string) error {
	if c.Global.Version {
		return showVersion()
	}
	if c.Format != "table" && c.Format != "json" {
		return &CLIError{
			Code:    ExitConfigError,
			Message: fmt.Sprintf("Unknown history format: %s", c.Format),
			Suggestions: []string{
				"Use --format table or --format json",
			},
		}
	}
	if _, err := os.Stat(c.File); err != nil {
		return &CLIError{
			Code:    ExitFileError,
			Message: fmt.Sprintf("Cannot read forecast history: %v", err),
			Details: map[string]any{"history_file": c.File},
		}
	}

	history, err := journal.OpenHistory(c.File)
	if err != nil {
		return historyError(c.File, err)
	}
	defer func() { _ = history.Close() }()

	if c.Verify {
		fmt.Fprintf(stdout, "Forecast history intact: %d entries\n", history.Len())
		return nil
	}

	options := journal.QueryOptions{Champion: c.Champion, Limit: c.Limit}
	if c.Event != "" {
		options.EventTypes = []journal.EventType{journal.EventType(c.Event)}
	}
	result, err := history.Query(options)
	if err != nil {
		return historyError(c.File, err)
	}
	stats, err := history.GetStatistics()
	if err != nil {
		return historyError(c.File, err)
	}

	if c.Format == "json" {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]any{
			"query":      result,
			"statistics": stats,
		})
	}

	fmt.Fprintf(stdout, "%-4s %-20s %-19s %-36s %s\n", "#", "EVENT", "TIME", "REPORT", "DETAILS")
	fmt.Fprintln(stdout, strings.Repeat("-", 100))
	for _, entry := range result.Entries {
		fmt.Fprintf(stdout, "%-4d %-20s %-19s %-36s %s\n",
			entry.Sequence, entry.EventType, entry.Timestamp.Local().Format(time.DateTime), entry.ReportID, entryDetails(entry))
	}
	if result.HasMore {
		fmt.Fprintf(stdout, "... %d more\n", result.TotalCount-len(result.Entries))
	}

	fmt.Fprintf(stdout, "\nEntries: %d\n", stats.TotalEntries)
	champions := make([]string, 0, len(stats.Champions))
	for name := range stats.Champions {
		champions = append(champions, name)
	}
	sort.Slice(champions, func(i, j int) bool {
		if stats.Champions[champions[i]] != stats.Champions[champions[j]] {
			return stats.Champions[champions[i]] > stats.Champions[champions[j]]
		}
		return champions[i] < champions[j]
	})
	for _, name := range champions {
		fmt.Fprintf(stdout, "Predicted champion %s: %d\n", name, stats.Champions[name])
	}
	return nil
}

// entryDetails summarises the data of a history entry on one line
func entryDetails(entry journal.HistoryEntry) string {
	switch entry.EventType {
	case journal.EventForecastCompleted:
		return fmt.Sprintf("champion %v, order %v, seed %v", entry.Data["champion"], entry.Data["order_source"], entry.Data["stage_seed"])
	case journal.EventForecastExported:
		return fmt.Sprintf("%v to %v", entry.Data["format"], entry.Data["path"])
	case journal.EventForecastFailed:
		return fmt.Sprintf("%v", entry.Data["error"])
	}
	return ""
}

// apply copies the non-empty input overrides into the configuration
func (o InputOptions) apply(config *data.InputConfig) {
	if o.Teams != "" {
		config.TeamsFile = o.Teams
	}
	if o.RoundOne != "" {
		config.RoundOneFile = o.RoundOne
	}
	if o.Ratings != "" {
		config.RatingsFile = o.Ratings
	}
	if o.Matches != "" {
		config.MatchesFile = o.Matches
	}
}

// apply copies the non-zero simulation overrides into the configuration
func (o SimulationOptions) apply(config *data.Config) {
	if o.StageTrials != 0 {
		config.Simulation.StageTrials = o.StageTrials
	}
	if o.BracketTrials != 0 {
		config.Simulation.BracketTrials = o.BracketTrials
	}
	if o.Workers != 0 {
		config.Simulation.Workers = o.Workers
	}
	if o.Seed != 0 {
		config.Simulation.Seed = o.Seed
	}
	if len(o.Qualifiers) > 0 {
		config.Simulation.Qualifiers = o.Qualifiers
	}
	if o.NoPickem {
		config.Pickem.Enabled = false
	}
}

// Helper functions

func showVersion() error {
	fmt.Fprintf(stdout, "swisspredict version %s\n", Version)
	fmt.Fprintf(stdout, "Build date: %s\n", BuildDate)
	fmt.Fprintf(stdout, "Git commit: %s\n", GitCommit)
	return nil
}

// loadConfiguration reads the configuration file; a missing file means defaults
func loadConfiguration(configPath string) (*data.Config, error) {
	config, err := data.LoadWithEnvironment(configPath)
	if err != nil {
		return nil, configError(err)
	}
	return config, nil
}

func configError(err error) *CLIError {
	return &CLIError{
		Code:    ExitConfigError,
		Message: fmt.Sprintf("Failed to load configuration: %v", err),
		Suggestions: []string{
			"Check configuration file syntax",
			"Use --config flag to specify different config file",
			"Check SWISSPREDICT_* environment variables",
		},
	}
}

func simulationError(err error) *CLIError {
	code := ExitSimulationError
	if errors.Is(err, data.ErrInvalidField) || errors.Is(err, forecast.ErrInvalidSettings) {
		code = ExitValidationError
	}
	return &CLIError{
		Code:    code,
		Message: fmt.Sprintf("Forecast failed: %v", err),
	}
}

func historyError(path string, err error) *CLIError {
	return &CLIError{
		Code:    ExitFileError,
		Message: fmt.Sprintf("Forecast history unusable: %v", err),
		Details: map[string]any{"history_file": path},
		Suggestions: []string{
			"Use a new --history file if this one was edited by hand",
		},
	}
}

// openHistory opens the forecast history when a path is given
func openHistory(path string) (*journal.History, error) {
	if path == "" {
		return nil, nil
	}
	history, err := journal.OpenHistory(path)
	if err != nil {
		return nil, historyError(path, err)
	}
	return history, nil
}

func closeHistory(history *journal.History, logger *zap.Logger) {
	if history == nil {
		return
	}
	if err := history.Close(); err != nil {
		logger.Warn("failed to close forecast history", zap.Error(err))
	}
}

// recordForecast and recordFailure only log history errors, the forecast itself stands
func recordForecast(history *journal.History, report *forecast.Report, logger *zap.Logger) {
	if history == nil {
		return
	}
	if err := history.RecordForecast(report); err != nil {
		logger.Warn("failed to record forecast", zap.Error(err))
	}
}

func recordFailure(history *journal.History, cause error, logger *zap.Logger) {
	if history == nil {
		return
	}
	if err := history.RecordFailure(cause); err != nil {
		logger.Warn("failed to record forecast failure", zap.Error(err))
	}
}

// loadInput reads every configured input file
func loadInput(config data.InputConfig) (*data.Input, error) {
	in, err := data.NewLoader(config).LoadInput()
	if err != nil {
		return nil, &CLIError{
			Code:    ExitFileError,
			Message: fmt.Sprintf("Failed to load input: %v", err),
			Details: map[string]any{
				"teams_file":     config.TeamsFile,
				"round_one_file": config.RoundOneFile,
				"ratings_file":   config.RatingsFile,
				"matches_file":   config.MatchesFile,
			},
			Suggestions: []string{
				"Check file paths, use --teams and --round-one to override them",
				"Validate the input with 'swisspredict validate'",
			},
		}
	}
	return in, nil
}

// exportReport writes the report to the configured path or to stdout
func exportReport(report *forecast.Report, config data.ExportConfig) error {
	exporter := journal.NewExporter()
	options := journal.OptionsFromConfig(config)

	var err error
	if config.Path == "" {
		err = exporter.Export(report, stdout, options)
	} else {
		err = exporter.ExportToFile(report, config.Path, options)
	}
	if err != nil {
		return &CLIError{
			Code:    ExitExportError,
			Message: fmt.Sprintf("Export failed: %v", err),
			Details: map[string]any{
				"output_file": config.Path,
				"format":      config.Format,
			},
			Suggestions: []string{
				"Check output directory permissions",
				"Try different output format",
			},
		}
	}
	if config.Path != "" {
		fmt.Fprintf(stdout, "Exported forecast to: %s\n", config.Path)
	}
	return nil
}

// ratingRow is one line of the ratings command output
type ratingRow struct {
	Name         string  `json:"name"`
	Seed         int     `json:"seed"`
	Initial      float64 `json:"initial_rating"`
	Rating       float64 `json:"rating"`
	Matches      int     `json:"matches"`
	MeanOpponent float64 `json:"mean_opponent"`
}

// fitRatings fits the ratings of the field, strongest first
func fitRatings(in *data.Input, config data.RatingConfig) ([]ratingRow, error) {
	field, err := data.NewField(in.Teams, in.RoundOne)
	if err != nil {
		return nil, err
	}
	engine, err := elo.NewEngine(elo.Config{
		BaseRating: config.BaseRating,
		KFactor:    config.KFactor,
		DecayDays:  config.DecayDays,
	})
	if err != nil {
		return nil, err
	}

	initial := engine.InitialRatings(field.Names(), elo.ShrinkExternal(in.External), in.Matches)
	fit, err := engine.Fit(initial, in.Matches)
	if err != nil {
		return nil, err
	}

	rows := make([]ratingRow, 0, data.TeamCount)
	for _, p := range field.Participants() {
		stats := fit.Stats[p.Name]
		rows = append(rows, ratingRow{
			Name:         p.Name,
			Seed:         p.Seed + 1,
			Initial:      initial[p.Name],
			Rating:       fit.Ratings[p.Name],
			Matches:      stats.Matches,
			MeanOpponent: stats.MeanOpponent,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rating > rows[j].Rating })
	return rows, nil
}

// countMatches splits the match log into matches between participants and the rest
func countMatches(matches []elo.Match, field *data.Field) (known, unknown int) {
	for _, m := range matches {
		_, ok1 := field.Seed(m.Team1)
		_, ok2 := field.Seed(m.Team2)
		if ok1 && ok2 {
			known++
		} else {
			unknown++
		}
	}
	return known, unknown
}

// newLogger builds the console logger, debug level when verbose
func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		config = zap.NewDevelopmentConfig()
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// newFileLogger builds a JSON logger appending to filename
func newFileLogger(filename string, verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{filename}
	config.ErrorOutputPaths = []string{filename}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, &CLIError{
			Code:    ExitFileError,
			Message: fmt.Sprintf("Failed to open log file: %v", err),
			Details: map[string]any{"log_file": filename},
		}
	}
	return logger, nil
}
