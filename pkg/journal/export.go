// Package journal exports forecast reports. It renders a report as CSV (one
// row per participant), JSON (the complete report with summary statistics and
// optionally every simulated stage) or a human-readable text report, and
// writes files atomically. A History keeps a tamper-evident log of forecast
// runs and exports.
package journal

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pashagolub/swisspredict/pkg/data"
	"github.com/pashagolub/swisspredict/pkg/forecast"
	"github.com/pashagolub/swisspredict/pkg/swiss"
)

// Error types for export operations
var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrEmptyReport       = errors.New("report has no standings")
)

// ExportFormat represents the format for exporting results
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
	FormatText ExportFormat = "text"
)

// Sort criteria for standings
const (
	SortBySeed      = "seed"
	SortByRating    = "rating"
	SortByQualified = "qualified"
	SortByChampion  = "champion"
)

// ExportOptions configures export behavior
type ExportOptions struct {
	Format        ExportFormat `json:"format"`         // Export format (csv, json, text)
	SortBy        string       `json:"sort_by"`        // Standing order
	IncludeTrials bool         `json:"include_trials"` // JSON only: every simulated stage
	Decimals      int          `json:"decimals"`       // Probability precision in CSV and text
}

// DefaultExportOptions returns the options matching data.DefaultExportConfig
func DefaultExportOptions() ExportOptions {
	return OptionsFromConfig(data.DefaultExportConfig())
}

// OptionsFromConfig converts the export section of the configuration
func OptionsFromConfig(cfg data.ExportConfig) ExportOptions {
	return ExportOptions{
		Format:        ExportFormat(cfg.Format),
		SortBy:        cfg.SortBy,
		IncludeTrials: cfg.IncludeTrials,
		Decimals:      cfg.RoundDecimals,
	}
}

// ReportExport is the JSON document written for a report
type ReportExport struct {
	*forecast.Report
	ExportedAt  time.Time         `json:"exported_at"`
	Statistics  *ReportStatistics `json:"statistics"`
	Trials      []TrialExport     `json:"trials,omitempty"`
	Options     ExportOptions     `json:"export_options"`
	StageSeed   uint64            `json:"stage_seed"`
	BracketSeed uint64            `json:"bracket_seed"`
}

// TrialExport lists the participants in each category of one simulated stage
type TrialExport struct {
	Swept       []string `json:"swept"`
	Advanced    []string `json:"advanced"`
	Whitewashed []string `json:"whitewashed"`
}

// ReportStatistics provides summary statistics
type ReportStatistics struct {
	Participants       int     `json:"participants"`
	RatingMean         float64 `json:"rating_mean"`
	RatingStdDev       float64 `json:"rating_std_dev"`
	RatingMedian       float64 `json:"rating_median"`
	RatingRange        float64 `json:"rating_range"`
	QualifyCorrelation float64 `json:"qualify_correlation"` // Pearson correlation of rating and qualification rate
	ChampionEntropy    float64 `json:"champion_entropy"`    // Shannon entropy of the championship distribution, in nats
	FavouriteChampion  float64 `json:"favourite_champion_rate"`
}

// Exporter handles report export operations
type Exporter struct{}

// NewExporter creates a new exporter instance
func NewExporter() *Exporter {
	return &Exporter{}
}

// ExportToFile writes the report to a file, replacing it atomically
func (e *Exporter) ExportToFile(report *forecast.Report, filePath string, options ExportOptions) error {
	err := data.WriteFileAtomic(filePath, func(w io.Writer) error {
		return e.Export(report, w, options)
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	return nil
}

// Export writes the report in the requested format
func (e *Exporter) Export(report *forecast.Report, writer io.Writer, options ExportOptions) error {
	switch options.Format {
	case FormatCSV:
		return e.ExportCSV(report, writer, options)
	case FormatJSON:
		return e.ExportJSON(report, writer, options)
	case FormatText:
		return e.ExportText(report, writer, options)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, options.Format)
	}
}

// csvHeader lists the CSV columns
var csvHeader = []string{
	"rank", "seed", "team", "score", "initial_rating", "rating", "matches",
	"sweep", "qualified", "advanced", "whitewash",
	"in_bracket", "semifinal", "final", "champion",
}

// ExportCSV writes one row per participant
func (e *Exporter) ExportCSV(report *forecast.Report, writer io.Writer, options ExportOptions) error {
	standings, err := e.sortedStandings(report, options.SortBy)
	if err != nil {
		return err
	}

	csvWriter := csv.NewWriter(writer)
	if err := csvWriter.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	prob := func(v float64) string { return formatFloat(v, options.Decimals) }
	for rank, s := range standings {
		record := []string{
			strconv.Itoa(rank + 1),
			strconv.Itoa(s.Seed + 1),
			s.Name,
			strconv.Itoa(s.Score),
			formatFloat(s.InitialRating, 1),
			formatFloat(s.Rating, 1),
			strconv.Itoa(s.Matches),
			prob(s.Stage.Sweep),
			prob(s.Stage.Qualified),
			prob(s.Stage.Advanced),
			prob(s.Stage.Whitewash),
			strconv.FormatBool(s.InBracket),
			prob(s.Bracket.Semifinal),
			prob(s.Bracket.Final),
			prob(s.Bracket.Champion),
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record for %s: %w", s.Name, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// ExportJSON writes the complete report with statistics
func (e *Exporter) ExportJSON(report *forecast.Report, writer io.Writer, options ExportOptions) error {
	if report == nil || len(report.Standings) == 0 {
		return ErrEmptyReport
	}

	export := &ReportExport{
		Report:     report,
		ExportedAt: time.Now().UTC(),
		Statistics: e.CalculateStatistics(report),
		Options:    options,
	}
	if report.Stage != nil {
		export.StageSeed = report.Stage.Seed
		if options.IncludeTrials {
			export.Trials = e.buildTrials(report)
		}
	}
	if report.Bracket != nil {
		export.BracketSeed = report.Bracket.Seed
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// ExportText generates a human-readable report
func (e *Exporter) ExportText(report *forecast.Report, writer io.Writer, options ExportOptions) error {
	standings, err := e.sortedStandings(report, options.SortBy)
	if err != nil {
		return err
	}
	statistics := e.CalculateStatistics(report)
	pct := func(v float64) string { return formatPercent(v, options.Decimals) }

	fmt.Fprintf(writer, "Tournament Forecast Report\n")
	fmt.Fprintf(writer, "==========================\n\n")
	fmt.Fprintf(writer, "Report ID: %s\n", report.ID)
	fmt.Fprintf(writer, "Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	if report.Stage != nil && report.Bracket != nil {
		fmt.Fprintf(writer, "Trials: %d group stage, %d bracket\n", report.Stage.Trials, report.Bracket.Trials)
	}
	fmt.Fprintf(writer, "Historical matches: %d used, %d skipped\n\n", report.Processed, report.Skipped)

	fmt.Fprintf(writer, "Rating Statistics\n")
	fmt.Fprintf(writer, "-----------------\n")
	fmt.Fprintf(writer, "Mean: %.1f | Median: %.1f | Std Dev: %.1f | Range: %.1f\n",
		statistics.RatingMean, statistics.RatingMedian, statistics.RatingStdDev, statistics.RatingRange)
	fmt.Fprintf(writer, "Rating/qualification correlation: %.2f\n", statistics.QualifyCorrelation)
	fmt.Fprintf(writer, "Championship entropy: %.3f nats\n\n", statistics.ChampionEntropy)

	fmt.Fprintf(writer, "Group Stage\n")
	fmt.Fprintf(writer, "===========\n\n")
	fmt.Fprintf(writer, "%-4s %-20s %8s %10s %10s %10s %10s\n", "#", "Team", "Rating", "3-0", "Qualify", "Advance", "0-3")
	for i, s := range standings {
		fmt.Fprintf(writer, "%-4d %-20s %8.1f %10s %10s %10s %10s\n",
			i+1, s.Name, s.Rating, pct(s.Stage.Sweep), pct(s.Stage.Qualified), pct(s.Stage.Advanced), pct(s.Stage.Whitewash))
	}
	fmt.Fprintf(writer, "\n")

	if report.Pickem != nil {
		p := report.Pickem
		fmt.Fprintf(writer, "Pick'em Prediction\n")
		fmt.Fprintf(writer, "------------------\n")
		fmt.Fprintf(writer, "3-0:     %s\n", strings.Join(p.Sweep, ", "))
		fmt.Fprintf(writer, "Advance: %s\n", strings.Join(p.Advance, ", "))
		fmt.Fprintf(writer, "0-3:     %s\n", strings.Join(p.Whitewash, ", "))
		fmt.Fprintf(writer, "Success rate (%d+ correct): %s (greedy suggestion %s)\n\n",
			p.Threshold, pct(p.Rate), pct(p.Suggested))
	}

	fmt.Fprintf(writer, "Playoff Bracket (seeding: %s)\n", report.OrderSource)
	fmt.Fprintf(writer, "=============================\n\n")
	for _, m := range report.Published {
		fmt.Fprintf(writer, "%-6s %s vs %s (%s) -> %s (%s)\n",
			m.Label, m.NameA, m.NameB, strings.ToUpper(m.Format.String()), m.WinnerName, pct(m.WinProbability))
	}
	fmt.Fprintf(writer, "\nPredicted champion: %s\n\n", report.Champion)

	fmt.Fprintf(writer, "%-20s %10s %10s %10s\n", "Team", "Semifinal", "Final", "Champion")
	for _, s := range byChampion(standings) {
		if !s.InBracket {
			continue
		}
		fmt.Fprintf(writer, "%-20s %10s %10s %10s\n",
			s.Name, pct(s.Bracket.Semifinal), pct(s.Bracket.Final), pct(s.Bracket.Champion))
	}

	return nil
}

// CalculateStatistics computes summary statistics with gonum
func (e *Exporter) CalculateStatistics(report *forecast.Report) *ReportStatistics {
	n := len(report.Standings)
	if n == 0 {
		return &ReportStatistics{}
	}

	ratings := make([]float64, n)
	qualified := make([]float64, n)
	champion := make([]float64, 0, n)
	for i, s := range report.Standings {
		ratings[i] = s.Rating
		qualified[i] = s.Stage.Qualified
		if s.InBracket {
			champion = append(champion, s.Bracket.Champion)
		}
	}

	sorted := append([]float64(nil), ratings...)
	sort.Float64s(sorted)

	stats := &ReportStatistics{
		Participants: n,
		RatingMean:   stat.Mean(ratings, nil),
		RatingMedian: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		RatingRange:  floats.Max(ratings) - floats.Min(ratings),
	}
	if n > 1 {
		stats.RatingStdDev = stat.StdDev(ratings, nil)
		if stats.RatingStdDev > 0 && floats.Max(qualified) > floats.Min(qualified) {
			stats.QualifyCorrelation = stat.Correlation(ratings, qualified, nil)
		}
	}
	if len(champion) > 0 {
		stats.ChampionEntropy = stat.Entropy(champion)
		stats.FavouriteChampion = floats.Max(champion)
	}

	return stats
}

// buildTrials resolves the raw per-trial bitmasks into names
func (e *Exporter) buildTrials(report *forecast.Report) []TrialExport {
	trials := make([]TrialExport, len(report.Stage.Outcomes))
	for i, o := range report.Stage.Outcomes {
		trials[i] = TrialExport{
			Swept:       report.Names(swiss.Seeds(o.Swept)),
			Advanced:    report.Names(swiss.Seeds(o.Advanced())),
			Whitewashed: report.Names(swiss.Seeds(o.Whitewashed)),
		}
	}
	return trials
}

// sortedStandings returns a sorted copy of the standings. Ties keep seed order.
func (e *Exporter) sortedStandings(report *forecast.Report, by string) ([]forecast.Standing, error) {
	if report == nil || len(report.Standings) == 0 {
		return nil, ErrEmptyReport
	}

	standings := make([]forecast.Standing, len(report.Standings))
	copy(standings, report.Standings)

	var less func(a, b forecast.Standing) bool
	switch by {
	case SortBySeed, "":
		less = func(a, b forecast.Standing) bool { return false }
	case SortByRating:
		less = func(a, b forecast.Standing) bool { return a.Rating > b.Rating }
	case SortByQualified:
		less = func(a, b forecast.Standing) bool { return a.Stage.Qualified > b.Stage.Qualified }
	case SortByChampion:
		return byChampion(standings), nil
	default:
		return nil, fmt.Errorf("%w: unknown sort criterion %q", data.ErrInvalidExportConfig, by)
	}

	sort.SliceStable(standings, func(i, j int) bool { return less(standings[i], standings[j]) })
	return standings, nil
}

// byChampion sorts by championship rate, then finalist rate, then qualification
func byChampion(standings []forecast.Standing) []forecast.Standing {
	sorted := append([]forecast.Standing(nil), standings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Bracket.Champion != b.Bracket.Champion {
			return a.Bracket.Champion > b.Bracket.Champion
		}
		if a.Bracket.Final != b.Bracket.Final {
			return a.Bracket.Final > b.Bracket.Final
		}
		return a.Stage.Qualified > b.Stage.Qualified
	})
	return sorted
}

// Utility functions

// formatFloat formats a float with the given precision
func formatFloat(f float64, decimals int) string {
	return strconv.FormatFloat(f, 'f', decimals, 64)
}

// formatPercent formats a probability as a percentage
func formatPercent(p float64, decimals int) string {
	d := decimals - 2
	if d < 0 {
		d = 0
	}
	return strconv.FormatFloat(p*100, 'f', d, 64) + "%"
}
