package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pashagolub/swisspredict/pkg/elo"
)

// Error types for storage operations
var (
	ErrCSVFormat   = errors.New("CSV format error")
	ErrInputFile   = errors.New("cannot read input file")
	ErrAtomicWrite = errors.New("atomic write operation failed")
)

// Input bundles everything read from the input files
type Input struct {
	Teams    []Team
	RoundOne []Matchup
	External map[string]elo.ExternalRating // empty when no ratings file is present
	Matches  []elo.Match                   // empty when no match log is present
}

// Loader reads the CSV input files described by an InputConfig
type Loader struct {
	config InputConfig
}

// NewLoader creates a loader for the given input configuration
func NewLoader(config InputConfig) *Loader {
	return &Loader{config: config}
}

// LoadInput reads all input files. The teams and opening pairings files are
// required; the ratings file and the match log are skipped when absent.
func (l *Loader) LoadInput() (*Input, error) {
	teams, err := l.LoadTeams(l.config.TeamsFile)
	if err != nil {
		return nil, err
	}

	roundOne, err := l.LoadRoundOne(l.config.RoundOneFile)
	if err != nil {
		return nil, err
	}

	in := &Input{
		Teams:    teams,
		RoundOne: roundOne,
		External: map[string]elo.ExternalRating{},
	}

	if optionalFileExists(l.config.RatingsFile) {
		if in.External, err = l.LoadExternalRatings(l.config.RatingsFile); err != nil {
			return nil, err
		}
	}

	if optionalFileExists(l.config.MatchesFile) {
		if in.Matches, err = l.LoadMatches(l.config.MatchesFile); err != nil {
			return nil, err
		}
	}

	return in, nil
}

// LoadTeams reads Team,Score rows. Row order is the seed order; an empty
// score cell leaves the team without a score.
func (l *Loader) LoadTeams(filename string) ([]Team, error) {
	rows, err := l.readTable(filename, "team", "score")
	if err != nil {
		return nil, err
	}

	teams := make([]Team, 0, len(rows.records))
	for _, r := range rows.records {
		team := Team{Name: rows.value(r, "team")}
		if team.Name == "" {
			return nil, fmt.Errorf("%w: %s row %d: empty team name", ErrCSVFormat, filename, r.line)
		}
		if raw := rows.value(r, "score"); raw != "" {
			score, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s row %d: invalid score %q", ErrCSVFormat, filename, r.line, raw)
			}
			team.Score = score
			team.HasScore = true
		}
		teams = append(teams, team)
	}

	return teams, nil
}

// LoadRoundOne reads Team1,Team2 rows
func (l *Loader) LoadRoundOne(filename string) ([]Matchup, error) {
	rows, err := l.readTable(filename, "team1", "team2")
	if err != nil {
		return nil, err
	}

	matchups := make([]Matchup, 0, len(rows.records))
	for _, r := range rows.records {
		matchups = append(matchups, Matchup{
			Team1: rows.value(r, "team1"),
			Team2: rows.value(r, "team2"),
		})
	}

	return matchups, nil
}

// LoadExternalRatings reads Team,Rating,Maps rows. The maps column is
// optional and defaults to zero, which gives the rating the lowest confidence.
func (l *Loader) LoadExternalRatings(filename string) (map[string]elo.ExternalRating, error) {
	rows, err := l.readTable(filename, "team", "rating")
	if err != nil {
		return nil, err
	}

	ratings := make(map[string]elo.ExternalRating, len(rows.records))
	for _, r := range rows.records {
		name := rows.value(r, "team")
		raw := rows.value(r, "rating")
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: invalid rating %q", ErrCSVFormat, filename, r.line, raw)
		}

		rating := elo.ExternalRating{Value: value}
		if rawMaps := rows.value(r, "maps"); rawMaps != "" {
			maps, err := strconv.Atoi(rawMaps)
			if err != nil || maps < 0 {
				return nil, fmt.Errorf("%w: %s row %d: invalid maps %q", ErrCSVFormat, filename, r.line, rawMaps)
			}
			rating.Maps = maps
		}
		ratings[name] = rating
	}

	return ratings, nil
}

// LoadMatches reads the historical match log. Missing format cells are
// single-map matches; an unrecognised format is an error.
func (l *Loader) LoadMatches(filename string) ([]elo.Match, error) {
	rows, err := l.readTable(filename, "date", "team1", "score1", "score2", "team2")
	if err != nil {
		return nil, err
	}

	matches := make([]elo.Match, 0, len(rows.records))
	for _, r := range rows.records {
		m, err := l.parseMatch(rows, r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", ErrCSVFormat, filename, r.line, err)
		}
		matches = append(matches, m)
	}

	return matches, nil
}

func (l *Loader) parseMatch(rows *table, r record) (elo.Match, error) {
	date, err := time.Parse(l.dateLayout(), rows.value(r, "date"))
	if err != nil {
		return elo.Match{}, fmt.Errorf("invalid date %q", rows.value(r, "date"))
	}

	score1, err := strconv.Atoi(rows.value(r, "score1"))
	if err != nil {
		return elo.Match{}, fmt.Errorf("invalid score1 %q", rows.value(r, "score1"))
	}
	score2, err := strconv.Atoi(rows.value(r, "score2"))
	if err != nil {
		return elo.Match{}, fmt.Errorf("invalid score2 %q", rows.value(r, "score2"))
	}

	format := elo.BO1
	if raw := rows.value(r, "format"); raw != "" {
		if format, err = elo.ParseFormat(raw); err != nil {
			return elo.Match{}, err
		}
	}

	return elo.Match{
		Date:   date,
		Team1:  rows.value(r, "team1"),
		Team2:  rows.value(r, "team2"),
		Score1: score1,
		Score2: score2,
		Format: format,
		Event:  rows.value(r, "tournament"),
	}, nil
}

func (l *Loader) dateLayout() string {
	if l.config.DateLayout != "" {
		return l.config.DateLayout
	}
	return DefaultInputConfig().DateLayout
}

// table is a parsed CSV file with a header-driven column map
type table struct {
	columns map[string]int
	records []record
}

type record struct {
	line   int // 1-based line in the file, header included
	fields []string
}

// value returns the trimmed cell of a named column, empty when the column or
// the cell is missing
func (t *table) value(r record, column string) string {
	idx, ok := t.columns[column]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

// readTable parses a headed CSV file and checks the required columns exist
func (l *Loader) readTable(filename string, required ...string) (*table, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInputFile, filename, err)
	}
	defer func() { _ = file.Close() }()

	t, err := l.parseTable(file, required...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return t, nil
}

func (l *Loader) parseTable(reader io.Reader, required ...string) (*table, error) {
	csvReader := csv.NewReader(reader)
	if l.config.Delimiter != "" {
		csvReader.Comma = rune(l.config.Delimiter[0])
	}
	csvReader.LazyQuotes = true // Handle malformed quotes gracefully
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse CSV: %v", ErrCSVFormat, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header row", ErrCSVFormat)
	}

	// Build column mapping
	t := &table{columns: make(map[string]int)}
	for i, header := range records[0] {
		t.columns[strings.TrimSpace(strings.ToLower(header))] = i
	}

	for _, column := range required {
		if _, ok := t.columns[column]; !ok {
			return nil, fmt.Errorf("%w: required column '%s' not found", ErrCSVFormat, column)
		}
	}

	for i, row := range records[1:] {
		if isEmptyRow(row) {
			continue
		}
		t.records = append(t.records, record{line: i + 2, fields: row})
	}

	return t, nil
}

// isEmptyRow checks if a CSV row is empty or contains only whitespace
func isEmptyRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// optionalFileExists reports whether an optional input is configured and present
func optionalFileExists(filename string) bool {
	if strings.TrimSpace(filename) == "" {
		return false
	}
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

// WriteFileAtomic writes a file through a temporary file and a rename, so
// readers never observe a partially written result
func WriteFileAtomic(filename string, write func(io.Writer) error) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: cannot create directory %s: %v", ErrAtomicWrite, dir, err)
		}
	}

	tempFile := filename + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("%w: cannot create temp file: %v", ErrAtomicWrite, err)
	}

	if err := write(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tempFile)
		return err
	}

	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tempFile)
		return fmt.Errorf("%w: failed to sync %s: %v", ErrAtomicWrite, filename, err)
	}

	_ = file.Close()

	// Atomic rename
	if err := os.Rename(tempFile, filename); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("%w: atomic rename failed: %v", ErrAtomicWrite, err)
	}

	return nil
}
