package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is a complete set of input files in a temporary directory
type fixture struct {
	dir      string
	config   string
	teams    string
	roundOne string
	ratings  string
	matches  string
}

// writeFixture creates sixteen teams paired 1v9, 2v10, ... with a short
// match log in which Team01 dominates
func writeFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:      dir,
		config:   filepath.Join(dir, "missing.yaml"),
		teams:    filepath.Join(dir, "teams.csv"),
		roundOne: filepath.Join(dir, "round1.csv"),
		ratings:  filepath.Join(dir, "ratings.csv"),
		matches:  filepath.Join(dir, "matches.csv"),
	}

	var teams, roundOne, ratings, matches strings.Builder
	teams.WriteString("Team,Score\n")
	roundOne.WriteString("Team1,Team2\n")
	ratings.WriteString("Team,Rating,Maps\n")
	matches.WriteString("date,team1,score1,score2,team2,tournament,format\n")
	for i := 1; i <= 16; i++ {
		fmt.Fprintf(&teams, "Team%02d,%d\n", i, 120-5*i)
		fmt.Fprintf(&ratings, "Team%02d,%.2f,%d\n", i, 1.10-0.01*float64(i), 100)
		if i > 1 {
			fmt.Fprintf(&matches, "2025-05-%02d,Team01,2,0,Team%02d,Test Cup,bo3\n", i, i)
		}
	}
	for i := 1; i <= 8; i++ {
		fmt.Fprintf(&roundOne, "Team%02d,Team%02d\n", i, i+8)
	}
	matches.WriteString("2025-05-20,Team02,1,0,Outsiders,Qualifier,bo1\n")

	for path, content := range map[string]string{
		f.teams:    teams.String(),
		f.roundOne: roundOne.String(),
		f.ratings:  ratings.String(),
		f.matches:  matches.String(),
	} {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return f
}

// inputArgs points a command at the fixture files
func (f fixture) inputArgs() []string {
	return []string{
		"--teams", f.teams,
		"--round-one", f.roundOne,
		"--ratings", f.ratings,
		"--matches", f.matches,
	}
}

// captureOutput redirects command output into a buffer for the test
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = previous })
	return &buf
}

func runArgs(f fixture, command string, extra ...string) []string {
	args := []string{"--config", f.config, command}
	args = append(args, f.inputArgs()...)
	return append(args, extra...)
}

func TestRunCommand(t *testing.T) {
	f := writeFixture(t)
	simulation := []string{"--stage-trials", "512", "--bracket-trials", "512", "--seed", "11", "--workers", "2"}

	t.Run("text report on stdout", func(t *testing.T) {
		out := captureOutput(t)
		err := run(runArgs(f, "run", simulation...))
		require.NoError(t, err)

		text := out.String()
		assert.Contains(t, text, "Tournament Forecast Report")
		assert.Contains(t, text, "Trials: 512 group stage, 512 bracket")
		assert.Contains(t, text, "Historical matches: 15 used, 1 skipped")
		assert.Contains(t, text, "Predicted champion:")
	})

	t.Run("json report to file", func(t *testing.T) {
		out := captureOutput(t)
		path := filepath.Join(f.dir, "out", "forecast.json")
		err := run(runArgs(f, "run", append(simulation, "--format", "json", "--output", path, "--no-pickem")...))
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Exported forecast to: "+path)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		var report map[string]any
		require.NoError(t, json.Unmarshal(content, &report))
		assert.Len(t, report["standings"], 16)
		assert.Len(t, report["bracket_order"], 8)
		assert.Equal(t, "rates", report["bracket_order_source"])
		assert.NotContains(t, report, "pickem")
		assert.EqualValues(t, 11, report["stage_seed"])
	})

	t.Run("same seed same forecast", func(t *testing.T) {
		export := func(workers string) map[string]any {
			path := filepath.Join(f.dir, "seeded-"+workers+".json")
			args := []string{"--stage-trials", "512", "--bracket-trials", "512", "--seed", "5", "--workers", workers, "--format", "json", "--output", path}
			captureOutput(t)
			require.NoError(t, run(runArgs(f, "run", args...)))
			content, err := os.ReadFile(path)
			require.NoError(t, err)
			var report map[string]any
			require.NoError(t, json.Unmarshal(content, &report))
			return report
		}
		one, four := export("1"), export("4")
		assert.Equal(t, one["standings"], four["standings"])
		assert.Equal(t, one["champion"], four["champion"])
	})

	t.Run("fixed qualifiers", func(t *testing.T) {
		path := filepath.Join(f.dir, "fixed.json")
		args := append([]string{}, simulation...)
		for i := 1; i <= 8; i++ {
			args = append(args, "--qualifier", fmt.Sprintf("Team%02d", i))
		}
		args = append(args, "--format", "json", "--output", path)
		captureOutput(t)
		require.NoError(t, run(runArgs(f, "run", args...)))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		var report map[string]any
		require.NoError(t, json.Unmarshal(content, &report))
		assert.Equal(t, "configured", report["bracket_order_source"])
		assert.Equal(t, "Team01", report["bracket_order"].([]any)[0])
	})

	t.Run("unknown qualifier", func(t *testing.T) {
		args := append([]string{}, simulation...)
		for i := 1; i <= 7; i++ {
			args = append(args, "--qualifier", fmt.Sprintf("Team%02d", i))
		}
		args = append(args, "--qualifier", "Nobody")
		captureOutput(t)
		err := run(runArgs(f, "run", args...))

		var cliErr *CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, ExitValidationError, cliErr.Code)
	})

	t.Run("invalid export format", func(t *testing.T) {
		captureOutput(t)
		err := run(runArgs(f, "run", append(simulation, "--format", "xml")...))

		var cliErr *CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, ExitConfigError, cliErr.Code)
	})

	t.Run("missing input", func(t *testing.T) {
		captureOutput(t)
		err := run([]string{"--config", f.config, "run", "--teams", filepath.Join(f.dir, "nope.csv"), "--round-one", f.roundOne})

		var cliErr *CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, ExitFileError, cliErr.Code)
		assert.Contains(t, cliErr.Details, "teams_file")
	})
}

func TestValidateCommand(t *testing.T) {
	f := writeFixture(t)

	t.Run("valid field", func(t *testing.T) {
		out := captureOutput(t)
		require.NoError(t, run(runArgs(f, "validate")))

		text := out.String()
		assert.Contains(t, text, "VALID participant field")
		assert.Contains(t, text, "Team01 vs Team09")
		assert.Contains(t, text, "External ratings: 16")
		assert.Contains(t, text, "Historical matches: 15 usable, 1 with unknown teams")
	})

	t.Run("short field", func(t *testing.T) {
		short := filepath.Join(f.dir, "short.csv")
		require.NoError(t, os.WriteFile(short, []byte("Team,Score\nTeam01,10\nTeam02,20\n"), 0644))
		out := captureOutput(t)
		err := run([]string{"--config", f.config, "validate", "--teams", short, "--round-one", f.roundOne})

		var cliErr *CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, ExitValidationError, cliErr.Code)
		assert.Contains(t, out.String(), "INVALID")
	})
}

func TestRatingsCommand(t *testing.T) {
	f := writeFixture(t)

	t.Run("table", func(t *testing.T) {
		out := captureOutput(t)
		require.NoError(t, run(runArgs(f, "ratings")))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 18)
		assert.Contains(t, lines[0], "RATING")
		assert.Contains(t, lines[2], "Team01")
	})

	t.Run("json", func(t *testing.T) {
		out := captureOutput(t)
		require.NoError(t, run(runArgs(f, "ratings", "--format", "json")))

		var rows []ratingRow
		require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
		require.Len(t, rows, 16)
		assert.Equal(t, "Team01", rows[0].Name)
		assert.Equal(t, 15, rows[0].Matches)
		for i := 1; i < len(rows); i++ {
			assert.GreaterOrEqual(t, rows[i-1].Rating, rows[i].Rating)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		captureOutput(t)
		err := run(runArgs(f, "ratings", "--format", "yaml"))

		var cliErr *CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, ExitConfigError, cliErr.Code)
	})
}

func TestGlobalOptions(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		out := captureOutput(t)
		require.NoError(t, run([]string{"--version"}))
		assert.Contains(t, out.String(), "swisspredict version dev")
	})

	t.Run("no command", func(t *testing.T) {
		err := run([]string{})

		var cliErr *CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, ExitConfigError, cliErr.Code)
		assert.NotEmpty(t, cliErr.Suggestions)
	})

	t.Run("unknown flag", func(t *testing.T) {
		err := run([]string{"run", "--bogus"})

		var cliErr *CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, ExitConfigError, cliErr.Code)
	})

	t.Run("broken configuration", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("simulation: [unclosed"), 0644))
		err := run([]string{"--config", path, "ratings"})

		var cliErr *CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, ExitConfigError, cliErr.Code)
	})
}

func TestFormatErrorJSON(t *testing.T) {
	err := &CLIError{
		Code:        ExitExportError,
		Message:     "Export failed",
		Details:     map[string]any{"format": "csv"},
		Suggestions: []string{"Try again"},
	}

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(formatErrorJSON(err)), &decoded))
	assert.EqualValues(t, ExitExportError, decoded["error"]["code"])
	assert.Equal(t, "Export failed", decoded["error"]["message"])
	assert.Equal(t, map[string]any{"format": "csv"}, decoded["error"]["details"])
	assert.Equal(t, "Export failed", err.Error())

	assert.NotContains(t, formatErrorJSON(&CLIError{Code: ExitFileError, Message: "x"}), "suggestions")
}

func TestHistoryCommand(t *testing.T) {
	f := writeFixture(t)
	historyFile := filepath.Join(f.dir, "history", "forecasts.jsonl")
	simulation := []string{"--stage-trials", "256", "--bracket-trials", "256", "--seed", "3", "--history", historyFile}

	captureOutput(t)
	require.NoError(t, run(runArgs(f, "run", simulation...)))
	output := filepath.Join(f.dir, "recorded.csv")
	require.NoError(t, run(runArgs(f, "run", append(simulation, "--format", "csv", "--output", output)...)))

	t.Run("table", func(t *testing.T) {
		out := captureOutput(t)
		require.NoError(t, run([]string{"--config", f.config, "history", "--file", historyFile}))

		text := out.String()
		assert.Contains(t, text, "forecast_completed")
		assert.Contains(t, text, "forecast_exported")
		assert.Contains(t, text, "csv to "+output)
		assert.Contains(t, text, "Entries: 3")
		assert.Contains(t, text, "Predicted champion")
	})

	t.Run("json with filters", func(t *testing.T) {
		out := captureOutput(t)
		require.NoError(t, run([]string{"--config", f.config, "history", "--file", historyFile,
			"--event", "forecast_completed", "--limit", "1", "--format", "json"}))

		var decoded struct {
			Query struct {
				Entries    []map[string]any `json:"entries"`
				TotalCount int              `json:"total_count"`
				HasMore    bool             `json:"has_more"`
			} `json:"query"`
			Statistics struct {
				TotalEntries int `json:"total_entries"`
			} `json:"statistics"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		assert.Equal(t, 2, decoded.Query.TotalCount)
		assert.Len(t, decoded.Query.Entries, 1)
		assert.True(t, decoded.Query.HasMore)
		assert.Equal(t, 3, decoded.Statistics.TotalEntries)
	})

	t.Run("verify", func(t *testing.T) {
		out := captureOutput(t)
		require.NoError(t, run([]string{"--config", f.config, "history", "--file", historyFile, "--verify"}))
		assert.Contains(t, out.String(), "Forecast history intact: 3 entries")
	})

	t.Run("failed run is recorded", func(t *testing.T) {
		failing := filepath.Join(f.dir, "failing.jsonl")
		args := []string{"--stage-trials", "256", "--bracket-trials", "256", "--history", failing}
		for i := 1; i <= 7; i++ {
			args = append(args, "--qualifier", fmt.Sprintf("Team%02d", i))
		}
		args = append(args, "--qualifier", "Nobody")
		captureOutput(t)
		require.Error(t, run(runArgs(f, "run", args...)))

		out := captureOutput(t)
		require.NoError(t, run([]string{"--config", f.config, "history", "--file", failing}))
		assert.Contains(t, out.String(), "forecast_failed")
	})

	t.Run("tampered file", func(t *testing.T) {
		content, err := os.ReadFile(historyFile)
		require.NoError(t, err)
		tampered := filepath.Join(f.dir, "tampered.jsonl")
		require.NoError(t, os.WriteFile(tampered, []byte(strings.Replace(string(content), `"sequence":1`, `"sequence":7`, 1)), 0644))

		captureOutput(t)
		err = run([]string{"--config", f.config, "history", "--file", tampered, "--verify"})
		var cliErr *CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, ExitFileError, cliErr.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		captureOutput(t)
		err := run([]string{"--config", f.config, "history", "--file", filepath.Join(f.dir, "none.jsonl")})
		var cliErr *CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, ExitFileError, cliErr.Code)
		assert.NoFileExists(t, filepath.Join(f.dir, "none.jsonl"))
	})
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swisspredict.yaml")

	out := captureOutput(t)
	require.NoError(t, run([]string{"--config", path, "init"}))
	assert.Contains(t, out.String(), "Wrote default configuration to: "+path)
	assert.FileExists(t, path)

	err := run([]string{"--config", path, "init"})
	var cliErr *CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, ExitConfigError, cliErr.Code)

	require.NoError(t, run([]string{"--config", path, "init", "--force"}))

	// the written file is a usable configuration
	f := writeFixture(t)
	captureOutput(t)
	require.NoError(t, run([]string{"--config", path, "validate",
		"--teams", f.teams, "--round-one", f.roundOne, "--ratings", f.ratings, "--matches", f.matches}))
}
