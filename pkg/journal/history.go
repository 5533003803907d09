package journal

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pashagolub/swisspredict/pkg/forecast"
)

// Error types for forecast history operations
var (
	ErrHistoryCorrupted = errors.New("forecast history corrupted or tampered")
	ErrHistoryClosed    = errors.New("forecast history is closed")
)

// EventType represents the type of event being recorded
type EventType string

const (
	EventForecastCompleted EventType = "forecast_completed"
	EventForecastExported  EventType = "forecast_exported"
	EventForecastFailed    EventType = "forecast_failed"
)

// HistoryEntry is a single line of the forecast history
type HistoryEntry struct {
	// Core identification
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"event_type"`
	ReportID  string    `json:"report_id,omitempty"`

	Data map[string]any `json:"data"`

	// Integrity protection
	PreviousHash string `json:"previous_hash"` // Hash of the previous entry
	EntryHash    string `json:"entry_hash"`    // Hash of this entry's content
	Sequence     uint64 `json:"sequence"`
}

// History is an append-only, hash-chained JSON Lines log of forecast runs.
// Reopening an existing file verifies the chain before appending.
type History struct {
	path     string
	file     *os.File
	mutex    sync.Mutex
	lastHash string
	sequence uint64
	now      func() time.Time
}

// OpenHistory opens or creates the history file at path
func OpenHistory(path string) (*History, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	h := &History{path: path, now: time.Now}

	if _, err := os.Stat(path); err == nil {
		last, count, err := h.replay(nil)
		if err != nil {
			return nil, err
		}
		h.lastHash, h.sequence = last, count
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	h.file = file
	return h, nil
}

// RecordForecast stores the outcome of a finished forecast
func (h *History) RecordForecast(report *forecast.Report) error {
	if report == nil {
		return ErrEmptyReport
	}

	// seeds are strings, JSON numbers cannot hold every uint64
	data := map[string]any{
		"champion":      report.Champion,
		"bracket_order": report.Order,
		"order_source":  report.OrderSource,
		"duration":      report.Duration.String(),
		"matches":       report.Processed,
	}
	if report.Stage != nil {
		data["stage_trials"] = report.Stage.Trials
		data["stage_seed"] = strconv.FormatUint(report.Stage.Seed, 10)
	}
	if report.Bracket != nil {
		data["bracket_trials"] = report.Bracket.Trials
		data["bracket_seed"] = strconv.FormatUint(report.Bracket.Seed, 10)
	}
	if report.Pickem != nil {
		data["pickem_rate"] = report.Pickem.Rate
	}

	return h.append(EventForecastCompleted, report.ID.String(), data)
}

// RecordExport stores where a report was written
func (h *History) RecordExport(report *forecast.Report, path string, format ExportFormat) error {
	if report == nil {
		return ErrEmptyReport
	}
	return h.append(EventForecastExported, report.ID.String(), map[string]any{
		"path":   path,
		"format": string(format),
	})
}

// RecordFailure stores a forecast that did not finish
func (h *History) RecordFailure(cause error) error {
	return h.append(EventForecastFailed, "", map[string]any{
		"error": cause.Error(),
	})
}

// append writes a new entry and syncs it to disk
func (h *History) append(eventType EventType, reportID string, data map[string]any) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.file == nil {
		return ErrHistoryClosed
	}

	entry := HistoryEntry{
		ID:           uuid.NewString(),
		Timestamp:    h.now().UTC(),
		EventType:    eventType,
		ReportID:     reportID,
		Data:         data,
		PreviousHash: h.lastHash,
		Sequence:     h.sequence,
	}
	entry.EntryHash = calculateEntryHash(&entry)

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}
	if _, err := h.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write history entry: %w", err)
	}
	if err := h.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync history: %w", err)
	}

	h.lastHash = entry.EntryHash
	h.sequence++
	return nil
}

// replay reads the file from the start, checking the hash chain and calling
// visit for every entry. It returns the last hash and the entry count.
func (h *History) replay(visit func(HistoryEntry)) (string, uint64, error) {
	file, err := os.Open(h.path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open history for reading: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var previousHash string
	sequence := uint64(0)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry HistoryEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return "", 0, fmt.Errorf("%w: invalid JSON at sequence %d: %v", ErrHistoryCorrupted, sequence, err)
		}
		if entry.Sequence != sequence {
			return "", 0, fmt.Errorf("%w: sequence mismatch, expected %d, got %d", ErrHistoryCorrupted, sequence, entry.Sequence)
		}
		if entry.PreviousHash != previousHash {
			return "", 0, fmt.Errorf("%w: hash chain broken at sequence %d", ErrHistoryCorrupted, sequence)
		}
		if entry.EntryHash != calculateEntryHash(&entry) {
			return "", 0, fmt.Errorf("%w: entry hash mismatch at sequence %d", ErrHistoryCorrupted, sequence)
		}

		if visit != nil {
			visit(entry)
		}
		previousHash = entry.EntryHash
		sequence++
	}
	if err := scanner.Err(); err != nil {
		return "", 0, fmt.Errorf("error reading history: %w", err)
	}

	return previousHash, sequence, nil
}

// calculateEntryHash computes the SHA-256 hash of an entry's content
func calculateEntryHash(entry *HistoryEntry) string {
	// EntryHash itself is excluded
	data, _ := json.Marshal(entry.Data)
	dataHash := sha256.Sum256(data)
	content := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%s",
		entry.ID,
		entry.Timestamp.Format(time.RFC3339Nano),
		entry.EventType,
		entry.ReportID,
		entry.PreviousHash,
		entry.Sequence,
		hex.EncodeToString(dataHash[:]))

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// Close closes the history file
func (h *History) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}

// Path returns the history file location
func (h *History) Path() string {
	return h.path
}

// Len returns the number of recorded entries
func (h *History) Len() uint64 {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.sequence
}

// QueryOptions defines filtering criteria for history queries
type QueryOptions struct {
	EventTypes []EventType `json:"event_types,omitempty"`
	Since      *time.Time  `json:"since,omitempty"`
	Until      *time.Time  `json:"until,omitempty"`
	ReportID   string      `json:"report_id,omitempty"`
	Champion   string      `json:"champion,omitempty"`
	Limit      int         `json:"limit,omitempty"`  // 0 means no limit
	Offset     int         `json:"offset,omitempty"` // Entries to skip
}

// QueryResult contains the entries matching a query
type QueryResult struct {
	Entries    []HistoryEntry `json:"entries"`
	TotalCount int            `json:"total_count"`
	HasMore    bool           `json:"has_more"`
}

// Query verifies the history and returns the matching entries, oldest first
func (h *History) Query(options QueryOptions) (*QueryResult, error) {
	var matches []HistoryEntry
	if _, _, err := h.replay(func(entry HistoryEntry) {
		if options.matches(&entry) {
			matches = append(matches, entry)
		}
	}); err != nil {
		return nil, err
	}

	total := len(matches)
	start := min(max(options.Offset, 0), total)
	end := total
	if options.Limit > 0 && start+options.Limit < total {
		end = start + options.Limit
	}

	return &QueryResult{
		Entries:    matches[start:end],
		TotalCount: total,
		HasMore:    end < total,
	}, nil
}

// matches determines if an entry matches the query criteria
func (o QueryOptions) matches(entry *HistoryEntry) bool {
	if len(o.EventTypes) > 0 {
		found := false
		for _, eventType := range o.EventTypes {
			if entry.EventType == eventType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if o.Since != nil && entry.Timestamp.Before(*o.Since) {
		return false
	}
	if o.Until != nil && entry.Timestamp.After(*o.Until) {
		return false
	}
	if o.ReportID != "" && entry.ReportID != o.ReportID {
		return false
	}
	if o.Champion != "" {
		if champion, ok := entry.Data["champion"].(string); !ok || champion != o.Champion {
			return false
		}
	}
	return true
}

// VerifyIntegrity checks the complete hash chain
func (h *History) VerifyIntegrity() error {
	_, _, err := h.replay(nil)
	return err
}

// HistoryStatistics summarises a forecast history
type HistoryStatistics struct {
	TotalEntries int               `json:"total_entries"`
	EventCounts  map[EventType]int `json:"event_counts"`
	Champions    map[string]int    `json:"champions"` // Predicted champion per completed forecast
	FirstEntry   *time.Time        `json:"first_entry,omitempty"`
	LastEntry    *time.Time        `json:"last_entry,omitempty"`
}

// GetStatistics counts events and predicted champions
func (h *History) GetStatistics() (*HistoryStatistics, error) {
	stats := &HistoryStatistics{
		EventCounts: make(map[EventType]int),
		Champions:   make(map[string]int),
	}

	_, _, err := h.replay(func(entry HistoryEntry) {
		stats.TotalEntries++
		stats.EventCounts[entry.EventType]++
		if entry.EventType == EventForecastCompleted {
			if champion, ok := entry.Data["champion"].(string); ok && champion != "" {
				stats.Champions[champion]++
			}
		}
		ts := entry.Timestamp
		if stats.FirstEntry == nil {
			stats.FirstEntry = &ts
		}
		stats.LastEntry = &ts
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate statistics: %w", err)
	}
	return stats, nil
}
