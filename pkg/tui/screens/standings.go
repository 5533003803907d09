// Package screens provides TUI screen implementations for the forecast viewer.
// This file implements the standings screen where users browse the per-team
// forecast, sort and filter it, and inspect a team profile.
package screens

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/pashagolub/swisspredict/pkg/forecast"
	"github.com/pashagolub/swisspredict/pkg/journal"
	"github.com/pashagolub/swisspredict/pkg/tui/components"
)

// ErrNoReport is returned when a screen is entered before a forecast exists
var ErrNoReport = errors.New("no forecast report available")

// SortOrder represents the sorting direction for standings. SortDesc puts
// the strongest rates first and lists seeds and names in their natural order.
type SortOrder int

const (
	SortDesc SortOrder = iota
	SortAsc
)

// SortField represents the field to sort standings by
type SortField int

const (
	SortByQualified SortField = iota
	SortByChampion
	SortByRating
	SortBySeed
	SortByName
	sortFieldCount
)

// String returns the column label of a sort field
func (f SortField) String() string {
	switch f {
	case SortByQualified:
		return "Qualified"
	case SortByChampion:
		return "Champion"
	case SortByRating:
		return "Rating"
	case SortBySeed:
		return "Seed"
	case SortByName:
		return "Team"
	default:
		return "unknown"
	}
}

// FilterCriteria holds the current filtering settings
type FilterCriteria struct {
	SearchText   string  // Case-insensitive substring of the team name
	MinQualified float64 // Minimum qualification rate in percent
	BracketOnly  bool    // Only teams placed in the playoff bracket
}

// reportSource is implemented by the application hosting the screens
type reportSource interface {
	GetReport() *forecast.Report
}

// focuser moves keyboard focus inside the hosting application
type focuser interface {
	SetFocus(p tview.Primitive)
}

// StandingsScreen implements the standings display
type StandingsScreen struct {
	// UI components
	container     *tview.Flex
	mainLayout    *tview.Flex
	sidebarLayout *tview.Flex

	standingsTable  *tview.Table
	filterForm      *tview.Form
	carousel        *components.Carousel
	statisticsPanel *tview.TextView

	statusBar *tview.TextView
	helpBar   *tview.TextView

	// Current state
	report    *forecast.Report
	standings []forecast.Standing
	filtered  []forecast.Standing
	sortField SortField
	sortOrder SortOrder
	filter    FilterCriteria

	app any
}

// NewStandingsScreen creates a new standings screen instance
func NewStandingsScreen() *StandingsScreen {
	ss := &StandingsScreen{
		container:       tview.NewFlex(),
		mainLayout:      tview.NewFlex(),
		sidebarLayout:   tview.NewFlex(),
		standingsTable:  tview.NewTable(),
		filterForm:      tview.NewForm(),
		carousel:        components.NewCarousel(),
		statisticsPanel: tview.NewTextView(),
		statusBar:       tview.NewTextView(),
		helpBar:         tview.NewTextView(),
		sortField:       SortByQualified,
		sortOrder:       SortDesc,
	}

	ss.setupUI()
	ss.setupKeyBindings()

	return ss
}

// GetPrimitive returns the main primitive for the standings screen
func (ss *StandingsScreen) GetPrimitive() tview.Primitive {
	return ss.container
}

// OnEnter is called when the standings screen becomes active
func (ss *StandingsScreen) OnEnter(app any) error {
	ss.app = app

	if err := ss.loadStandings(); err != nil {
		return fmt.Errorf("failed to load standings: %w", err)
	}

	ss.applyFilterAndSort()
	ss.updateDisplay()
	ss.updateStatistics()
	return nil
}

// OnExit is called when leaving the standings screen
func (ss *StandingsScreen) OnExit(app any) error {
	return nil
}

// GetTitle returns the screen title
func (ss *StandingsScreen) GetTitle() string {
	if len(ss.filtered) != len(ss.standings) {
		return fmt.Sprintf("Standings (%d/%d teams)", len(ss.filtered), len(ss.standings))
	}
	return fmt.Sprintf("Standings (%d teams)", len(ss.standings))
}

// GetHelpText returns help text for the standings screen
func (ss *StandingsScreen) GetHelpText() []string {
	return []string{
		"Arrow Keys: Navigate standings",
		"Tab: Edit filters, Esc: Back to the table",
		"F: Change sort field",
		"O: Toggle sort order",
		"C: Clear all filters",
		"R: Refresh display",
	}
}

// setupUI initializes the user interface layout
func (ss *StandingsScreen) setupUI() {
	ss.standingsTable.SetBorder(true).
		SetTitle(" Standings ").
		SetTitleAlign(tview.AlignLeft)
	ss.standingsTable.SetSelectable(true, false)
	ss.standingsTable.SetFixed(1, 0)
	ss.standingsTable.SetSelectionChangedFunc(func(row, column int) {
		if row > 0 && row <= len(ss.filtered) {
			ss.carousel.NavigateToTeam(ss.filtered[row-1].Name)
		}
	})

	ss.setupTableHeaders()
	ss.setupFilterForm()

	ss.statisticsPanel.SetBorder(true).
		SetTitle(" Statistics ").
		SetTitleAlign(tview.AlignLeft)
	ss.statisticsPanel.SetDynamicColors(true)

	ss.statusBar.SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)

	ss.helpBar.SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]F:Sort field  O:Order  C:Clear  R:Refresh[white]")

	ss.sidebarLayout.SetDirection(tview.FlexRow).
		AddItem(ss.filterForm, 9, 0, false).
		AddItem(ss.carousel.GetPrimitive(), 0, 2, false).
		AddItem(ss.statisticsPanel, 10, 0, false)

	ss.mainLayout.SetDirection(tview.FlexColumn).
		AddItem(ss.standingsTable, 0, 3, true).
		AddItem(ss.sidebarLayout, 44, 1, false)

	ss.container.SetDirection(tview.FlexRow).
		AddItem(ss.mainLayout, 0, 1, true).
		AddItem(ss.statusBar, 1, 1, false).
		AddItem(ss.helpBar, 1, 1, false)
}

var standingsHeaders = []string{"#", "Seed", "Team", "Rating", "3-0", "Qualified", "0-3", "Champion"}

// setupTableHeaders configures the standings table headers
func (ss *StandingsScreen) setupTableHeaders() {
	for col, header := range standingsHeaders {
		cell := tview.NewTableCell(header).
			SetTextColor(tcell.ColorYellow).
			SetAlign(tview.AlignCenter).
			SetSelectable(false).
			SetExpansion(1)
		if col == 2 {
			cell.SetExpansion(3)
		}
		ss.standingsTable.SetCell(0, col, cell)
	}
}

// setupFilterForm configures the filter form
func (ss *StandingsScreen) setupFilterForm() {
	ss.filterForm.SetBorder(true).
		SetTitle(" Filters ").
		SetTitleAlign(tview.AlignLeft)

	ss.filterForm.AddInputField("Search:", "", 20, nil, func(text string) {
		ss.filter.SearchText = text
		ss.applyFilterAndSort()
		ss.updateDisplay()
	})

	ss.filterForm.AddInputField("Min Qualified %:", "0", 6, nil, func(text string) {
		if value, err := strconv.ParseFloat(text, 64); err == nil {
			ss.filter.MinQualified = value
			ss.applyFilterAndSort()
			ss.updateDisplay()
		}
	})

	ss.filterForm.AddCheckbox("Bracket only:", false, func(checked bool) {
		ss.filter.BracketOnly = checked
		ss.applyFilterAndSort()
		ss.updateDisplay()
	})
}

// setupKeyBindings configures keyboard shortcuts
func (ss *StandingsScreen) setupKeyBindings() {
	ss.filterForm.SetCancelFunc(func() {
		ss.focus(ss.standingsTable)
	})

	ss.standingsTable.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyTab {
			ss.focus(ss.filterForm)
			return nil
		}

		switch event.Rune() {
		case 'f', 'F':
			ss.cycleSortField()
			return nil
		case 'o', 'O':
			ss.toggleSortOrder()
			return nil
		case 'c', 'C':
			ss.clearFilters()
			return nil
		case 'r', 'R':
			ss.refreshDisplay()
			return nil
		}
		return event
	})
}

// focus hands keyboard focus to p when the host supports it
func (ss *StandingsScreen) focus(p tview.Primitive) {
	if f, ok := ss.app.(focuser); ok {
		f.SetFocus(p)
	}
}

// loadStandings reads the standings from the hosting application
func (ss *StandingsScreen) loadStandings() error {
	source, ok := ss.app.(reportSource)
	if !ok {
		return ErrNoReport
	}
	report := source.GetReport()
	if report == nil || len(report.Standings) == 0 {
		return ErrNoReport
	}

	ss.report = report
	ss.standings = report.Standings
	ss.carousel.SetStandings(report.Standings)
	return nil
}

// applyFilterAndSort applies current filter criteria and sorts the results
func (ss *StandingsScreen) applyFilterAndSort() {
	ss.filtered = make([]forecast.Standing, 0, len(ss.standings))
	for _, s := range ss.standings {
		if ss.matchesFilter(s) {
			ss.filtered = append(ss.filtered, s)
		}
	}
	ss.sortStandings()
}

// matchesFilter checks if a standing matches the current filter criteria
func (ss *StandingsScreen) matchesFilter(s forecast.Standing) bool {
	if ss.filter.SearchText != "" &&
		!strings.Contains(strings.ToLower(s.Name), strings.ToLower(ss.filter.SearchText)) {
		return false
	}
	if s.Stage.Qualified*100 < ss.filter.MinQualified {
		return false
	}
	if ss.filter.BracketOnly && !s.InBracket {
		return false
	}
	return true
}

// sortStandings orders the filtered standings; ties keep seed order
func (ss *StandingsScreen) sortStandings() {
	sort.SliceStable(ss.filtered, func(i, j int) bool {
		a, b := ss.filtered[i], ss.filtered[j]
		var x, y float64
		switch ss.sortField {
		case SortByQualified:
			x, y = a.Stage.Qualified, b.Stage.Qualified
		case SortByChampion:
			x, y = a.Bracket.Champion, b.Bracket.Champion
		case SortByRating:
			x, y = a.Rating, b.Rating
		case SortBySeed:
			// seeds read naturally ascending
			x, y = float64(b.Seed), float64(a.Seed)
		case SortByName:
			x, y = float64(strings.Compare(b.Name, a.Name)), 0
		}
		if ss.sortOrder == SortAsc {
			return x < y
		}
		return x > y
	})
}

// updateDisplay refreshes the standings table with current data
func (ss *StandingsScreen) updateDisplay() {
	ss.standingsTable.Clear()
	ss.setupTableHeaders()

	for row, s := range ss.filtered {
		ss.addStandingRow(row+1, s)
	}

	ss.updateStatusBar()
	if len(ss.filtered) > 0 {
		ss.standingsTable.Select(1, 0)
	}
}

// addStandingRow adds a single standing row to the table
func (ss *StandingsScreen) addStandingRow(row int, s forecast.Standing) {
	nameColor := tcell.ColorWhite
	if s.InBracket {
		nameColor = tcell.ColorGreen
	}

	champion := "-"
	if s.InBracket {
		champion = formatRate(s.Bracket.Champion)
	}

	cells := []*tview.TableCell{
		tview.NewTableCell(strconv.Itoa(row)).SetAlign(tview.AlignCenter),
		tview.NewTableCell(strconv.Itoa(s.Seed + 1)).SetAlign(tview.AlignCenter),
		tview.NewTableCell(s.Name).SetAlign(tview.AlignLeft).SetTextColor(nameColor).SetExpansion(3),
		tview.NewTableCell(fmt.Sprintf("%.1f", s.Rating)).SetAlign(tview.AlignRight),
		tview.NewTableCell(formatRate(s.Stage.Sweep)).SetAlign(tview.AlignRight),
		tview.NewTableCell(formatRate(s.Stage.Qualified)).SetAlign(tview.AlignRight).SetTextColor(rateColor(s.Stage.Qualified)),
		tview.NewTableCell(formatRate(s.Stage.Whitewash)).SetAlign(tview.AlignRight),
		tview.NewTableCell(champion).SetAlign(tview.AlignRight),
	}
	for col, cell := range cells {
		ss.standingsTable.SetCell(row, col, cell)
	}
}

// updateStatusBar updates the status bar with current information
func (ss *StandingsScreen) updateStatusBar() {
	order := map[SortOrder]string{SortAsc: "↑", SortDesc: "↓"}[ss.sortOrder]
	status := fmt.Sprintf("[blue]Showing %d/%d teams | Sort: %s %s",
		len(ss.filtered), len(ss.standings), ss.sortField, order)
	if ss.filter.SearchText != "" {
		status += fmt.Sprintf(" | Search: '%s'", ss.filter.SearchText)
	}
	ss.statusBar.SetText(status + "[white]")
}

// updateStatistics updates the statistics panel
func (ss *StandingsScreen) updateStatistics() {
	if ss.report == nil {
		ss.statisticsPanel.SetText("[gray]No teams to show[white]")
		return
	}

	stats := journal.NewExporter().CalculateStatistics(ss.report)
	ss.statisticsPanel.SetText(fmt.Sprintf(`[yellow]Ratings:[white]
Mean: %.1f  Median: %.1f
Std dev: %.1f  Range: %.1f

[yellow]Forecast:[white]
Rating/qualification r: %.3f
Champion entropy: %.3f
Favourite: %s`,
		stats.RatingMean, stats.RatingMedian,
		stats.RatingStdDev, stats.RatingRange,
		stats.QualifyCorrelation,
		stats.ChampionEntropy,
		formatRate(stats.FavouriteChampion)))
}

// cycleSortField cycles through available sort fields
func (ss *StandingsScreen) cycleSortField() {
	ss.sortField = (ss.sortField + 1) % sortFieldCount
	ss.applyFilterAndSort()
	ss.updateDisplay()
}

// toggleSortOrder toggles between ascending and descending sort
func (ss *StandingsScreen) toggleSortOrder() {
	if ss.sortOrder == SortAsc {
		ss.sortOrder = SortDesc
	} else {
		ss.sortOrder = SortAsc
	}
	ss.applyFilterAndSort()
	ss.updateDisplay()
}

// clearFilters resets all filter criteria
func (ss *StandingsScreen) clearFilters() {
	ss.filter = FilterCriteria{}

	ss.filterForm.GetFormItemByLabel("Search:").(*tview.InputField).SetText("")
	ss.filterForm.GetFormItemByLabel("Min Qualified %:").(*tview.InputField).SetText("0")
	ss.filterForm.GetFormItemByLabel("Bracket only:").(*tview.Checkbox).SetChecked(false)

	ss.applyFilterAndSort()
	ss.updateDisplay()
}

// refreshDisplay reloads the report and updates the display
func (ss *StandingsScreen) refreshDisplay() {
	if err := ss.loadStandings(); err != nil {
		ss.statusBar.SetText(fmt.Sprintf("[red]Error loading standings: %v[white]", err))
		return
	}

	ss.applyFilterAndSort()
	ss.updateDisplay()
	ss.updateStatistics()
}

// formatRate renders a probability as a percentage
func formatRate(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// rateColor returns an appropriate color for a probability
func rateColor(p float64) tcell.Color {
	switch {
	case p >= 0.6:
		return tcell.ColorGreen
	case p >= 0.3:
		return tcell.ColorYellow
	default:
		return tcell.ColorRed
	}
}
