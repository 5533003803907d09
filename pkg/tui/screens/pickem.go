package screens

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/pashagolub/swisspredict/pkg/forecast"
)

// PickemScreen shows the pick'em prediction with the stage probability
// backing every pick
type PickemScreen struct {
	container *tview.Flex
	summary   *tview.TextView
	picks     *tview.Table
	report    *forecast.Report
	app       any
}

// NewPickemScreen creates a new pick'em screen instance
func NewPickemScreen() *PickemScreen {
	ps := &PickemScreen{
		container: tview.NewFlex(),
		summary:   tview.NewTextView(),
		picks:     tview.NewTable(),
	}

	ps.summary.SetBorder(true).
		SetTitle(" Pick'em ").
		SetTitleAlign(tview.AlignLeft)
	ps.summary.SetDynamicColors(true)

	ps.picks.SetBorder(true).
		SetTitle(" Picks ").
		SetTitleAlign(tview.AlignLeft)
	ps.picks.SetSelectable(true, false)
	ps.picks.SetFixed(1, 0)

	ps.container.SetDirection(tview.FlexRow).
		AddItem(ps.summary, 7, 0, false).
		AddItem(ps.picks, 0, 1, true)

	return ps
}

// GetPrimitive returns the main primitive for the pick'em screen
func (ps *PickemScreen) GetPrimitive() tview.Primitive {
	return ps.container
}

// OnEnter is called when the pick'em screen becomes active
func (ps *PickemScreen) OnEnter(app any) error {
	ps.app = app

	source, ok := app.(reportSource)
	if !ok || source.GetReport() == nil {
		return fmt.Errorf("failed to load pick'em: %w", ErrNoReport)
	}
	ps.report = source.GetReport()

	ps.updateContent()
	return nil
}

// OnExit is called when leaving the pick'em screen
func (ps *PickemScreen) OnExit(app any) error {
	return nil
}

// GetTitle returns the screen title
func (ps *PickemScreen) GetTitle() string {
	return "Pick'em"
}

var pickHeaders = []string{"Pick", "Team", "Seed", "Hit rate"}

// updateContent renders the prediction summary and the pick table
func (ps *PickemScreen) updateContent() {
	ps.picks.Clear()

	pickem := ps.report.Pickem
	if pickem == nil {
		ps.summary.SetText("[gray]Pick'em evaluation was disabled for this forecast[-]")
		return
	}

	var summary strings.Builder
	fmt.Fprintf(&summary, "[yellow]Success rate (%d+ correct):[-] %.2f%%\n", pickem.Threshold, pickem.Rate*100)
	fmt.Fprintf(&summary, "[yellow]Greedy suggestion:[-] %.2f%%\n", pickem.Suggested*100)
	if ps.report.Stage != nil {
		fmt.Fprintf(&summary, "[yellow]Evaluated over:[-] %d simulated stages\n", ps.report.Stage.Trials)
	}
	if ps.report.OrderSource == forecast.OrderPickem {
		summary.WriteString("[green]These picks seed the playoff bracket[-]")
	}
	ps.summary.SetText(summary.String())

	for col, header := range pickHeaders {
		ps.picks.SetCell(0, col, tview.NewTableCell(header).
			SetTextColor(tcell.ColorYellow).
			SetAlign(tview.AlignCenter).
			SetSelectable(false).
			SetExpansion(1))
	}

	row := 1
	add := func(label string, names []string, rate func(forecast.Standing) float64) {
		for _, name := range names {
			s, ok := ps.standing(name)
			if !ok {
				continue
			}
			ps.picks.SetCell(row, 0, tview.NewTableCell(label).SetAlign(tview.AlignCenter))
			ps.picks.SetCell(row, 1, tview.NewTableCell(s.Name).SetExpansion(2))
			ps.picks.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%d", s.Seed+1)).SetAlign(tview.AlignCenter))
			ps.picks.SetCell(row, 3, tview.NewTableCell(formatRate(rate(s))).
				SetAlign(tview.AlignRight).
				SetTextColor(rateColor(rate(s))))
			row++
		}
	}

	add("3-0", pickem.Sweep, func(s forecast.Standing) float64 { return s.Stage.Sweep })
	add("Advance", pickem.Advance, func(s forecast.Standing) float64 { return s.Stage.Advanced })
	add("0-3", pickem.Whitewash, func(s forecast.Standing) float64 { return s.Stage.Whitewash })
}

// standing finds a participant by name
func (ps *PickemScreen) standing(name string) (forecast.Standing, bool) {
	for _, s := range ps.report.Standings {
		if s.Name == name {
			return s, true
		}
	}
	return forecast.Standing{}, false
}
