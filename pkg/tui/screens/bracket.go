package screens

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/pashagolub/swisspredict/pkg/bracket"
	"github.com/pashagolub/swisspredict/pkg/forecast"
)

// BracketScreen shows the published playoff bracket next to the simulated
// per-team playoff probabilities
type BracketScreen struct {
	container *tview.Flex
	treeView  *tview.TextView
	oddsTable *tview.Table
	statusBar *tview.TextView
	report    *forecast.Report
	inBracket []forecast.Standing
	app       any
}

// NewBracketScreen creates a new bracket screen instance
func NewBracketScreen() *BracketScreen {
	bs := &BracketScreen{
		container: tview.NewFlex(),
		treeView:  tview.NewTextView(),
		oddsTable: tview.NewTable(),
		statusBar: tview.NewTextView(),
	}

	bs.setupUI()
	return bs
}

// GetPrimitive returns the main primitive for the bracket screen
func (bs *BracketScreen) GetPrimitive() tview.Primitive {
	return bs.container
}

// OnEnter is called when the bracket screen becomes active
func (bs *BracketScreen) OnEnter(app any) error {
	bs.app = app

	source, ok := app.(reportSource)
	if !ok || source.GetReport() == nil {
		return fmt.Errorf("failed to load bracket: %w", ErrNoReport)
	}
	bs.report = source.GetReport()

	bs.inBracket = bs.inBracket[:0]
	for _, s := range bs.report.Standings {
		if s.InBracket {
			bs.inBracket = append(bs.inBracket, s)
		}
	}
	sort.SliceStable(bs.inBracket, func(i, j int) bool {
		return bs.inBracket[i].Bracket.Champion > bs.inBracket[j].Bracket.Champion
	})

	bs.updateTree()
	bs.updateOdds()
	bs.updateStatus()
	return nil
}

// OnExit is called when leaving the bracket screen
func (bs *BracketScreen) OnExit(app any) error {
	return nil
}

// GetTitle returns the screen title
func (bs *BracketScreen) GetTitle() string {
	if bs.report != nil && bs.report.Champion != "" {
		return fmt.Sprintf("Playoffs (predicted champion: %s)", bs.report.Champion)
	}
	return "Playoffs"
}

// setupUI initializes the bracket layout
func (bs *BracketScreen) setupUI() {
	bs.treeView.SetBorder(true).
		SetTitle(" Published Bracket ").
		SetTitleAlign(tview.AlignLeft)
	bs.treeView.SetDynamicColors(true).
		SetScrollable(true)

	bs.oddsTable.SetBorder(true).
		SetTitle(" Playoff Odds ").
		SetTitleAlign(tview.AlignLeft)
	bs.oddsTable.SetSelectable(true, false)
	bs.oddsTable.SetFixed(1, 0)

	bs.statusBar.SetDynamicColors(true)

	body := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(bs.treeView, 0, 1, false).
		AddItem(bs.oddsTable, 0, 1, true)

	bs.container.SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(bs.statusBar, 1, 0, false)
}

var roundTitles = map[bracket.Round]string{
	bracket.Quarterfinal: "Quarterfinals",
	bracket.Semifinal:    "Semifinals",
	bracket.GrandFinal:   "Grand Final",
}

// updateTree renders the published bracket round by round
func (bs *BracketScreen) updateTree() {
	if len(bs.report.Published) == 0 {
		bs.treeView.SetText("[gray]No bracket was published[-]")
		return
	}

	var content strings.Builder
	var round bracket.Round
	for _, m := range bs.report.Published {
		if m.Round != round {
			if round != 0 {
				content.WriteString("\n")
			}
			round = m.Round
			fmt.Fprintf(&content, "[yellow]%s[-]\n", roundTitles[m.Round])
		}
		fmt.Fprintf(&content, "  %-4s %s vs %s (%s)\n", m.Label, highlight(m.NameA, m.WinnerName), highlight(m.NameB, m.WinnerName), strings.ToUpper(m.Format.String()))
		fmt.Fprintf(&content, "       -> [green]%s[-] %.1f%%\n", m.WinnerName, m.WinProbability*100)
	}
	fmt.Fprintf(&content, "\n[yellow]Champion:[-] [green::b]%s[-::-]", bs.report.Champion)

	bs.treeView.SetText(content.String())
}

var oddsHeaders = []string{"Team", "Seed", "Semifinal", "Final", "Champion"}

// updateOdds fills the simulated playoff probabilities table
func (bs *BracketScreen) updateOdds() {
	bs.oddsTable.Clear()
	for col, header := range oddsHeaders {
		bs.oddsTable.SetCell(0, col, tview.NewTableCell(header).
			SetTextColor(tcell.ColorYellow).
			SetAlign(tview.AlignCenter).
			SetSelectable(false).
			SetExpansion(1))
	}

	for i, s := range bs.inBracket {
		row := i + 1
		bs.oddsTable.SetCell(row, 0, tview.NewTableCell(s.Name).SetExpansion(2))
		bs.oddsTable.SetCell(row, 1, tview.NewTableCell(strconv.Itoa(s.Seed+1)).SetAlign(tview.AlignCenter))
		bs.oddsTable.SetCell(row, 2, tview.NewTableCell(formatRate(s.Bracket.Semifinal)).SetAlign(tview.AlignRight))
		bs.oddsTable.SetCell(row, 3, tview.NewTableCell(formatRate(s.Bracket.Final)).SetAlign(tview.AlignRight))
		bs.oddsTable.SetCell(row, 4, tview.NewTableCell(formatRate(s.Bracket.Champion)).
			SetAlign(tview.AlignRight).
			SetTextColor(rateColor(s.Bracket.Champion*2)))
	}
}

// updateStatus describes where the bracket order came from
func (bs *BracketScreen) updateStatus() {
	trials := 0
	if bs.report.Bracket != nil {
		trials = bs.report.Bracket.Trials
	}
	bs.statusBar.SetText(fmt.Sprintf("[blue]Bracket order: %s (%s) | %d simulated brackets[white]",
		strings.Join(bs.report.Order, ", "), bs.report.OrderSource, trials))
}

// highlight marks the winner of a published match
func highlight(name, winner string) string {
	if name == winner {
		return "[green]" + name + "[-]"
	}
	return name
}
