package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// HelpScreen provides help and keyboard shortcut information
type HelpScreen struct {
	root     *tview.Flex
	textView *tview.TextView
	app      *App
}

// NewHelpScreen creates a new help screen
func NewHelpScreen() *HelpScreen {
	hs := &HelpScreen{
		root:     tview.NewFlex(),
		textView: tview.NewTextView(),
	}

	hs.setupLayout()
	return hs
}

// GetPrimitive returns the root primitive for this screen
func (hs *HelpScreen) GetPrimitive() tview.Primitive {
	return hs.root
}

// OnEnter is called when the help screen becomes active
func (hs *HelpScreen) OnEnter(app any) error {
	hs.app, _ = app.(*App)
	hs.updateContent()
	return nil
}

// OnExit is called when leaving the help screen
func (hs *HelpScreen) OnExit(app any) error {
	return nil
}

// GetTitle returns the screen title
func (hs *HelpScreen) GetTitle() string {
	return "Help"
}

// setupLayout configures the help screen layout
func (hs *HelpScreen) setupLayout() {
	hs.textView.
		SetBorder(true).
		SetTitle("Help - Tournament Forecast").
		SetTitleAlign(tview.AlignCenter)

	hs.textView.SetWrap(true).
		SetDynamicColors(true).
		SetScrollable(true)

	hs.textView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEsc {
			if hs.app != nil {
				_ = hs.app.GoBack()
			}
			return nil
		}
		return event
	})

	hs.root.AddItem(hs.textView, 0, 1, true)
}

// updateContent updates the help screen content
func (hs *HelpScreen) updateContent() {
	var content strings.Builder

	content.WriteString("[yellow]Tournament Forecast[-]\n\n")
	content.WriteString("Ratings are fitted from the match history, then the 16-team Swiss group stage\n")
	content.WriteString("and the 8-team playoff bracket are simulated many times. Every percentage on\n")
	content.WriteString("these screens is the share of simulated tournaments with that outcome.\n\n")

	if hs.app != nil {
		if report := hs.app.GetReport(); report != nil {
			content.WriteString("[green]Current Forecast[-]\n")
			content.WriteString("════════════════\n")
			fmt.Fprintf(&content, "Report %s, generated %s\n", report.ID, report.GeneratedAt.Local().Format(time.DateTime))
			if report.Stage != nil && report.Bracket != nil {
				fmt.Fprintf(&content, "%d group stages and %d brackets, seed %d\n",
					report.Stage.Trials, report.Bracket.Trials, report.Stage.Seed)
			}
			fmt.Fprintf(&content, "Bracket order from %s, predicted champion %s\n\n", report.OrderSource, report.Champion)
		}
	}

	content.WriteString("[green]Global Keyboard Shortcuts[-]\n")
	content.WriteString("═════════════════════════════\n")
	for _, binding := range globalKeyBindings {
		content.WriteString("[white]")
		content.WriteString(keyLabel(binding))
		content.WriteString("[-]  - ")
		content.WriteString(binding.Description)
		content.WriteString("\n")
	}

	content.WriteString("\n[green]Screens[-]\n")
	content.WriteString("═══════\n")
	content.WriteString("[white]Standings[-] - Ratings and group stage odds, with filters and team profiles\n")
	content.WriteString("[white]Bracket[-]   - Published playoff bracket and simulated playoff odds\n")
	content.WriteString("[white]Pick'em[-]   - Suggested 3-0 / advance / 0-3 picks and their hit rates\n")
	content.WriteString("[white]Help[-]      - This help screen, Esc returns to the previous one\n")

	content.WriteString("\n[green]Standings Keys[-]\n")
	content.WriteString("══════════════\n")
	content.WriteString("f - cycle the sort column, o - reverse the order\n")
	content.WriteString("c - clear filters, r - reload the report, Tab - edit filters, Esc - back to the table\n")

	content.WriteString("\n[green]Notes[-]\n")
	content.WriteString("═════\n")
	content.WriteString("• The published bracket always advances the higher qualification rate\n")
	content.WriteString("• The same seed reproduces the same forecast on any number of workers\n")
	content.WriteString("• Export writes the configured format atomically to the configured path\n")

	hs.textView.SetText(content.String())
}
