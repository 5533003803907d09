// Package components provides reusable TUI components for the forecast viewer.
// This file implements a team carousel that pages through participant profiles.
package components

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/pashagolub/swisspredict/pkg/forecast"
)

// Carousel displays one participant profile at a time with keyboard navigation
type Carousel struct {
	// UI components
	container    *tview.Flex
	currentCard  *tview.TextView
	navIndicator *tview.TextView

	// Data and state
	standings    []forecast.Standing
	currentIndex int
	totalItems   int

	// Display configuration
	showNumbers    bool
	highlightColor tcell.Color
	normalColor    tcell.Color
	showNavigation bool
	expandedView   bool

	// Navigation callbacks
	onNavigate  func(index int, standing forecast.Standing)
	onSelect    func(index int, standing forecast.Standing)
	keyHandlers map[tcell.Key]func() bool
}

// CarouselConfig holds configuration options for the carousel
type CarouselConfig struct {
	ShowNumbers    bool
	HighlightColor tcell.Color
	NormalColor    tcell.Color
	ShowNavigation bool
	ExpandedView   bool
	OnNavigate     func(index int, standing forecast.Standing)
	OnSelect       func(index int, standing forecast.Standing)
}

// NewCarousel creates a new team carousel with default configuration
func NewCarousel() *Carousel {
	c := &Carousel{
		container:      tview.NewFlex(),
		currentCard:    tview.NewTextView(),
		navIndicator:   tview.NewTextView(),
		currentIndex:   -1,
		showNumbers:    true,
		highlightColor: tcell.ColorYellow,
		normalColor:    tcell.ColorWhite,
		showNavigation: true,
		keyHandlers:    make(map[tcell.Key]func() bool),
	}

	c.setupUI()
	c.setupKeyHandlers()
	c.updateDisplay()
	return c
}

// NewCarouselWithConfig creates a carousel with custom configuration
func NewCarouselWithConfig(config CarouselConfig) *Carousel {
	c := &Carousel{
		container:      tview.NewFlex(),
		currentCard:    tview.NewTextView(),
		navIndicator:   tview.NewTextView(),
		currentIndex:   -1,
		showNumbers:    config.ShowNumbers,
		highlightColor: config.HighlightColor,
		normalColor:    config.NormalColor,
		showNavigation: config.ShowNavigation,
		expandedView:   config.ExpandedView,
		onNavigate:     config.OnNavigate,
		onSelect:       config.OnSelect,
		keyHandlers:    make(map[tcell.Key]func() bool),
	}

	c.setupUI()
	c.setupKeyHandlers()
	c.updateDisplay()
	return c
}

// setupUI initializes the carousel layout
func (c *Carousel) setupUI() {
	c.container.SetDirection(tview.FlexRow)

	c.currentCard.SetBorder(true)
	c.currentCard.SetDynamicColors(true)
	c.currentCard.SetWordWrap(true)
	c.currentCard.SetScrollable(true)

	c.navIndicator.
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true)

	c.container.AddItem(c.currentCard, 0, 1, true)
	if c.showNavigation {
		c.container.AddItem(c.navIndicator, 2, 0, false)
	}

	c.container.SetInputCapture(c.handleInput)
}

// setupKeyHandlers initializes default key bindings
func (c *Carousel) setupKeyHandlers() {
	c.keyHandlers[tcell.KeyLeft] = c.Previous
	c.keyHandlers[tcell.KeyRight] = c.Next
	c.keyHandlers[tcell.KeyHome] = c.First
	c.keyHandlers[tcell.KeyEnd] = c.Last

	c.keyHandlers[tcell.KeyEnter] = func() bool {
		if c.onSelect != nil && c.HasStandings() {
			c.onSelect(c.currentIndex, c.GetCurrent())
		}
		return true
	}

	c.keyHandlers[tcell.KeyTab] = func() bool {
		c.ToggleExpandedView()
		return true
	}
}

// SetStandings replaces the carousel content and rewinds to the first card
func (c *Carousel) SetStandings(standings []forecast.Standing) {
	c.standings = make([]forecast.Standing, len(standings))
	copy(c.standings, standings)
	c.totalItems = len(standings)

	if c.totalItems > 0 {
		c.currentIndex = 0
	} else {
		c.currentIndex = -1
	}

	c.updateDisplay()
}

// GetCurrent returns the currently displayed standing
func (c *Carousel) GetCurrent() forecast.Standing {
	if !c.HasStandings() {
		return forecast.Standing{}
	}
	return c.standings[c.currentIndex]
}

// GetCurrentIndex returns the current carousel position
func (c *Carousel) GetCurrentIndex() int {
	return c.currentIndex
}

// HasStandings returns true if the carousel has anything to show
func (c *Carousel) HasStandings() bool {
	return c.totalItems > 0 && c.currentIndex >= 0 && c.currentIndex < c.totalItems
}

// Next moves to the next card, wrapping around
func (c *Carousel) Next() bool {
	if !c.HasStandings() {
		return false
	}
	return c.NavigateTo((c.currentIndex + 1) % c.totalItems)
}

// Previous moves to the previous card, wrapping around
func (c *Carousel) Previous() bool {
	if !c.HasStandings() {
		return false
	}

	newIndex := c.currentIndex - 1
	if newIndex < 0 {
		newIndex = c.totalItems - 1
	}
	return c.NavigateTo(newIndex)
}

// First moves to the first card
func (c *Carousel) First() bool {
	if !c.HasStandings() {
		return false
	}
	return c.NavigateTo(0)
}

// Last moves to the last card
func (c *Carousel) Last() bool {
	if !c.HasStandings() {
		return false
	}
	return c.NavigateTo(c.totalItems - 1)
}

// NavigateTo moves to a specific card index
func (c *Carousel) NavigateTo(index int) bool {
	if !c.HasStandings() || index < 0 || index >= c.totalItems {
		return false
	}

	c.currentIndex = index
	c.updateDisplay()

	if c.onNavigate != nil {
		c.onNavigate(c.currentIndex, c.GetCurrent())
	}

	return true
}

// NavigateToTeam moves to the card of the named participant
func (c *Carousel) NavigateToTeam(name string) bool {
	for i, s := range c.standings {
		if s.Name == name {
			return c.NavigateTo(i)
		}
	}
	return false
}

// ToggleExpandedView switches between compact and expanded cards
func (c *Carousel) ToggleExpandedView() {
	c.expandedView = !c.expandedView
	c.updateDisplay()
}

// SetExpandedView sets the expanded view mode
func (c *Carousel) SetExpandedView(expanded bool) {
	c.expandedView = expanded
	c.updateDisplay()
}

// SetOnNavigate sets the callback for navigation events
func (c *Carousel) SetOnNavigate(callback func(index int, standing forecast.Standing)) {
	c.onNavigate = callback
}

// SetOnSelect sets the callback for selection events
func (c *Carousel) SetOnSelect(callback func(index int, standing forecast.Standing)) {
	c.onSelect = callback
}

// AddKeyHandler adds a custom key handler
func (c *Carousel) AddKeyHandler(key tcell.Key, handler func() bool) {
	c.keyHandlers[key] = handler
}

// GetPrimitive returns the main container for integration with tview
func (c *Carousel) GetPrimitive() tview.Primitive {
	return c.container
}

// GetText returns the card text without color tags
func (c *Carousel) GetText() string {
	return c.currentCard.GetText(true)
}

// handleInput processes keyboard input for the carousel
func (c *Carousel) handleInput(event *tcell.EventKey) *tcell.EventKey {
	if handler, exists := c.keyHandlers[event.Key()]; exists {
		if handler() {
			return nil
		}
	}
	return event
}

// updateDisplay refreshes the carousel display
func (c *Carousel) updateDisplay() {
	if !c.HasStandings() {
		c.currentCard.SetText("[gray]No teams available[-]")
		c.currentCard.SetTitle("Team")
		c.currentCard.SetBorderColor(c.normalColor)
		if c.showNavigation {
			c.navIndicator.SetText("[gray]0 / 0[-]")
		}
		return
	}

	standing := c.GetCurrent()
	c.currentCard.SetText(c.formatStanding(standing))

	title := standing.Name
	if c.showNumbers {
		title = fmt.Sprintf("Seed %d: %s", standing.Seed+1, standing.Name)
	}
	c.currentCard.SetTitle(title)
	c.currentCard.SetBorderColor(c.highlightColor)
	c.currentCard.SetTitleColor(c.highlightColor)

	if c.showNavigation {
		c.updateNavigationIndicator()
	}
}

// formatStanding creates the card body for a participant
func (c *Carousel) formatStanding(s forecast.Standing) string {
	var content strings.Builder

	fmt.Fprintf(&content, "[white::b]%s[white::-]\n\n", s.Name)
	fmt.Fprintf(&content, "[yellow]Score:[-] %d\n", s.Score)
	fmt.Fprintf(&content, "[blue]Rating:[-] %.1f", s.Rating)
	if s.Rating != s.InitialRating {
		fmt.Fprintf(&content, " (started at %.1f)", s.InitialRating)
	}
	content.WriteString("\n\n")

	content.WriteString("[green]Group stage:[-]\n")
	fmt.Fprintf(&content, "  Qualified  %6.2f%%\n", s.Stage.Qualified*100)
	fmt.Fprintf(&content, "  3-0        %6.2f%%\n", s.Stage.Sweep*100)
	fmt.Fprintf(&content, "  0-3        %6.2f%%\n", s.Stage.Whitewash*100)

	if s.InBracket {
		content.WriteString("\n[green]Playoffs:[-]\n")
		fmt.Fprintf(&content, "  Semifinal  %6.2f%%\n", s.Bracket.Semifinal*100)
		fmt.Fprintf(&content, "  Final      %6.2f%%\n", s.Bracket.Final*100)
		fmt.Fprintf(&content, "  Champion   %6.2f%%\n", s.Bracket.Champion*100)
	} else {
		content.WriteString("\n[gray]Not in the playoff bracket[-]\n")
	}

	if c.expandedView {
		content.WriteString("\n[cyan]History:[-]\n")
		fmt.Fprintf(&content, "  Matches rated    %d\n", s.Matches)
		if s.Matches > 0 {
			fmt.Fprintf(&content, "  Mean opponent    %.1f\n", s.MeanOpponent)
		}
		fmt.Fprintf(&content, "  3-1 or 3-2       %6.2f%%\n", s.Stage.Advanced*100)
	} else {
		content.WriteString("\n[gray]Press Tab for match history[-]")
	}

	return content.String()
}

// updateNavigationIndicator updates the navigation display
func (c *Carousel) updateNavigationIndicator() {
	indicator := fmt.Sprintf("[white]%d / %d[-]", c.currentIndex+1, c.totalItems)
	if c.totalItems > 1 {
		indicator += "\n[gray]← → Navigate  Tab: Expand  Enter: Select[-]"
	}
	c.navIndicator.SetText(indicator)
}
