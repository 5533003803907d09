// Package components provides reusable TUI components for the forecast viewer.
// This file implements a progress indicator for long running simulations
// with a text progress bar, throughput and a completion estimate.
package components

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Progress displays the state of a running simulation. Update may be called
// from several worker goroutines at once.
type Progress struct {
	// UI components
	container  *tview.Flex
	bar        *tview.TextView
	statusText *tview.TextView

	mu         sync.Mutex
	phase      string
	done       int
	total      int
	started    time.Time
	lastUpdate time.Time
	finished   bool
	now        func() time.Time

	// Display configuration
	showEstimates  bool
	updateInterval time.Duration
	visible        bool

	// Colors
	textColor   tcell.Color
	borderColor tcell.Color

	onComplete func(phase string, elapsed time.Duration)
}

// ProgressConfig holds configuration options for the progress indicator
type ProgressConfig struct {
	ShowEstimates  bool
	UpdateInterval time.Duration
	TextColor      tcell.Color
	BorderColor    tcell.Color
	OnComplete     func(phase string, elapsed time.Duration)
}

// DefaultProgressConfig returns sensible defaults
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		ShowEstimates:  true,
		UpdateInterval: 100 * time.Millisecond,
		TextColor:      tcell.ColorWhite,
		BorderColor:    tcell.ColorGray,
	}
}

// NewProgress creates a progress indicator
func NewProgress(config ProgressConfig) *Progress {
	p := &Progress{
		container:      tview.NewFlex(),
		bar:            tview.NewTextView(),
		statusText:     tview.NewTextView(),
		now:            time.Now,
		showEstimates:  config.ShowEstimates,
		updateInterval: config.UpdateInterval,
		visible:        true,
		textColor:      config.TextColor,
		borderColor:    config.BorderColor,
		onComplete:     config.OnComplete,
	}

	p.initializeUI()
	return p
}

// initializeUI sets up the progress indicator layout and styling
func (p *Progress) initializeUI() {
	p.bar.SetBorder(true).SetTitle("Simulation Progress")
	p.bar.SetBorderColor(p.borderColor)
	p.bar.SetTextColor(p.textColor)
	p.bar.SetDynamicColors(true)
	p.bar.SetTextAlign(tview.AlignCenter)

	p.statusText.SetBorder(true).SetTitle("Status")
	p.statusText.SetBorderColor(p.borderColor)
	p.statusText.SetTextColor(p.textColor)
	p.statusText.SetDynamicColors(true)

	p.container.SetDirection(tview.FlexRow)
	p.container.AddItem(p.bar, 5, 0, false)
	if p.showEstimates {
		p.container.AddItem(p.statusText, 0, 1, false)
	}
}

// Start resets the indicator for a new phase of total units
func (p *Progress) Start(phase string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reset(phase, total)
	p.render()
}

// reset begins a new phase; callers hold p.mu
func (p *Progress) reset(phase string, total int) {
	p.phase = phase
	p.done = 0
	p.total = total
	p.started = p.now()
	p.lastUpdate = time.Time{}
	p.finished = false
}

// UpdatePhase is Update for a named phase. The first report of a phase other
// than the current one starts it, so concurrent workers of consecutive phases
// can report without coordinating.
func (p *Progress) UpdatePhase(phase string, done, total int) bool {
	p.mu.Lock()
	if p.phase != phase {
		p.reset(phase, total)
	}
	p.mu.Unlock()
	return p.Update(done, total)
}

// Phase returns the name of the current phase
func (p *Progress) Phase() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Update records progress and reports whether the display changed. Calls
// arriving faster than the update interval are folded into the next one.
func (p *Progress) Update(done, total int) bool {
	p.mu.Lock()
	if done > p.done {
		p.done = done
	}
	p.total = total

	complete := p.total > 0 && p.done >= p.total
	now := p.now()
	if !complete && now.Sub(p.lastUpdate) < p.updateInterval {
		p.mu.Unlock()
		return false
	}
	p.lastUpdate = now
	p.render()

	notify := complete && !p.finished && p.onComplete != nil
	if complete {
		p.finished = true
	}
	phase, elapsed := p.phase, now.Sub(p.started)
	p.mu.Unlock()

	if notify {
		p.onComplete(phase, elapsed)
	}
	return true
}

// Fraction returns the completed share in [0,1]
func (p *Progress) Fraction() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fraction()
}

// IsComplete reports whether the current phase has finished
func (p *Progress) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total > 0 && p.done >= p.total
}

// Estimate returns the expected remaining time, or zero when unknown
func (p *Progress) Estimate() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.estimate()
}

// GetContainer returns the main container primitive
func (p *Progress) GetContainer() tview.Primitive {
	return p.container
}

// SetVisible shows or hides the progress indicator
func (p *Progress) SetVisible(visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.visible = visible
	p.render()
}

func (p *Progress) fraction() float64 {
	if p.total <= 0 {
		return 0
	}
	f := float64(p.done) / float64(p.total)
	if f > 1 {
		f = 1
	}
	return f
}

func (p *Progress) estimate() time.Duration {
	f := p.fraction()
	if f <= 0 || f >= 1 {
		return 0
	}
	elapsed := p.now().Sub(p.started)
	return time.Duration(float64(elapsed) * (1 - f) / f)
}

// render refreshes both text views; callers hold p.mu
func (p *Progress) render() {
	if !p.visible {
		p.bar.SetText("")
		p.statusText.SetText("")
		return
	}

	f := p.fraction()
	complete := p.total > 0 && p.done >= p.total
	p.bar.SetText(fmt.Sprintf("%s\n%s\n[white]%.1f%% Complete", p.phase, createProgressBar(f, complete), f*100))

	if !p.showEstimates {
		return
	}

	var status strings.Builder
	elapsed := p.now().Sub(p.started)
	fmt.Fprintf(&status, "[yellow]Phase:[-] %s\n", p.phase)
	fmt.Fprintf(&status, "[yellow]Trials:[-] %d / %d\n", p.done, p.total)
	fmt.Fprintf(&status, "[yellow]Elapsed:[-] %s\n", formatDuration(elapsed))
	if elapsed > 0 && p.done > 0 {
		fmt.Fprintf(&status, "[yellow]Throughput:[-] %.0f trials/s\n", float64(p.done)/elapsed.Seconds())
	}
	if complete {
		status.WriteString("[green]Done[-]")
	} else if eta := p.estimate(); eta > 0 {
		fmt.Fprintf(&status, "[yellow]Remaining:[-] ~%s", formatDuration(eta))
	}
	p.statusText.SetText(status.String())
}

// createProgressBar creates a visual progress bar using text characters
func createProgressBar(progress float64, isComplete bool) string {
	const barWidth = 30
	filledWidth := int(progress * barWidth)
	if filledWidth > barWidth {
		filledWidth = barWidth
	}

	color := "[blue]"
	if isComplete {
		color = "[green]"
	}

	return color + strings.Repeat("█", filledWidth) + "[gray]" + strings.Repeat("░", barWidth-filledWidth) + "[white]"
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) - (minutes * 60)
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) - (hours * 60)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
