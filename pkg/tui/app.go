// Package tui provides the terminal viewer for tournament forecasts.
// It implements the main TUI application structure with screen management,
// keyboard shortcuts, a simulation progress view and report export.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/pashagolub/swisspredict/pkg/bracket"
	"github.com/pashagolub/swisspredict/pkg/data"
	"github.com/pashagolub/swisspredict/pkg/forecast"
	"github.com/pashagolub/swisspredict/pkg/journal"
	"github.com/pashagolub/swisspredict/pkg/swiss"
	"github.com/pashagolub/swisspredict/pkg/tui/components"
	"github.com/pashagolub/swisspredict/pkg/tui/screens"
)

// ErrNoExportPath is returned when exporting without a configured output file
var ErrNoExportPath = errors.New("no export path configured")

// ScreenType represents different screens in the TUI application
type ScreenType int

const (
	ScreenStandings ScreenType = iota
	ScreenBracket
	ScreenPickem
	ScreenProgress
	ScreenHelp
)

// String returns the string representation of ScreenType
func (s ScreenType) String() string {
	switch s {
	case ScreenStandings:
		return "standings"
	case ScreenBracket:
		return "bracket"
	case ScreenPickem:
		return "pickem"
	case ScreenProgress:
		return "progress"
	case ScreenHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Screen interface defines the contract for all TUI screens
type Screen interface {
	// GetPrimitive returns the tview.Primitive for this screen
	GetPrimitive() tview.Primitive

	// OnEnter is called when the screen becomes active
	OnEnter(app any) error

	// OnExit is called when leaving the screen
	OnExit(app any) error

	// GetTitle returns the screen title for display
	GetTitle() string
}

// Progress phases shown while a forecast runs
const (
	PhaseGroupStage = "Simulating group stage"
	PhasePlayoffs   = "Simulating playoffs"
)

// SimulateFunc produces a forecast while reporting group stage and playoff progress
type SimulateFunc func(ctx context.Context, stage swiss.ProgressFunc, playoffs bracket.ProgressFunc) (*forecast.Report, error)

// AppState represents the current application state
type AppState struct {
	mu             sync.RWMutex
	report         *forecast.Report
	exportPath     string
	exportOptions  journal.ExportOptions
	currentScreen  ScreenType
	previousScreen ScreenType
	isRunning      bool
	lastExportTime *time.Time
}

// App represents the main TUI application
type App struct {
	tviewApp *tview.Application
	pages    *tview.Pages
	header   *tview.TextView
	footer   *tview.TextView
	state    *AppState
	screens  map[ScreenType]Screen
	progress *components.Progress
	exporter *journal.Exporter
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex
}

// KeyBinding represents a keyboard shortcut
type KeyBinding struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func(app *App) error
}

// Global key bindings available across all screens
var globalKeyBindings = []KeyBinding{
	{Key: tcell.KeyCtrlC, Description: "Exit", Handler: (*App).Exit},
	{Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Handler: (*App).Exit},
	{Key: tcell.KeyRune, Rune: 's', Description: "Standings", Handler: (*App).ShowStandings},
	{Key: tcell.KeyRune, Rune: 'b', Description: "Bracket", Handler: (*App).ShowBracket},
	{Key: tcell.KeyRune, Rune: 'p', Description: "Pick'em", Handler: (*App).ShowPickem},
	{Key: tcell.KeyRune, Rune: 'e', Description: "Export", Handler: (*App).ExportReport},
	{Key: tcell.KeyRune, Rune: '?', Description: "Help", Handler: (*App).ShowHelp},
}

// NewApp creates a new TUI application instance with every screen registered
func NewApp(export data.ExportConfig, logger *zap.Logger) (*App, error) {
	if err := export.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		tviewApp: tview.NewApplication(),
		pages:    tview.NewPages(),
		header:   tview.NewTextView(),
		footer:   tview.NewTextView(),
		state: &AppState{
			exportPath:    export.Path,
			exportOptions: journal.OptionsFromConfig(export),
			currentScreen: ScreenStandings,
		},
		screens:  make(map[ScreenType]Screen),
		exporter: journal.NewExporter(),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	app.progress = components.NewProgress(components.ProgressConfig{
		ShowEstimates:  true,
		UpdateInterval: 100 * time.Millisecond,
		TextColor:      tcell.ColorWhite,
		BorderColor:    tcell.ColorGray,
		OnComplete: func(phase string, elapsed time.Duration) {
			logger.Debug("simulation phase finished", zap.String("phase", phase), zap.Duration("elapsed", elapsed))
		},
	})

	if err := app.setupUI(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to setup UI: %w", err)
	}

	registrations := []struct {
		screenType ScreenType
		screen     Screen
	}{
		{ScreenStandings, screens.NewStandingsScreen()},
		{ScreenBracket, screens.NewBracketScreen()},
		{ScreenPickem, screens.NewPickemScreen()},
		{ScreenProgress, &progressScreen{progress: app.progress}},
		{ScreenHelp, NewHelpScreen()},
	}
	for _, r := range registrations {
		if err := app.RegisterScreen(r.screenType, r.screen); err != nil {
			cancel()
			return nil, err
		}
	}

	return app, nil
}

// setupUI initializes the UI components and layout
func (a *App) setupUI() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.header.SetBorder(true).
		SetTitle("Tournament Forecast").
		SetTitleAlign(tview.AlignCenter).
		SetBackgroundColor(tcell.ColorDarkBlue)
	a.header.SetTextColor(tcell.ColorWhite)

	a.footer.SetBorder(true).
		SetTitle("Keyboard Shortcuts").
		SetTitleAlign(tview.AlignCenter).
		SetBackgroundColor(tcell.ColorDarkGreen)
	a.footer.SetTextColor(tcell.ColorWhite)

	a.updateFooter()

	mainLayout := tview.NewFlex().SetDirection(tview.FlexRow)
	mainLayout.AddItem(a.header, 3, 0, false)
	mainLayout.AddItem(a.pages, 0, 1, true)
	mainLayout.AddItem(a.footer, 3, 0, false)
	mainLayout.SetInputCapture(a.handleGlobalInput)

	a.tviewApp.SetRoot(mainLayout, true)
	a.tviewApp.EnableMouse(true)
	a.tviewApp.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		a.updateHeader()
		return false
	})

	return nil
}

// RegisterScreen registers a screen with the application
func (a *App) RegisterScreen(screenType ScreenType, screen Screen) error {
	if screen == nil {
		return fmt.Errorf("screen cannot be nil")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.screens[screenType] = screen
	a.pages.AddPage(screenType.String(), screen.GetPrimitive(), true, false)

	return nil
}

// NavigateTo switches to the specified screen
func (a *App) NavigateTo(screenType ScreenType) error {
	a.mu.RLock()
	screen, exists := a.screens[screenType]
	a.mu.RUnlock()
	if !exists {
		return fmt.Errorf("screen %s not registered", screenType.String())
	}

	a.state.mu.RLock()
	previousScreen := a.state.currentScreen
	a.state.mu.RUnlock()

	a.mu.RLock()
	currentScreen, hasCurrentScreen := a.screens[previousScreen]
	a.mu.RUnlock()

	// Screens call back into the app, so no lock is held here
	if hasCurrentScreen && previousScreen != screenType {
		if err := currentScreen.OnExit(a); err != nil {
			return fmt.Errorf("failed to exit screen %s: %w", previousScreen.String(), err)
		}
	}

	if err := screen.OnEnter(a); err != nil {
		return fmt.Errorf("failed to enter screen %s: %w", screenType.String(), err)
	}

	a.state.mu.Lock()
	if previousScreen != screenType {
		a.state.previousScreen = previousScreen
	}
	a.state.currentScreen = screenType
	a.state.mu.Unlock()

	a.pages.SwitchToPage(screenType.String())
	return nil
}

// ShowStandings displays the standings screen
func (a *App) ShowStandings() error {
	return a.NavigateTo(ScreenStandings)
}

// ShowBracket displays the playoff bracket screen
func (a *App) ShowBracket() error {
	return a.NavigateTo(ScreenBracket)
}

// ShowPickem displays the pick'em screen
func (a *App) ShowPickem() error {
	return a.NavigateTo(ScreenPickem)
}

// ShowHelp displays the help screen
func (a *App) ShowHelp() error {
	return a.NavigateTo(ScreenHelp)
}

// GoBack returns to the previously displayed screen
func (a *App) GoBack() error {
	a.state.mu.RLock()
	previous := a.state.previousScreen
	a.state.mu.RUnlock()
	return a.NavigateTo(previous)
}

// Exit stops the application and cancels a running simulation
func (a *App) Exit() error {
	a.state.mu.Lock()
	a.state.isRunning = false
	a.state.mu.Unlock()

	a.cancel()
	a.tviewApp.Stop()
	return nil
}

// ExportReport writes the current report to the configured export path
func (a *App) ExportReport() error {
	a.state.mu.RLock()
	report := a.state.report
	path := a.state.exportPath
	options := a.state.exportOptions
	a.state.mu.RUnlock()

	if report == nil {
		a.showErrorDialog("Export Error", "No forecast to export yet")
		return screens.ErrNoReport
	}
	if path == "" {
		a.showErrorDialog("Export Error", "No export path configured.\n\nSet export.path in the configuration or pass --output.")
		return ErrNoExportPath
	}

	if err := a.exporter.ExportToFile(report, path, options); err != nil {
		a.showErrorDialog("Export Failed", fmt.Sprintf("Failed to export the forecast:\n\n%v", err))
		return err
	}

	now := time.Now()
	a.state.mu.Lock()
	a.state.lastExportTime = &now
	a.state.mu.Unlock()

	a.logger.Info("forecast exported", zap.String("path", path), zap.String("format", string(options.Format)))
	a.updateHeader()
	return nil
}

// Run shows an existing report, starting on the standings screen
func (a *App) Run() error {
	if err := a.NavigateTo(ScreenStandings); err != nil {
		return fmt.Errorf("failed to navigate to standings screen: %w", err)
	}

	a.state.mu.Lock()
	a.state.isRunning = true
	a.state.mu.Unlock()

	return a.tviewApp.Run()
}

// RunWithSimulation shows simulation progress while simulate runs and then
// switches to the standings. Leaving the viewer cancels the simulation.
func (a *App) RunWithSimulation(simulate SimulateFunc) error {
	if err := a.NavigateTo(ScreenProgress); err != nil {
		return err
	}
	a.progress.Start(PhaseGroupStage, 0)

	a.state.mu.Lock()
	a.state.isRunning = true
	a.state.mu.Unlock()

	var simErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		report, err := simulate(a.ctx, a.reportProgress, a.reportPlayoffProgress)
		if err != nil {
			simErr = err
			if errors.Is(err, context.Canceled) {
				a.logger.Debug("simulation cancelled")
				return
			}
			a.logger.Error("simulation failed", zap.Error(err))
			if a.IsRunning() {
				a.tviewApp.QueueUpdateDraw(func() {
					a.showErrorDialog("Simulation Failed", err.Error())
				})
			}
			return
		}
		if !a.IsRunning() {
			return
		}
		a.tviewApp.QueueUpdateDraw(func() {
			a.SetReport(report)
			if err := a.NavigateTo(ScreenStandings); err != nil {
				a.showErrorDialog("Display Error", err.Error())
			}
		})
	}()

	runErr := a.tviewApp.Run()
	a.state.mu.Lock()
	a.state.isRunning = false
	a.state.mu.Unlock()
	a.cancel()
	<-done

	if runErr != nil {
		return runErr
	}
	if simErr != nil && !errors.Is(simErr, context.Canceled) {
		return simErr
	}
	return nil
}

// reportProgress forwards group stage progress to the progress screen
func (a *App) reportProgress(done, total int) {
	a.reportPhase(PhaseGroupStage, done, total)
}

// reportPlayoffProgress forwards playoff progress to the progress screen
func (a *App) reportPlayoffProgress(done, total int) {
	a.reportPhase(PhasePlayoffs, done, total)
}

func (a *App) reportPhase(phase string, done, total int) {
	if a.progress.UpdatePhase(phase, done, total) && a.IsRunning() {
		a.tviewApp.QueueUpdateDraw(func() {})
	}
}

// Stop gracefully stops the application
func (a *App) Stop() {
	if a.IsRunning() {
		_ = a.Exit()
	}
}

// SetReport replaces the displayed report
func (a *App) SetReport(report *forecast.Report) {
	a.state.mu.Lock()
	defer a.state.mu.Unlock()
	a.state.report = report
}

// GetReport returns the displayed report
func (a *App) GetReport() *forecast.Report {
	a.state.mu.RLock()
	defer a.state.mu.RUnlock()
	return a.state.report
}

// SetExportPath changes the destination of ExportReport
func (a *App) SetExportPath(path string) {
	a.state.mu.Lock()
	defer a.state.mu.Unlock()
	a.state.exportPath = path
}

// SetFocus moves keyboard focus to p
func (a *App) SetFocus(p tview.Primitive) {
	a.tviewApp.SetFocus(p)
}

// GetTViewApp returns the underlying tview application for advanced usage
func (a *App) GetTViewApp() *tview.Application {
	return a.tviewApp
}

// handleGlobalInput handles global keyboard shortcuts
func (a *App) handleGlobalInput(event *tcell.EventKey) *tcell.EventKey {
	// Letters typed into a form field belong to the field
	if event.Key() == tcell.KeyRune {
		if _, ok := a.tviewApp.GetFocus().(*tview.InputField); ok {
			return event
		}
	}

	for _, binding := range globalKeyBindings {
		if (binding.Key != tcell.KeyRune && event.Key() == binding.Key) ||
			(binding.Key == tcell.KeyRune && event.Key() == tcell.KeyRune && event.Rune() == binding.Rune) {
			if err := binding.Handler(a); err != nil {
				a.logger.Debug("key binding failed", zap.String("binding", binding.Description), zap.Error(err))
			}
			return nil
		}
	}

	return event
}

// updateHeader updates the header text with current screen information
func (a *App) updateHeader() {
	a.state.mu.RLock()
	currentScreen := a.state.currentScreen
	report := a.state.report
	lastExport := a.state.lastExportTime
	a.state.mu.RUnlock()

	a.mu.RLock()
	screen, exists := a.screens[currentScreen]
	a.mu.RUnlock()
	if !exists {
		return
	}

	reportInfo := " | Simulation running"
	if report != nil {
		reportInfo = fmt.Sprintf(" | Forecast %s (%s)", report.ID.String()[:8], report.GeneratedAt.Format("2006-01-02 15:04"))
	}

	exportStatus := " | Not exported yet"
	if lastExport != nil {
		elapsed := time.Since(*lastExport)
		switch {
		case elapsed < time.Minute:
			exportStatus = fmt.Sprintf(" | Last exported: %ds ago", int(elapsed.Seconds()))
		case elapsed < time.Hour:
			exportStatus = fmt.Sprintf(" | Last exported: %dm ago", int(elapsed.Minutes()))
		default:
			exportStatus = fmt.Sprintf(" | Last exported: %s", lastExport.Format("15:04"))
		}
	}

	a.header.SetText(fmt.Sprintf("Screen: %s%s%s", screen.GetTitle(), reportInfo, exportStatus))
}

// showErrorDialog displays an error message in a modal dialog
func (a *App) showErrorDialog(title, message string) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			a.pages.RemovePage("error-dialog")
		})

	modal.SetTitle(title).
		SetBorder(true).
		SetBackgroundColor(tcell.ColorDarkRed)

	a.pages.AddPage("error-dialog", modal, true, true)
}

// updateFooter updates the footer with current key bindings
func (a *App) updateFooter() {
	helpText := ""
	for i, binding := range globalKeyBindings {
		if i > 0 {
			helpText += " | "
		}
		helpText += fmt.Sprintf("%s: %s", keyLabel(binding), binding.Description)
	}
	a.footer.SetText(helpText)
}

// keyLabel renders the key of a binding for display
func keyLabel(binding KeyBinding) string {
	if binding.Key != tcell.KeyRune {
		return tcell.KeyNames[binding.Key]
	}
	return string(binding.Rune)
}

// IsRunning returns whether the application is currently running
func (a *App) IsRunning() bool {
	a.state.mu.RLock()
	defer a.state.mu.RUnlock()
	return a.state.isRunning
}

// GetCurrentScreen returns the current screen type
func (a *App) GetCurrentScreen() ScreenType {
	a.state.mu.RLock()
	defer a.state.mu.RUnlock()
	return a.state.currentScreen
}

// progressScreen hosts the simulation progress indicator
type progressScreen struct {
	progress *components.Progress
}

func (ps *progressScreen) GetPrimitive() tview.Primitive { return ps.progress.GetContainer() }
func (ps *progressScreen) OnEnter(app any) error         { return nil }
func (ps *progressScreen) OnExit(app any) error          { return nil }
func (ps *progressScreen) GetTitle() string              { return "Simulation" }
