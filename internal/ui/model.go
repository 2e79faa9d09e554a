package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"spacesweep/internal/cleanup"
	"spacesweep/internal/config"
	"spacesweep/internal/domain"
	"spacesweep/internal/state"
)

// Workflow is the part of the cleanup coordinator the page drives.
type Workflow interface {
	Events() <-chan cleanup.Event
	Snapshot() cleanup.Snapshot
	LoadPrevious(ctx context.Context) bool
	StartScan(ctx context.Context) error
	PlanCleanup(selection domain.Selection, dryRun bool) (cleanup.Plan, error)
	ConfirmCleanup(ctx context.Context, plan cleanup.Plan) error
	Close()
}

type Model struct {
	state      *state.State
	workflow   Workflow
	keys       KeyMap
	bar        progress.Model
	snapshot   cleanup.Snapshot
	result     *domain.ScanResult
	plan       cleanup.Plan
	confirming bool
	showHelp   bool
	status     string
	warning    bool
	width      int
	height     int
	viewTop    int
}

type ConfigProvider interface {
	ConfigSnapshot(base config.Config) config.Config
}

func NewModel(appState *state.State, workflow Workflow) Model {
	return Model{
		state:    appState,
		workflow: workflow,
		keys:     DefaultKeyMap(),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(24)),
		snapshot: workflow.Snapshot(),
		status:   "Loading previous scan...",
		width:    100,
		height:   30,
	}
}

func (model Model) WithStatus(message string) Model {
	if message != "" {
		model.status = message
	}
	return model
}

// ConfigSnapshot returns base with the preferences changed on this page.
func (model Model) ConfigSnapshot(base config.Config) config.Config {
	base.Theme = model.state.Prefs.Theme
	base.EnableTimeFilter = model.state.Prefs.EnableTimeFilter
	base.BeforeDays = model.state.Prefs.BeforeDays
	base.DryRun = model.state.Prefs.DryRun
	return base
}

func (model Model) Init() tea.Cmd {
	return tea.Batch(model.waitForEvent(), model.loadPreviousCmd())
}

func (model Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		return model.handleKey(typed)
	case tea.WindowSizeMsg:
		model.width = typed.Width
		model.height = typed.Height
		model.bar.Width = clamp(typed.Width/4, 10, 40)
		model.ensureCursorVisible()
		return model, nil
	case eventMsg:
		model = model.applyEvent(typed.event)
		return model, model.waitForEvent()
	case eventsClosedMsg:
		return model, nil
	case previousResultMsg:
		if !typed.found && model.result == nil {
			model.setStatus("No previous scan - press s to scan", false)
		}
		return model, nil
	case requestMsg:
		if typed.err != nil {
			model.setStatus(fmt.Sprintf("Could not start %s: %v", typed.action, typed.err), true)
		}
		return model, nil
	default:
		return model, nil
	}
}

func (model Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, model.keys.Quit):
		model.workflow.Close()
		return model, tea.Quit
	case key.Matches(msg, model.keys.Help):
		model.showHelp = !model.showHelp
		return model, nil
	case model.confirming && key.Matches(msg, model.keys.Confirm):
		model.confirming = false
		model.setStatus("Starting cleanup...", false)
		return model, model.confirmCmd(model.plan)
	case model.confirming && key.Matches(msg, model.keys.Cancel):
		model.confirming = false
		model.setStatus("Cleanup cancelled", false)
		return model, nil
	case model.confirming:
		return model, nil
	case key.Matches(msg, model.keys.Up):
		model.state.MoveCursor(-1)
		model.ensureCursorVisible()
	case key.Matches(msg, model.keys.Down):
		model.state.MoveCursor(1)
		model.ensureCursorVisible()
	case key.Matches(msg, model.keys.Expand):
		if row, ok := model.state.CurrentRow(); ok && row.Kind == state.RowCategory {
			model.state.ToggleExpanded(row.Category.ResourceType)
			model.ensureCursorVisible()
		}
	case key.Matches(msg, model.keys.Select):
		if model.snapshot.Busy() {
			return model, nil
		}
		if !model.state.ToggleCurrent() {
			if row, ok := model.state.CurrentRow(); ok {
				model.setStatus(fmt.Sprintf("%s is view-only", row.Category.ResourceType.Label()), false)
			}
		}
	case key.Matches(msg, model.keys.SelectAll):
		if !model.snapshot.Busy() {
			model.state.SelectAllCleanable()
		}
	case key.Matches(msg, model.keys.ClearSelect):
		if !model.snapshot.Busy() {
			model.state.ClearSelection()
		}
	case key.Matches(msg, model.keys.TimeFilter):
		model.state.ToggleTimeFilter()
	case key.Matches(msg, model.keys.MoreDays):
		model.state.AdjustBeforeDays(1)
	case key.Matches(msg, model.keys.FewerDays):
		model.state.AdjustBeforeDays(-1)
	case key.Matches(msg, model.keys.DryRun):
		model.state.Prefs.DryRun = !model.state.Prefs.DryRun
	case key.Matches(msg, model.keys.Scan):
		if model.snapshot.Cleanup.Busy() {
			model.setStatus("Wait for the cleanup to finish", true)
			return model, nil
		}
		model.setStatus("Starting scan...", false)
		return model, model.scanCmd()
	case key.Matches(msg, model.keys.Cleanup):
		return model.beginCleanup()
	}
	return model, nil
}

func (model Model) beginCleanup() (tea.Model, tea.Cmd) {
	if model.snapshot.Busy() {
		model.setStatus("Wait for the running job to finish", true)
		return model, nil
	}
	plan, err := model.workflow.PlanCleanup(model.state.Selection(), model.state.Prefs.DryRun)
	switch {
	case errors.Is(err, cleanup.ErrNoSelection):
		model.setStatus("Select at least one resource type first", true)
		return model, nil
	case errors.Is(err, cleanup.ErrNoResult):
		model.setStatus("Scan first - press s", true)
		return model, nil
	case err != nil:
		model.setStatus(err.Error(), true)
		return model, nil
	}
	model.plan = plan
	model.confirming = true
	model.setStatus("Confirm cleanup? y/n", false)
	return model, nil
}

func (model Model) applyEvent(event cleanup.Event) Model {
	model.snapshot = event.Snapshot
	if result := event.Snapshot.Result; result != nil && result != model.result {
		model.result = result
		model.state.SetResult(*result)
		model.ensureCursorVisible()
	}

	switch event.Kind {
	case cleanup.EventScanStarted:
		model.setStatus("Scanning...", false)
	case cleanup.EventScanProgress:
		model.setStatus(fmt.Sprintf("Scanning... %.0f%%", event.Snapshot.ScanProgress), false)
	case cleanup.EventScanLoading:
		model.setStatus("Loading scan result...", false)
	case cleanup.EventScanCompleted, cleanup.EventResultLoaded:
		summary := event.Snapshot.Result.Summary
		model.setStatus(fmt.Sprintf("Scan complete: %d files, %s", summary.TotalFiles, humanize.Bytes(uint64(summary.TotalSize))), false)
	case cleanup.EventScanFailed:
		model.setStatus(fmt.Sprintf("Scan failed: %v", event.Err), true)
	case cleanup.EventResultFailed:
		model.setStatus(fmt.Sprintf("Scan finished but its result could not be loaded: %v", event.Err), true)
	case cleanup.EventCleanupStarted:
		model.setStatus("Cleaning...", false)
	case cleanup.EventCleanupProgress:
		current := event.Snapshot.CleanupProgress
		model.setStatus(fmt.Sprintf("Cleaning... %d/%d files, %s freed",
			current.ProcessedFiles, current.TotalFiles, humanize.Bytes(uint64(current.FreedSpace))), false)
	case cleanup.EventCleanupCompleted:
		model.setStatus(cleanupSummary(event.Snapshot.LastCleanup), false)
	case cleanup.EventCleanupFailed:
		model.setStatus(fmt.Sprintf("Cleanup failed: %v", event.Err), true)
	case cleanup.EventRetrying:
		model.setStatus("Backend unreachable, retrying...", false)
	}
	return model
}

func cleanupSummary(result *domain.CleanupResult) string {
	if result == nil {
		return "Cleanup complete"
	}
	message := fmt.Sprintf("Cleanup complete: %d files, %s freed", result.ProcessedFiles, humanize.Bytes(uint64(result.FreedSpace)))
	if result.Message != "" {
		message += " (" + result.Message + ")"
	}
	return message
}

func (model *Model) setStatus(message string, warning bool) {
	model.status = message
	model.warning = warning
}

// waitForEvent reads one coordinator event. Update re-arms it after every
// event so the channel is drained in order.
func (model Model) waitForEvent() tea.Cmd {
	events := model.workflow.Events()
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: event}
	}
}

func (model Model) loadPreviousCmd() tea.Cmd {
	workflow := model.workflow
	return func() tea.Msg {
		return previousResultMsg{found: workflow.LoadPrevious(context.Background())}
	}
}

func (model Model) scanCmd() tea.Cmd {
	workflow := model.workflow
	return func() tea.Msg {
		return requestMsg{action: "scan", err: workflow.StartScan(context.Background())}
	}
}

func (model Model) confirmCmd(plan cleanup.Plan) tea.Cmd {
	workflow := model.workflow
	return func() tea.Msg {
		return requestMsg{action: "cleanup", err: workflow.ConfirmCleanup(context.Background(), plan)}
	}
}

func (model *Model) ensureCursorVisible() {
	height := model.listHeight()
	if height <= 0 {
		return
	}
	cursor := model.state.Cursor
	if cursor < model.viewTop {
		model.viewTop = cursor
	}
	if cursor >= model.viewTop+height {
		model.viewTop = cursor - height + 1
	}
	if model.viewTop < 0 {
		model.viewTop = 0
	}
}

// listHeight is the number of category rows that fit between the header and
// the estimate panel.
func (model Model) listHeight() int {
	height := model.height - 14
	if height < 3 {
		height = 3
	}
	return height
}
