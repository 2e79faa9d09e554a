package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"spacesweep/internal/cleanup"
	"spacesweep/internal/domain"
	"spacesweep/internal/estimate"
	"spacesweep/internal/state"
)

type uiStyles struct {
	headerStyle   lipgloss.Style
	mutedStyle    lipgloss.Style
	statusStyle   lipgloss.Style
	warnStyle     lipgloss.Style
	cursorStyle   lipgloss.Style
	selectedStyle lipgloss.Style
	panelBorder   lipgloss.Style
	safeStyle     lipgloss.Style
	cautionStyle  lipgloss.Style
	dangerStyle   lipgloss.Style
}

func stylesFor(model Model) uiStyles {
	if strings.ToLower(model.state.Prefs.Theme) == "light" {
		return uiStyles{
			headerStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("235")),
			mutedStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
			statusStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("25")).Bold(true),
			warnStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("124")).Bold(true),
			cursorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("90")).Bold(true),
			selectedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("28")).Bold(true),
			panelBorder:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
			safeStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
			cautionStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("130")),
			dangerStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("124")).Bold(true),
		}
	}
	return uiStyles{
		headerStyle:   lipgloss.NewStyle().Bold(true),
		mutedStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		statusStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("69")).Bold(true),
		warnStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("204")).Bold(true),
		cursorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		selectedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		panelBorder:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		safeStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		cautionStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		dangerStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
}

func (styles uiStyles) risk(level domain.RiskLevel) lipgloss.Style {
	switch level {
	case domain.RiskSafe:
		return styles.safeStyle
	case domain.RiskWarning:
		return styles.cautionStyle
	case domain.RiskDanger:
		return styles.dangerStyle
	case domain.RiskUnknown:
		return styles.mutedStyle
	default:
		return styles.mutedStyle
	}
}

// typeColor tints category labels. Unknown types from a newer backend stay
// uncolored.
func typeColor(resourceType domain.ResourceType) lipgloss.TerminalColor {
	switch resourceType {
	case domain.ResourceSandboxTemp, domain.ResourceTempFiles:
		return lipgloss.Color("75")
	case domain.ResourceChatImages, domain.ResourceChatFiles, domain.ResourceChatAudio:
		return lipgloss.Color("141")
	case domain.ResourceConversations:
		return lipgloss.Color("180")
	case domain.ResourcePluginData, domain.ResourcePipCache:
		return lipgloss.Color("114")
	case domain.ResourceLogs:
		return lipgloss.Color("246")
	case domain.ResourceBackups:
		return lipgloss.Color("173")
	default:
		return lipgloss.NoColor{}
	}
}

func riskLabel(level domain.RiskLevel) string {
	switch level {
	case domain.RiskSafe:
		return "safe"
	case domain.RiskWarning:
		return "warn"
	case domain.RiskDanger:
		return "danger"
	default:
		return "?"
	}
}

func (model Model) View() string {
	styles := stylesFor(model)
	if model.showHelp {
		return renderHelpView(model, styles)
	}

	sections := []string{renderHeader(model, styles), renderList(model, styles)}
	if model.confirming {
		sections = append(sections, renderConfirm(model, styles))
	} else {
		sections = append(sections, renderEstimate(model, styles))
	}
	sections = append(sections, renderFooter(model, styles))
	return strings.Join(sections, "\n")
}

func renderHeader(model Model, styles uiStyles) string {
	phase := "IDLE"
	switch {
	case model.snapshot.Cleanup.Busy():
		phase = "CLEANING"
	case model.snapshot.Scan == cleanup.PhaseLoadingResult:
		phase = "LOADING"
	case model.snapshot.Scan.Busy():
		phase = "SCANNING"
	}
	title := styles.headerStyle.Render("SpaceSweep")
	result := model.state.Result
	if result == nil {
		return padLine(title+"  "+styles.mutedStyle.Render("no scan yet"), styles.statusStyle.Render(phase), model.width)
	}
	disk := result.DiskInfo
	info := fmt.Sprintf("data %s", humanize.Bytes(uint64(disk.DataDirSize)))
	if disk.TotalSpace > 0 {
		info += fmt.Sprintf("  disk %s free of %s", humanize.Bytes(uint64(disk.FreeSpace)), humanize.Bytes(uint64(disk.TotalSpace)))
	}
	if !result.Summary.EndTime.IsZero() {
		info += fmt.Sprintf("  scanned %s", humanize.Time(result.Summary.EndTime))
	}
	return padLine(title+"  "+styles.mutedStyle.Render(info), styles.statusStyle.Render(phase), model.width)
}

func renderList(model Model, styles uiStyles) string {
	rows := model.state.VisibleRows()
	height := model.listHeight()
	width := maxInt(model.width-2, 20)
	if len(rows) == 0 {
		message := "No scan result - press s to scan"
		if model.snapshot.Scan.Busy() {
			message = "Scanning..."
		}
		return styles.panelBorder.Width(width).Render(message)
	}

	start := clamp(model.viewTop, 0, maxInt(len(rows)-1, 0))
	end := start + height
	if end > len(rows) {
		end = len(rows)
	}
	lines := make([]string, 0, height)
	for index := start; index < end; index++ {
		line := renderRow(model, styles, rows[index])
		if index == model.state.Cursor {
			line = styles.cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return styles.panelBorder.Width(width).Render(strings.Join(lines, "\n"))
}

func renderRow(model Model, styles uiStyles, row state.Row) string {
	category := row.Category
	switch row.Kind {
	case state.RowChat:
		marker := checkbox(styles, model.state.SelectedChatKeys[category.ResourceType][row.Chat.ChatKey], category.CanCleanup)
		detail := ""
		if !row.Chat.HasFileDetails() {
			detail = styles.mutedStyle.Render("  no file detail")
		}
		return fmt.Sprintf("    %s %-28s %9s %6d files%s", marker, truncate(row.Chat.ChatKey, 28),
			humanize.Bytes(uint64(row.Chat.TotalSize)), row.Chat.FileCount, detail)
	case state.RowPlugin:
		return styles.mutedStyle.Render(fmt.Sprintf("        %-28s %9s %6d files", truncate(row.Plugin.PluginName, 28),
			humanize.Bytes(uint64(row.Plugin.TotalSize)), row.Plugin.FileCount))
	}

	marker := checkbox(styles, model.state.SelectedTypes[category.ResourceType], category.CanCleanup)
	arrow := " "
	if category.HasChatResources() || len(category.PluginResources) > 0 {
		arrow = "▸"
		if model.state.Expanded[category.ResourceType] {
			arrow = "▾"
		}
	}
	badge := styles.risk(category.RiskLevel).Render(fmt.Sprintf("%-6s", riskLabel(category.RiskLevel)))
	label := lipgloss.NewStyle().Foreground(typeColor(category.ResourceType)).Render(fmt.Sprintf("%-24s", truncate(category.ResourceType.Label(), 24)))
	line := fmt.Sprintf("%s %s %s %s %9s %6d files", arrow, marker, label, badge,
		humanize.Bytes(uint64(category.TotalSize)), category.FileCount)
	if !category.SupportsTimeFilter {
		line += styles.mutedStyle.Render("  no time filter")
	}
	return line
}

func checkbox(styles uiStyles, selected, cleanable bool) string {
	if !cleanable {
		return styles.mutedStyle.Render("[-]")
	}
	if selected {
		return styles.selectedStyle.Render("[x]")
	}
	return "[ ]"
}

func renderEstimate(model Model, styles uiStyles) string {
	types, chats := model.state.SelectionSummary()
	filter := "Time filter: off"
	if model.state.Prefs.EnableTimeFilter {
		filter = fmt.Sprintf("Time filter: older than %d days", model.state.Prefs.BeforeDays)
	}
	mode := ""
	if model.state.Prefs.DryRun {
		mode = "  " + styles.cautionStyle.Render("DRY RUN")
	}
	lines := []string{fmt.Sprintf("Selected: %d types, %d chats   %s%s", types, chats, filter, mode)}
	if model.state.Result != nil && types > 0 {
		value := estimate.Compute(*model.state.Result, model.state.Selection(), time.Now())
		lines = append(lines, styles.headerStyle.Render("Estimated space: ")+estimate.Format(value))
		if value.HasUncertainty {
			lines = append(lines, styles.mutedStyle.Render(estimate.UncertaintyNotice))
		}
	}
	return strings.Join(lines, "\n")
}

func renderConfirm(model Model, styles uiStyles) string {
	plan := model.plan
	title := "Confirm cleanup"
	if plan.Request.DryRun {
		title += " (dry run)"
	}
	lines := []string{
		styles.headerStyle.Render(title),
		fmt.Sprintf("Types: %d  Chats: %d", plan.Types, plan.Chats),
		fmt.Sprintf("Estimated space: %s", estimate.Format(plan.Estimate)),
	}
	if plan.Estimate.HasUncertainty {
		lines = append(lines, styles.mutedStyle.Render(estimate.UncertaintyNotice))
	}
	if plan.Request.BeforeDate != nil {
		lines = append(lines, fmt.Sprintf("Only files modified before %s", plan.Request.BeforeDate.Local().Format("2006-01-02 15:04")))
	}
	for _, warning := range riskWarnings(model.state, plan) {
		lines = append(lines, styles.risk(warning.RiskLevel).Render(
			fmt.Sprintf("%s: %s risk", warning.ResourceType.Label(), riskLabel(warning.RiskLevel))))
	}
	lines = append(lines, "", "y confirm  n cancel")
	return styles.panelBorder.Width(maxInt(model.width-2, 20)).Render(strings.Join(lines, "\n"))
}

// riskWarnings lists the planned categories rated warning or danger.
func riskWarnings(appState *state.State, plan cleanup.Plan) []domain.ResourceCategory {
	if appState.Result == nil {
		return nil
	}
	var warnings []domain.ResourceCategory
	for _, resourceType := range plan.Request.ResourceTypes {
		category, ok := appState.Result.Category(resourceType)
		if ok && category.RiskLevel.Weight() >= domain.RiskWarning.Weight() {
			warnings = append(warnings, category)
		}
	}
	return warnings
}

func renderFooter(model Model, styles uiStyles) string {
	statusLine := trimStatus(model.status, model.width)
	switch {
	case model.snapshot.Cleanup.Busy():
		current := model.snapshot.CleanupProgress
		statusLine = fmt.Sprintf("%s  %s", model.bar.ViewAs(current.Progress/100), statusLine)
	case model.snapshot.Scan.Busy():
		statusLine = fmt.Sprintf("%s  %s", model.bar.ViewAs(model.snapshot.ScanProgress/100), statusLine)
	}
	statusStyle := styles.mutedStyle
	if model.warning {
		statusStyle = styles.warnStyle
	}
	keys := "↑/↓ move  enter expand  space select  a all  x clear  t filter  +/- days  d dry-run  s scan  c clean  ? help  q quit"
	if model.confirming {
		keys = "y confirm  n cancel"
	}
	return strings.Join([]string{statusStyle.Render(statusLine), styles.mutedStyle.Render(keys)}, "\n")
}

func renderHelpView(model Model, styles uiStyles) string {
	bindings := []key.Binding{
		model.keys.Up,
		model.keys.Down,
		model.keys.Expand,
		model.keys.Select,
		model.keys.SelectAll,
		model.keys.ClearSelect,
		model.keys.TimeFilter,
		model.keys.MoreDays,
		model.keys.FewerDays,
		model.keys.DryRun,
		model.keys.Scan,
		model.keys.Cleanup,
		model.keys.Confirm,
		model.keys.Cancel,
		model.keys.Help,
		model.keys.Quit,
	}

	lines := []string{styles.headerStyle.Render("SpaceSweep Help"), ""}
	lines = append(lines, styles.headerStyle.Render("Selection"))
	lines = append(lines, "space on a category selects all of it", "space on a chat narrows the category to chosen chats", "plugin data is view-only")
	lines = append(lines, "", styles.headerStyle.Render("Estimate"))
	lines = append(lines, "exact when every file has a timestamp", "a range when some files could not be filtered")
	lines = append(lines, "", styles.headerStyle.Render("Safety"))
	lines = append(lines, "cleanup always asks for y", "dry run counts files without deleting")
	lines = append(lines, "", styles.headerStyle.Render("Keys"))
	for _, binding := range bindings {
		lines = append(lines, fmt.Sprintf("%-18s %s", binding.Help().Key, binding.Help().Desc))
	}
	lines = append(lines, "", "Press ? to close help")
	width := model.width
	if width <= 0 {
		width = 80
	}
	return styles.panelBorder.Width(maxInt(width-2, 10)).Render(strings.Join(lines, "\n"))
}

func padLine(left, right string, width int) string {
	if width <= 0 {
		return left
	}
	space := width - lipgloss.Width(left) - lipgloss.Width(right)
	if space < 1 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", space) + right
}

func truncate(value string, width int) string {
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}

func trimStatus(message string, width int) string {
	if width <= 0 {
		return message
	}
	max := width - 30
	if max <= 0 || len(message) <= max {
		return message
	}
	return message[:max] + "..."
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
