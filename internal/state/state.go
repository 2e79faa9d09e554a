package state

import (
	"sort"
	"time"

	"spacesweep/internal/config"
	"spacesweep/internal/domain"
)

const maxBeforeDays = 3650

type Preferences struct {
	EnableTimeFilter bool
	BeforeDays       int
	Theme            string
	DryRun           bool
}

type State struct {
	Result           *domain.ScanResult
	Cursor           int
	Expanded         map[domain.ResourceType]bool
	SelectedTypes    map[domain.ResourceType]bool
	SelectedChatKeys map[domain.ResourceType]map[string]bool
	Prefs            Preferences
}

func NewState(cfg config.Config) *State {
	return &State{
		Expanded:         make(map[domain.ResourceType]bool),
		SelectedTypes:    make(map[domain.ResourceType]bool),
		SelectedChatKeys: make(map[domain.ResourceType]map[string]bool),
		Prefs: Preferences{
			EnableTimeFilter: cfg.EnableTimeFilter,
			BeforeDays:       clampDays(cfg.BeforeDays),
			Theme:            cfg.Theme,
			DryRun:           cfg.DryRun,
		},
	}
}

// SetResult installs a freshly loaded scan result. Selections that refer to
// resource types or chats missing from the new result are dropped.
func (appState *State) SetResult(result domain.ScanResult) {
	appState.Result = &result

	filteredTypes := make(map[domain.ResourceType]bool, len(appState.SelectedTypes))
	for resourceType := range appState.SelectedTypes {
		if category, ok := result.Category(resourceType); ok && category.CanCleanup {
			filteredTypes[resourceType] = true
		}
	}
	appState.SelectedTypes = filteredTypes

	filteredChats := make(map[domain.ResourceType]map[string]bool, len(appState.SelectedChatKeys))
	for resourceType, chats := range appState.SelectedChatKeys {
		if !filteredTypes[resourceType] {
			continue
		}
		category, _ := result.Category(resourceType)
		kept := make(map[string]bool, len(chats))
		for chatKey := range chats {
			if _, ok := category.Chat(chatKey); ok {
				kept[chatKey] = true
			}
		}
		if len(kept) > 0 {
			filteredChats[resourceType] = kept
		}
	}
	appState.SelectedChatKeys = filteredChats

	filteredExpanded := make(map[domain.ResourceType]bool, len(appState.Expanded))
	for resourceType := range appState.Expanded {
		if _, ok := result.Category(resourceType); ok {
			filteredExpanded[resourceType] = true
		}
	}
	appState.Expanded = filteredExpanded
	appState.clampCursor()
}

func (appState *State) HasResult() bool {
	return appState.Result != nil
}

// ToggleResourceType flips a category. Deselecting also clears every chat
// selection under it.
func (appState *State) ToggleResourceType(resourceType domain.ResourceType) bool {
	if appState.SelectedTypes[resourceType] {
		delete(appState.SelectedTypes, resourceType)
		delete(appState.SelectedChatKeys, resourceType)
		return false
	}
	appState.SelectedTypes[resourceType] = true
	return true
}

// ToggleChat flips one chat under a category. Selecting a chat selects its
// category too, since chat selections only count under a selected type.
func (appState *State) ToggleChat(resourceType domain.ResourceType, chatKey string) bool {
	chats := appState.SelectedChatKeys[resourceType]
	if chats[chatKey] {
		delete(chats, chatKey)
		if len(chats) == 0 {
			delete(appState.SelectedChatKeys, resourceType)
		}
		return false
	}
	if chats == nil {
		chats = make(map[string]bool)
		appState.SelectedChatKeys[resourceType] = chats
	}
	chats[chatKey] = true
	appState.SelectedTypes[resourceType] = true
	return true
}

func (appState *State) SelectAllCleanable() {
	if appState.Result == nil {
		return
	}
	for _, category := range appState.Result.Categories {
		if category.CanCleanup {
			appState.SelectedTypes[category.ResourceType] = true
		}
	}
}

func (appState *State) ClearSelection() {
	appState.SelectedTypes = make(map[domain.ResourceType]bool)
	appState.SelectedChatKeys = make(map[domain.ResourceType]map[string]bool)
}

func (appState *State) ToggleTimeFilter() bool {
	appState.Prefs.EnableTimeFilter = !appState.Prefs.EnableTimeFilter
	return appState.Prefs.EnableTimeFilter
}

func (appState *State) AdjustBeforeDays(delta int) int {
	appState.Prefs.BeforeDays = clampDays(appState.Prefs.BeforeDays + delta)
	return appState.Prefs.BeforeDays
}

func clampDays(days int) int {
	if days < 0 {
		return 0
	}
	if days > maxBeforeDays {
		return maxBeforeDays
	}
	return days
}

// Selection returns a copy of the selection that is safe to hand to other
// goroutines.
func (appState *State) Selection() domain.Selection {
	types := make(map[domain.ResourceType]bool, len(appState.SelectedTypes))
	for resourceType := range appState.SelectedTypes {
		types[resourceType] = true
	}
	chats := make(map[domain.ResourceType]map[string]bool, len(appState.SelectedChatKeys))
	for resourceType, keys := range appState.SelectedChatKeys {
		copied := make(map[string]bool, len(keys))
		for key := range keys {
			copied[key] = true
		}
		chats[resourceType] = copied
	}
	return domain.Selection{
		ResourceTypes:    types,
		ChatKeys:         chats,
		EnableTimeFilter: appState.Prefs.EnableTimeFilter,
		BeforeDays:       appState.Prefs.BeforeDays,
	}
}

// CleanupRequest builds the backend request for the current selection.
func (appState *State) CleanupRequest(now time.Time) domain.CleanupRequest {
	return appState.Selection().CleanupRequest(now, appState.Prefs.DryRun)
}

func (appState *State) SelectionSummary() (int, int) {
	chats := 0
	for _, keys := range appState.SelectedChatKeys {
		chats += len(keys)
	}
	return len(appState.SelectedTypes), chats
}

// SortedCategories orders categories for display: cleanable first, then by
// risk, then largest first.
func (appState *State) SortedCategories() []domain.ResourceCategory {
	if appState.Result == nil {
		return nil
	}
	categories := append([]domain.ResourceCategory{}, appState.Result.Categories...)
	less := func(i, j int) bool {
		if categories[i].CanCleanup != categories[j].CanCleanup {
			return categories[i].CanCleanup
		}
		if categories[i].RiskLevel.Weight() != categories[j].RiskLevel.Weight() {
			return categories[i].RiskLevel.Weight() < categories[j].RiskLevel.Weight()
		}
		if categories[i].TotalSize != categories[j].TotalSize {
			return categories[i].TotalSize > categories[j].TotalSize
		}
		return categories[i].ResourceType < categories[j].ResourceType
	}
	sort.SliceStable(categories, less)
	return categories
}

type RowKind int

const (
	RowCategory RowKind = iota
	RowChat
	RowPlugin
)

type Row struct {
	Kind     RowKind
	Category domain.ResourceCategory
	Chat     domain.ChatResource
	Plugin   domain.PluginResource
}

// VisibleRows flattens the category list with the breakdown of expanded
// categories inlined under them.
func (appState *State) VisibleRows() []Row {
	categories := appState.SortedCategories()
	rows := make([]Row, 0, len(categories))
	for _, category := range categories {
		rows = append(rows, Row{Kind: RowCategory, Category: category})
		if !appState.Expanded[category.ResourceType] {
			continue
		}
		chats := append([]domain.ChatResource{}, category.ChatResources...)
		sort.SliceStable(chats, func(i, j int) bool {
			return chats[i].TotalSize > chats[j].TotalSize
		})
		for _, chat := range chats {
			rows = append(rows, Row{Kind: RowChat, Category: category, Chat: chat})
		}
		for _, plugin := range category.PluginResources {
			rows = append(rows, Row{Kind: RowPlugin, Category: category, Plugin: plugin})
		}
	}
	return rows
}

func (appState *State) CurrentRow() (Row, bool) {
	rows := appState.VisibleRows()
	if appState.Cursor < 0 || appState.Cursor >= len(rows) {
		return Row{}, false
	}
	return rows[appState.Cursor], true
}

func (appState *State) ToggleExpanded(resourceType domain.ResourceType) bool {
	appState.Expanded[resourceType] = !appState.Expanded[resourceType]
	if !appState.Expanded[resourceType] {
		delete(appState.Expanded, resourceType)
	}
	appState.clampCursor()
	return appState.Expanded[resourceType]
}

// ToggleCurrent toggles whatever row sits under the cursor. Non-cleanable
// categories and plugin rows are view-only.
func (appState *State) ToggleCurrent() bool {
	row, ok := appState.CurrentRow()
	if !ok || !row.Category.CanCleanup {
		return false
	}
	switch row.Kind {
	case RowCategory:
		appState.ToggleResourceType(row.Category.ResourceType)
		return true
	case RowChat:
		appState.ToggleChat(row.Category.ResourceType, row.Chat.ChatKey)
		return true
	default:
		return false
	}
}

func (appState *State) MoveCursor(delta int) {
	appState.Cursor += delta
	appState.clampCursor()
}

func (appState *State) clampCursor() {
	count := len(appState.VisibleRows())
	if appState.Cursor >= count {
		appState.Cursor = count - 1
	}
	if appState.Cursor < 0 {
		appState.Cursor = 0
	}
}
