package domain

import "time"

type ResourceType string

const (
	ResourceSandboxTemp   ResourceType = "sandbox_temp"
	ResourceChatImages    ResourceType = "chat_images"
	ResourceChatFiles     ResourceType = "chat_files"
	ResourceChatAudio     ResourceType = "chat_audio"
	ResourceConversations ResourceType = "conversations"
	ResourcePluginData    ResourceType = "plugin_data"
	ResourcePipCache      ResourceType = "pip_cache"
	ResourceTempFiles     ResourceType = "temp_files"
	ResourceLogs          ResourceType = "logs"
	ResourceBackups       ResourceType = "backups"
)

// Label returns the display name for a resource type. Types the client does
// not know about fall through to their raw identifier.
func (resourceType ResourceType) Label() string {
	switch resourceType {
	case ResourceSandboxTemp:
		return "Sandbox temp files"
	case ResourceChatImages:
		return "Chat images"
	case ResourceChatFiles:
		return "Chat files"
	case ResourceChatAudio:
		return "Chat audio"
	case ResourceConversations:
		return "Conversation history"
	case ResourcePluginData:
		return "Plugin data"
	case ResourcePipCache:
		return "Package caches"
	case ResourceTempFiles:
		return "Temporary files"
	case ResourceLogs:
		return "Logs"
	case ResourceBackups:
		return "Backups"
	default:
		return string(resourceType)
	}
}

type RiskLevel string

const (
	RiskUnknown RiskLevel = ""
	RiskSafe    RiskLevel = "safe"
	RiskWarning RiskLevel = "warning"
	RiskDanger  RiskLevel = "danger"
)

func ParseRiskLevel(value string) RiskLevel {
	switch RiskLevel(value) {
	case RiskSafe, RiskWarning, RiskDanger:
		return RiskLevel(value)
	default:
		return RiskUnknown
	}
}

// Weight orders categories for display only. It never gates cleanup.
func (level RiskLevel) Weight() int {
	switch level {
	case RiskSafe:
		return 1
	case RiskWarning:
		return 2
	case RiskDanger:
		return 3
	default:
		return 0
	}
}

type TaskStatus string

const (
	StatusIdle      TaskStatus = "idle"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// ParseTaskStatus maps wire statuses onto the client's variant. The backend
// reports "scanning" for a running scan and "running" for a running cleanup.
func ParseTaskStatus(value string) TaskStatus {
	switch value {
	case "scanning", "running", "pending", "cleaning":
		return StatusRunning
	case "completed", "done":
		return StatusCompleted
	case "failed", "error":
		return StatusFailed
	default:
		return StatusIdle
	}
}

func (status TaskStatus) Terminal() bool {
	return status == StatusCompleted || status == StatusFailed
}

type FileEntry struct {
	Size         int64
	ModifiedTime time.Time
}

type ChatResource struct {
	ChatKey   string
	TotalSize int64
	FileCount int64
	// Files is nil when the backend did not return per-file detail. An empty
	// non-nil slice means the chat has no files.
	Files []FileEntry
}

func (chat ChatResource) HasFileDetails() bool {
	return chat.Files != nil
}

type PluginResource struct {
	PluginName string
	TotalSize  int64
	FileCount  int64
}

type ResourceCategory struct {
	ResourceType       ResourceType
	Description        string
	CanCleanup         bool
	RiskLevel          RiskLevel
	SupportsTimeFilter bool
	TotalSize          int64
	FileCount          int64
	ChatResources      []ChatResource
	PluginResources    []PluginResource
}

func (category ResourceCategory) HasChatResources() bool {
	return len(category.ChatResources) > 0
}

func (category ResourceCategory) Chat(chatKey string) (ChatResource, bool) {
	for _, chat := range category.ChatResources {
		if chat.ChatKey == chatKey {
			return chat, true
		}
	}
	return ChatResource{}, false
}

type DiskInfo struct {
	TotalSpace  int64
	FreeSpace   int64
	UsedSpace   int64
	DataDirSize int64
}

type ScanSummary struct {
	TotalFiles      int64
	TotalSize       int64
	DurationSeconds float64
	EndTime         time.Time
}

type ScanResult struct {
	Categories []ResourceCategory
	DiskInfo   DiskInfo
	Summary    ScanSummary
}

func (result ScanResult) Category(resourceType ResourceType) (ResourceCategory, bool) {
	for _, category := range result.Categories {
		if category.ResourceType == resourceType {
			return category, true
		}
	}
	return ResourceCategory{}, false
}
