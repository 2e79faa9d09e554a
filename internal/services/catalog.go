package services

import "spacesweep/internal/domain"

type grouping int

const (
	groupNone grouping = iota
	groupByChat
	groupByPlugin
)

// categorySpec describes where a resource type lives inside the platform data
// directory and how the cleanup page treats it.
type categorySpec struct {
	resourceType       domain.ResourceType
	dir                string
	description        string
	risk               domain.RiskLevel
	canCleanup         bool
	supportsTimeFilter bool
	grouping           grouping
}

func defaultCatalog() []categorySpec {
	return []categorySpec{
		{
			resourceType:       domain.ResourceSandboxTemp,
			dir:                "sandbox",
			description:        "Per-session sandbox working directories",
			risk:               domain.RiskSafe,
			canCleanup:         true,
			supportsTimeFilter: true,
			grouping:           groupByChat,
		},
		{
			resourceType:       domain.ResourceChatImages,
			dir:                "attachments/images",
			description:        "Images received or generated in chats",
			risk:               domain.RiskSafe,
			canCleanup:         true,
			supportsTimeFilter: true,
			grouping:           groupByChat,
		},
		{
			resourceType:       domain.ResourceChatFiles,
			dir:                "attachments/files",
			description:        "Files received in chats",
			risk:               domain.RiskWarning,
			canCleanup:         true,
			supportsTimeFilter: true,
			grouping:           groupByChat,
		},
		{
			resourceType:       domain.ResourceChatAudio,
			dir:                "attachments/audio",
			description:        "Voice messages and synthesized speech",
			risk:               domain.RiskSafe,
			canCleanup:         true,
			supportsTimeFilter: true,
			grouping:           groupByChat,
		},
		{
			resourceType:       domain.ResourceTempFiles,
			dir:                "temp",
			description:        "Temporary downloads and conversions",
			risk:               domain.RiskSafe,
			canCleanup:         true,
			supportsTimeFilter: true,
			grouping:           groupNone,
		},
		{
			resourceType:       domain.ResourcePipCache,
			dir:                "site-packages",
			description:        "Packages installed for plugins",
			risk:               domain.RiskWarning,
			canCleanup:         true,
			supportsTimeFilter: false,
			grouping:           groupNone,
		},
		{
			resourceType:       domain.ResourceLogs,
			dir:                "logs",
			description:        "Rotated log files",
			risk:               domain.RiskSafe,
			canCleanup:         true,
			supportsTimeFilter: true,
			grouping:           groupNone,
		},
		{
			resourceType:       domain.ResourceBackups,
			dir:                "backups",
			description:        "Exported configuration and data backups",
			risk:               domain.RiskDanger,
			canCleanup:         true,
			supportsTimeFilter: true,
			grouping:           groupNone,
		},
		{
			resourceType:       domain.ResourcePluginData,
			dir:                "plugin_data",
			description:        "Data owned by installed plugins",
			risk:               domain.RiskDanger,
			canCleanup:         false,
			supportsTimeFilter: false,
			grouping:           groupByPlugin,
		},
	}
}

func findSpec(catalog []categorySpec, resourceType domain.ResourceType) (categorySpec, bool) {
	for _, spec := range catalog {
		if spec.resourceType == resourceType {
			return spec, true
		}
	}
	return categorySpec{}, false
}
