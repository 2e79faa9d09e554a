package services

import (
	"encoding/json"
	"math"
	"time"

	"spacesweep/internal/domain"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type scanProgressResponse struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
}

type cleanupStartResponse struct {
	TaskID string `json:"task_id"`
}

type cleanupProgressResponse struct {
	TaskID         string  `json:"task_id,omitempty"`
	Status         string  `json:"status"`
	Progress       float64 `json:"progress"`
	ProcessedFiles int64   `json:"processed_files"`
	TotalFiles     int64   `json:"total_files"`
	FreedSpace     int64   `json:"freed_space"`
	Message        string  `json:"message"`
}

type scanResultResponse struct {
	Categories []categoryResponse `json:"categories"`
	DiskInfo   diskInfoResponse   `json:"disk_info"`
	Summary    summaryResponse    `json:"summary"`
}

type categoryResponse struct {
	ResourceType       string           `json:"resource_type"`
	Description        string           `json:"description,omitempty"`
	CanCleanup         bool             `json:"can_cleanup"`
	RiskLevel          string           `json:"risk_level"`
	SupportsTimeFilter bool             `json:"supports_time_filter"`
	TotalSize          int64            `json:"total_size"`
	FileCount          int64            `json:"file_count"`
	ChatResources      []chatResponse   `json:"chat_resources"`
	PluginResources    []pluginResponse `json:"plugin_resources,omitempty"`
}

type chatResponse struct {
	ChatKey   string         `json:"chat_key"`
	TotalSize int64          `json:"total_size"`
	FileCount int64          `json:"file_count"`
	Files     []fileResponse `json:"files"`
}

type fileResponse struct {
	Size         int64   `json:"size"`
	ModifiedTime float64 `json:"modified_time"`
}

type pluginResponse struct {
	PluginName string `json:"plugin_name"`
	TotalSize  int64  `json:"total_size"`
	FileCount  int64  `json:"file_count"`
}

type diskInfoResponse struct {
	TotalSpace  int64 `json:"total_space"`
	FreeSpace   int64 `json:"free_space"`
	UsedSpace   int64 `json:"used_space"`
	DataDirSize int64 `json:"data_dir_size"`
}

type summaryResponse struct {
	TotalFiles      int64   `json:"total_files"`
	TotalSize       int64   `json:"total_size"`
	DurationSeconds float64 `json:"duration_seconds"`
	EndTime         float64 `json:"end_time"`
}

func (resp scanProgressResponse) toDomain() domain.ScanProgress {
	return domain.ScanProgress{
		Status:   domain.ParseTaskStatus(resp.Status),
		Progress: resp.Progress,
		Message:  resp.Message,
	}
}

func (resp cleanupProgressResponse) toDomain(taskID string) domain.CleanupProgress {
	if resp.TaskID != "" {
		taskID = resp.TaskID
	}
	return domain.CleanupProgress{
		TaskID:         taskID,
		Status:         domain.ParseTaskStatus(resp.Status),
		Progress:       resp.Progress,
		ProcessedFiles: resp.ProcessedFiles,
		TotalFiles:     resp.TotalFiles,
		FreedSpace:     resp.FreedSpace,
		Message:        resp.Message,
	}
}

func (resp scanResultResponse) toDomain() domain.ScanResult {
	result := domain.ScanResult{
		Categories: make([]domain.ResourceCategory, 0, len(resp.Categories)),
		DiskInfo: domain.DiskInfo{
			TotalSpace:  resp.DiskInfo.TotalSpace,
			FreeSpace:   resp.DiskInfo.FreeSpace,
			UsedSpace:   resp.DiskInfo.UsedSpace,
			DataDirSize: resp.DiskInfo.DataDirSize,
		},
		Summary: domain.ScanSummary{
			TotalFiles:      resp.Summary.TotalFiles,
			TotalSize:       resp.Summary.TotalSize,
			DurationSeconds: resp.Summary.DurationSeconds,
			EndTime:         fromUnixSeconds(resp.Summary.EndTime),
		},
	}
	for _, category := range resp.Categories {
		result.Categories = append(result.Categories, category.toDomain())
	}
	return result
}

func (resp categoryResponse) toDomain() domain.ResourceCategory {
	category := domain.ResourceCategory{
		ResourceType:       domain.ResourceType(resp.ResourceType),
		Description:        resp.Description,
		CanCleanup:         resp.CanCleanup,
		RiskLevel:          domain.ParseRiskLevel(resp.RiskLevel),
		SupportsTimeFilter: resp.SupportsTimeFilter,
		TotalSize:          resp.TotalSize,
		FileCount:          resp.FileCount,
	}
	if resp.ChatResources != nil {
		category.ChatResources = make([]domain.ChatResource, 0, len(resp.ChatResources))
		for _, chat := range resp.ChatResources {
			category.ChatResources = append(category.ChatResources, chat.toDomain())
		}
	}
	for _, plugin := range resp.PluginResources {
		category.PluginResources = append(category.PluginResources, domain.PluginResource{
			PluginName: plugin.PluginName,
			TotalSize:  plugin.TotalSize,
			FileCount:  plugin.FileCount,
		})
	}
	return category
}

// toDomain keeps the difference between a missing files list (no per-file
// detail) and an empty one.
func (resp chatResponse) toDomain() domain.ChatResource {
	chat := domain.ChatResource{
		ChatKey:   resp.ChatKey,
		TotalSize: resp.TotalSize,
		FileCount: resp.FileCount,
	}
	if resp.Files != nil {
		chat.Files = make([]domain.FileEntry, 0, len(resp.Files))
		for _, file := range resp.Files {
			chat.Files = append(chat.Files, domain.FileEntry{
				Size:         file.Size,
				ModifiedTime: fromUnixSeconds(file.ModifiedTime),
			})
		}
	}
	return chat
}

func fromUnixSeconds(seconds float64) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}
