package domain

import "time"

type ScanProgress struct {
	Status   TaskStatus
	Progress float64
	Message  string
}

type CleanupProgress struct {
	TaskID         string
	Status         TaskStatus
	Progress       float64
	ProcessedFiles int64
	TotalFiles     int64
	FreedSpace     int64
	Message        string
}

type CleanupRequest struct {
	ResourceTypes []ResourceType
	ChatKeys      []string
	BeforeDate    *time.Time
	DryRun        bool
}

// CleanupResult is built from the last progress payload of a finished cleanup
// task; the backend has no separate result endpoint for cleanups.
type CleanupResult struct {
	TaskID         string
	ProcessedFiles int64
	TotalFiles     int64
	FreedSpace     int64
	Message        string
	FinishedAt     time.Time
}

func CleanupResultFrom(progress CleanupProgress, finishedAt time.Time) CleanupResult {
	return CleanupResult{
		TaskID:         progress.TaskID,
		ProcessedFiles: progress.ProcessedFiles,
		TotalFiles:     progress.TotalFiles,
		FreedSpace:     progress.FreedSpace,
		Message:        progress.Message,
		FinishedAt:     finishedAt,
	}
}

type Estimate struct {
	Min            int64
	Max            int64
	HasUncertainty bool
}

func (estimate Estimate) Exact() bool {
	return !estimate.HasUncertainty
}
