package services

import (
	"context"

	"spacesweep/internal/domain"
)

// SpaceAPI is the backend job API behind the cleanup page. Task state is
// owned by the backend; callers only mirror it by polling.
type SpaceAPI interface {
	StartScan(ctx context.Context) error
	ScanProgress(ctx context.Context) (domain.ScanProgress, error)
	ScanResult(ctx context.Context) (domain.ScanResult, error)
	StartCleanup(ctx context.Context, req domain.CleanupRequest) (string, error)
	CleanupProgress(ctx context.Context, taskID string) (domain.CleanupProgress, error)
}

// ResultSource is the read side used by the coordinator. ResultCache and
// every SpaceAPI satisfy it.
type ResultSource interface {
	ScanResult(ctx context.Context) (domain.ScanResult, error)
}

type Invalidator interface {
	Invalidate()
}
