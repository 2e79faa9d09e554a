package services

import (
	"time"

	"spacesweep/internal/domain"
)

const (
	pathScanStart       = "/api/space/scan"
	pathScanProgress    = "/api/space/scan/progress"
	pathScanResult      = "/api/space/scan/result"
	pathCleanupStart    = "/api/space/cleanup"
	pathCleanupProgress = "/api/space/cleanup/progress"
)

type cleanupStartRequest struct {
	ResourceTypes []string `json:"resource_types"`
	ChatKeys      []string `json:"chat_keys,omitempty"`
	BeforeDate    string   `json:"before_date,omitempty"`
	DryRun        bool     `json:"dry_run"`
}

func newCleanupStartRequest(req domain.CleanupRequest) cleanupStartRequest {
	wire := cleanupStartRequest{
		ResourceTypes: make([]string, 0, len(req.ResourceTypes)),
		ChatKeys:      req.ChatKeys,
		DryRun:        req.DryRun,
	}
	for _, resourceType := range req.ResourceTypes {
		wire.ResourceTypes = append(wire.ResourceTypes, string(resourceType))
	}
	if req.BeforeDate != nil {
		wire.BeforeDate = req.BeforeDate.UTC().Format(time.RFC3339)
	}
	return wire
}
