package domain

import (
	"sort"
	"time"
)

const secondsPerDay = 86400

// Selection is the user's current cleanup scope. ChatKeys is scoped per
// resource type; a missing or empty entry means the whole category.
type Selection struct {
	ResourceTypes    map[ResourceType]bool
	ChatKeys         map[ResourceType]map[string]bool
	EnableTimeFilter bool
	BeforeDays       int
}

func (selection Selection) Selected(resourceType ResourceType) bool {
	return selection.ResourceTypes[resourceType]
}

func (selection Selection) ChatsFor(resourceType ResourceType) map[string]bool {
	return selection.ChatKeys[resourceType]
}

// Cutoff reports the modification-time boundary of the time filter. Only
// files modified strictly before the cutoff are eligible.
func (selection Selection) Cutoff(now time.Time) (time.Time, bool) {
	if !selection.EnableTimeFilter || selection.BeforeDays <= 0 {
		return time.Time{}, false
	}
	return now.Add(-time.Duration(selection.BeforeDays) * secondsPerDay * time.Second), true
}

// CleanupRequest builds the backend request for this selection. Chat keys
// from every category are sent as one flat, sorted list.
func (selection Selection) CleanupRequest(now time.Time, dryRun bool) CleanupRequest {
	request := CleanupRequest{DryRun: dryRun}
	for resourceType, selected := range selection.ResourceTypes {
		if selected {
			request.ResourceTypes = append(request.ResourceTypes, resourceType)
		}
	}
	sort.Slice(request.ResourceTypes, func(i, j int) bool {
		return request.ResourceTypes[i] < request.ResourceTypes[j]
	})

	seen := make(map[string]bool)
	for resourceType, chats := range selection.ChatKeys {
		if !selection.ResourceTypes[resourceType] {
			continue
		}
		for chatKey, selected := range chats {
			if !selected || seen[chatKey] {
				continue
			}
			seen[chatKey] = true
			request.ChatKeys = append(request.ChatKeys, chatKey)
		}
	}
	sort.Strings(request.ChatKeys)

	if cutoff, ok := selection.Cutoff(now); ok {
		request.BeforeDate = &cutoff
	}
	return request
}

// Empty reports whether no resource type is selected.
func (selection Selection) Empty() bool {
	for _, selected := range selection.ResourceTypes {
		if selected {
			return false
		}
	}
	return true
}
