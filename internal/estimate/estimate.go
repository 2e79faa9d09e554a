// Package estimate computes how much space a cleanup would reclaim from an
// already-fetched scan result. Nothing here talks to the backend.
//
// When a time filter is active and the backend returned no per-file
// timestamps for part of the selection, the estimate degrades to a range
// [min, max] and HasUncertainty is set.
package estimate

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"spacesweep/internal/domain"
)

func Compute(result domain.ScanResult, selection domain.Selection, now time.Time) domain.Estimate {
	var estimate domain.Estimate
	cutoff, filtered := selection.Cutoff(now)

	for _, category := range result.Categories {
		if !category.CanCleanup {
			continue
		}
		if !selection.Selected(category.ResourceType) {
			continue
		}
		chats := selection.ChatsFor(category.ResourceType)
		switch {
		case len(chats) > 0 && category.ChatResources != nil:
			addSelectedChats(&estimate, category, chats, cutoff, filtered)
		case len(chats) > 0:
			addCategoryTotal(&estimate, category, filtered)
		default:
			addWholeCategory(&estimate, category, cutoff, filtered)
		}
	}
	return estimate
}

// addSelectedChats covers the narrowed selection. Per-file detail is used
// whenever the files list is present, even if it is empty.
func addSelectedChats(estimate *domain.Estimate, category domain.ResourceCategory, chats map[string]bool, cutoff time.Time, filtered bool) {
	for _, chat := range category.ChatResources {
		if !chats[chat.ChatKey] {
			continue
		}
		switch {
		case !filtered:
			addExact(estimate, chat.TotalSize)
		case chat.HasFileDetails():
			addExact(estimate, sizeBefore(chat.Files, cutoff))
		default:
			addUncertain(estimate, chat.TotalSize)
		}
	}
}

func addCategoryTotal(estimate *domain.Estimate, category domain.ResourceCategory, filtered bool) {
	switch {
	case !filtered:
		addExact(estimate, category.TotalSize)
	case !category.SupportsTimeFilter:
		addExact(estimate, category.TotalSize)
	default:
		addUncertain(estimate, category.TotalSize)
	}
}

// addWholeCategory covers a category selected without narrowing to chats.
// Unlike addSelectedChats, a chat whose files list is present but empty is
// treated as lacking detail.
func addWholeCategory(estimate *domain.Estimate, category domain.ResourceCategory, cutoff time.Time, filtered bool) {
	if !filtered || !category.SupportsTimeFilter || category.ChatResources == nil {
		addCategoryTotal(estimate, category, filtered)
		return
	}
	for _, chat := range category.ChatResources {
		if len(chat.Files) > 0 {
			addExact(estimate, sizeBefore(chat.Files, cutoff))
			continue
		}
		addUncertain(estimate, chat.TotalSize)
	}
}

func sizeBefore(files []domain.FileEntry, cutoff time.Time) int64 {
	var total int64
	for _, file := range files {
		if file.ModifiedTime.Before(cutoff) {
			total += file.Size
		}
	}
	return total
}

func addExact(estimate *domain.Estimate, size int64) {
	estimate.Min += size
	estimate.Max += size
}

func addUncertain(estimate *domain.Estimate, size int64) {
	estimate.Max += size
	estimate.HasUncertainty = true
}

// Format renders a single value when the estimate is tight and a range
// otherwise.
func Format(estimate domain.Estimate) string {
	if estimate.Exact() {
		return formatBytes(estimate.Max)
	}
	return fmt.Sprintf("%s - %s", formatBytes(estimate.Min), formatBytes(estimate.Max))
}

const UncertaintyNotice = "Some resources have no per-file timestamps and could not be filtered precisely."

func formatBytes(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(size))
}
