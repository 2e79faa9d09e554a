package estimate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"spacesweep/internal/domain"
)

var now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func daysAgo(days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

func selectTypes(types ...domain.ResourceType) domain.Selection {
	selected := make(map[domain.ResourceType]bool, len(types))
	for _, resourceType := range types {
		selected[resourceType] = true
	}
	return domain.Selection{ResourceTypes: selected, ChatKeys: map[domain.ResourceType]map[string]bool{}}
}

func withFilter(selection domain.Selection, days int) domain.Selection {
	selection.EnableTimeFilter = true
	selection.BeforeDays = days
	return selection
}

func withChats(selection domain.Selection, resourceType domain.ResourceType, keys ...string) domain.Selection {
	chats := make(map[string]bool, len(keys))
	for _, key := range keys {
		chats[key] = true
	}
	selection.ChatKeys[resourceType] = chats
	return selection
}

func sampleResult() domain.ScanResult {
	return domain.ScanResult{
		Categories: []domain.ResourceCategory{
			{
				ResourceType:       domain.ResourceChatImages,
				CanCleanup:         true,
				RiskLevel:          domain.RiskSafe,
				SupportsTimeFilter: true,
				TotalSize:          1300,
				ChatResources: []domain.ChatResource{
					{
						ChatKey:   "alpha",
						TotalSize: 300,
						Files: []domain.FileEntry{
							{Size: 100, ModifiedTime: daysAgo(30)},
							{Size: 200, ModifiedTime: daysAgo(1)},
						},
					},
					{ChatKey: "beta", TotalSize: 1000},
				},
			},
			{
				ResourceType:       domain.ResourcePipCache,
				CanCleanup:         true,
				RiskLevel:          domain.RiskWarning,
				SupportsTimeFilter: false,
				TotalSize:          5000,
			},
			{
				ResourceType:       domain.ResourceConversations,
				CanCleanup:         false,
				RiskLevel:          domain.RiskDanger,
				SupportsTimeFilter: true,
				TotalSize:          9000,
			},
		},
	}
}

func TestComputeScenarios(t *testing.T) {
	tests := []struct {
		name      string
		category  domain.ResourceCategory
		selection domain.Selection
		want      domain.Estimate
	}{
		{
			name: "filter supported without detail gives a range",
			category: domain.ResourceCategory{
				ResourceType: domain.ResourceTempFiles, CanCleanup: true, SupportsTimeFilter: true, TotalSize: 1000,
			},
			selection: withFilter(selectTypes(domain.ResourceTempFiles), 7),
			want:      domain.Estimate{Min: 0, Max: 1000, HasUncertainty: true},
		},
		{
			name: "filter unsupported counts the whole category",
			category: domain.ResourceCategory{
				ResourceType: domain.ResourceTempFiles, CanCleanup: true, SupportsTimeFilter: false, TotalSize: 1000,
			},
			selection: withFilter(selectTypes(domain.ResourceTempFiles), 7),
			want:      domain.Estimate{Min: 1000, Max: 1000},
		},
		{
			name: "per-file detail is exact",
			category: domain.ResourceCategory{
				ResourceType: domain.ResourceChatFiles, CanCleanup: true, SupportsTimeFilter: true, TotalSize: 300,
				ChatResources: []domain.ChatResource{{
					ChatKey: "c1", TotalSize: 300,
					Files: []domain.FileEntry{
						{Size: 100, ModifiedTime: daysAgo(10)},
						{Size: 200, ModifiedTime: daysAgo(2)},
					},
				}},
			},
			selection: withFilter(selectTypes(domain.ResourceChatFiles), 7),
			want:      domain.Estimate{Min: 100, Max: 100},
		},
		{
			name: "chat keys on an ungrouped filterable category give a range",
			category: domain.ResourceCategory{
				ResourceType: domain.ResourceTempFiles, CanCleanup: true, SupportsTimeFilter: true, TotalSize: 1000,
			},
			selection: withFilter(withChats(selectTypes(domain.ResourceTempFiles), domain.ResourceTempFiles, "x"), 7),
			want:      domain.Estimate{Min: 0, Max: 1000, HasUncertainty: true},
		},
		{
			name: "grouped category without filter support counts chats exactly",
			category: domain.ResourceCategory{
				ResourceType: domain.ResourceChatFiles, CanCleanup: true, SupportsTimeFilter: false, TotalSize: 400,
				ChatResources: []domain.ChatResource{
					{ChatKey: "c1", TotalSize: 250},
					{ChatKey: "c2", TotalSize: 150, Files: []domain.FileEntry{{Size: 150, ModifiedTime: daysAgo(1)}}},
				},
			},
			selection: withFilter(selectTypes(domain.ResourceChatFiles), 7),
			want:      domain.Estimate{Min: 400, Max: 400},
		},
		{
			name: "unselected category contributes nothing",
			category: domain.ResourceCategory{
				ResourceType: domain.ResourceTempFiles, CanCleanup: true, TotalSize: 1000,
			},
			selection: selectTypes(domain.ResourceLogs),
			want:      domain.Estimate{},
		},
		{
			name: "zero days disables the cutoff",
			category: domain.ResourceCategory{
				ResourceType: domain.ResourceTempFiles, CanCleanup: true, SupportsTimeFilter: true, TotalSize: 1000,
			},
			selection: withFilter(selectTypes(domain.ResourceTempFiles), 0),
			want:      domain.Estimate{Min: 1000, Max: 1000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := domain.ScanResult{Categories: []domain.ResourceCategory{tt.category}}
			assert.Equal(t, tt.want, Compute(result, tt.selection, now))
		})
	}
}

func TestComputeSelectedChats(t *testing.T) {
	result := sampleResult()

	tests := []struct {
		name      string
		selection domain.Selection
		want      domain.Estimate
	}{
		{
			name:      "no filter sums selected chat totals",
			selection: withChats(selectTypes(domain.ResourceChatImages), domain.ResourceChatImages, "beta"),
			want:      domain.Estimate{Min: 1000, Max: 1000},
		},
		{
			name:      "filter with file detail",
			selection: withFilter(withChats(selectTypes(domain.ResourceChatImages), domain.ResourceChatImages, "alpha"), 7),
			want:      domain.Estimate{Min: 100, Max: 100},
		},
		{
			name:      "filter without file detail",
			selection: withFilter(withChats(selectTypes(domain.ResourceChatImages), domain.ResourceChatImages, "beta"), 7),
			want:      domain.Estimate{Min: 0, Max: 1000, HasUncertainty: true},
		},
		{
			name:      "both chats mix exact and uncertain parts",
			selection: withFilter(withChats(selectTypes(domain.ResourceChatImages), domain.ResourceChatImages, "alpha", "beta"), 7),
			want:      domain.Estimate{Min: 100, Max: 1100, HasUncertainty: true},
		},
		{
			name:      "unknown chat keys are ignored",
			selection: withChats(selectTypes(domain.ResourceChatImages), domain.ResourceChatImages, "gamma"),
			want:      domain.Estimate{},
		},
		{
			name:      "chat keys on an ungrouped unsupported category keep the full size",
			selection: withFilter(withChats(selectTypes(domain.ResourcePipCache), domain.ResourcePipCache, "x"), 7),
			want:      domain.Estimate{Min: 5000, Max: 5000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(result, tt.selection, now))
		})
	}
}

func TestComputeWholeCategory(t *testing.T) {
	result := sampleResult()

	got := Compute(result, withFilter(selectTypes(domain.ResourceChatImages, domain.ResourcePipCache), 7), now)
	assert.Equal(t, domain.Estimate{Min: 5100, Max: 6100, HasUncertainty: true}, got)

	got = Compute(result, selectTypes(domain.ResourceChatImages, domain.ResourcePipCache), now)
	assert.Equal(t, domain.Estimate{Min: 6300, Max: 6300}, got)
}

func TestComputeEmptyFileListDiffersByBranch(t *testing.T) {
	result := domain.ScanResult{Categories: []domain.ResourceCategory{{
		ResourceType: domain.ResourceChatFiles, CanCleanup: true, SupportsTimeFilter: true, TotalSize: 50,
		ChatResources: []domain.ChatResource{{ChatKey: "c1", TotalSize: 50, Files: []domain.FileEntry{}}},
	}}}

	narrowed := withFilter(withChats(selectTypes(domain.ResourceChatFiles), domain.ResourceChatFiles, "c1"), 3)
	assert.Equal(t, domain.Estimate{}, Compute(result, narrowed, now))

	whole := withFilter(selectTypes(domain.ResourceChatFiles), 3)
	assert.Equal(t, domain.Estimate{Min: 0, Max: 50, HasUncertainty: true}, Compute(result, whole, now))
}

func TestComputeSkipsNonCleanable(t *testing.T) {
	got := Compute(sampleResult(), selectTypes(domain.ResourceConversations), now)
	assert.Equal(t, domain.Estimate{}, got)
}

func TestComputeIsIdempotent(t *testing.T) {
	result := sampleResult()
	selection := withFilter(selectTypes(domain.ResourceChatImages, domain.ResourcePipCache), 7)
	assert.Equal(t, Compute(result, selection, now), Compute(result, selection, now))
}

func TestComputeTightWithoutFilter(t *testing.T) {
	result := sampleResult()
	selections := []domain.Selection{
		selectTypes(domain.ResourceChatImages),
		selectTypes(domain.ResourceChatImages, domain.ResourcePipCache, domain.ResourceConversations),
		withChats(selectTypes(domain.ResourceChatImages), domain.ResourceChatImages, "alpha", "beta"),
		{ResourceTypes: map[domain.ResourceType]bool{domain.ResourceChatImages: true}, BeforeDays: 30},
	}
	for _, selection := range selections {
		got := Compute(result, selection, now)
		assert.Equal(t, got.Min, got.Max)
		assert.False(t, got.HasUncertainty)
	}
}

func TestFileExactlyAtCutoffIsKept(t *testing.T) {
	result := domain.ScanResult{Categories: []domain.ResourceCategory{{
		ResourceType: domain.ResourceChatFiles, CanCleanup: true, SupportsTimeFilter: true,
		ChatResources: []domain.ChatResource{{
			ChatKey: "c1", TotalSize: 10,
			Files:   []domain.FileEntry{{Size: 10, ModifiedTime: daysAgo(7)}},
		}},
	}}}
	got := Compute(result, withFilter(selectTypes(domain.ResourceChatFiles), 7), now)
	assert.Equal(t, domain.Estimate{}, got)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "1.5 kB", Format(domain.Estimate{Min: 1500, Max: 1500}))
	assert.Equal(t, "0 B - 1.0 kB", Format(domain.Estimate{Min: 0, Max: 1000, HasUncertainty: true}))
}
