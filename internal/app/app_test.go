package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"spacesweep/internal/config"
)

func TestChangedPreferencesSkipsFlagOverrides(t *testing.T) {
	stored := config.DefaultConfig()
	started := stored
	started.Theme = "light"
	started.DryRun = true

	final := started
	final.BeforeDays = stored.BeforeDays + 3

	saved := changedPreferences(stored, started, final)
	assert.Equal(t, "dark", saved.Theme)
	assert.False(t, saved.DryRun)
	assert.Equal(t, stored.BeforeDays+3, saved.BeforeDays)
}

func TestChangedPreferencesKeepsToggledFlagValue(t *testing.T) {
	stored := config.DefaultConfig()
	stored.DryRun = true
	started := stored

	final := started
	final.DryRun = false
	final.EnableTimeFilter = true

	saved := changedPreferences(stored, started, final)
	assert.False(t, saved.DryRun)
	assert.True(t, saved.EnableTimeFilter)
}
