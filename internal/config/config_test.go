package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/moderator/internal/action"
	"github.com/whisper/moderator/internal/moderation"
	"github.com/whisper/moderator/internal/verdict"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	defs, err := cfg.Definitions()
	require.NoError(t, err)
	assert.Len(t, defs, len(moderation.DefaultCategories))
	assert.Equal(t, 80.0, cfg.Threshold)
	assert.Equal(t, action.Full, cfg.Mode)
}

func TestValidateThreshold(t *testing.T) {
	cfg := Default()
	cfg.Threshold = 50
	assert.Error(t, cfg.Validate())

	cfg.Threshold = 51
	assert.NoError(t, cfg.Validate())

	cfg.Threshold = 101
	assert.Error(t, cfg.Validate())
}

func TestValidateMode(t *testing.T) {
	cfg := Default()
	cfg.Mode = "SOMETIMES"
	assert.Error(t, cfg.Validate())

	cfg.Mode = action.MaxHide
	assert.NoError(t, cfg.Validate())
}

func TestParseCategories(t *testing.T) {
	defs, err := ParseCategories([]string{"racism", " swearing ", "", "brand=remove", "inclusive_safety=hide"})
	require.NoError(t, err)
	require.Len(t, defs, 4)

	assert.Equal(t, "racism", defs[0].Category)
	assert.Equal(t, verdict.Ban, defs[0].OnMatch)
	assert.Equal(t, verdict.Hide, defs[1].OnMatch)
	assert.Equal(t, moderation.Definition{Category: "brand", OnMatch: verdict.Remove}, defs[2])
	assert.Equal(t, verdict.Hide, defs[3].OnMatch)
	assert.NotEmpty(t, defs[3].Seed)
}

func TestParseCategoriesErrors(t *testing.T) {
	tests := [][]string{
		{"nonexistent"},
		{"brand=sometimes"},
		{"=hide"},
		{"racism", "racism"},
	}
	for _, entries := range tests {
		_, err := ParseCategories(entries)
		assert.Error(t, err, "%v", entries)
	}
}
