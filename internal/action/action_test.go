package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/moderator/internal/verdict"
)

func TestFor(t *testing.T) {
	tests := []struct {
		v       verdict.Verdict
		full    Action
		maxHide Action
	}{
		{verdict.Accept, Approve, Approve},
		{verdict.Hide, Hide, Hide},
		{verdict.Remove, Remove, HideAndQueue},
		{verdict.Ban, Remove, HideAndQueue},
		{verdict.HumanReview, Queue, Queue},
	}
	for _, tt := range tests {
		t.Run(tt.v.String(), func(t *testing.T) {
			got, err := For(tt.v, Full)
			require.NoError(t, err)
			assert.Equal(t, tt.full, got)

			got, err = For(tt.v, MaxHide)
			require.NoError(t, err)
			assert.Equal(t, tt.maxHide, got)
		})
	}
}

func TestForUnknown(t *testing.T) {
	_, err := For(verdict.Verdict(9), Full)
	assert.ErrorIs(t, err, verdict.ErrUnknownVerdict)

	_, err = ForCode(-1, MaxHide)
	assert.ErrorIs(t, err, verdict.ErrUnknownVerdict)
}

func TestForCode(t *testing.T) {
	got, err := ForCode(3, Full)
	require.NoError(t, err)
	assert.Equal(t, Remove, got)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("max_hide")
	require.NoError(t, err)
	assert.Equal(t, MaxHide, m)

	m, err = ParseMode(" Full ")
	require.NoError(t, err)
	assert.Equal(t, Full, m)

	_, err = ParseMode("partial")
	assert.Error(t, err)
}
