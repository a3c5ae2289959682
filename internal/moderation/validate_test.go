package moderation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateComment(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"empty", "", false},
		{"plain", "Good morning", false},
		{"finnish", "Hyvää huomenta", false},
		{"invalid utf8", "bad \xff byte", true},
		{"too many bytes", strings.Repeat("a", MaxCommentBytes+1), true},
		{"too many chars", strings.Repeat("ä", MaxCommentChars+1), true},
		{"at char limit", strings.Repeat("a", MaxCommentChars), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateComment(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateThreshold(t *testing.T) {
	for _, ok := range []float64{51, 80, 100} {
		assert.NoError(t, ValidateThreshold(ok), "%v", ok)
	}
	for _, bad := range []float64{0, 50, 50.99, 100.01} {
		assert.Error(t, ValidateThreshold(bad), "%v", bad)
	}
}

func TestOwnerConfigValidate(t *testing.T) {
	var nilCfg *OwnerConfig
	assert.NoError(t, nilCfg.Validate())
	assert.NoError(t, (&OwnerConfig{}).Validate())

	low := 40.0
	assert.Error(t, (&OwnerConfig{Threshold: &low}).Validate())
}
