package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFAQ(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		faq     *FAQ
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid faq",
			faq: &FAQ{
				ID: "id1", ProjectID: "95", Question: "What does ASPCA stand for?",
				Answer: "American Society for the Prevention of Cruelty to Animals.",
				Source: SourceManual, CreatedAt: now,
			},
			wantErr: false,
		},
		{
			name:    "missing question",
			faq:     &FAQ{ID: "id1", ProjectID: "95", Answer: "a", Source: SourceManual},
			wantErr: true,
			errMsg:  "question",
		},
		{
			name:    "invalid source",
			faq:     &FAQ{ID: "id1", ProjectID: "95", Question: "q", Answer: "a", Source: "bogus"},
			wantErr: true,
			errMsg:  "source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFAQ(tt.faq)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestFAQContentFingerprintChangesWithAnswer(t *testing.T) {
	f1 := NewFAQ("id1", "95", "q", "a1", SourceManual, time.Now())
	f2 := NewFAQ("id1", "95", "q", "a2", SourceManual, time.Now())
	assert.NotEqual(t, f1.ContentFingerprint(), f2.ContentFingerprint())
}
