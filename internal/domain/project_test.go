package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProject(t *testing.T) {
	now := time.Now()
	project := NewProject("95", "ASPCA", now)

	assert.Equal(t, "95", project.ID)
	assert.Equal(t, "ASPCA", project.Name)
	assert.True(t, project.Active)
	assert.Equal(t, now, project.CreatedAt)
}

func TestValidateProject(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		project *Project
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid project",
			project: &Project{ID: "95", Name: "ASPCA", Active: true, CreatedAt: now},
			wantErr: false,
		},
		{
			name:    "missing id",
			project: &Project{Name: "ASPCA"},
			wantErr: true,
			errMsg:  "id",
		},
		{
			name:    "missing name",
			project: &Project{ID: "95"},
			wantErr: true,
			errMsg:  "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProject(tt.project)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
