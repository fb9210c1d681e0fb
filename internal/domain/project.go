package domain

import (
	"fmt"
	"time"
)

// Project is a tenant namespace owning a set of FAQs, KB records,
// attachments, and index versions.
type Project struct {
	ID        string
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProject creates a new active Project.
func NewProject(id, name string, now time.Time) *Project {
	return &Project{
		ID:        id,
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidateProject validates a Project instance.
func ValidateProject(p *Project) error {
	if p == nil {
		return fmt.Errorf("project cannot be nil")
	}
	if p.ID == "" {
		return fmt.Errorf("project id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	return nil
}
