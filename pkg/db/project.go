// Database models for projects
package db

import (
	"time"

	"gorm.io/gorm"
)

// Project represents a top-level project grouping work items
type Project struct {
	ID          string `json:"id" gorm:"primaryKey;size:36"`
	Name        string `json:"name" gorm:"size:200;not null"`
	Description string `json:"description,omitempty" gorm:"type:text"`
	Status      string `json:"status" gorm:"size:20;default:'active'"` // active, archived

	// Rolling project summary (AI-generated, regenerated wholesale)
	Summary          string     `json:"summary,omitempty" gorm:"type:text"`
	SummaryUpdatedAt *time.Time `json:"summary_updated_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Project) TableName() string {
	return "projects"
}

// Project status
const (
	ProjectStatusActive   = "active"
	ProjectStatusArchived = "archived"
)
