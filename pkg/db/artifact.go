// Database models for work item artifacts
package db

import (
	"time"

	"gorm.io/gorm"
)

// Artifact is a versioned structured document attached to a work item and
// optionally scoped to a branch. Version starts at 1 and is incremented on
// each update; the "latest" artifact of a type is the non-deleted row with the
// highest (version, updated_at).
type Artifact struct {
	ID         string  `json:"id" gorm:"primaryKey;size:36"`
	WorkItemID string  `json:"work_item_id" gorm:"index;size:36;not null"`
	BranchID   *string `json:"branch_id,omitempty" gorm:"index;size:36"`

	Type    string  `json:"type" gorm:"index;size:20;not null"` // plan, spec, checklist, decision, code, note
	Title   string  `json:"title" gorm:"size:300;not null"`
	Content JSONMap `json:"content,omitempty" gorm:"type:json"`
	Version int     `json:"version" gorm:"default:1"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Artifact) TableName() string {
	return "artifacts"
}

// Artifact types
const (
	ArtifactTypePlan      = "plan"
	ArtifactTypeSpec      = "spec"
	ArtifactTypeChecklist = "checklist"
	ArtifactTypeDecision  = "decision"
	ArtifactTypeCode      = "code"
	ArtifactTypeNote      = "note"
)

// DefaultContextArtifactTypes are the artifact types included in a context
// pack when the caller does not specify a filter.
var DefaultContextArtifactTypes = []string{
	ArtifactTypePlan,
	ArtifactTypeSpec,
	ArtifactTypeDecision,
	ArtifactTypeChecklist,
}
