// Database models for branch messages
package db

import (
	"time"

	"gorm.io/gorm"
)

// Message represents an entry in a branch's ordered conversation sequence.
// Messages are append-only: updates may rewrite content or metadata but never
// reorder. Ordering within a branch is by CreatedAt ascending.
type Message struct {
	ID       string `json:"id" gorm:"primaryKey;size:36"`
	BranchID string `json:"branch_id" gorm:"index;size:36;not null"`

	Role    string `json:"role" gorm:"size:20;not null"` // user, assistant, tool, system
	Content string `json:"content" gorm:"type:text"`

	// Free-form structured metadata (tool payloads, references, UI hints)
	Metadata JSONMap `json:"metadata,omitempty" gorm:"type:json"`

	// Optional author: UserID links to the owning user, Name is the display
	// name used when rendering transcripts.
	UserID *string `json:"user_id,omitempty" gorm:"index;size:36"`
	Name   string  `json:"name,omitempty" gorm:"size:100"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Message) TableName() string {
	return "messages"
}

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)
