// Database models for conversation branches
package db

import (
	"time"

	"gorm.io/gorm"
)

// Branch represents a conversation thread attached to a work item.
// Every work item has exactly one default branch; additional branches are
// created explicitly or by forking an existing branch at a given message.
//
// The summary fields hold the latest rolling summary of the branch history.
// SummaryMessageCount is the message count at which the stored summary was
// generated; it doubles as the optimistic-lock token for summary commits.
// All writes to the three summary fields must go through the conditional
// update in the summary service.
type Branch struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	WorkItemID string `json:"work_item_id" gorm:"index;size:36;not null"`

	Name      string `json:"name,omitempty" gorm:"size:200"`
	IsDefault bool   `json:"is_default" gorm:"default:false"`

	// Fork metadata: weak references to the source branch and the message at
	// which the fork occurred.
	ForkedFromID       *string `json:"forked_from_id,omitempty" gorm:"index;size:36"`
	ForkPointMessageID *string `json:"fork_point_message_id,omitempty" gorm:"size:36"`

	Summary             string     `json:"summary,omitempty" gorm:"type:text"`
	SummaryUpdatedAt    *time.Time `json:"summary_updated_at,omitempty"`
	SummaryMessageCount int        `json:"summary_message_count" gorm:"default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Branch) TableName() string {
	return "branches"
}

// DefaultBranchName is the name given to the branch created with a work item.
const DefaultBranchName = "main"
