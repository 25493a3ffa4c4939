// Database models for work items and their relations
package db

import (
	"time"

	"gorm.io/gorm"
)

// WorkItem represents a unit of work within a project
type WorkItem struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"`
	ProjectID string `json:"project_id" gorm:"index;size:36;not null"`

	Title              string `json:"title" gorm:"size:300;not null"`
	Description        string `json:"description,omitempty" gorm:"type:text"`
	AcceptanceCriteria string `json:"acceptance_criteria,omitempty" gorm:"type:text"`

	Type     string `json:"type" gorm:"size:20;default:'task'"`       // task, feature, bug, epic
	Status   string `json:"status" gorm:"size:20;default:'backlog'"`  // backlog, todo, in_progress, review, done
	Priority string `json:"priority" gorm:"size:20;default:'medium'"` // low, medium, high, urgent

	// Free-form labels for filtering and grouping
	Labels StringArray `json:"labels,omitempty" gorm:"type:json"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (WorkItem) TableName() string {
	return "work_items"
}

// WorkItemRelation is a directed edge between two work items.
// For RelationParentChild edges, ParentID is the parent and ChildID the child.
type WorkItemRelation struct {
	ID       string `json:"id" gorm:"primaryKey;size:36"`
	ParentID string `json:"parent_id" gorm:"index;size:36;not null"`
	ChildID  string `json:"child_id" gorm:"index;size:36;not null"`
	Type     string `json:"type" gorm:"size:20;not null"` // PARENT_CHILD, BLOCKS, RELATES

	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (WorkItemRelation) TableName() string {
	return "work_item_relations"
}

// Work item types
const (
	WorkItemTypeTask    = "task"
	WorkItemTypeFeature = "feature"
	WorkItemTypeBug     = "bug"
	WorkItemTypeEpic    = "epic"
)

// Work item statuses
const (
	WorkItemStatusBacklog    = "backlog"
	WorkItemStatusTodo       = "todo"
	WorkItemStatusInProgress = "in_progress"
	WorkItemStatusReview     = "review"
	WorkItemStatusDone       = "done"
)

// Work item priorities
const (
	WorkItemPriorityLow    = "low"
	WorkItemPriorityMedium = "medium"
	WorkItemPriorityHigh   = "high"
	WorkItemPriorityUrgent = "urgent"
)

// Relation types
const (
	RelationParentChild = "PARENT_CHILD"
	RelationBlocks      = "BLOCKS"
	RelationRelates     = "RELATES"
)
