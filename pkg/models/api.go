// API request/response types consumed by the HTTP handlers
package models

import (
	"github.com/threadline/threadline/pkg/db"
)

// ========== Type aliases for database types ==========
// These allow other packages to use models.Branch instead of db.Branch

type Project = db.Project
type WorkItem = db.WorkItem
type WorkItemRelation = db.WorkItemRelation
type Branch = db.Branch
type Message = db.Message
type Artifact = db.Artifact

// Response is the envelope used by all API handlers
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ========== Project API types ==========

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description,omitempty"`
}

type UpdateProjectRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

// ========== Work item API types ==========

type CreateWorkItemRequest struct {
	ProjectID          string   `json:"project_id" binding:"required"`
	Title              string   `json:"title" binding:"required"`
	Description        string   `json:"description,omitempty"`
	AcceptanceCriteria string   `json:"acceptance_criteria,omitempty"`
	Type               string   `json:"type,omitempty"`
	Status             string   `json:"status,omitempty"`
	Priority           string   `json:"priority,omitempty"`
	Labels             []string `json:"labels,omitempty"`
}

type UpdateWorkItemRequest struct {
	Title              string   `json:"title,omitempty"`
	Description        string   `json:"description,omitempty"`
	AcceptanceCriteria string   `json:"acceptance_criteria,omitempty"`
	Type               string   `json:"type,omitempty"`
	Status             string   `json:"status,omitempty"`
	Priority           string   `json:"priority,omitempty"`
	Labels             []string `json:"labels,omitempty"`
}

type CreateRelationRequest struct {
	ParentID string `json:"parent_id" binding:"required"`
	ChildID  string `json:"child_id" binding:"required"`
	Type     string `json:"type,omitempty"`
}

// ========== Branch API types ==========

type CreateBranchRequest struct {
	WorkItemID string `json:"work_item_id" binding:"required"`
	Name       string `json:"name,omitempty"`
}

type ForkBranchRequest struct {
	Name               string `json:"name,omitempty"`
	ForkPointMessageID string `json:"fork_point_message_id,omitempty"`
}

// ========== Message API types ==========

type AppendMessageRequest struct {
	Role     string                 `json:"role" binding:"required"`
	Content  string                 `json:"content" binding:"required"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	UserID   string                 `json:"user_id,omitempty"`
	Name     string                 `json:"name,omitempty"`
}

type BulkAppendMessagesRequest struct {
	Messages []AppendMessageRequest `json:"messages" binding:"required"`
}

// ========== Extraction API types ==========

// ExtractedItem mirrors the shape returned by the extraction endpoint.
type ExtractedItem struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// ConfirmExtractionRequest persists a selection of extracted items as real
// work items in a project.
type ConfirmExtractionRequest struct {
	ProjectID string          `json:"project_id" binding:"required"`
	Items     []ExtractedItem `json:"items" binding:"required"`
}

// ========== Artifact API types ==========

type CreateArtifactRequest struct {
	WorkItemID string                 `json:"work_item_id" binding:"required"`
	BranchID   string                 `json:"branch_id,omitempty"`
	Type       string                 `json:"type" binding:"required"`
	Title      string                 `json:"title" binding:"required"`
	Content    map[string]interface{} `json:"content,omitempty"`
}

type UpdateArtifactRequest struct {
	Title   string                 `json:"title,omitempty"`
	Content map[string]interface{} `json:"content,omitempty"`
}
