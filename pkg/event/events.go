package event

// ============================================================================
// Event Names (constants)
// ============================================================================

const (
	ProjectCreated        = "project.created"
	ProjectUpdated        = "project.updated"
	ProjectDeleted        = "project.deleted"
	ProjectSummaryUpdated = "project.summaryUpdated"
	WorkItemCreated       = "workitem.created"
	WorkItemUpdated       = "workitem.updated"
	WorkItemDeleted       = "workitem.deleted"
	BranchCreated         = "branch.created"
	BranchDeleted         = "branch.deleted"
	BranchSummaryUpdated  = "branch.summaryUpdated"
	MessageCreated        = "message.created"
	ArtifactCreated       = "artifact.created"
	ArtifactUpdated       = "artifact.updated"
)

// ============================================================================
// Project Events
// ============================================================================

// ProjectCreatedEvent is emitted when a project is created.
type ProjectCreatedEvent struct {
	ProjectID string `json:"project_id"`
}

func (e ProjectCreatedEvent) EventName() string { return ProjectCreated }

// ProjectUpdatedEvent is emitted when a project is updated.
type ProjectUpdatedEvent struct {
	ProjectID string `json:"project_id"`
}

func (e ProjectUpdatedEvent) EventName() string { return ProjectUpdated }

// ProjectDeletedEvent is emitted when a project is soft-deleted.
type ProjectDeletedEvent struct {
	ProjectID string `json:"project_id"`
}

func (e ProjectDeletedEvent) EventName() string { return ProjectDeleted }

// ProjectSummaryUpdatedEvent is emitted after a project summary commit.
type ProjectSummaryUpdatedEvent struct {
	ProjectID string `json:"project_id"`
}

func (e ProjectSummaryUpdatedEvent) EventName() string { return ProjectSummaryUpdated }

// ============================================================================
// Work Item Events
// ============================================================================

// WorkItemCreatedEvent is emitted when a work item is created.
type WorkItemCreatedEvent struct {
	WorkItemID string `json:"work_item_id"`
	ProjectID  string `json:"project_id"`
}

func (e WorkItemCreatedEvent) EventName() string { return WorkItemCreated }

// WorkItemUpdatedEvent is emitted when a work item is updated.
type WorkItemUpdatedEvent struct {
	WorkItemID string `json:"work_item_id"`
}

func (e WorkItemUpdatedEvent) EventName() string { return WorkItemUpdated }

// WorkItemDeletedEvent is emitted when a work item is soft-deleted.
type WorkItemDeletedEvent struct {
	WorkItemID string `json:"work_item_id"`
}

func (e WorkItemDeletedEvent) EventName() string { return WorkItemDeleted }

// ============================================================================
// Branch / Message Events
// ============================================================================

// BranchCreatedEvent is emitted when a branch is created or forked.
type BranchCreatedEvent struct {
	BranchID   string `json:"branch_id"`
	WorkItemID string `json:"work_item_id"`
	Forked     bool   `json:"forked,omitempty"`
}

func (e BranchCreatedEvent) EventName() string { return BranchCreated }

// BranchDeletedEvent is emitted when a branch is soft-deleted.
type BranchDeletedEvent struct {
	BranchID string `json:"branch_id"`
}

func (e BranchDeletedEvent) EventName() string { return BranchDeleted }

// BranchSummaryUpdatedEvent is emitted after a branch summary commit wins the
// optimistic-concurrency race.
type BranchSummaryUpdatedEvent struct {
	BranchID     string `json:"branch_id"`
	MessageCount int    `json:"message_count"`
}

func (e BranchSummaryUpdatedEvent) EventName() string { return BranchSummaryUpdated }

// MessageCreatedEvent is emitted when a message is appended to a branch.
type MessageCreatedEvent struct {
	MessageID string `json:"message_id"`
	BranchID  string `json:"branch_id"`
}

func (e MessageCreatedEvent) EventName() string { return MessageCreated }

// ============================================================================
// Artifact Events
// ============================================================================

// ArtifactCreatedEvent is emitted when an artifact is created.
type ArtifactCreatedEvent struct {
	ArtifactID string `json:"artifact_id"`
	WorkItemID string `json:"work_item_id"`
	Type       string `json:"type"`
}

func (e ArtifactCreatedEvent) EventName() string { return ArtifactCreated }

// ArtifactUpdatedEvent is emitted when an artifact version is bumped.
type ArtifactUpdatedEvent struct {
	ArtifactID string `json:"artifact_id"`
	WorkItemID string `json:"work_item_id"`
	Version    int    `json:"version"`
}

func (e ArtifactUpdatedEvent) EventName() string { return ArtifactUpdated }
