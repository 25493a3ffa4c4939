// Context builder: assembles bounded, token-aware snapshots of a branch's
// state for AI calls.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/threadline/threadline/pkg/db"
	"github.com/threadline/threadline/pkg/utils"
	"gorm.io/gorm"
)

// ContextOptions controls what goes into a context pack. Use
// DefaultContextOptions as the starting point and switch off what you don't
// need.
type ContextOptions struct {
	MessageLimit     int      // recent-message window size
	IncludeArtifacts bool     // include latest artifacts
	ArtifactTypes    []string // artifact types to include (empty = defaults)
	IncludeParents   bool     // include immediate parent work items
	IncludeSummary   bool     // include the stored branch summary
}

// DefaultContextOptions returns the default context options.
func DefaultContextOptions() *ContextOptions {
	return &ContextOptions{
		MessageLimit:     20,
		IncludeArtifacts: true,
		ArtifactTypes:    nil, // db.DefaultContextArtifactTypes
		IncludeParents:   true,
		IncludeSummary:   true,
	}
}

// ContextPack is the assembled read-model handed to AI calls. It is ephemeral
// and recomputed on each request, never persisted.
//
// ParentItems holds only the immediate PARENT_CHILD parents of the work item,
// not a resolved root-to-node ancestor path; a work item may report multiple
// or zero parents depending on edge data.
type ContextPack struct {
	Project  *db.Project  `json:"project,omitempty"`
	WorkItem *db.WorkItem `json:"work_item,omitempty"`

	ParentItems []db.WorkItem `json:"parent_items,omitempty"`

	Branch        *db.Branch `json:"branch"`
	BranchSummary string     `json:"branch_summary,omitempty"`
	MessageCount  int64      `json:"message_count"`

	RecentMessages []db.Message `json:"recent_messages"`

	Artifacts       []db.Artifact           `json:"artifacts,omitempty"`
	LatestArtifacts map[string]*db.Artifact `json:"latest_artifacts,omitempty"` // latest per type

	GeneratedAt     time.Time `json:"generated_at"`
	EstimatedTokens int       `json:"estimated_tokens"`
}

// ContextService builds context packs for branches.
type ContextService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewContextService creates a new context service.
func NewContextService(database *gorm.DB) *ContextService {
	return &ContextService{
		db:     database,
		logger: utils.GetLogger(),
	}
}

// BuildContext assembles the context pack for a branch.
//
// Only a missing branch is an error (ErrNotFound). Missing sub-data (no
// messages, no artifacts, soft-deleted work item) yields empty fields, not
// errors.
func (s *ContextService) BuildContext(ctx context.Context, branchID string, opts *ContextOptions) (*ContextPack, error) {
	if opts == nil {
		opts = DefaultContextOptions()
	}
	messageLimit := opts.MessageLimit
	if messageLimit <= 0 {
		messageLimit = 20
	}
	artifactTypes := opts.ArtifactTypes
	if len(artifactTypes) == 0 {
		artifactTypes = db.DefaultContextArtifactTypes
	}

	var branch db.Branch
	if err := s.db.WithContext(ctx).First(&branch, "id = ?", branchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("branch %s: %w", branchID, ErrNotFound)
		}
		return nil, fmt.Errorf("load branch: %w", err)
	}

	pack := &ContextPack{
		Branch:      &branch,
		GeneratedAt: time.Now(),
	}
	if opts.IncludeSummary {
		pack.BranchSummary = branch.Summary
	}

	// Work item and project are best-effort: a soft-deleted parent leaves the
	// field nil instead of failing the whole pack.
	var workItems []db.WorkItem
	if err := s.db.WithContext(ctx).Limit(1).Find(&workItems, "id = ?", branch.WorkItemID).Error; err != nil {
		return nil, fmt.Errorf("load work item: %w", err)
	}
	if len(workItems) > 0 {
		pack.WorkItem = &workItems[0]

		var projects []db.Project
		if err := s.db.WithContext(ctx).Limit(1).Find(&projects, "id = ?", pack.WorkItem.ProjectID).Error; err != nil {
			return nil, fmt.Errorf("load project: %w", err)
		}
		if len(projects) > 0 {
			pack.Project = &projects[0]
		}

		if opts.IncludeParents {
			parents, err := s.parentItems(ctx, pack.WorkItem.ID)
			if err != nil {
				return nil, err
			}
			pack.ParentItems = parents
		}
	}

	// Fetch the most recent N messages descending, then reverse to restore
	// chronological order. This bounds both query cost and prompt size.
	var recent []db.Message
	if err := s.db.WithContext(ctx).
		Where("branch_id = ?", branch.ID).
		Order("created_at DESC").
		Limit(messageLimit).
		Find(&recent).Error; err != nil {
		return nil, fmt.Errorf("load recent messages: %w", err)
	}
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	pack.RecentMessages = recent

	// Total count is fetched separately from the windowed query.
	if err := s.db.WithContext(ctx).Model(&db.Message{}).
		Where("branch_id = ?", branch.ID).
		Count(&pack.MessageCount).Error; err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	if opts.IncludeArtifacts && pack.WorkItem != nil {
		artifacts, latest, err := s.latestArtifacts(ctx, pack.WorkItem.ID, artifactTypes)
		if err != nil {
			return nil, err
		}
		pack.Artifacts = artifacts
		pack.LatestArtifacts = latest
	}

	pack.EstimatedTokens = estimatePackTokens(pack)

	return pack, nil
}

// BuildContextString renders the context pack as a deterministic text layout
// for LLM prompts. Sections with no content are omitted entirely.
func (s *ContextService) BuildContextString(ctx context.Context, branchID string, opts *ContextOptions) (string, error) {
	pack, err := s.BuildContext(ctx, branchID, opts)
	if err != nil {
		return "", err
	}
	return RenderContextPack(pack), nil
}

// parentItems returns the immediate PARENT_CHILD parents of a work item.
func (s *ContextService) parentItems(ctx context.Context, workItemID string) ([]db.WorkItem, error) {
	var parents []db.WorkItem
	err := s.db.WithContext(ctx).Model(&db.WorkItem{}).
		Joins("JOIN work_item_relations rel ON rel.parent_id = work_items.id").
		Where("rel.child_id = ? AND rel.type = ? AND rel.deleted_at IS NULL", workItemID, db.RelationParentChild).
		Find(&parents).Error
	if err != nil {
		return nil, fmt.Errorf("load parent items: %w", err)
	}
	return parents, nil
}

// latestArtifacts fetches all non-deleted artifacts of the requested types and
// reduces them to one per type, keeping the first (highest-version) row seen.
func (s *ContextService) latestArtifacts(ctx context.Context, workItemID string, types []string) ([]db.Artifact, map[string]*db.Artifact, error) {
	var artifacts []db.Artifact
	err := s.db.WithContext(ctx).
		Where("work_item_id = ? AND type IN ?", workItemID, types).
		Order("type ASC, version DESC, updated_at DESC").
		Find(&artifacts).Error
	if err != nil {
		return nil, nil, fmt.Errorf("load artifacts: %w", err)
	}

	latest := make(map[string]*db.Artifact)
	for i := range artifacts {
		a := &artifacts[i]
		if _, seen := latest[a.Type]; !seen {
			latest[a.Type] = a
		}
	}
	return artifacts, latest, nil
}

// RenderContextPack renders a pack with fixed section order: project, work
// item, parent items, branch summary, artifacts, recent conversation.
func RenderContextPack(pack *ContextPack) string {
	var sb strings.Builder

	if pack.Project != nil {
		sb.WriteString(fmt.Sprintf("# Project: %s\n", pack.Project.Name))
		if pack.Project.Description != "" {
			sb.WriteString(pack.Project.Description + "\n")
		}
		sb.WriteString("\n")
	}

	if pack.WorkItem != nil {
		wi := pack.WorkItem
		sb.WriteString(fmt.Sprintf("## Work Item: %s\n", wi.Title))
		sb.WriteString(fmt.Sprintf("Type: %s | Status: %s | Priority: %s\n", wi.Type, wi.Status, wi.Priority))
		if wi.Description != "" {
			sb.WriteString(wi.Description + "\n")
		}
		if wi.AcceptanceCriteria != "" {
			sb.WriteString("Acceptance Criteria:\n" + wi.AcceptanceCriteria + "\n")
		}
		sb.WriteString("\n")
	}

	if len(pack.ParentItems) > 0 {
		sb.WriteString("### Parent Items\n")
		for _, p := range pack.ParentItems {
			sb.WriteString(fmt.Sprintf("- [%s] %s (%s)\n", p.Type, p.Title, p.Status))
		}
		sb.WriteString("\n")
	}

	if pack.BranchSummary != "" {
		sb.WriteString("### Branch Summary\n")
		sb.WriteString(pack.BranchSummary + "\n\n")
	}

	if len(pack.LatestArtifacts) > 0 {
		sb.WriteString("### Linked Artifacts\n")
		// Iterate the full list to keep type order deterministic.
		seen := make(map[string]bool)
		for i := range pack.Artifacts {
			a := pack.LatestArtifacts[pack.Artifacts[i].Type]
			if a == nil || seen[a.Type] {
				continue
			}
			seen[a.Type] = true
			sb.WriteString(fmt.Sprintf("#### %s: %s (v%d)\n", a.Type, a.Title, a.Version))
			if len(a.Content) > 0 {
				if b, err := json.MarshalIndent(a.Content, "  ", "  "); err == nil {
					sb.WriteString("  " + string(b) + "\n")
				}
			}
		}
		sb.WriteString("\n")
	}

	if len(pack.RecentMessages) > 0 {
		sb.WriteString("### Recent Conversation\n")
		for _, m := range pack.RecentMessages {
			sb.WriteString(messageLine(&m) + "\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// messageLine formats one transcript line, using the author's display name for
// user messages when known.
func messageLine(m *db.Message) string {
	if m.Role == db.RoleUser && m.Name != "" {
		return fmt.Sprintf("[%s] %s: %s", m.Role, m.Name, m.Content)
	}
	return fmt.Sprintf("[%s]: %s", m.Role, m.Content)
}

// estimatePackTokens sums character lengths of all included text fields and
// divides by 4. This is a fixed heuristic, not a real tokenizer.
func estimatePackTokens(pack *ContextPack) int {
	chars := 0
	if pack.Project != nil {
		chars += len(pack.Project.Name) + len(pack.Project.Description)
	}
	if pack.WorkItem != nil {
		chars += len(pack.WorkItem.Title) + len(pack.WorkItem.Description) + len(pack.WorkItem.AcceptanceCriteria)
	}
	for _, p := range pack.ParentItems {
		chars += len(p.Title)
	}
	chars += len(pack.BranchSummary)
	for _, m := range pack.RecentMessages {
		chars += len(m.Content)
	}
	for _, a := range pack.LatestArtifacts {
		chars += len(a.Title)
		if len(a.Content) > 0 {
			if b, err := json.Marshal(a.Content); err == nil {
				chars += len(b)
			}
		}
	}
	return chars / 4
}
