package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/threadline/threadline/pkg/db"
	"github.com/threadline/threadline/pkg/event"
	"github.com/threadline/threadline/pkg/models"
	"github.com/threadline/threadline/pkg/utils"
	"gorm.io/gorm"
)

// WorkItemService manages work items and the relation edges between them.
type WorkItemService struct {
	db      *gorm.DB
	emitter *event.Emitter
	logger  *slog.Logger
}

func NewWorkItemService(database *gorm.DB, emitter *event.Emitter) *WorkItemService {
	return &WorkItemService{
		db:      database,
		emitter: emitter,
		logger:  utils.GetLogger(),
	}
}

// CreateWorkItem creates a work item with its default conversation branch.
// Both rows are written in one transaction so a work item never exists
// without a branch to talk in.
func (s *WorkItemService) CreateWorkItem(ctx context.Context, req *models.CreateWorkItemRequest) (*db.WorkItem, error) {
	var project db.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", req.ProjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %s: %w", req.ProjectID, ErrNotFound)
		}
		return nil, fmt.Errorf("load project: %w", err)
	}

	item := &db.WorkItem{
		ID:                 uuid.New().String(),
		ProjectID:          req.ProjectID,
		Title:              req.Title,
		Description:        req.Description,
		AcceptanceCriteria: req.AcceptanceCriteria,
		Type:               normalizeWorkItemType(req.Type),
		Status:             req.Status,
		Priority:           normalizeWorkItemPriority(req.Priority),
		Labels:             req.Labels,
	}
	if item.Status == "" {
		item.Status = db.WorkItemStatusBacklog
	} else if !validWorkItemStatus(item.Status) {
		return nil, fmt.Errorf("invalid work item status: %s", item.Status)
	}

	branch := &db.Branch{
		ID:         uuid.New().String(),
		WorkItemID: item.ID,
		Name:       db.DefaultBranchName,
		IsDefault:  true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		return tx.Create(branch).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create work item: %w", err)
	}

	s.logger.Info("Work item created", "work_item_id", item.ID, "title", item.Title)
	if s.emitter != nil {
		s.emitter.Emit(event.WorkItemCreatedEvent{WorkItemID: item.ID, ProjectID: item.ProjectID})
		s.emitter.Emit(event.BranchCreatedEvent{BranchID: branch.ID, WorkItemID: item.ID})
	}
	return item, nil
}

// GetWorkItem returns a work item by ID.
func (s *WorkItemService) GetWorkItem(ctx context.Context, id string) (*db.WorkItem, error) {
	var item db.WorkItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("work item %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load work item: %w", err)
	}
	return &item, nil
}

// ListWorkItems returns a project's work items, most recently updated first.
func (s *WorkItemService) ListWorkItems(ctx context.Context, projectID string) ([]db.WorkItem, error) {
	var items []db.WorkItem
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("updated_at DESC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	return items, nil
}

// UpdateWorkItem applies non-empty fields from the request.
func (s *WorkItemService) UpdateWorkItem(ctx context.Context, id string, req *models.UpdateWorkItemRequest) (*db.WorkItem, error) {
	item, err := s.GetWorkItem(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.AcceptanceCriteria != "" {
		updates["acceptance_criteria"] = req.AcceptanceCriteria
	}
	if req.Type != "" {
		updates["type"] = normalizeWorkItemType(req.Type)
	}
	if req.Status != "" {
		if !validWorkItemStatus(req.Status) {
			return nil, fmt.Errorf("invalid work item status: %s", req.Status)
		}
		updates["status"] = req.Status
	}
	if req.Priority != "" {
		updates["priority"] = normalizeWorkItemPriority(req.Priority)
	}
	if req.Labels != nil {
		updates["labels"] = db.StringArray(req.Labels)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update work item: %w", err)
		}
	}

	if s.emitter != nil {
		s.emitter.Emit(event.WorkItemUpdatedEvent{WorkItemID: item.ID})
	}
	return item, nil
}

// DeleteWorkItem soft-deletes a work item with its branches, messages,
// artifacts and relation edges.
func (s *WorkItemService) DeleteWorkItem(ctx context.Context, id string) error {
	if _, err := s.GetWorkItem(ctx, id); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var branchIDs []string
		if err := tx.Model(&db.Branch{}).
			Where("work_item_id = ?", id).
			Pluck("id", &branchIDs).Error; err != nil {
			return err
		}
		if len(branchIDs) > 0 {
			if err := tx.Where("branch_id IN ?", branchIDs).Delete(&db.Message{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", branchIDs).Delete(&db.Branch{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("work_item_id = ?", id).Delete(&db.Artifact{}).Error; err != nil {
			return err
		}
		if err := tx.Where("parent_id = ? OR child_id = ?", id, id).Delete(&db.WorkItemRelation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.WorkItem{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("delete work item: %w", err)
	}

	s.logger.Info("Work item deleted", "work_item_id", id)
	if s.emitter != nil {
		s.emitter.Emit(event.WorkItemDeletedEvent{WorkItemID: id})
	}
	return nil
}

// ========== Relations ==========

// CreateRelation adds a directed edge between two work items. Both endpoints
// must exist; duplicate live edges of the same type are rejected.
func (s *WorkItemService) CreateRelation(ctx context.Context, req *models.CreateRelationRequest) (*db.WorkItemRelation, error) {
	if req.ParentID == req.ChildID {
		return nil, fmt.Errorf("relation endpoints must differ")
	}
	relType := req.Type
	if relType == "" {
		relType = db.RelationParentChild
	}
	if relType != db.RelationParentChild && relType != db.RelationBlocks && relType != db.RelationRelates {
		return nil, fmt.Errorf("invalid relation type: %s", relType)
	}

	for _, itemID := range []string{req.ParentID, req.ChildID} {
		if _, err := s.GetWorkItem(ctx, itemID); err != nil {
			return nil, err
		}
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&db.WorkItemRelation{}).
		Where("parent_id = ? AND child_id = ? AND type = ?", req.ParentID, req.ChildID, relType).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check relation: %w", err)
	}
	if existing > 0 {
		return nil, fmt.Errorf("relation already exists")
	}

	rel := &db.WorkItemRelation{
		ID:       uuid.New().String(),
		ParentID: req.ParentID,
		ChildID:  req.ChildID,
		Type:     relType,
	}
	if err := s.db.WithContext(ctx).Create(rel).Error; err != nil {
		return nil, fmt.Errorf("create relation: %w", err)
	}
	return rel, nil
}

// ListRelations returns all live edges touching a work item, in either
// direction.
func (s *WorkItemService) ListRelations(ctx context.Context, workItemID string) ([]db.WorkItemRelation, error) {
	var rels []db.WorkItemRelation
	if err := s.db.WithContext(ctx).
		Where("parent_id = ? OR child_id = ?", workItemID, workItemID).
		Find(&rels).Error; err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	return rels, nil
}

// DeleteRelation soft-deletes a relation edge.
func (s *WorkItemService) DeleteRelation(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&db.WorkItemRelation{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete relation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("relation %s: %w", id, ErrNotFound)
	}
	return nil
}

func validWorkItemStatus(status string) bool {
	switch status {
	case db.WorkItemStatusBacklog, db.WorkItemStatusTodo, db.WorkItemStatusInProgress,
		db.WorkItemStatusReview, db.WorkItemStatusDone:
		return true
	}
	return false
}
