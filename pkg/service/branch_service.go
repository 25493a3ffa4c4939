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

// BranchService manages conversation branches, including forking.
type BranchService struct {
	db      *gorm.DB
	emitter *event.Emitter
	logger  *slog.Logger
}

func NewBranchService(database *gorm.DB, emitter *event.Emitter) *BranchService {
	return &BranchService{
		db:      database,
		emitter: emitter,
		logger:  utils.GetLogger(),
	}
}

// GetBranch returns a branch by ID.
func (s *BranchService) GetBranch(ctx context.Context, id string) (*db.Branch, error) {
	var branch db.Branch
	if err := s.db.WithContext(ctx).First(&branch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("branch %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load branch: %w", err)
	}
	return &branch, nil
}

// ListBranches returns a work item's branches, default branch first.
func (s *BranchService) ListBranches(ctx context.Context, workItemID string) ([]db.Branch, error) {
	var branches []db.Branch
	if err := s.db.WithContext(ctx).
		Where("work_item_id = ?", workItemID).
		Order("is_default DESC, created_at ASC").
		Find(&branches).Error; err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return branches, nil
}

// CreateBranch creates an empty non-default branch on a work item.
func (s *BranchService) CreateBranch(ctx context.Context, req *models.CreateBranchRequest) (*db.Branch, error) {
	var item db.WorkItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", req.WorkItemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("work item %s: %w", req.WorkItemID, ErrNotFound)
		}
		return nil, fmt.Errorf("load work item: %w", err)
	}

	branch := &db.Branch{
		ID:         uuid.New().String(),
		WorkItemID: item.ID,
		Name:       req.Name,
	}
	if err := s.db.WithContext(ctx).Create(branch).Error; err != nil {
		return nil, fmt.Errorf("create branch: %w", err)
	}

	s.logger.Info("Branch created", "branch_id", branch.ID, "work_item_id", item.ID)
	if s.emitter != nil {
		s.emitter.Emit(event.BranchCreatedEvent{BranchID: branch.ID, WorkItemID: item.ID})
	}
	return branch, nil
}

// ForkBranch creates a new branch from an existing one, copying the source
// messages up to and including the fork point into the new branch. Without a
// fork point the entire source history is copied. The source's summary is not
// carried over: the fork starts with copied raw history and summarizes on its
// own schedule.
func (s *BranchService) ForkBranch(ctx context.Context, sourceID string, req *models.ForkBranchRequest) (*db.Branch, error) {
	source, err := s.GetBranch(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("branch_id = ?", source.ID).Order("created_at ASC")
	var forkPointID *string
	if req.ForkPointMessageID != "" {
		var forkPoint db.Message
		if err := s.db.WithContext(ctx).
			First(&forkPoint, "id = ? AND branch_id = ?", req.ForkPointMessageID, source.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("fork point message %s: %w", req.ForkPointMessageID, ErrNotFound)
			}
			return nil, fmt.Errorf("load fork point: %w", err)
		}
		query = query.Where("created_at <= ?", forkPoint.CreatedAt)
		forkPointID = &forkPoint.ID
	}

	var sourceMessages []db.Message
	if err := query.Find(&sourceMessages).Error; err != nil {
		return nil, fmt.Errorf("load source messages: %w", err)
	}

	branch := &db.Branch{
		ID:                 uuid.New().String(),
		WorkItemID:         source.WorkItemID,
		Name:               req.Name,
		ForkedFromID:       &source.ID,
		ForkPointMessageID: forkPointID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(branch).Error; err != nil {
			return err
		}
		for i := range sourceMessages {
			copied := sourceMessages[i]
			copied.ID = uuid.New().String()
			copied.BranchID = branch.ID
			if err := tx.Create(&copied).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fork branch: %w", err)
	}

	s.logger.Info("Branch forked",
		"branch_id", branch.ID, "source_id", source.ID, "copied_messages", len(sourceMessages))
	if s.emitter != nil {
		s.emitter.Emit(event.BranchCreatedEvent{BranchID: branch.ID, WorkItemID: branch.WorkItemID, Forked: true})
	}
	return branch, nil
}

// DeleteBranch soft-deletes a branch and its messages. The default branch of
// a work item cannot be deleted.
func (s *BranchService) DeleteBranch(ctx context.Context, id string) error {
	branch, err := s.GetBranch(ctx, id)
	if err != nil {
		return err
	}
	if branch.IsDefault {
		return fmt.Errorf("cannot delete the default branch")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("branch_id = ?", id).Delete(&db.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Branch{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}

	s.logger.Info("Branch deleted", "branch_id", id)
	if s.emitter != nil {
		s.emitter.Emit(event.BranchDeletedEvent{BranchID: id})
	}
	return nil
}
