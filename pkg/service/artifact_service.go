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

// ArtifactService manages versioned artifacts attached to work items.
type ArtifactService struct {
	db      *gorm.DB
	emitter *event.Emitter
	logger  *slog.Logger
}

func NewArtifactService(database *gorm.DB, emitter *event.Emitter) *ArtifactService {
	return &ArtifactService{
		db:      database,
		emitter: emitter,
		logger:  utils.GetLogger(),
	}
}

// CreateArtifact creates a new artifact at version 1.
func (s *ArtifactService) CreateArtifact(ctx context.Context, req *models.CreateArtifactRequest) (*db.Artifact, error) {
	if !validArtifactType(req.Type) {
		return nil, fmt.Errorf("invalid artifact type: %s", req.Type)
	}

	var item db.WorkItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", req.WorkItemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("work item %s: %w", req.WorkItemID, ErrNotFound)
		}
		return nil, fmt.Errorf("load work item: %w", err)
	}

	artifact := &db.Artifact{
		ID:         uuid.New().String(),
		WorkItemID: req.WorkItemID,
		Type:       req.Type,
		Title:      req.Title,
		Content:    req.Content,
		Version:    1,
	}
	if req.BranchID != "" {
		artifact.BranchID = &req.BranchID
	}

	if err := s.db.WithContext(ctx).Create(artifact).Error; err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}

	s.logger.Info("Artifact created",
		"artifact_id", artifact.ID, "work_item_id", artifact.WorkItemID, "type", artifact.Type)
	if s.emitter != nil {
		s.emitter.Emit(event.ArtifactCreatedEvent{
			ArtifactID: artifact.ID, WorkItemID: artifact.WorkItemID, Type: artifact.Type,
		})
	}
	return artifact, nil
}

// GetArtifact returns an artifact by ID.
func (s *ArtifactService) GetArtifact(ctx context.Context, id string) (*db.Artifact, error) {
	var artifact db.Artifact
	if err := s.db.WithContext(ctx).First(&artifact, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("artifact %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load artifact: %w", err)
	}
	return &artifact, nil
}

// ListArtifacts returns a work item's artifacts ordered so the latest of each
// type comes first within its type group.
func (s *ArtifactService) ListArtifacts(ctx context.Context, workItemID string) ([]db.Artifact, error) {
	var artifacts []db.Artifact
	if err := s.db.WithContext(ctx).
		Where("work_item_id = ?", workItemID).
		Order("type ASC, version DESC, updated_at DESC").
		Find(&artifacts).Error; err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return artifacts, nil
}

// UpdateArtifact rewrites the artifact's content and bumps its version.
func (s *ArtifactService) UpdateArtifact(ctx context.Context, id string, req *models.UpdateArtifactRequest) (*db.Artifact, error) {
	artifact, err := s.GetArtifact(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"version": gorm.Expr("version + 1"),
	}
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Content != nil {
		updates["content"] = db.JSONMap(req.Content)
	}
	if err := s.db.WithContext(ctx).Model(artifact).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update artifact: %w", err)
	}

	// Re-read for the bumped version.
	updated, err := s.GetArtifact(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.emitter != nil {
		s.emitter.Emit(event.ArtifactUpdatedEvent{
			ArtifactID: updated.ID, WorkItemID: updated.WorkItemID, Version: updated.Version,
		})
	}
	return updated, nil
}

// DeleteArtifact soft-deletes an artifact.
func (s *ArtifactService) DeleteArtifact(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&db.Artifact{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete artifact: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("artifact %s: %w", id, ErrNotFound)
	}
	return nil
}

func validArtifactType(t string) bool {
	switch t {
	case db.ArtifactTypePlan, db.ArtifactTypeSpec, db.ArtifactTypeChecklist,
		db.ArtifactTypeDecision, db.ArtifactTypeCode, db.ArtifactTypeNote:
		return true
	}
	return false
}
