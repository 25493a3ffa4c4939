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

// ProjectService manages projects.
type ProjectService struct {
	db      *gorm.DB
	emitter *event.Emitter
	logger  *slog.Logger
}

func NewProjectService(database *gorm.DB, emitter *event.Emitter) *ProjectService {
	return &ProjectService{
		db:      database,
		emitter: emitter,
		logger:  utils.GetLogger(),
	}
}

// CreateProject creates a new active project.
func (s *ProjectService) CreateProject(ctx context.Context, req *models.CreateProjectRequest) (*db.Project, error) {
	project := &db.Project{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Status:      db.ProjectStatusActive,
	}
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.logger.Info("Project created", "project_id", project.ID, "name", project.Name)
	if s.emitter != nil {
		s.emitter.Emit(event.ProjectCreatedEvent{ProjectID: project.ID})
	}
	return project, nil
}

// GetProject returns a project by ID.
func (s *ProjectService) GetProject(ctx context.Context, id string) (*db.Project, error) {
	var project db.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	return &project, nil
}

// ListProjects returns all non-deleted projects, newest first.
func (s *ProjectService) ListProjects(ctx context.Context) ([]db.Project, error) {
	var projects []db.Project
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// UpdateProject applies non-empty fields from the request.
func (s *ProjectService) UpdateProject(ctx context.Context, id string, req *models.UpdateProjectRequest) (*db.Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Status != "" {
		if req.Status != db.ProjectStatusActive && req.Status != db.ProjectStatusArchived {
			return nil, fmt.Errorf("invalid project status: %s", req.Status)
		}
		updates["status"] = req.Status
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update project: %w", err)
		}
	}

	if s.emitter != nil {
		s.emitter.Emit(event.ProjectUpdatedEvent{ProjectID: project.ID})
	}
	return project, nil
}

// DeleteProject soft-deletes a project and all of its work items, branches,
// relations and artifacts.
func (s *ProjectService) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.GetProject(ctx, id); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var itemIDs []string
		if err := tx.Model(&db.WorkItem{}).
			Where("project_id = ?", id).
			Pluck("id", &itemIDs).Error; err != nil {
			return err
		}

		if len(itemIDs) > 0 {
			var branchIDs []string
			if err := tx.Model(&db.Branch{}).
				Where("work_item_id IN ?", itemIDs).
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
			if err := tx.Where("work_item_id IN ?", itemIDs).Delete(&db.Artifact{}).Error; err != nil {
				return err
			}
			if err := tx.Where("parent_id IN ? OR child_id IN ?", itemIDs, itemIDs).Delete(&db.WorkItemRelation{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", itemIDs).Delete(&db.WorkItem{}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&db.Project{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	s.logger.Info("Project deleted", "project_id", id)
	if s.emitter != nil {
		s.emitter.Emit(event.ProjectDeletedEvent{ProjectID: id})
	}
	return nil
}
