package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/threadline/threadline/pkg/db"
	"github.com/threadline/threadline/pkg/models"
	"github.com/threadline/threadline/pkg/service"
	"github.com/threadline/threadline/pkg/utils"
)

// WorkItemHandler exposes work item and relation CRUD, plus persistence of
// extraction suggestions.
type WorkItemHandler struct {
	workItems *service.WorkItemService
	logger    *slog.Logger
}

func NewWorkItemHandler(workItems *service.WorkItemService) *WorkItemHandler {
	return &WorkItemHandler{
		workItems: workItems,
		logger:    utils.GetLogger(),
	}
}

// CreateWorkItem POST /api/workitems
func (h *WorkItemHandler) CreateWorkItem(c *gin.Context) {
	var req models.CreateWorkItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid parameters")
		return
	}
	item, err := h.workItems.CreateWorkItem(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, item)
}

// ListWorkItems GET /api/projects/:id/workitems
func (h *WorkItemHandler) ListWorkItems(c *gin.Context) {
	items, err := h.workItems.ListWorkItems(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, items)
}

// GetWorkItem GET /api/workitems/:id
func (h *WorkItemHandler) GetWorkItem(c *gin.Context) {
	item, err := h.workItems.GetWorkItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, item)
}

// UpdateWorkItem PUT /api/workitems/:id
func (h *WorkItemHandler) UpdateWorkItem(c *gin.Context) {
	var req models.UpdateWorkItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid parameters")
		return
	}
	item, err := h.workItems.UpdateWorkItem(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, item)
}

// DeleteWorkItem DELETE /api/workitems/:id
func (h *WorkItemHandler) DeleteWorkItem(c *gin.Context) {
	if err := h.workItems.DeleteWorkItem(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Deleted successfully")
}

// CreateRelation POST /api/relations
func (h *WorkItemHandler) CreateRelation(c *gin.Context) {
	var req models.CreateRelationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid parameters")
		return
	}
	rel, err := h.workItems.CreateRelation(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rel)
}

// ListRelations GET /api/workitems/:id/relations
func (h *WorkItemHandler) ListRelations(c *gin.Context) {
	rels, err := h.workItems.ListRelations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rels)
}

// DeleteRelation DELETE /api/relations/:id
func (h *WorkItemHandler) DeleteRelation(c *gin.Context) {
	if err := h.workItems.DeleteRelation(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Deleted successfully")
}

// ConfirmExtraction POST /api/extractions/confirm
//
// Persists user-selected extraction suggestions as real work items, each with
// its default branch.
func (h *WorkItemHandler) ConfirmExtraction(c *gin.Context) {
	var req models.ConfirmExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid parameters")
		return
	}

	created := make([]db.WorkItem, 0, len(req.Items))
	for _, item := range req.Items {
		wi, err := h.workItems.CreateWorkItem(c.Request.Context(), &models.CreateWorkItemRequest{
			ProjectID:   req.ProjectID,
			Title:       item.Title,
			Description: item.Description,
			Type:        item.Type,
			Priority:    item.Priority,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		created = append(created, *wi)
	}
	respondOK(c, created)
}
