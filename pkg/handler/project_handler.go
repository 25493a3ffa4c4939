package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/threadline/threadline/pkg/models"
	"github.com/threadline/threadline/pkg/service"
	"github.com/threadline/threadline/pkg/utils"
)

// ProjectHandler exposes project CRUD and project summarization.
type ProjectHandler struct {
	projects  *service.ProjectService
	summaries *service.SummaryService
	logger    *slog.Logger
}

func NewProjectHandler(projects *service.ProjectService, summaries *service.SummaryService) *ProjectHandler {
	return &ProjectHandler{
		projects:  projects,
		summaries: summaries,
		logger:    utils.GetLogger(),
	}
}

// CreateProject POST /api/projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid parameters")
		return
	}
	project, err := h.projects.CreateProject(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, project)
}

// ListProjects GET /api/projects
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	projects, err := h.projects.ListProjects(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, projects)
}

// GetProject GET /api/projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := h.projects.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, project)
}

// UpdateProject PUT /api/projects/:id
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	var req models.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid parameters")
		return
	}
	project, err := h.projects.UpdateProject(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, project)
}

// DeleteProject DELETE /api/projects/:id
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	if err := h.projects.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Deleted successfully")
}

// SummarizeProject POST /api/projects/:id/summarize
//
// Interactive summarization: a missing model or generation failure is a real
// error here, unlike the passive per-message trigger.
func (h *ProjectHandler) SummarizeProject(c *gin.Context) {
	summary, err := h.summaries.SummarizeProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if summary == nil {
		respondMessage(c, "Nothing to summarize")
		return
	}
	respondOK(c, summary)
}
