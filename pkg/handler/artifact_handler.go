package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/threadline/threadline/pkg/models"
	"github.com/threadline/threadline/pkg/service"
	"github.com/threadline/threadline/pkg/utils"
)

// ArtifactHandler exposes artifact CRUD.
type ArtifactHandler struct {
	artifacts *service.ArtifactService
	logger    *slog.Logger
}

func NewArtifactHandler(artifacts *service.ArtifactService) *ArtifactHandler {
	return &ArtifactHandler{
		artifacts: artifacts,
		logger:    utils.GetLogger(),
	}
}

// CreateArtifact POST /api/artifacts
func (h *ArtifactHandler) CreateArtifact(c *gin.Context) {
	var req models.CreateArtifactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid parameters")
		return
	}
	artifact, err := h.artifacts.CreateArtifact(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, artifact)
}

// ListArtifacts GET /api/workitems/:id/artifacts
func (h *ArtifactHandler) ListArtifacts(c *gin.Context) {
	artifacts, err := h.artifacts.ListArtifacts(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, artifacts)
}

// GetArtifact GET /api/artifacts/:id
func (h *ArtifactHandler) GetArtifact(c *gin.Context) {
	artifact, err := h.artifacts.GetArtifact(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, artifact)
}

// UpdateArtifact PUT /api/artifacts/:id
func (h *ArtifactHandler) UpdateArtifact(c *gin.Context) {
	var req models.UpdateArtifactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid parameters")
		return
	}
	artifact, err := h.artifacts.UpdateArtifact(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, artifact)
}

// DeleteArtifact DELETE /api/artifacts/:id
func (h *ArtifactHandler) DeleteArtifact(c *gin.Context) {
	if err := h.artifacts.DeleteArtifact(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Deleted successfully")
}
