package handler

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/threadline/threadline/pkg/models"
	"github.com/threadline/threadline/pkg/service"
	"github.com/threadline/threadline/pkg/utils"
)

// BranchHandler exposes branch CRUD, messages, context building,
// summarization and work-item extraction.
type BranchHandler struct {
	branches   *service.BranchService
	messages   *service.MessageService
	contexts   *service.ContextService
	summaries  *service.SummaryService
	extraction *service.ExtractionService
	logger     *slog.Logger
}

func NewBranchHandler(
	branches *service.BranchService,
	messages *service.MessageService,
	contexts *service.ContextService,
	summaries *service.SummaryService,
	extraction *service.ExtractionService,
) *BranchHandler {
	return &BranchHandler{
		branches:   branches,
		messages:   messages,
		contexts:   contexts,
		summaries:  summaries,
		extraction: extraction,
		logger:     utils.GetLogger(),
	}
}

// CreateBranch POST /api/branches
func (h *BranchHandler) CreateBranch(c *gin.Context) {
	var req models.CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid parameters")
		return
	}
	branch, err := h.branches.CreateBranch(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, branch)
}

// ListBranches GET /api/workitems/:id/branches
func (h *BranchHandler) ListBranches(c *gin.Context) {
	branches, err := h.branches.ListBranches(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, branches)
}

// GetBranch GET /api/branches/:id
func (h *BranchHandler) GetBranch(c *gin.Context) {
	branch, err := h.branches.GetBranch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, branch)
}

// ForkBranch POST /api/branches/:id/fork
func (h *BranchHandler) ForkBranch(c *gin.Context) {
	var req models.ForkBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid parameters")
		return
	}
	branch, err := h.branches.ForkBranch(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, branch)
}

// DeleteBranch DELETE /api/branches/:id
func (h *BranchHandler) DeleteBranch(c *gin.Context) {
	if err := h.branches.DeleteBranch(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Deleted successfully")
}

// ========== Messages ==========

// AppendMessage POST /api/branches/:id/messages
func (h *BranchHandler) AppendMessage(c *gin.Context) {
	var req models.AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid parameters")
		return
	}
	msg, err := h.messages.AppendMessage(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, msg)
}

// BulkAppendMessages POST /api/branches/:id/messages/bulk
func (h *BranchHandler) BulkAppendMessages(c *gin.Context) {
	var req models.BulkAppendMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid parameters")
		return
	}
	msgs, err := h.messages.BulkAppendMessages(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, msgs)
}

// ListMessages GET /api/branches/:id/messages?limit=N
func (h *BranchHandler) ListMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	msgs, err := h.messages.ListMessages(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, msgs)
}

// DeleteMessage DELETE /api/messages/:id
func (h *BranchHandler) DeleteMessage(c *gin.Context) {
	if err := h.messages.DeleteMessage(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Deleted successfully")
}

// ========== Context and summarization ==========

// contextOptionsFromQuery reads the optional context query parameters. Absent
// parameters keep their defaults.
func contextOptionsFromQuery(c *gin.Context) *service.ContextOptions {
	opts := service.DefaultContextOptions()
	if v := c.Query("message_limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MessageLimit = n
		}
	}
	if v := c.Query("include_artifacts"); v != "" {
		opts.IncludeArtifacts = v != "false"
	}
	if v := c.Query("include_parents"); v != "" {
		opts.IncludeParents = v != "false"
	}
	if v := c.Query("include_summary"); v != "" {
		opts.IncludeSummary = v != "false"
	}
	if v := c.QueryArray("artifact_types"); len(v) > 0 {
		opts.ArtifactTypes = v
	}
	return opts
}

// GetContext GET /api/branches/:id/context
func (h *BranchHandler) GetContext(c *gin.Context) {
	pack, err := h.contexts.BuildContext(c.Request.Context(), c.Param("id"), contextOptionsFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, pack)
}

// GetContextText GET /api/branches/:id/context/text
func (h *BranchHandler) GetContextText(c *gin.Context) {
	text, err := h.contexts.BuildContextString(c.Request.Context(), c.Param("id"), contextOptionsFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"text": text})
}

// NeedsSummary GET /api/branches/:id/needs-summary
func (h *BranchHandler) NeedsSummary(c *gin.Context) {
	needed, err := h.summaries.BranchNeedsSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"needs_summary": needed})
}

// SummarizeBranch POST /api/branches/:id/summarize
func (h *BranchHandler) SummarizeBranch(c *gin.Context) {
	summary, err := h.summaries.SummarizeBranch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if summary == nil {
		respondMessage(c, "No summary generated")
		return
	}
	respondOK(c, summary)
}

// SweepSummaries POST /api/summaries/sweep
func (h *BranchHandler) SweepSummaries(c *gin.Context) {
	result, err := h.summaries.UpdatePendingSummaries(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

// ExtractWorkItems POST /api/branches/:id/extract
func (h *BranchHandler) ExtractWorkItems(c *gin.Context) {
	items, err := h.extraction.ExtractWorkItems(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"items": items})
}
