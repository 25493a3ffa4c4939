package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/threadline/threadline/pkg/db"
	"github.com/threadline/threadline/pkg/utils"
)

// ExtractedWorkItem is one actionable item proposed by the model from a
// conversation. It is a suggestion only; nothing is persisted until the caller
// decides to create real work items from it.
type ExtractedWorkItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
}

type extractionResult struct {
	Items []ExtractedWorkItem `json:"items"`
}

// ExtractionService turns a branch conversation into proposed work items.
type ExtractionService struct {
	contextSvc *ContextService
	generator  StructuredGenerator
	logger     *slog.Logger
}

func NewExtractionService(contextSvc *ContextService, generator StructuredGenerator) *ExtractionService {
	return &ExtractionService{
		contextSvc: contextSvc,
		generator:  generator,
		logger:     utils.GetLogger(),
	}
}

// ExtractWorkItems builds the branch context string and asks the model for
// actionable items. Unlike summarization, a missing model is a hard error
// here: extraction is always user-initiated.
func (s *ExtractionService) ExtractWorkItems(ctx context.Context, branchID string) ([]ExtractedWorkItem, error) {
	contextStr, err := s.contextSvc.BuildContextString(ctx, branchID, nil)
	if err != nil {
		return nil, err
	}

	prompt := buildExtractionPrompt(contextStr)

	var result extractionResult
	if _, err := s.generator.GenerateStructured(ctx, prompt, &result, nil); err != nil {
		return nil, fmt.Errorf("extract work items: %w", err)
	}

	// Normalize model output to known enum values.
	items := make([]ExtractedWorkItem, 0, len(result.Items))
	for _, item := range result.Items {
		if strings.TrimSpace(item.Title) == "" {
			continue
		}
		item.Type = normalizeWorkItemType(item.Type)
		item.Priority = normalizeWorkItemPriority(item.Priority)
		items = append(items, item)
	}

	s.logger.Info("Extracted work items from conversation",
		"branch_id", branchID, "count", len(items))
	return items, nil
}

func buildExtractionPrompt(contextStr string) string {
	var sb strings.Builder
	sb.WriteString("Review the following work discussion and extract actionable work items that were agreed on or clearly implied but not yet tracked.\n\n")
	sb.WriteString(contextStr)
	sb.WriteString("\nRespond with JSON: {\"items\": [{\"title\": string, \"description\": string, \"type\": \"task\"|\"feature\"|\"bug\"|\"epic\", \"priority\": \"low\"|\"medium\"|\"high\"|\"urgent\"}]}. Return an empty items array if nothing actionable remains.")
	return sb.String()
}

func normalizeWorkItemType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case db.WorkItemTypeFeature:
		return db.WorkItemTypeFeature
	case db.WorkItemTypeBug:
		return db.WorkItemTypeBug
	case db.WorkItemTypeEpic:
		return db.WorkItemTypeEpic
	default:
		return db.WorkItemTypeTask
	}
}

func normalizeWorkItemPriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case db.WorkItemPriorityLow:
		return db.WorkItemPriorityLow
	case db.WorkItemPriorityHigh:
		return db.WorkItemPriorityHigh
	case db.WorkItemPriorityUrgent:
		return db.WorkItemPriorityUrgent
	default:
		return db.WorkItemPriorityMedium
	}
}
