// Rolling conversation summaries. Branch summaries are regenerated wholesale
// (not incrementally merged), conditioned on their own previous value, and
// committed under an optimistic-concurrency guard.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/threadline/threadline/pkg/config"
	"github.com/threadline/threadline/pkg/db"
	"github.com/threadline/threadline/pkg/event"
	"github.com/threadline/threadline/pkg/utils"
	"gorm.io/gorm"
)

// BranchSummary is the structured generation output for a branch.
type BranchSummary struct {
	Summary       string   `json:"summary"`
	KeyDecisions  []string `json:"keyDecisions"`
	OpenQuestions []string `json:"openQuestions"`
	NextSteps     []string `json:"nextSteps"`
}

// ProjectSummary is the structured generation output for a project.
type ProjectSummary struct {
	Summary        string   `json:"summary"`
	Goals          []string `json:"goals"`
	CurrentFocus   string   `json:"currentFocus"`
	RecentProgress []string `json:"recentProgress"`
}

// SweepResult reports the outcome of a batch summarization sweep.
type SweepResult struct {
	Updated []string `json:"updated"`
	Failed  []string `json:"failed"`
}

// SummaryService decides when a branch's history warrants a fresh rolling
// summary, generates it, and commits it safely under concurrent access.
type SummaryService struct {
	db        *gorm.DB
	generator StructuredGenerator
	config    *config.AppConfig
	emitter   *event.Emitter
	logger    *slog.Logger
}

// NewSummaryService creates a summary service. The generator is injected
// explicitly; there is no global provider state. emitter may be nil when event
// notifications are not wanted (tests).
func NewSummaryService(database *gorm.DB, generator StructuredGenerator, cfg *config.AppConfig, emitter *event.Emitter) *SummaryService {
	return &SummaryService{
		db:        database,
		generator: generator,
		config:    cfg,
		emitter:   emitter,
		logger:    utils.GetLogger(),
	}
}

// BranchNeedsSummary reports whether a branch has accumulated enough new
// messages for a fresh summary. It reads only counts, never message bodies.
func (s *SummaryService) BranchNeedsSummary(ctx context.Context, branchID string) (bool, error) {
	var branch db.Branch
	if err := s.db.WithContext(ctx).First(&branch, "id = ?", branchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("branch %s: %w", branchID, ErrNotFound)
		}
		return false, fmt.Errorf("load branch: %w", err)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&db.Message{}).
		Where("branch_id = ?", branchID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("count messages: %w", err)
	}

	return s.needsSummary(branch.SummaryMessageCount, count), nil
}

// needsSummary is the shared decision rule. Boundaries are inclusive: a count
// exactly at the threshold qualifies.
func (s *SummaryService) needsSummary(summarized int, current int64) bool {
	if summarized == 0 {
		return current >= int64(s.config.MinMessagesForSummary())
	}
	return current-int64(summarized) >= int64(s.config.SummarizeEveryNMessages())
}

// SummarizeBranch generates and commits a rolling summary for a branch.
//
// Returns (nil, nil) in three soft cases: no model configured, too few
// messages, or the optimistic-lock commit lost to a concurrent summarizer.
// Generation failures are propagated, not swallowed.
func (s *SummaryService) SummarizeBranch(ctx context.Context, branchID string) (*BranchSummary, error) {
	var branch db.Branch
	if err := s.db.WithContext(ctx).First(&branch, "id = ?", branchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("branch %s: %w", branchID, ErrNotFound)
		}
		return nil, fmt.Errorf("load branch: %w", err)
	}

	var workItems []db.WorkItem
	if err := s.db.WithContext(ctx).Limit(1).Find(&workItems, "id = ?", branch.WorkItemID).Error; err != nil {
		return nil, fmt.Errorf("load work item: %w", err)
	}

	var messages []db.Message
	if err := s.db.WithContext(ctx).
		Where("branch_id = ?", branch.ID).
		Order("created_at ASC").
		Limit(s.config.MaxMessagesToSummarize()).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	// Guards against a stale or racing needs-check.
	if len(messages) < s.config.MinMessagesForSummary() {
		return nil, nil
	}

	// Optimistic-lock token: the commit below only applies if no concurrent
	// summarizer advanced the branch in the meantime.
	preUpdateCount := branch.SummaryMessageCount

	prompt := buildBranchSummaryPrompt(&branch, workItems, messages)

	var summary BranchSummary
	_, err := s.generator.GenerateStructured(ctx, prompt, &summary, &GenerateOptions{
		Temperature: s.config.Temperature(),
		Model:       s.config.Model(),
	})
	if err != nil {
		if errors.Is(err, ErrNoModelConfigured) {
			s.logger.Debug("Skipping branch summarization, no model configured", "branch_id", branchID)
			return nil, nil
		}
		return nil, fmt.Errorf("generate branch summary: %w", err)
	}

	now := time.Now()
	result := s.db.WithContext(ctx).Model(&db.Branch{}).
		Where("id = ? AND summary_message_count = ?", branch.ID, preUpdateCount).
		Updates(map[string]any{
			"summary":               FormatBranchSummary(&summary),
			"summary_updated_at":    now,
			"summary_message_count": len(messages),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("commit branch summary: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Another summarizer won the race; its result stands.
		s.logger.Debug("Branch summary commit lost optimistic lock", "branch_id", branchID)
		return nil, nil
	}

	s.logger.Info("Branch summary updated",
		"branch_id", branchID, "message_count", len(messages))
	if s.emitter != nil {
		s.emitter.Emit(event.BranchSummaryUpdatedEvent{BranchID: branchID, MessageCount: len(messages)})
	}

	return &summary, nil
}

// SummarizeProject generates and stores a summary of a project's recent work
// items. Unlike branch summaries, no optimistic lock is applied: projects are
// assumed to have at most one summarizer at a time.
func (s *SummaryService) SummarizeProject(ctx context.Context, projectID string) (*ProjectSummary, error) {
	var project db.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
		}
		return nil, fmt.Errorf("load project: %w", err)
	}

	var items []db.WorkItem
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("updated_at DESC").
		Limit(20).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load work items: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	prompt := buildProjectSummaryPrompt(&project, items)

	var summary ProjectSummary
	_, err := s.generator.GenerateStructured(ctx, prompt, &summary, &GenerateOptions{
		Temperature: s.config.Temperature(),
		Model:       s.config.Model(),
	})
	if err != nil {
		if errors.Is(err, ErrNoModelConfigured) {
			s.logger.Debug("Skipping project summarization, no model configured", "project_id", projectID)
			return nil, nil
		}
		return nil, fmt.Errorf("generate project summary: %w", err)
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&db.Project{}).
		Where("id = ?", projectID).
		Updates(map[string]any{
			"summary":            FormatProjectSummary(&summary),
			"summary_updated_at": now,
		}).Error; err != nil {
		return nil, fmt.Errorf("commit project summary: %w", err)
	}

	s.logger.Info("Project summary updated", "project_id", projectID)
	if s.emitter != nil {
		s.emitter.Emit(event.ProjectSummaryUpdatedEvent{ProjectID: projectID})
	}

	return &summary, nil
}

// UpdatePendingSummaries sweeps all branches and summarizes each one that
// qualifies. Branches are counted in one grouped query; a single branch's
// failure does not abort the sweep.
func (s *SummaryService) UpdatePendingSummaries(ctx context.Context) (*SweepResult, error) {
	var branches []db.Branch
	if err := s.db.WithContext(ctx).Find(&branches).Error; err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}

	type branchCount struct {
		BranchID string
		Count    int64
	}
	var counts []branchCount
	if err := s.db.WithContext(ctx).Model(&db.Message{}).
		Select("branch_id, COUNT(*) AS count").
		Group("branch_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count messages per branch: %w", err)
	}
	countByBranch := make(map[string]int64, len(counts))
	for _, c := range counts {
		countByBranch[c.BranchID] = c.Count
	}

	result := &SweepResult{Updated: []string{}, Failed: []string{}}
	for _, branch := range branches {
		if !s.needsSummary(branch.SummaryMessageCount, countByBranch[branch.ID]) {
			continue
		}
		summary, err := s.SummarizeBranch(ctx, branch.ID)
		if err != nil {
			s.logger.Warn("Sweep summarization failed", "branch_id", branch.ID, "error", err)
			result.Failed = append(result.Failed, branch.ID)
			continue
		}
		if summary != nil {
			result.Updated = append(result.Updated, branch.ID)
		}
	}
	return result, nil
}

// TriggerSummarizationIfNeeded kicks off a background needs-check and
// summarization for a branch. It returns immediately and never returns an
// error to the caller: failures and timeouts are logged only. Message append
// must never block or fail because of summarization.
func (s *SummaryService) TriggerSummarizationIfNeeded(branchID string, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Summarization trigger panicked", "branch_id", branchID, "panic", r)
			}
		}()

		// The timeout below only bounds how long we track the work; the work
		// itself is not cancelled and may still commit after the timer fires.
		ctx := context.Background()

		done := make(chan struct{})
		go func() {
			defer close(done)
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("Background summarization panicked", "branch_id", branchID, "panic", r)
				}
			}()

			needed, err := s.BranchNeedsSummary(ctx, branchID)
			if err != nil {
				s.logger.Warn("Background needs-summary check failed", "branch_id", branchID, "error", err)
				return
			}
			if !needed {
				return
			}
			if _, err := s.SummarizeBranch(ctx, branchID); err != nil {
				s.logger.Warn("Background summarization failed", "branch_id", branchID, "error", err)
			}
		}()

		select {
		case <-done:
		case <-time.After(timeout):
			s.logger.Warn("Background summarization timed out", "branch_id", branchID, "timeout", timeout)
		}
	}()
}

// ========== Prompts and formatting ==========

func buildBranchSummaryPrompt(branch *db.Branch, workItems []db.WorkItem, messages []db.Message) string {
	var sb strings.Builder

	sb.WriteString("You are summarizing a work discussion thread. Produce a rolling summary that a teammate could read to catch up.\n\n")

	if len(workItems) > 0 {
		wi := workItems[0]
		sb.WriteString(fmt.Sprintf("Work item: %s (%s)\n", wi.Title, wi.Type))
		if wi.Description != "" {
			sb.WriteString(wi.Description + "\n")
		}
		sb.WriteString("\n")
	}

	// Prior summary first so each pass refines rather than restarts.
	if branch.Summary != "" {
		sb.WriteString("Previous summary:\n" + branch.Summary + "\n\n")
	}

	sb.WriteString("Conversation:\n")
	for i := range messages {
		sb.WriteString(messageLine(&messages[i]) + "\n")
	}

	sb.WriteString("\nRespond with JSON fields: summary (string), keyDecisions (string array), openQuestions (string array), nextSteps (string array).")
	return sb.String()
}

func buildProjectSummaryPrompt(project *db.Project, items []db.WorkItem) string {
	var sb strings.Builder

	sb.WriteString("You are summarizing the current state of a project from its recent work items.\n\n")
	sb.WriteString(fmt.Sprintf("Project: %s\n", project.Name))
	if project.Description != "" {
		sb.WriteString(project.Description + "\n")
	}

	sb.WriteString("\nRecent work items (most recently updated first):\n")
	for _, wi := range items {
		sb.WriteString(fmt.Sprintf("- [%s/%s] %s", wi.Type, wi.Status, wi.Title))
		if wi.Description != "" {
			sb.WriteString(": " + wi.Description)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nRespond with JSON fields: summary (string), goals (string array), currentFocus (string), recentProgress (string array).")
	return sb.String()
}

// FormatBranchSummary flattens a structured summary into the display string
// stored on the branch. Empty sections are omitted.
func FormatBranchSummary(s *BranchSummary) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(s.Summary))

	writeSection := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		sb.WriteString("\n\n" + title + ":\n")
		for i, item := range items {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("- " + item)
		}
	}
	writeSection("Key Decisions", s.KeyDecisions)
	writeSection("Open Questions", s.OpenQuestions)
	writeSection("Next Steps", s.NextSteps)

	return sb.String()
}

// FormatProjectSummary flattens a structured project summary for storage.
func FormatProjectSummary(s *ProjectSummary) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(s.Summary))

	if len(s.Goals) > 0 {
		sb.WriteString("\n\nGoals:\n")
		for i, g := range s.Goals {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("- " + g)
		}
	}
	if s.CurrentFocus != "" {
		sb.WriteString("\n\nCurrent Focus: " + s.CurrentFocus)
	}
	if len(s.RecentProgress) > 0 {
		sb.WriteString("\n\nRecent Progress:\n")
		for i, p := range s.RecentProgress {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("- " + p)
		}
	}

	return sb.String()
}
