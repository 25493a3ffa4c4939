package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/threadline/threadline/pkg/db"
)

func TestBranchNeedsSummaryNeverSummarized(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)
	svc := NewSummaryService(database, &fakeGenerator{}, testConfig(10, 10, 50), nil)

	// One below the minimum.
	seedMessages(t, database, branch.ID, 9, time.Now().Add(-time.Hour))
	needed, err := svc.BranchNeedsSummary(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("BranchNeedsSummary: %v", err)
	}
	if needed {
		t.Errorf("9 messages with min 10 should not need a summary")
	}

	// Exactly at the minimum.
	seedMessages(t, database, branch.ID, 1, time.Now().Add(-time.Minute))
	needed, err = svc.BranchNeedsSummary(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("BranchNeedsSummary: %v", err)
	}
	if !needed {
		t.Errorf("10 messages with min 10 should need a summary")
	}
}

func TestBranchNeedsSummaryGrowthSinceLast(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)
	svc := NewSummaryService(database, &fakeGenerator{}, testConfig(10, 10, 50), nil)

	// Pretend 15 messages were already summarized.
	branch.SummaryMessageCount = 15
	if err := database.Save(branch).Error; err != nil {
		t.Fatalf("save branch: %v", err)
	}

	// 24 total = growth of 9, one below the threshold.
	seedMessages(t, database, branch.ID, 24, time.Now().Add(-time.Hour))
	needed, err := svc.BranchNeedsSummary(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("BranchNeedsSummary: %v", err)
	}
	if needed {
		t.Errorf("growth of 9 with threshold 10 should not need a summary")
	}

	// 25 total = growth of exactly 10.
	seedMessages(t, database, branch.ID, 1, time.Now().Add(-time.Minute))
	needed, err = svc.BranchNeedsSummary(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("BranchNeedsSummary: %v", err)
	}
	if !needed {
		t.Errorf("growth of exactly 10 should need a summary")
	}
}

func TestBranchNeedsSummaryNotFound(t *testing.T) {
	database := newTestDB(t)
	svc := NewSummaryService(database, &fakeGenerator{}, testConfig(10, 10, 50), nil)

	_, err := svc.BranchNeedsSummary(context.Background(), uuid.New().String())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSummarizeBranchBelowMinimum(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)
	gen := &fakeGenerator{branchSummary: &BranchSummary{Summary: "unused"}}
	svc := NewSummaryService(database, gen, testConfig(10, 10, 50), nil)

	seedMessages(t, database, branch.ID, 5, time.Now().Add(-time.Hour))

	summary, err := svc.SummarizeBranch(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("SummarizeBranch: %v", err)
	}
	if summary != nil {
		t.Errorf("expected nil summary below minimum")
	}
	if gen.calls != 0 {
		t.Errorf("generator must not be invoked below minimum, got %d calls", gen.calls)
	}
}

func TestSummarizeBranchCommits(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)
	gen := &fakeGenerator{branchSummary: &BranchSummary{
		Summary:      "Pipeline design settled.",
		KeyDecisions: []string{"Use sqlite", "Ship behind a flag"},
		NextSteps:    []string{"Write migration"},
	}}
	svc := NewSummaryService(database, gen, testConfig(10, 10, 50), nil)

	seedMessages(t, database, branch.ID, 12, time.Now().Add(-time.Hour))

	summary, err := svc.SummarizeBranch(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("SummarizeBranch: %v", err)
	}
	if summary == nil {
		t.Fatal("expected a summary")
	}
	if summary.Summary != "Pipeline design settled." {
		t.Errorf("unexpected summary: %+v", summary)
	}

	var stored db.Branch
	if err := database.First(&stored, "id = ?", branch.ID).Error; err != nil {
		t.Fatalf("reload branch: %v", err)
	}
	if stored.SummaryMessageCount != 12 {
		t.Errorf("SummaryMessageCount = %d, want 12", stored.SummaryMessageCount)
	}
	if stored.SummaryUpdatedAt == nil {
		t.Errorf("SummaryUpdatedAt should be set")
	}
	if !strings.Contains(stored.Summary, "Pipeline design settled.") {
		t.Errorf("stored summary missing prose: %q", stored.Summary)
	}
	if !strings.Contains(stored.Summary, "Key Decisions:") || !strings.Contains(stored.Summary, "- Use sqlite") {
		t.Errorf("stored summary missing decisions section: %q", stored.Summary)
	}
	if strings.Contains(stored.Summary, "Open Questions:") {
		t.Errorf("empty section should be omitted: %q", stored.Summary)
	}
}

func TestSummarizeBranchPriorSummaryInPrompt(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)
	branch.Summary = "Earlier: chose the storage engine."
	branch.SummaryMessageCount = 10
	if err := database.Save(branch).Error; err != nil {
		t.Fatalf("save branch: %v", err)
	}
	seedMessages(t, database, branch.ID, 20, time.Now().Add(-time.Hour))

	var seenPrompt string
	gen := &promptCapturingGenerator{summary: BranchSummary{Summary: "refined"}, prompt: &seenPrompt}
	svc := NewSummaryService(database, gen, testConfig(10, 10, 50), nil)

	if _, err := svc.SummarizeBranch(context.Background(), branch.ID); err != nil {
		t.Fatalf("SummarizeBranch: %v", err)
	}
	if !strings.Contains(seenPrompt, "Earlier: chose the storage engine.") {
		t.Errorf("prompt should include the previous summary")
	}
}

// promptCapturingGenerator records the prompt it was handed.
type promptCapturingGenerator struct {
	summary BranchSummary
	prompt  *string
}

func (g *promptCapturingGenerator) GenerateStructured(ctx context.Context, prompt string, out any, opts *GenerateOptions) (*db.TokenUsage, error) {
	*g.prompt = prompt
	if v, ok := out.(*BranchSummary); ok {
		*v = g.summary
	}
	return nil, nil
}

func TestSummarizeBranchNoModelConfigured(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)
	gen := &fakeGenerator{err: ErrNoModelConfigured}
	svc := NewSummaryService(database, gen, testConfig(10, 10, 50), nil)

	seedMessages(t, database, branch.ID, 12, time.Now().Add(-time.Hour))

	summary, err := svc.SummarizeBranch(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("no model configured must be soft, got %v", err)
	}
	if summary != nil {
		t.Errorf("expected nil summary")
	}
}

func TestSummarizeBranchGenerationFailurePropagates(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)
	gen := &fakeGenerator{err: ErrInvalidModelOutput}
	svc := NewSummaryService(database, gen, testConfig(10, 10, 50), nil)

	seedMessages(t, database, branch.ID, 12, time.Now().Add(-time.Hour))

	_, err := svc.SummarizeBranch(context.Background(), branch.ID)
	if !errors.Is(err, ErrInvalidModelOutput) {
		t.Fatalf("generation failure must propagate, got %v", err)
	}
}

func TestSummarizeBranchLosesOptimisticLock(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)
	seedMessages(t, database, branch.ID, 12, time.Now().Add(-time.Hour))

	// While generation runs, a concurrent summarizer advances the lock token.
	gen := &fakeGenerator{branchSummary: &BranchSummary{Summary: "loser"}}
	gen.onGenerate = func() {
		err := database.Model(&db.Branch{}).
			Where("id = ?", branch.ID).
			Updates(map[string]any{
				"summary":               "winner",
				"summary_message_count": 12,
			}).Error
		if err != nil {
			t.Errorf("concurrent update: %v", err)
		}
	}
	svc := NewSummaryService(database, gen, testConfig(10, 10, 50), nil)

	summary, err := svc.SummarizeBranch(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("lock loss must not be an error, got %v", err)
	}
	if summary != nil {
		t.Errorf("race loser should return nil")
	}

	var stored db.Branch
	if err := database.First(&stored, "id = ?", branch.ID).Error; err != nil {
		t.Fatalf("reload branch: %v", err)
	}
	if stored.Summary != "winner" {
		t.Errorf("winner's summary must stand, got %q", stored.Summary)
	}
}

func TestSummarizeProject(t *testing.T) {
	database := newTestDB(t)
	project, _, _ := seedWorkItem(t, database)
	gen := &fakeGenerator{projectSummary: &ProjectSummary{
		Summary:      "On track.",
		Goals:        []string{"Launch ingest"},
		CurrentFocus: "Pipeline work",
	}}
	svc := NewSummaryService(database, gen, testConfig(10, 10, 50), nil)

	summary, err := svc.SummarizeProject(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("SummarizeProject: %v", err)
	}
	if summary == nil {
		t.Fatal("expected a project summary")
	}

	var stored db.Project
	if err := database.First(&stored, "id = ?", project.ID).Error; err != nil {
		t.Fatalf("reload project: %v", err)
	}
	if !strings.Contains(stored.Summary, "On track.") || !strings.Contains(stored.Summary, "Current Focus: Pipeline work") {
		t.Errorf("stored project summary: %q", stored.Summary)
	}
	if stored.SummaryUpdatedAt == nil {
		t.Errorf("SummaryUpdatedAt should be set")
	}
}

func TestUpdatePendingSummariesSweep(t *testing.T) {
	database := newTestDB(t)
	_, item, ready := seedWorkItem(t, database)
	seedMessages(t, database, ready.ID, 12, time.Now().Add(-time.Hour))

	quiet := &db.Branch{
		ID:         uuid.New().String(),
		WorkItemID: item.ID,
		Name:       "side-thread",
	}
	if err := database.Create(quiet).Error; err != nil {
		t.Fatalf("create branch: %v", err)
	}
	seedMessages(t, database, quiet.ID, 3, time.Now().Add(-time.Hour))

	gen := &fakeGenerator{branchSummary: &BranchSummary{Summary: "swept"}}
	svc := NewSummaryService(database, gen, testConfig(10, 10, 50), nil)

	result, err := svc.UpdatePendingSummaries(context.Background())
	if err != nil {
		t.Fatalf("UpdatePendingSummaries: %v", err)
	}
	if len(result.Updated) != 1 || result.Updated[0] != ready.ID {
		t.Errorf("expected only the ready branch updated, got %+v", result)
	}
	if len(result.Failed) != 0 {
		t.Errorf("expected no failures, got %+v", result.Failed)
	}
	if gen.calls != 1 {
		t.Errorf("generator should run once, got %d", gen.calls)
	}
}

func TestTriggerReturnsImmediately(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)
	gen := &fakeGenerator{branchSummary: &BranchSummary{Summary: "bg"}}
	gen.onGenerate = func() { time.Sleep(200 * time.Millisecond) }
	seedMessages(t, database, branch.ID, 12, time.Now().Add(-time.Hour))

	svc := NewSummaryService(database, gen, testConfig(10, 10, 50), nil)

	start := time.Now()
	svc.TriggerSummarizationIfNeeded(branch.ID, 5*time.Second)
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("trigger blocked for %v", elapsed)
	}

	// The background work should still complete.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var stored db.Branch
		if err := database.First(&stored, "id = ?", branch.ID).Error; err == nil && stored.SummaryMessageCount == 12 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("background summarization never committed")
}

func TestTriggerNeverPanicsOnBadBranch(t *testing.T) {
	database := newTestDB(t)
	svc := NewSummaryService(database, &fakeGenerator{}, testConfig(10, 10, 50), nil)

	// Unknown branch: the background check fails, the caller never sees it.
	svc.TriggerSummarizationIfNeeded(uuid.New().String(), time.Second)
	time.Sleep(100 * time.Millisecond)
}
