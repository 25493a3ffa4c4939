package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/threadline/threadline/pkg/config"
	"github.com/threadline/threadline/pkg/db"
	"gorm.io/gorm"
)

// newTestDB opens a throwaway sqlite database with the full schema migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return database
}

// testConfig returns a config with explicit summarizer thresholds so tests
// don't depend on defaults drifting.
func testConfig(minMessages, everyN, maxMessages int) *config.AppConfig {
	cfg := &config.AppConfig{}
	cfg.Summarizer.MinMessagesForSummary = &minMessages
	cfg.Summarizer.SummarizeEveryNMessages = &everyN
	cfg.Summarizer.MaxMessagesToSummarize = &maxMessages
	return cfg
}

// fakeGenerator is a StructuredGenerator test double. It copies result into
// out (matched by type) and optionally runs a hook before returning, which
// lets tests simulate concurrent writers racing the summary commit.
type fakeGenerator struct {
	branchSummary  *BranchSummary
	projectSummary *ProjectSummary
	extraction     *extractionResult
	err            error

	calls      int
	onGenerate func()
}

func (g *fakeGenerator) GenerateStructured(ctx context.Context, prompt string, out any, opts *GenerateOptions) (*db.TokenUsage, error) {
	g.calls++
	if g.onGenerate != nil {
		g.onGenerate()
	}
	if g.err != nil {
		return nil, g.err
	}
	switch v := out.(type) {
	case *BranchSummary:
		if g.branchSummary != nil {
			*v = *g.branchSummary
		}
	case *ProjectSummary:
		if g.projectSummary != nil {
			*v = *g.projectSummary
		}
	case *extractionResult:
		if g.extraction != nil {
			*v = *g.extraction
		}
	}
	return &db.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}, nil
}

// seedWorkItem creates a project, work item and branch directly in the store.
func seedWorkItem(t *testing.T, database *gorm.DB) (*db.Project, *db.WorkItem, *db.Branch) {
	t.Helper()
	project := &db.Project{
		ID:     uuid.New().String(),
		Name:   "Apollo",
		Status: db.ProjectStatusActive,
	}
	if err := database.Create(project).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	item := &db.WorkItem{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Title:     "Build the ingest pipeline",
		Type:      db.WorkItemTypeFeature,
		Status:    db.WorkItemStatusInProgress,
		Priority:  db.WorkItemPriorityHigh,
	}
	if err := database.Create(item).Error; err != nil {
		t.Fatalf("create work item: %v", err)
	}
	branch := &db.Branch{
		ID:         uuid.New().String(),
		WorkItemID: item.ID,
		Name:       db.DefaultBranchName,
		IsDefault:  true,
	}
	if err := database.Create(branch).Error; err != nil {
		t.Fatalf("create branch: %v", err)
	}
	return project, item, branch
}

// seedMessages inserts n user messages with strictly increasing timestamps.
func seedMessages(t *testing.T, database *gorm.DB, branchID string, n int, startAt time.Time) []db.Message {
	t.Helper()
	messages := make([]db.Message, 0, n)
	for i := 0; i < n; i++ {
		msg := db.Message{
			ID:        uuid.New().String(),
			BranchID:  branchID,
			Role:      db.RoleUser,
			Content:   contentFor(i),
			Name:      "alice",
			CreatedAt: startAt.Add(time.Duration(i) * time.Second),
		}
		if err := database.Create(&msg).Error; err != nil {
			t.Fatalf("create message %d: %v", i, err)
		}
		messages = append(messages, msg)
	}
	return messages
}

func contentFor(i int) string {
	return "message-" + string(rune('a'+i%26)) + "-" + uuid.NewString()[:8]
}
