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

func TestBuildContextBranchNotFound(t *testing.T) {
	database := newTestDB(t)
	svc := NewContextService(database)

	_, err := svc.BuildContext(context.Background(), uuid.New().String(), nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildContextMessageWindow(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)
	seeded := seedMessages(t, database, branch.ID, 30, time.Now().Add(-time.Hour))

	svc := NewContextService(database)
	pack, err := svc.BuildContext(context.Background(), branch.ID, nil)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	if pack.MessageCount != 30 {
		t.Fatalf("expected message count 30, got %d", pack.MessageCount)
	}
	if len(pack.RecentMessages) != 20 {
		t.Fatalf("expected window of 20 messages, got %d", len(pack.RecentMessages))
	}
	// The window is the most recent 20, restored to chronological order.
	if pack.RecentMessages[0].ID != seeded[10].ID {
		t.Errorf("window should start at the 11th message")
	}
	if pack.RecentMessages[19].ID != seeded[29].ID {
		t.Errorf("window should end at the newest message")
	}
	for i := 1; i < len(pack.RecentMessages); i++ {
		if pack.RecentMessages[i].CreatedAt.Before(pack.RecentMessages[i-1].CreatedAt) {
			t.Fatalf("messages not in chronological order at index %d", i)
		}
	}
}

func TestBuildContextCustomMessageLimit(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)
	seedMessages(t, database, branch.ID, 10, time.Now().Add(-time.Hour))

	svc := NewContextService(database)
	opts := DefaultContextOptions()
	opts.MessageLimit = 5
	pack, err := svc.BuildContext(context.Background(), branch.ID, opts)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if len(pack.RecentMessages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(pack.RecentMessages))
	}
}

func TestBuildContextLatestArtifactPerType(t *testing.T) {
	database := newTestDB(t)
	_, item, branch := seedWorkItem(t, database)

	mkArtifact := func(typ string, version int) *db.Artifact {
		a := &db.Artifact{
			ID:         uuid.New().String(),
			WorkItemID: item.ID,
			Type:       typ,
			Title:      typ + "-v" + string(rune('0'+version)),
			Version:    version,
		}
		if err := database.Create(a).Error; err != nil {
			t.Fatalf("create artifact: %v", err)
		}
		return a
	}

	mkArtifact(db.ArtifactTypePlan, 1)
	planV2 := mkArtifact(db.ArtifactTypePlan, 2)
	planV3 := mkArtifact(db.ArtifactTypePlan, 3)
	specV1 := mkArtifact(db.ArtifactTypeSpec, 1)
	mkArtifact(db.ArtifactTypeCode, 5) // not in default type filter

	// Soft-deleted higher version must not win.
	if err := database.Delete(planV3).Error; err != nil {
		t.Fatalf("delete artifact: %v", err)
	}

	svc := NewContextService(database)
	pack, err := svc.BuildContext(context.Background(), branch.ID, nil)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	if got := pack.LatestArtifacts[db.ArtifactTypePlan]; got == nil || got.ID != planV2.ID {
		t.Errorf("latest plan should be v2 (soft-deleted v3 excluded)")
	}
	if got := pack.LatestArtifacts[db.ArtifactTypeSpec]; got == nil || got.ID != specV1.ID {
		t.Errorf("latest spec should be v1")
	}
	if _, ok := pack.LatestArtifacts[db.ArtifactTypeCode]; ok {
		t.Errorf("code artifacts are not in the default filter")
	}
}

func TestBuildContextParentItems(t *testing.T) {
	database := newTestDB(t)
	project, item, branch := seedWorkItem(t, database)

	parent := &db.WorkItem{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Title:     "Data platform epic",
		Type:      db.WorkItemTypeEpic,
		Status:    db.WorkItemStatusInProgress,
		Priority:  db.WorkItemPriorityHigh,
	}
	if err := database.Create(parent).Error; err != nil {
		t.Fatalf("create parent: %v", err)
	}
	for _, rel := range []*db.WorkItemRelation{
		{ID: uuid.New().String(), ParentID: parent.ID, ChildID: item.ID, Type: db.RelationParentChild},
		{ID: uuid.New().String(), ParentID: parent.ID, ChildID: item.ID, Type: db.RelationBlocks},
	} {
		if err := database.Create(rel).Error; err != nil {
			t.Fatalf("create relation: %v", err)
		}
	}

	svc := NewContextService(database)
	pack, err := svc.BuildContext(context.Background(), branch.ID, nil)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	// Only the PARENT_CHILD edge contributes a parent.
	if len(pack.ParentItems) != 1 {
		t.Fatalf("expected 1 parent item, got %d", len(pack.ParentItems))
	}
	if pack.ParentItems[0].ID != parent.ID {
		t.Errorf("wrong parent item")
	}
}

func TestBuildContextTokenEstimate(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)

	msg := db.Message{
		ID:       uuid.New().String(),
		BranchID: branch.ID,
		Role:     db.RoleUser,
		Content:  strings.Repeat("x", 400),
	}
	if err := database.Create(&msg).Error; err != nil {
		t.Fatalf("create message: %v", err)
	}

	svc := NewContextService(database)
	opts := DefaultContextOptions()
	opts.IncludeArtifacts = false
	opts.IncludeParents = false
	pack, err := svc.BuildContext(context.Background(), branch.ID, opts)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	// chars/4: 400 content chars plus work item title and project name.
	wantChars := 400 + len("Build the ingest pipeline") + len("Apollo")
	if pack.EstimatedTokens != wantChars/4 {
		t.Errorf("estimated tokens = %d, want %d", pack.EstimatedTokens, wantChars/4)
	}
}

func TestBuildContextStringSectionOmission(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)

	svc := NewContextService(database)
	text, err := svc.BuildContextString(context.Background(), branch.ID, nil)
	if err != nil {
		t.Fatalf("BuildContextString: %v", err)
	}

	// No messages, no artifacts, no summary, no parents: those sections are
	// absent, the project and work item headers are present.
	if !strings.Contains(text, "# Project: Apollo") {
		t.Errorf("missing project header:\n%s", text)
	}
	if !strings.Contains(text, "## Work Item: Build the ingest pipeline") {
		t.Errorf("missing work item header:\n%s", text)
	}
	for _, section := range []string{"### Parent Items", "### Branch Summary", "### Linked Artifacts", "### Recent Conversation"} {
		if strings.Contains(text, section) {
			t.Errorf("empty section %q should be omitted:\n%s", section, text)
		}
	}
}

func TestBuildContextStringTranscript(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)

	branch.Summary = "Agreed to ship behind a flag."
	if err := database.Save(branch).Error; err != nil {
		t.Fatalf("save branch: %v", err)
	}
	msg := db.Message{
		ID:       uuid.New().String(),
		BranchID: branch.ID,
		Role:     db.RoleUser,
		Name:     "alice",
		Content:  "let's use sqlite",
	}
	if err := database.Create(&msg).Error; err != nil {
		t.Fatalf("create message: %v", err)
	}

	svc := NewContextService(database)
	text, err := svc.BuildContextString(context.Background(), branch.ID, nil)
	if err != nil {
		t.Fatalf("BuildContextString: %v", err)
	}

	if !strings.Contains(text, "### Branch Summary\nAgreed to ship behind a flag.") {
		t.Errorf("missing branch summary section:\n%s", text)
	}
	if !strings.Contains(text, "[user] alice: let's use sqlite") {
		t.Errorf("missing role-prefixed transcript line:\n%s", text)
	}
}
