package service

import (
	"context"
	"errors"
	"testing"

	"github.com/threadline/threadline/pkg/db"
)

func TestExtractWorkItemsNormalizesOutput(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)

	gen := &fakeGenerator{extraction: &extractionResult{Items: []ExtractedWorkItem{
		{Title: "Add retry logic", Description: "On 5xx", Type: "BUG", Priority: "High"},
		{Title: "  ", Type: "task"}, // blank title dropped
		{Title: "Spike caching", Type: "research", Priority: "whenever"},
	}}}
	svc := NewExtractionService(NewContextService(database), gen)

	items, err := svc.ExtractWorkItems(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("ExtractWorkItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items after filtering, got %d", len(items))
	}
	if items[0].Type != db.WorkItemTypeBug || items[0].Priority != db.WorkItemPriorityHigh {
		t.Errorf("case-insensitive enums not normalized: %+v", items[0])
	}
	// Unknown values fall back to defaults.
	if items[1].Type != db.WorkItemTypeTask || items[1].Priority != db.WorkItemPriorityMedium {
		t.Errorf("unknown enums should default: %+v", items[1])
	}
}

func TestExtractWorkItemsBranchNotFound(t *testing.T) {
	database := newTestDB(t)
	svc := NewExtractionService(NewContextService(database), &fakeGenerator{})

	_, err := svc.ExtractWorkItems(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExtractWorkItemsNoModelIsHardError(t *testing.T) {
	database := newTestDB(t)
	_, _, branch := seedWorkItem(t, database)
	svc := NewExtractionService(NewContextService(database), &fakeGenerator{err: ErrNoModelConfigured})

	_, err := svc.ExtractWorkItems(context.Background(), branch.ID)
	if !errors.Is(err, ErrNoModelConfigured) {
		t.Fatalf("extraction must surface the missing model, got %v", err)
	}
}
