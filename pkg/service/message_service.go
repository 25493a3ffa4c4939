package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/threadline/threadline/pkg/db"
	"github.com/threadline/threadline/pkg/event"
	"github.com/threadline/threadline/pkg/models"
	"github.com/threadline/threadline/pkg/utils"
	"gorm.io/gorm"
)

// MessageService manages the append-only message sequence of a branch. Every
// successful append kicks the summary trigger; the trigger never blocks or
// fails the append.
type MessageService struct {
	db        *gorm.DB
	summaries *SummaryService
	emitter   *event.Emitter
	logger    *slog.Logger

	triggerTimeout time.Duration
}

func NewMessageService(database *gorm.DB, summaries *SummaryService, emitter *event.Emitter) *MessageService {
	return &MessageService{
		db:             database,
		summaries:      summaries,
		emitter:        emitter,
		logger:         utils.GetLogger(),
		triggerTimeout: 30 * time.Second,
	}
}

// AppendMessage appends one message to a branch.
func (s *MessageService) AppendMessage(ctx context.Context, branchID string, req *models.AppendMessageRequest) (*db.Message, error) {
	if err := s.checkBranch(ctx, branchID); err != nil {
		return nil, err
	}
	if !validRole(req.Role) {
		return nil, fmt.Errorf("invalid message role: %s", req.Role)
	}

	msg := messageFromRequest(branchID, req)
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if s.emitter != nil {
		s.emitter.Emit(event.MessageCreatedEvent{MessageID: msg.ID, BranchID: branchID})
	}
	if s.summaries != nil {
		s.summaries.TriggerSummarizationIfNeeded(branchID, s.triggerTimeout)
	}
	return msg, nil
}

// BulkAppendMessages appends a batch of messages in one transaction,
// preserving request order. The summary trigger fires once for the batch.
func (s *MessageService) BulkAppendMessages(ctx context.Context, branchID string, req *models.BulkAppendMessagesRequest) ([]db.Message, error) {
	if err := s.checkBranch(ctx, branchID); err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return []db.Message{}, nil
	}
	for _, m := range req.Messages {
		if !validRole(m.Role) {
			return nil, fmt.Errorf("invalid message role: %s", m.Role)
		}
	}

	// Explicit, strictly increasing timestamps keep batch order stable even
	// when the driver's clock granularity would give several rows the same
	// CreatedAt.
	base := time.Now()
	created := make([]db.Message, 0, len(req.Messages))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range req.Messages {
			msg := messageFromRequest(branchID, &req.Messages[i])
			msg.CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
			if err := tx.Create(msg).Error; err != nil {
				return err
			}
			created = append(created, *msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bulk append messages: %w", err)
	}

	if s.emitter != nil {
		for i := range created {
			s.emitter.Emit(event.MessageCreatedEvent{MessageID: created[i].ID, BranchID: branchID})
		}
	}
	if s.summaries != nil {
		s.summaries.TriggerSummarizationIfNeeded(branchID, s.triggerTimeout)
	}
	return created, nil
}

// ListMessages returns a branch's messages in chronological order.
func (s *MessageService) ListMessages(ctx context.Context, branchID string, limit int) ([]db.Message, error) {
	if err := s.checkBranch(ctx, branchID); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Where("branch_id = ?", branchID).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []db.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// DeleteMessage soft-deletes a single message. Deleted messages fall out of
// counts, context packs and summarization windows.
func (s *MessageService) DeleteMessage(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&db.Message{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *MessageService) checkBranch(ctx context.Context, branchID string) error {
	var branch db.Branch
	if err := s.db.WithContext(ctx).Select("id").First(&branch, "id = ?", branchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("branch %s: %w", branchID, ErrNotFound)
		}
		return fmt.Errorf("load branch: %w", err)
	}
	return nil
}

func messageFromRequest(branchID string, req *models.AppendMessageRequest) *db.Message {
	msg := &db.Message{
		ID:       uuid.New().String(),
		BranchID: branchID,
		Role:     req.Role,
		Content:  req.Content,
		Metadata: req.Metadata,
		Name:     req.Name,
	}
	if req.UserID != "" {
		msg.UserID = &req.UserID
	}
	return msg
}

func validRole(role string) bool {
	switch role {
	case db.RoleUser, db.RoleAssistant, db.RoleSystem, db.RoleTool:
		return true
	}
	return false
}
