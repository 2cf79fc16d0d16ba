package chat

import (
	"context"
	"errors"
	"slices"
	"time"

	dbmodel "taskline/internal/db"

	"gorm.io/gorm"
)

const defaultConversationTitle = "AI Chat"

type Conversation struct {
	ID        int64
	UserID    int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversationStore persists chat history. Like taskstore.Store it joins whatever
// transaction its handle belongs to.
type ConversationStore struct {
	db *gorm.DB
}

func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Latest returns the most recently updated conversation of userID, or nil.
func (s *ConversationStore) Latest(ctx context.Context, userID int64) (*Conversation, error) {
	var row dbmodel.Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conversationFromRow(row), nil
}

func (s *ConversationStore) Create(ctx context.Context, userID int64, now time.Time) (*Conversation, error) {
	row := dbmodel.Conversation{
		UserID:    userID,
		Title:     defaultConversationTitle,
		CreatedAt: now.UTC().Unix(),
		UpdatedAt: now.UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return conversationFromRow(row), nil
}

func (s *ConversationStore) LatestOrCreate(ctx context.Context, userID int64, now time.Time) (*Conversation, error) {
	conv, err := s.Latest(ctx, userID)
	if err != nil || conv != nil {
		return conv, err
	}
	return s.Create(ctx, userID, now)
}

func (s *ConversationStore) Touch(ctx context.Context, conversationID int64, now time.Time) error {
	return s.db.WithContext(ctx).
		Model(&dbmodel.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", now.UTC().Unix()).Error
}

func (s *ConversationStore) Append(ctx context.Context, conversationID int64, role, content string, now time.Time) (Message, error) {
	row := dbmodel.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now.UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Message{}, err
	}
	return messageFromRow(row), nil
}

// Recent returns the last limit messages of a conversation, oldest first.
func (s *ConversationStore) Recent(ctx context.Context, conversationID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}
	var rows []dbmodel.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	slices.Reverse(rows)
	out := make([]Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, messageFromRow(row))
	}
	return out, nil
}

// Clear deletes every conversation of userID with its messages and reports how many
// conversations were removed.
func (s *ConversationStore) Clear(ctx context.Context, userID int64) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&dbmodel.Conversation{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("conversation_id IN (?)", ids).Delete(&dbmodel.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("user_id = ?", userID).Delete(&dbmodel.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}

func conversationFromRow(row dbmodel.Conversation) *Conversation {
	return &Conversation{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		CreatedAt: time.Unix(row.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(row.UpdatedAt, 0).UTC(),
	}
}

func messageFromRow(row dbmodel.Message) Message {
	return Message{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		Role:           row.Role,
		Content:        row.Content,
		CreatedAt:      time.Unix(row.CreatedAt, 0).UTC(),
	}
}
