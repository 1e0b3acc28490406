// Package store persists conversations, messages and OAuth connections in SQLite.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned for missing rows and rows owned by someone else.
var ErrNotFound = errors.New("not found")

// ListLimit caps ListConversations.
const ListLimit = 50

type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Conversation{}, &Message{}, &OAuthConnection{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateConversation(ctx context.Context, owner, title string) (*Conversation, error) {
	if title == "" {
		title = DefaultTitle
	}
	conv := &Conversation{CreatedBy: owner, Title: title}
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns the owner's most recent conversations first.
func (s *Store) ListConversations(ctx context.Context, owner string) ([]Conversation, error) {
	var convs []Conversation
	err := s.db.WithContext(ctx).
		Where("created_by = ?", owner).
		Order("created_at DESC, rowid DESC").
		Limit(ListLimit).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// GetConversation returns the conversation only when owner created it.
func (s *Store) GetConversation(ctx context.Context, owner, id string) (*Conversation, error) {
	var conv Conversation
	err := s.db.WithContext(ctx).
		Where("id = ? AND created_by = ?", id, owner).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

// DeleteConversation removes the conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, owner, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND created_by = ?", id, owner).Delete(&Conversation{})
		if res.Error != nil {
			return fmt.Errorf("delete conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		return nil
	})
}

func (s *Store) AddMessage(ctx context.Context, msg *Message) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

// History returns a conversation's messages in chronological order.
func (s *Store) History(ctx context.Context, conversationID string) ([]Message, error) {
	var msgs []Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, rowid ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}

func (s *Store) GetConnection(ctx context.Context, userID, provider string) (*OAuthConnection, error) {
	var conn OAuthConnection
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return &conn, nil
}

// SaveConnection inserts conn or replaces the tokens of the existing
// connection for the same user and provider.
func (s *Store) SaveConnection(ctx context.Context, conn *OAuthConnection) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "token_expires_at", "scopes", "updated_at"}),
	}).Create(conn).Error
	if err != nil {
		return fmt.Errorf("save connection: %w", err)
	}
	return nil
}

// UpdateAccessToken stores a refreshed access token.
func (s *Store) UpdateAccessToken(ctx context.Context, userID, provider, accessToken string, expiresAt time.Time) error {
	err := s.db.WithContext(ctx).Model(&OAuthConnection{}).
		Where("user_id = ? AND provider = ?", userID, provider).
		Updates(map[string]any{
			"access_token":     accessToken,
			"token_expires_at": expiresAt,
		}).Error
	if err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	return nil
}

// DeleteConnection is a no-op when no connection exists.
func (s *Store) DeleteConnection(ctx context.Context, userID, provider string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&OAuthConnection{}).Error
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	return nil
}
