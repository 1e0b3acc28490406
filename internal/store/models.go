package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const DefaultTitle = "New conversation"

type Conversation struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	CreatedBy string    `gorm:"index;not null" json:"created_by"`
	Title     string    `gorm:"not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Conversation) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type Message struct {
	ID             string `gorm:"primaryKey;type:text" json:"id"`
	ConversationID string `gorm:"index;not null" json:"conversation_id"`
	Role           Role   `gorm:"type:text;not null" json:"role"`
	Content        string `gorm:"not null" json:"content"`
	// CreatedBy is empty for assistant answers.
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// OAuthConnection stores encrypted tokens for one user and provider.
type OAuthConnection struct {
	ID             string `gorm:"primaryKey;type:text"`
	UserID         string `gorm:"uniqueIndex:idx_user_provider;not null"`
	Provider       string `gorm:"uniqueIndex:idx_user_provider;not null"`
	AccessToken    string `gorm:"not null"`
	RefreshToken   string
	TokenExpiresAt *time.Time
	// Scopes is space separated.
	Scopes    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *OAuthConnection) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
