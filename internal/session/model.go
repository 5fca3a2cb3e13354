package session

import (
	"time"

	"github.com/rtr-labs/repaircam/internal/shared"
)

// Session is one repair conversation, grouping messages and the items
// detected from the camera feed.
type Session struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []Message      `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
	Items    []DetectedItem `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

type Message struct {
	ID        string             `gorm:"primaryKey" json:"id"`
	SessionID string             `gorm:"not null;index" json:"session_id"`
	Role      string             `gorm:"not null" json:"role"`
	Content   string             `gorm:"not null" json:"content"`
	Images    shared.StringSlice `gorm:"type:text" json:"images,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// DetectedItem is a confirmed detection saved against a session.
type DetectedItem struct {
	ID           string             `gorm:"primaryKey" json:"id"`
	SessionID    string             `gorm:"not null;index" json:"session_id"`
	Object       string             `gorm:"not null" json:"object"`
	Brand        string             `json:"brand"`
	Model        string             `json:"model"`
	SerialNumber string             `json:"serial_number"`
	Condition    string             `json:"condition"`
	Issues       shared.StringSlice `gorm:"type:text" json:"issues"`
	Description  string             `json:"description"`
	DetectedAt   time.Time          `json:"detected_at"`
}

// ConversationContext holds the rolling summary entries the assistant keeps
// per session, newest last.
type ConversationContext struct {
	SessionID string             `gorm:"primaryKey" json:"session_id"`
	Entries   shared.StringSlice `gorm:"type:text" json:"entries"`
	UpdatedAt time.Time          `json:"updated_at"`
}
