package models

import "time"

// Role is the author role of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one entry in a thread; ID order is insertion order
type Message struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ThreadID          uint      `gorm:"not null;index" json:"thread_id"`
	Role              Role      `gorm:"size:32;not null;check:chk_messages_role,role IN ('user','assistant','system')" json:"role"`
	Content           string    `gorm:"type:text;not null" json:"content"`
	ExternalMessageID *string   `gorm:"size:128;index" json:"external_message_id,omitempty"`
	IsHuman           bool      `gorm:"not null;default:false" json:"is_human"`
	CreatedAt         time.Time `json:"created_at"`
}

// CreateMessageRequest is the body of POST /threads/:id/messages
type CreateMessageRequest struct {
	Content           string  `json:"content" binding:"required"`
	ExternalMessageID *string `json:"external_message_id"`
}

// HumanReplyRequest is the body of POST /threads/:id/human-reply
type HumanReplyRequest struct {
	Content string `json:"content" binding:"required"`
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
