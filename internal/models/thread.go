package models

import "time"

// Thread is one conversation history. RoutingKey is the natural key the
// resolver inserts under; (UserID, RoutingKey) is unique so concurrent first
// contacts from the same address converge on one row.
type Thread struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index;uniqueIndex:ux_threads_user_routing,priority:1" json:"user_id"`
	RoutingKey       *string   `gorm:"size:160;uniqueIndex:ux_threads_user_routing,priority:2" json:"-"`
	Title            string    `gorm:"size:160;not null;default:''" json:"title"`
	ExternalThreadID *string   `gorm:"size:128" json:"external_thread_id,omitempty"`
	ExternalContact  *string   `gorm:"column:external_user_phone;size:64" json:"external_user_phone,omitempty"`
	Channel          string    `gorm:"size:32;not null;default:''" json:"channel,omitempty"`
	HumanTakeover    bool      `gorm:"not null;default:false" json:"human_takeover"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`

	Messages []Message `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// ContactAddress returns the stored contact address or ""
func (t *Thread) ContactAddress() string {
	if t.ExternalContact == nil {
		return ""
	}
	return *t.ExternalContact
}

// CreateThreadRequest is the body of POST /threads
type CreateThreadRequest struct {
	Title            string  `json:"title"`
	ExternalThreadID *string `json:"external_thread_id"`
}

// TakeoverRequest is the body of POST /threads/:id/takeover
type TakeoverRequest struct {
	Active *bool `json:"active" binding:"required"`
}
