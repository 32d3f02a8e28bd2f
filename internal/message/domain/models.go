// Package domain contains persistence models for the message service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Message is one tracked outbound or inbound communication. MessageID is
// the globally unique external identifier handed to callers; the snowflake
// primary key stays internal.
type Message struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"-"`
	OrgID        snowflake.ID  `gorm:"not null;index" json:"org_id"`
	SenderUserID *snowflake.ID `gorm:"column:sender_user_id" json:"sender_user_id,omitempty"`
	MessageID    string        `gorm:"column:message_id;type:text;not null;uniqueIndex:ux_messages_message_id" json:"message_id"`
	Recipient    string        `gorm:"type:text;not null" json:"recipient"`
	Body         string        `gorm:"type:text;not null" json:"body"`
	Service      string        `gorm:"type:text;not null" json:"service"`
	Status       string        `gorm:"type:text;not null" json:"status"`
	SMSFallback  bool          `gorm:"column:sms_fallback;not null;default:false" json:"sms_fallback"`
	SentAt       time.Time     `gorm:"column:sent_at;not null" json:"sent_at"`
	DeliveredAt  *time.Time    `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	ReadAt       *time.Time    `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Message) TableName() string { return "messages" }
