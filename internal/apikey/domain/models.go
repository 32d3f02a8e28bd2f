// Package domain contains persistence models for the API key service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// APIKey is one programmatic credential. Only the one-way hash of the
// secret is stored; ShortKey is a non-secret fragment of the plaintext kept
// for indexed candidate lookup.
type APIKey struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID `gorm:"not null;index" json:"org_id"`
	UserID     snowflake.ID `gorm:"not null" json:"user_id"`
	Name       string       `gorm:"type:text;not null" json:"name"`
	KeyHash    string       `gorm:"column:key_hash;type:text;not null;uniqueIndex:ux_api_keys_key_hash" json:"-"`
	ShortKey   string       `gorm:"column:short_key;type:text;not null;index:ix_api_keys_short_key" json:"short_key"`
	Permission string       `gorm:"type:text;not null" json:"permission"`
	IsActive   bool         `gorm:"column:is_active;not null;default:true" json:"is_active"`
	LastUsedAt *time.Time   `gorm:"column:last_used_at" json:"last_used_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }
