// Package domain contains persistence models for the user service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is the canonical record for one externally authenticated principal.
// AuthID is the identity provider's subject; exactly one row exists per
// auth id.
type User struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	AuthID    string       `gorm:"column:auth_id;type:text;not null;uniqueIndex:ux_users_auth_id" json:"auth_id"`
	FullName  string       `gorm:"column:full_name;type:text;not null;default:''" json:"full_name"`
	Email     string       `gorm:"type:text;not null;default:''" json:"email"`
	AvatarURL string       `gorm:"column:avatar_url;type:text;not null;default:''" json:"avatar_url"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
