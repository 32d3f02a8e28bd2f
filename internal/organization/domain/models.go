// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant. Every message, contact link, invite and
// API key belongs to exactly one.
type Organization struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name             string            `gorm:"type:text;not null" json:"name"`
	Slug             string            `gorm:"type:text;not null" json:"slug"`
	SubscriptionTier string            `gorm:"column:subscription_tier;type:text;not null;default:'free'" json:"subscription_tier"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// OrganizationMember represents membership of a user in an organization.
// (org_id, user_id) is unique; an organization always keeps at least one
// member with the owner role.
type OrganizationMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_members_org_user,priority:1" json:"org_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_members_org_user,priority:2" json:"user_id"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }
