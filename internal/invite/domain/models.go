// Package domain contains persistence models for the invite service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// OrganizationInvite is a pending offer to join an organization. Acceptance
// consumes the row; there is no accepted status flag.
type OrganizationInvite struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_invites_org_email,priority:1" json:"org_id"`
	Email     string       `gorm:"type:text;not null;uniqueIndex:ux_org_invites_org_email,priority:2" json:"email"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	Token     string       `gorm:"type:text;not null;uniqueIndex:ux_org_invites_token" json:"-"`
	InvitedBy snowflake.ID `gorm:"column:invited_by;not null" json:"invited_by"`
	ExpiresAt time.Time    `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationInvite) TableName() string { return "organization_invites" }
