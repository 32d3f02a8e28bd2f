// Package domain contains persistence models for the contact service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Contact is the canonical, deduplicated identity for one phone number.
// Rows are shared across organizations and never mutated after creation.
type Contact struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	PhoneNumber string       `gorm:"column:phone_number;type:text;not null;uniqueIndex:ux_contacts_phone" json:"phone_number"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Contact) TableName() string { return "contacts" }

// OrganizationContact is one tenant's relationship to a canonical contact.
// (org_id, contact_id) is unique and the row is upsert-only.
type OrganizationContact struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_contacts_org_contact,priority:1" json:"org_id"`
	ContactID  snowflake.ID `gorm:"not null;uniqueIndex:ux_org_contacts_org_contact,priority:2" json:"contact_id"`
	FirstName  string       `gorm:"column:first_name;type:text;not null;default:''" json:"first_name"`
	LastName   string       `gorm:"column:last_name;type:text;not null;default:''" json:"last_name"`
	Email      string       `gorm:"type:text;not null;default:''" json:"email"`
	Subscribed bool         `gorm:"not null;default:true" json:"subscribed"`
	Notes      string       `gorm:"type:text;not null;default:''" json:"notes"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (OrganizationContact) TableName() string { return "organization_contacts" }
