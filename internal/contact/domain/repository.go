package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository methods take the database handle per call so services can run
// them inside or outside a transaction.
type Repository interface {
	InsertContact(ctx context.Context, db *gorm.DB, contact *Contact) error
	FindContactByPhone(ctx context.Context, db *gorm.DB, phone string) (*Contact, error)

	// UpsertOrganizationContact inserts the relationship row or, on the
	// (org_id, contact_id) conflict, overwrites its display fields and
	// subscription flag.
	UpsertOrganizationContact(ctx context.Context, db *gorm.DB, link *OrganizationContact) error

	Search(ctx context.Context, db *gorm.DB, orgID snowflake.ID, query string, subscribedOnly bool) ([]View, error)
}
